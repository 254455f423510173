package resilience

import (
	"log"
	"sync"
	"time"

	"bluelink-bridge/internal/observability/metrics"
)

// OpClass is a coarse operation category used to apply different
// failure thresholds.
type OpClass string

const (
	// OpControl covers device control commands.
	OpControl OpClass = "control"
	// OpRead covers telemetry and status reads.
	OpRead OpClass = "read"
)

// Breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

const (
	defaultControlThreshold = 3
	defaultReadThreshold    = 5
	defaultCooldown         = 60 * time.Second
)

// CircuitBreaker suppresses remote calls after repeated failures.
// Control operations trip on a stricter threshold than reads: a retry
// storm against a device control endpoint is riskier than a stale read.
type CircuitBreaker struct {
	mu sync.Mutex

	controlThreshold int
	readThreshold    int
	cooldown         time.Duration

	failures      map[OpClass]int
	state         string
	lastFailureAt time.Time

	now    func() time.Time
	logger *log.Logger
}

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithThresholds overrides the per-class failure thresholds.
func WithThresholds(control, read int) BreakerOption {
	return func(b *CircuitBreaker) {
		if control > 0 {
			b.controlThreshold = control
		}
		if read > 0 {
			b.readThreshold = read
		}
	}
}

// WithCooldown overrides the open-state cooldown.
func WithCooldown(cooldown time.Duration) BreakerOption {
	return func(b *CircuitBreaker) {
		if cooldown > 0 {
			b.cooldown = cooldown
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *CircuitBreaker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewCircuitBreaker constructs a breaker in the closed state.
func NewCircuitBreaker(logger *log.Logger, opts ...BreakerOption) *CircuitBreaker {
	if logger == nil {
		logger = log.Default()
	}
	breaker := &CircuitBreaker{
		controlThreshold: defaultControlThreshold,
		readThreshold:    defaultReadThreshold,
		cooldown:         defaultCooldown,
		failures:         make(map[OpClass]int),
		state:            StateClosed,
		now:              func() time.Time { return time.Now().UTC() },
		logger:           logger,
	}
	for _, opt := range opts {
		opt(breaker)
	}
	return breaker
}

// CanExecute reports whether a call of the given class may proceed.
// While open, the first call after the cooldown moves the breaker to
// half-open and is granted as a single probe; further calls are
// rejected until the probe's outcome is recorded.
func (b *CircuitBreaker) CanExecute(class OpClass) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if !b.lastFailureAt.IsZero() && b.now().Sub(b.lastFailureAt) > b.cooldown {
			b.setState(StateHalfOpen)
			b.logger.Printf("circuit breaker entering half-open state (class=%s)", class)
			return true
		}
		return false
	default:
		// Half-open: the single probe slot was handed out on the
		// open->half-open transition. Reject until its outcome is recorded.
		return false
	}
}

// RecordSuccess resets the failure count for the class and closes
// the breaker.
func (b *CircuitBreaker) RecordSuccess(class OpClass) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.logger.Printf("circuit breaker closing after successful probe")
	}
	b.failures[class] = 0
	b.setState(StateClosed)
}

// RecordFailure increments the class failure counter and opens the
// breaker once the class threshold is reached. A failed half-open
// probe reopens immediately.
func (b *CircuitBreaker) RecordFailure(class OpClass) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[class]++
	b.lastFailureAt = b.now()

	if b.state == StateHalfOpen {
		b.setState(StateOpen)
		b.logger.Printf("circuit breaker reopened after failed probe (class=%s)", class)
		return
	}
	if b.failures[class] >= b.threshold(class) {
		if b.state != StateOpen {
			b.logger.Printf("circuit breaker opened after %d consecutive %s failures", b.failures[class], class)
		}
		b.setState(StateOpen)
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) threshold(class OpClass) int {
	if class == OpRead {
		return b.readThreshold
	}
	return b.controlThreshold
}

func (b *CircuitBreaker) setState(state string) {
	if b.state != state {
		b.state = state
		metrics.SetCircuitState(state)
	}
}
