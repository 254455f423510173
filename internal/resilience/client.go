package resilience

import (
	"context"
	"errors"
	"log"

	"bluelink-bridge/internal/observability/metrics"
)

// ErrCircuitOpen is returned when the breaker suppresses a call
// without attempting it.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// Client wraps single remote-call invocations with circuit-breaker
// gating and refresh-then-retry-once semantics on credential expiry.
// One instance is shared by all dispatchers and pollers so breaker
// counters and the refresh lock stay process-wide.
type Client struct {
	breaker       *CircuitBreaker
	refresher     *RefreshCoordinator
	isAuthExpired func(error) bool
	logger        *log.Logger
}

// NewClient constructs a resilient client.
func NewClient(breaker *CircuitBreaker, refresher *RefreshCoordinator, isAuthExpired func(error) bool, logger *log.Logger) (*Client, error) {
	if breaker == nil {
		return nil, errors.New("resilience: nil breaker")
	}
	if refresher == nil {
		return nil, errors.New("resilience: nil refresh coordinator")
	}
	if isAuthExpired == nil {
		return nil, errors.New("resilience: nil auth classifier")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{breaker: breaker, refresher: refresher, isAuthExpired: isAuthExpired, logger: logger}, nil
}

// BreakerState exposes the current breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// Execute runs one remote call under the client's protection. On an
// auth-expired failure it refreshes the credential and retries the
// call exactly once; the retry's outcome is final either way, so a
// refresh that does not fix the underlying cause cannot loop.
func Execute[T any](ctx context.Context, c *Client, class OpClass, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return zero, errors.New("resilience: nil client")
	}
	if !c.breaker.CanExecute(class) {
		metrics.IncRemoteCall(string(class), "circuit_open")
		return zero, ErrCircuitOpen
	}

	result, err := op(ctx)
	if err == nil {
		c.breaker.RecordSuccess(class)
		metrics.IncRemoteCall(string(class), "success")
		return result, nil
	}

	if !c.isAuthExpired(err) {
		c.breaker.RecordFailure(class)
		metrics.IncRemoteCall(string(class), "failure")
		return zero, err
	}

	c.logger.Printf("credential expiry detected, refreshing: %v", err)
	if refreshErr := c.refresher.RefreshIfNeeded(ctx); refreshErr != nil {
		return zero, refreshErr
	}

	// Single bounded retry after refresh.
	result, err = op(ctx)
	if err != nil {
		c.breaker.RecordFailure(class)
		metrics.IncRemoteCall(string(class), "failure")
		return zero, err
	}
	c.breaker.RecordSuccess(class)
	metrics.IncRemoteCall(string(class), "success")
	return result, nil
}
