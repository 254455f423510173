package resilience

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"bluelink-bridge/internal/observability/metrics"
)

// ErrRefresh wraps credential refresh failures. Callers treat it as a
// hard failure; the coordinator never retries on its own.
var ErrRefresh = errors.New("resilience: credential refresh failed")

const defaultFreshnessWindow = 30 * time.Second

// RefreshFunc performs the actual (blocking) credential refresh.
type RefreshFunc func(ctx context.Context) error

// RefreshCoordinator collapses concurrent refresh requests into a
// single physical refresh. A request arriving within the freshness
// window of the last completed refresh is treated as already satisfied.
type RefreshCoordinator struct {
	mu            sync.Mutex
	refresh       RefreshFunc
	window        time.Duration
	lastRefreshAt time.Time

	now    func() time.Time
	logger *log.Logger
}

// RefreshOption customizes a RefreshCoordinator.
type RefreshOption func(*RefreshCoordinator)

// WithFreshnessWindow overrides the dedupe window.
func WithFreshnessWindow(window time.Duration) RefreshOption {
	return func(c *RefreshCoordinator) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithRefreshClock overrides the time source.
func WithRefreshClock(now func() time.Time) RefreshOption {
	return func(c *RefreshCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewRefreshCoordinator constructs a coordinator around a refresh function.
func NewRefreshCoordinator(refresh RefreshFunc, logger *log.Logger, opts ...RefreshOption) (*RefreshCoordinator, error) {
	if refresh == nil {
		return nil, errors.New("resilience: nil refresh func")
	}
	if logger == nil {
		logger = log.Default()
	}
	coordinator := &RefreshCoordinator{
		refresh: refresh,
		window:  defaultFreshnessWindow,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator, nil
}

// RefreshIfNeeded performs a refresh unless one completed within the
// freshness window. The lock serializes refreshes process-wide; the
// window is re-checked under the lock so callers that raced to request
// one share the winner's outcome.
func (c *RefreshCoordinator) RefreshIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastRefreshAt.IsZero() && c.now().Sub(c.lastRefreshAt) < c.window {
		return nil
	}

	c.logger.Printf("refreshing expired credential")
	if err := c.refresh(ctx); err != nil {
		metrics.IncCredentialRefresh("error")
		return fmt.Errorf("%w: %v", ErrRefresh, err)
	}
	c.lastRefreshAt = c.now()
	metrics.IncCredentialRefresh("success")
	c.logger.Printf("credential refresh completed")
	return nil
}

// LastRefreshAt returns the completion time of the last refresh.
func (c *RefreshCoordinator) LastRefreshAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefreshAt
}
