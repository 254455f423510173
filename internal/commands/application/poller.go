package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	eventspkg "bluelink-bridge/internal/commands/application/events"
	commands "bluelink-bridge/internal/commands/domain"
	"bluelink-bridge/internal/eventing"
	"bluelink-bridge/internal/observability/metrics"
)

const defaultPollInterval = 5 * time.Second

// Command-kind specific confirmation budgets. Climate and charging
// commands wake more vehicle subsystems and take longer to confirm.
var defaultTimeouts = map[commands.CommandKind]time.Duration{
	commands.KindLock:               60 * time.Second,
	commands.KindUnlock:             60 * time.Second,
	commands.KindClimateStart:       120 * time.Second,
	commands.KindClimateStop:        120 * time.Second,
	commands.KindSetWindows:         90 * time.Second,
	commands.KindChargePortOpen:     60 * time.Second,
	commands.KindChargePortClose:    60 * time.Second,
	commands.KindSetChargingCurrent: 120 * time.Second,
}

// Poller runs one confirmation loop per dispatched action. Each loop
// polls remote status until a terminal state or the kind's timeout,
// publishes every transition, and releases the record once the final
// event is out.
type Poller struct {
	remote    RemoteController
	tracker   *Tracker
	bus       eventing.EventBus
	refresher DataRefreshRequester

	interval time.Duration
	timeouts map[commands.CommandKind]time.Duration
	now      func() time.Time
	logger   *log.Logger

	wg sync.WaitGroup
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithPollInterval overrides the poll interval.
func WithPollInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithTimeouts overrides per-kind confirmation budgets.
func WithTimeouts(timeouts map[commands.CommandKind]time.Duration) PollerOption {
	return func(p *Poller) {
		for kind, timeout := range timeouts {
			if timeout > 0 {
				p.timeouts[kind] = timeout
			}
		}
	}
}

// WithPollerClock overrides the time source.
func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPoller constructs a poller.
func NewPoller(remote RemoteController, tracker *Tracker, bus eventing.EventBus, refresher DataRefreshRequester, logger *log.Logger, opts ...PollerOption) (*Poller, error) {
	if remote == nil {
		return nil, errors.New("commands: nil remote controller")
	}
	if tracker == nil {
		return nil, errors.New("commands: nil tracker")
	}
	if bus == nil {
		return nil, errors.New("commands: nil event bus")
	}
	if logger == nil {
		logger = log.Default()
	}
	timeouts := make(map[commands.CommandKind]time.Duration, len(defaultTimeouts))
	for kind, timeout := range defaultTimeouts {
		timeouts[kind] = timeout
	}
	poller := &Poller{
		remote:    remote,
		tracker:   tracker,
		bus:       bus,
		refresher: refresher,
		interval:  defaultPollInterval,
		timeouts:  timeouts,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(poller)
	}
	return poller, nil
}

// Start launches the confirmation loop for a freshly created record.
func (p *Poller) Start(ctx context.Context, record commands.ActionRecord) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, record)
	}()
}

// Wait blocks until all running pollers have exited.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// TimeoutFor returns the confirmation budget for a command kind.
func (p *Poller) TimeoutFor(kind commands.CommandKind) time.Duration {
	if timeout, ok := p.timeouts[kind]; ok {
		return timeout
	}
	return 60 * time.Second
}

func (p *Poller) run(ctx context.Context, record commands.ActionRecord) {
	deadline := record.StartedAt.Add(p.TimeoutFor(record.Kind))
	lastObserved := commands.StatusPending

	for {
		status, err := p.remote.CheckActionStatus(ctx, record.TargetID, record.ActionID)
		switch {
		case err != nil:
			// A failed poll does not imply the action failed; keep
			// retrying within the timeout budget.
			metrics.IncPollAttempt("error")
			p.logger.Printf("status poll failed for action %s: %v", record.ActionID, err)
		case status.Terminal():
			metrics.IncPollAttempt("success")
			p.finalize(ctx, record, status, "")
			return
		default:
			metrics.IncPollAttempt("success")
			if status != lastObserved {
				lastObserved = status
				p.publishStatusChange(ctx, record, status)
			}
		}

		if !p.now().Before(deadline) {
			p.finalize(ctx, record, commands.StatusTimedOut, "")
			return
		}

		select {
		case <-ctx.Done():
			p.logger.Printf("poller for action %s stopped: %v", record.ActionID, ctx.Err())
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *Poller) publishStatusChange(ctx context.Context, record commands.ActionRecord, status commands.ActionStatus) {
	updated, err := p.tracker.Transition(record.ActionID, status, "")
	if err != nil {
		p.logger.Printf("transition of action %s to %s rejected: %v", record.ActionID, status, err)
		return
	}
	event := eventspkg.ActionStatusChanged{
		RequestID:  updated.RequestID,
		ActionID:   updated.ActionID,
		TargetID:   updated.TargetID,
		Kind:       updated.Kind,
		Status:     updated.Status,
		OccurredAt: p.now(),
	}
	if err := p.bus.Publish(ctx, event); err != nil {
		p.logger.Printf("publish status change for action %s: %v", record.ActionID, err)
	}
}

func (p *Poller) finalize(ctx context.Context, record commands.ActionRecord, status commands.ActionStatus, errorMessage string) {
	updated, err := p.tracker.Transition(record.ActionID, status, errorMessage)
	if err != nil {
		p.logger.Printf("final transition of action %s to %s rejected: %v", record.ActionID, status, err)
		return
	}
	metrics.IncActionResult(string(status))
	p.logger.Printf("action %s reached terminal state %s (kind=%s target=%s)", updated.ActionID, status, updated.Kind, updated.TargetID)

	event := eventspkg.ActionCompleted{
		RequestID:   updated.RequestID,
		ActionID:    updated.ActionID,
		TargetID:    updated.TargetID,
		Kind:        updated.Kind,
		Status:      updated.Status,
		Error:       updated.ErrorMessage,
		StartedAt:   updated.StartedAt,
		CompletedAt: updated.CompletedAt,
	}
	if err := p.bus.Publish(ctx, event); err != nil {
		p.logger.Printf("publish completion for action %s: %v", record.ActionID, err)
	}

	if status == commands.StatusSuccess && p.refresher != nil {
		// Fire-and-forget: a failed refresh only delays fresh reads.
		if err := p.refresher.ForceRefresh(ctx, updated.TargetID); err != nil {
			p.logger.Printf("post-success data refresh for %s failed: %v", updated.TargetID, err)
		}
	}

	p.tracker.Release(updated.ActionID)
}
