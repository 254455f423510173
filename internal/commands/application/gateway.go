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

const (
	defaultThrottleInterval = 5 * time.Second
	defaultQueueSize        = 64
)

// InboundCommand is a raw command as received from the transport,
// before parsing and validation.
type InboundCommand struct {
	TargetID   string
	Kind       string
	Payload    []byte
	ReceivedAt time.Time
}

// Gateway accepts raw inbound commands, parses and validates them,
// dispatches them through the resilient remote path and hands
// successful dispatches to the poller for confirmation.
type Gateway struct {
	dispatcher *Dispatcher
	tracker    *Tracker
	poller     *Poller
	bus        eventing.EventBus

	queue    chan InboundCommand
	throttle time.Duration
	now      func() time.Time
	logger   *log.Logger

	mu           sync.Mutex
	lastDispatch map[string]time.Time
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithThrottleInterval overrides the per-target dispatch throttle.
func WithThrottleInterval(interval time.Duration) GatewayOption {
	return func(g *Gateway) {
		if interval > 0 {
			g.throttle = interval
		}
	}
}

// WithQueueSize overrides the inbound queue capacity.
func WithQueueSize(size int) GatewayOption {
	return func(g *Gateway) {
		if size > 0 {
			g.queue = make(chan InboundCommand, size)
		}
	}
}

// WithGatewayClock overrides the time source.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway constructs a command gateway.
func NewGateway(dispatcher *Dispatcher, tracker *Tracker, poller *Poller, bus eventing.EventBus, logger *log.Logger, opts ...GatewayOption) (*Gateway, error) {
	if dispatcher == nil {
		return nil, errors.New("commands: nil dispatcher")
	}
	if tracker == nil {
		return nil, errors.New("commands: nil tracker")
	}
	if poller == nil {
		return nil, errors.New("commands: nil poller")
	}
	if bus == nil {
		return nil, errors.New("commands: nil event bus")
	}
	if logger == nil {
		logger = log.Default()
	}
	gateway := &Gateway{
		dispatcher:   dispatcher,
		tracker:      tracker,
		poller:       poller,
		bus:          bus,
		queue:        make(chan InboundCommand, defaultQueueSize),
		throttle:     defaultThrottleInterval,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
		lastDispatch: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(gateway)
	}
	return gateway, nil
}

// HandleInboundCommand enqueues a raw command without blocking the
// transport callback. A full queue drops the command with a log line.
func (g *Gateway) HandleInboundCommand(cmd InboundCommand) {
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = g.now()
	}
	select {
	case g.queue <- cmd:
	default:
		metrics.IncCommandReceived(cmd.Kind, "dropped")
		g.logger.Printf("command queue full, dropping %s for target %s", cmd.Kind, cmd.TargetID)
	}
}

// Run processes queued commands until the context is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			g.logger.Printf("command gateway stopped: %v", ctx.Err())
			return
		case cmd := <-g.queue:
			g.process(ctx, cmd)
		}
	}
}

func (g *Gateway) process(ctx context.Context, inbound InboundCommand) {
	if wait := g.throttleDelay(inbound.TargetID); wait > 0 {
		g.logger.Printf("throttling %s for target %s by %s", inbound.Kind, inbound.TargetID, wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	cmd, err := commands.ParseCommand(inbound.TargetID, inbound.Kind, inbound.Payload)
	if err != nil {
		metrics.IncCommandReceived(inbound.Kind, "invalid")
		g.logger.Printf("rejecting %s for target %s: %v", inbound.Kind, inbound.TargetID, err)
		g.publishRejected(ctx, inbound.TargetID, inbound.Kind, "invalid_command", err)
		return
	}

	requestID := eventing.NewRequestID()
	ctx = eventing.WithCorrelationID(ctx, requestID)
	ctx = eventing.WithTargetID(ctx, cmd.TargetID)

	actionID, err := g.dispatcher.Dispatch(ctx, cmd)
	g.markDispatch(cmd.TargetID)
	if err != nil {
		metrics.IncCommandReceived(inbound.Kind, "dispatch_failed")
		g.logger.Printf("dispatch of %s for target %s failed: %v", cmd.Kind, cmd.TargetID, err)
		g.publishRejected(ctx, cmd.TargetID, string(cmd.Kind), "dispatch_failed", err)
		return
	}
	metrics.IncCommandReceived(inbound.Kind, "accepted")

	record, err := g.tracker.Create(actionID, requestID, cmd.Kind, cmd.TargetID)
	if err != nil {
		g.logger.Printf("tracking action %s failed: %v", actionID, err)
		return
	}

	event := eventspkg.ActionStarted{
		RequestID:  record.RequestID,
		ActionID:   record.ActionID,
		TargetID:   record.TargetID,
		Kind:       record.Kind,
		StartedAt:  record.StartedAt,
		OccurredAt: g.now(),
	}
	if err := g.bus.Publish(ctx, event); err != nil {
		g.logger.Printf("publish action start for %s: %v", record.ActionID, err)
	}

	g.poller.Start(ctx, record)
}

func (g *Gateway) publishRejected(ctx context.Context, targetID, kind, reason string, cause error) {
	event := eventspkg.CommandRejected{
		TargetID:   targetID,
		Kind:       kind,
		Reason:     reason,
		Error:      cause.Error(),
		OccurredAt: g.now(),
	}
	if err := g.bus.Publish(ctx, event); err != nil {
		g.logger.Printf("publish command rejection for target %s: %v", targetID, err)
	}
}

func (g *Gateway) throttleDelay(targetID string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.lastDispatch[targetID]
	if !ok {
		return 0
	}
	elapsed := g.now().Sub(last)
	if elapsed >= g.throttle {
		return 0
	}
	return g.throttle - elapsed
}

func (g *Gateway) markDispatch(targetID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastDispatch[targetID] = g.now()
}
