package application

import (
	"context"
	"errors"
	"testing"
	"time"

	commands "bluelink-bridge/internal/commands/domain"
	"bluelink-bridge/internal/eventing"
)

func newTestGateway(t *testing.T, remote *stubRemote, bus eventing.EventBus, tracker *Tracker, opts ...GatewayOption) *Gateway {
	t.Helper()
	dispatcher, err := NewDispatcher(remote, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	poller := newTestPoller(t, remote, &stubRefresher{}, tracker, bus, time.Second)
	opts = append([]GatewayOption{WithThrottleInterval(time.Millisecond)}, opts...)
	gateway, err := NewGateway(dispatcher, tracker, poller, bus, testLogger(), opts...)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gateway
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestGatewayDispatchesValidCommand(t *testing.T) {
	remote := &stubRemote{actionID: "act-9", statuses: []commands.ActionStatus{commands.StatusSuccess}}
	bus := eventing.NewInMemoryBus()
	collector := newEventCollector(bus)
	tracker := NewTracker(testLogger())
	gateway := newTestGateway(t, remote, bus, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.Run(ctx)

	gateway.HandleInboundCommand(InboundCommand{TargetID: "VH1", Kind: "lock"})

	waitFor(t, time.Second, func() bool {
		_, _, completed, _ := collector.snapshot()
		return len(completed) == 1
	})

	started, _, completed, rejected := collector.snapshot()
	if len(started) != 1 || started[0].ActionID != "act-9" {
		t.Fatalf("expected start event with the remote action id, got %+v", started)
	}
	if started[0].RequestID == "" {
		t.Fatalf("start event must carry a request id")
	}
	if completed[0].Status != commands.StatusSuccess {
		t.Fatalf("expected success, got %s", completed[0].Status)
	}
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", rejected)
	}
}

func TestGatewayRejectsInvalidCommand(t *testing.T) {
	remote := &stubRemote{actionID: "act-9"}
	bus := eventing.NewInMemoryBus()
	collector := newEventCollector(bus)
	tracker := NewTracker(testLogger())
	gateway := newTestGateway(t, remote, bus, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.Run(ctx)

	gateway.HandleInboundCommand(InboundCommand{
		TargetID: "VH1",
		Kind:     "climate_start",
		Payload:  []byte(`{"set_temp": 50}`),
	})

	waitFor(t, time.Second, func() bool {
		_, _, _, rejected := collector.snapshot()
		return len(rejected) == 1
	})

	if remote.callCount() != 0 {
		t.Fatalf("invalid command must never reach the remote")
	}
	if got := len(tracker.Snapshot()); got != 0 {
		t.Fatalf("invalid command must not create a record, got %d", got)
	}
	_, _, _, rejected := collector.snapshot()
	if rejected[0].Reason != "invalid_command" {
		t.Fatalf("expected invalid_command, got %q", rejected[0].Reason)
	}
}

func TestGatewayRejectsOnDispatchFailure(t *testing.T) {
	remote := &stubRemote{dispatchErr: errors.New("vehicle unreachable")}
	bus := eventing.NewInMemoryBus()
	collector := newEventCollector(bus)
	tracker := NewTracker(testLogger())
	gateway := newTestGateway(t, remote, bus, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.Run(ctx)

	gateway.HandleInboundCommand(InboundCommand{TargetID: "VH1", Kind: "lock"})

	waitFor(t, time.Second, func() bool {
		_, _, _, rejected := collector.snapshot()
		return len(rejected) == 1
	})

	_, _, _, rejected := collector.snapshot()
	if rejected[0].Reason != "dispatch_failed" {
		t.Fatalf("expected dispatch_failed, got %q", rejected[0].Reason)
	}
	if got := len(tracker.Snapshot()); got != 0 {
		t.Fatalf("failed dispatch must not fabricate an action record, got %d", got)
	}
}

func TestGatewayThrottlesPerTarget(t *testing.T) {
	remote := &stubRemote{actionID: "act-1", statuses: []commands.ActionStatus{commands.StatusSuccess}}
	bus := eventing.NewInMemoryBus()
	tracker := NewTracker(testLogger())

	dispatcher, err := NewDispatcher(remote, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	poller := newTestPoller(t, remote, &stubRefresher{}, tracker, bus, time.Second)
	gateway, err := NewGateway(dispatcher, tracker, poller, bus, testLogger(),
		WithThrottleInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	start := time.Now()
	gateway.process(context.Background(), InboundCommand{TargetID: "VH1", Kind: "lock"})
	gateway.process(context.Background(), InboundCommand{TargetID: "VH1", Kind: "unlock"})
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("second command for the same target must wait out the throttle, took %s", elapsed)
	}
	poller.Wait()
}

func TestGatewayDropsWhenQueueFull(t *testing.T) {
	remote := &stubRemote{actionID: "act-1"}
	bus := eventing.NewInMemoryBus()
	tracker := NewTracker(testLogger())
	gateway := newTestGateway(t, remote, bus, tracker, WithQueueSize(1))

	// No Run loop draining; second enqueue must drop, not block.
	done := make(chan struct{})
	go func() {
		gateway.HandleInboundCommand(InboundCommand{TargetID: "VH1", Kind: "lock"})
		gateway.HandleInboundCommand(InboundCommand{TargetID: "VH1", Kind: "unlock"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("enqueue on a full queue must not block")
	}
}
