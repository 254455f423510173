package application

import (
	"context"
	"log"
	"os"
	"sync"

	eventspkg "bluelink-bridge/internal/commands/application/events"
	commands "bluelink-bridge/internal/commands/domain"
	"bluelink-bridge/internal/eventing"
)

func testLogger() *log.Logger {
	return log.New(os.Stdout, "", 0)
}

// stubRemote answers every control operation with a fixed action id
// and serves status polls from a scripted sequence.
type stubRemote struct {
	mu sync.Mutex

	actionID    string
	dispatchErr error
	calls       []string

	statuses  []commands.ActionStatus
	statusErr error
	polls     int
}

func (s *stubRemote) record(op, targetID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op+":"+targetID)
	if s.dispatchErr != nil {
		return "", s.dispatchErr
	}
	return s.actionID, nil
}

func (s *stubRemote) Lock(ctx context.Context, targetID string) (string, error) {
	return s.record("lock", targetID)
}

func (s *stubRemote) Unlock(ctx context.Context, targetID string) (string, error) {
	return s.record("unlock", targetID)
}

func (s *stubRemote) StartClimate(ctx context.Context, targetID string, params commands.ClimateParams) (string, error) {
	return s.record("climate_start", targetID)
}

func (s *stubRemote) StopClimate(ctx context.Context, targetID string) (string, error) {
	return s.record("climate_stop", targetID)
}

func (s *stubRemote) SetWindows(ctx context.Context, targetID string, params commands.WindowParams) (string, error) {
	return s.record("windows", targetID)
}

func (s *stubRemote) OpenChargePort(ctx context.Context, targetID string) (string, error) {
	return s.record("charge_port_open", targetID)
}

func (s *stubRemote) CloseChargePort(ctx context.Context, targetID string) (string, error) {
	return s.record("charge_port_close", targetID)
}

func (s *stubRemote) SetChargingCurrent(ctx context.Context, targetID string, params commands.ChargingParams) (string, error) {
	return s.record("charging_current", targetID)
}

func (s *stubRemote) CheckActionStatus(ctx context.Context, targetID, actionID string) (commands.ActionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.statusErr != nil {
		return commands.StatusUnknown, s.statusErr
	}
	if len(s.statuses) == 0 {
		return commands.StatusPending, nil
	}
	status := s.statuses[0]
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
	return status, nil
}

func (s *stubRemote) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// stubRefresher counts post-success refresh requests.
type stubRefresher struct {
	mu      sync.Mutex
	targets []string
}

func (s *stubRefresher) ForceRefresh(ctx context.Context, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, targetID)
	return nil
}

func (s *stubRefresher) refreshed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.targets...)
}

// eventCollector subscribes to the lifecycle events and records them.
type eventCollector struct {
	mu        sync.Mutex
	started   []eventspkg.ActionStarted
	changed   []eventspkg.ActionStatusChanged
	completed []eventspkg.ActionCompleted
	rejected  []eventspkg.CommandRejected
}

func newEventCollector(bus eventing.EventBus) *eventCollector {
	c := &eventCollector{}
	bus.Subscribe(eventing.EventTypeOf[eventspkg.ActionStarted](), func(_ context.Context, event any) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.started = append(c.started, event.(eventspkg.ActionStarted))
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[eventspkg.ActionStatusChanged](), func(_ context.Context, event any) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.changed = append(c.changed, event.(eventspkg.ActionStatusChanged))
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[eventspkg.ActionCompleted](), func(_ context.Context, event any) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.completed = append(c.completed, event.(eventspkg.ActionCompleted))
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[eventspkg.CommandRejected](), func(_ context.Context, event any) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.rejected = append(c.rejected, event.(eventspkg.CommandRejected))
		return nil
	})
	return c
}

func (c *eventCollector) snapshot() (started []eventspkg.ActionStarted, changed []eventspkg.ActionStatusChanged, completed []eventspkg.ActionCompleted, rejected []eventspkg.CommandRejected) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]eventspkg.ActionStarted(nil), c.started...),
		append([]eventspkg.ActionStatusChanged(nil), c.changed...),
		append([]eventspkg.ActionCompleted(nil), c.completed...),
		append([]eventspkg.CommandRejected(nil), c.rejected...)
}
