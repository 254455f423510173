package application

import (
	"errors"
	"log"
	"sync"
	"time"

	commands "bluelink-bridge/internal/commands/domain"
	"bluelink-bridge/internal/observability/metrics"
)

// ErrActionNotFound is returned for unknown action ids.
var ErrActionNotFound = errors.New("commands: action not found")

// ErrDuplicateAction is returned when an action id is tracked twice.
var ErrDuplicateAction = errors.New("commands: action already tracked")

// Tracker owns the live-action index. Each record's transitions are
// driven by exactly one poller, but the index itself is shared, so all
// access goes through the tracker's lock.
type Tracker struct {
	mu     sync.Mutex
	live   map[string]*commands.ActionRecord
	now    func() time.Time
	logger *log.Logger
}

// NewTracker constructs an empty tracker.
func NewTracker(logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{
		live:   make(map[string]*commands.ActionRecord),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// WithNow overrides the tracker clock.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	if now != nil {
		t.now = now
	}
	return t
}

// Create registers a pending record for a freshly dispatched action
// and returns a snapshot of it.
func (t *Tracker) Create(actionID, requestID string, kind commands.CommandKind, targetID string) (commands.ActionRecord, error) {
	if actionID == "" {
		return commands.ActionRecord{}, errors.New("commands: empty action id")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.live[actionID]; exists {
		return commands.ActionRecord{}, ErrDuplicateAction
	}
	record := commands.NewActionRecord(actionID, requestID, kind, targetID, t.now())
	t.live[actionID] = record
	metrics.SetLiveActions(len(t.live))
	return record.Clone(), nil
}

// Transition applies a status change and returns the updated snapshot.
// Transitions on terminal records are rejected.
func (t *Tracker) Transition(actionID string, status commands.ActionStatus, errorMessage string) (commands.ActionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.live[actionID]
	if !ok {
		return commands.ActionRecord{}, ErrActionNotFound
	}
	if err := record.Apply(status, errorMessage, t.now()); err != nil {
		return commands.ActionRecord{}, err
	}
	return record.Clone(), nil
}

// Release drops a terminal record from the live index. Callers release
// only after the final event was published.
func (t *Tracker) Release(actionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.live[actionID]
	if !ok {
		return
	}
	if !record.Status.Terminal() {
		t.logger.Printf("release of non-terminal action %s refused", actionID)
		return
	}
	delete(t.live, actionID)
	metrics.SetLiveActions(len(t.live))
}

// Get returns a snapshot of a live record.
func (t *Tracker) Get(actionID string) (commands.ActionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.live[actionID]
	if !ok {
		return commands.ActionRecord{}, false
	}
	return record.Clone(), true
}

// Snapshot returns copies of all live records.
func (t *Tracker) Snapshot() []commands.ActionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := make([]commands.ActionRecord, 0, len(t.live))
	for _, record := range t.live {
		records = append(records, record.Clone())
	}
	return records
}
