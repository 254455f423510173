package commands

import (
	"errors"
	"time"
)

// ActionStatus is the lifecycle state of a tracked action.
type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusSuccess  ActionStatus = "success"
	StatusFailed   ActionStatus = "failed"
	StatusTimedOut ActionStatus = "timed_out"
	StatusUnknown  ActionStatus = "unknown"
)

// Terminal reports whether no further transition is permitted.
func (s ActionStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusTimedOut, StatusUnknown:
		return true
	}
	return false
}

// ErrInvalidTransition is returned when a transition is attempted on a
// record that already reached a terminal state.
var ErrInvalidTransition = errors.New("commands: action already in terminal state")

// StatusChange is one entry of an action's append-only history.
type StatusChange struct {
	At     time.Time    `json:"at"`
	Status ActionStatus `json:"status"`
}

// ActionRecord tracks one control action from dispatch to its terminal
// state. Records are mutated only through their owning tracker.
type ActionRecord struct {
	ActionID     string         `json:"action_id"`
	RequestID    string         `json:"request_id"`
	Kind         CommandKind    `json:"kind"`
	TargetID     string         `json:"target_id"`
	Status       ActionStatus   `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error,omitempty"`
	History      []StatusChange `json:"history"`
}

// NewActionRecord builds a pending record with its initial history entry.
func NewActionRecord(actionID, requestID string, kind CommandKind, targetID string, startedAt time.Time) *ActionRecord {
	return &ActionRecord{
		ActionID:  actionID,
		RequestID: requestID,
		Kind:      kind,
		TargetID:  targetID,
		Status:    StatusPending,
		StartedAt: startedAt,
		History:   []StatusChange{{At: startedAt, Status: StatusPending}},
	}
}

// Apply transitions the record to a new status, appending to the
// history. Terminal records reject any further transition. Reaching a
// terminal state stamps CompletedAt.
func (r *ActionRecord) Apply(status ActionStatus, errorMessage string, at time.Time) error {
	if r.Status.Terminal() {
		return ErrInvalidTransition
	}
	r.Status = status
	r.History = append(r.History, StatusChange{At: at, Status: status})
	if errorMessage != "" {
		r.ErrorMessage = errorMessage
	}
	if status.Terminal() {
		r.CompletedAt = at
	}
	return nil
}

// Clone returns a deep copy safe to hand outside the tracker's lock.
func (r *ActionRecord) Clone() ActionRecord {
	copied := *r
	copied.History = append([]StatusChange(nil), r.History...)
	return copied
}
