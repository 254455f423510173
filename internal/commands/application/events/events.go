package events

import (
	"time"

	commands "bluelink-bridge/internal/commands/domain"
)

// ActionStarted is emitted once a command was accepted by the remote
// API and tracking began.
type ActionStarted struct {
	RequestID  string               `json:"request_id"`
	ActionID   string               `json:"action_id"`
	TargetID   string               `json:"target_id"`
	Kind       commands.CommandKind `json:"kind"`
	StartedAt  time.Time            `json:"started_at"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// ActionStatusChanged is emitted for every observed non-terminal
// status change during polling.
type ActionStatusChanged struct {
	RequestID  string                `json:"request_id"`
	ActionID   string                `json:"action_id"`
	TargetID   string                `json:"target_id"`
	Kind       commands.CommandKind  `json:"kind"`
	Status     commands.ActionStatus `json:"status"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// ActionCompleted is emitted exactly once per action when it reaches a
// terminal state.
type ActionCompleted struct {
	RequestID   string                `json:"request_id"`
	ActionID    string                `json:"action_id"`
	TargetID    string                `json:"target_id"`
	Kind        commands.CommandKind  `json:"kind"`
	Status      commands.ActionStatus `json:"status"`
	Error       string                `json:"error,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at"`
}

// CommandRejected is emitted when an inbound command never became an
// action: invalid parameters, throttling, or a failed dispatch.
type CommandRejected struct {
	TargetID   string    `json:"target_id"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}
