package history

import (
	"context"
	"errors"
	"log"

	eventspkg "bluelink-bridge/internal/commands/application/events"
	commands "bluelink-bridge/internal/commands/domain"
	"bluelink-bridge/internal/eventing"
)

// Recorder mirrors the action lifecycle into the history table. A
// failed write is logged and dropped; history is best effort and must
// not stall command handling.
type Recorder struct {
	repo   *Repository
	logger *log.Logger
}

// NewRecorder constructs a recorder.
func NewRecorder(repo *Repository, logger *log.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, errors.New("history: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{repo: repo, logger: logger}, nil
}

// Register subscribes the recorder to action lifecycle events.
func (r *Recorder) Register(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[eventspkg.ActionStarted](), r.onStarted)
	bus.Subscribe(eventing.EventTypeOf[eventspkg.ActionCompleted](), r.onCompleted)
}

func (r *Recorder) onStarted(ctx context.Context, event any) error {
	started, ok := event.(eventspkg.ActionStarted)
	if !ok {
		return errors.New("history: unexpected event type")
	}
	entry := Entry{
		ActionID:  started.ActionID,
		RequestID: started.RequestID,
		VehicleID: started.TargetID,
		Kind:      started.Kind,
		Status:    commands.StatusPending,
		StartedAt: started.StartedAt,
	}
	if err := r.repo.InsertAction(ctx, entry); err != nil {
		r.logger.Printf("record action %s: %v", started.ActionID, err)
	}
	return nil
}

func (r *Recorder) onCompleted(ctx context.Context, event any) error {
	completed, ok := event.(eventspkg.ActionCompleted)
	if !ok {
		return errors.New("history: unexpected event type")
	}
	if err := r.repo.MarkTerminal(ctx, completed.ActionID, completed.Status, completed.Error, completed.CompletedAt); err != nil {
		r.logger.Printf("finalize action %s: %v", completed.ActionID, err)
	}
	return nil
}
