package mqtt

import (
	"context"
	"errors"
	"log"
	"time"

	eventspkg "bluelink-bridge/internal/commands/application/events"
	"bluelink-bridge/internal/eventing"
	transport "bluelink-bridge/internal/mqtt"
)

// Publisher is the outbound transport surface the consumer needs.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool)
}

// StatusConsumer mirrors the action lifecycle onto MQTT. Each action
// gets a small topic tree under the vehicle: status (retained, so late
// subscribers see the outcome), started_at, completed_at and error.
type StatusConsumer struct {
	publisher Publisher
	topics    transport.Topics
	logger    *log.Logger
}

// NewStatusConsumer constructs the consumer.
func NewStatusConsumer(publisher Publisher, topics transport.Topics, logger *log.Logger) (*StatusConsumer, error) {
	if publisher == nil {
		return nil, errors.New("commands mqtt: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StatusConsumer{publisher: publisher, topics: topics, logger: logger}, nil
}

// Register subscribes the consumer to the action lifecycle events.
func (c *StatusConsumer) Register(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[eventspkg.ActionStarted](), c.onStarted)
	bus.Subscribe(eventing.EventTypeOf[eventspkg.ActionStatusChanged](), c.onStatusChanged)
	bus.Subscribe(eventing.EventTypeOf[eventspkg.ActionCompleted](), c.onCompleted)
	bus.Subscribe(eventing.EventTypeOf[eventspkg.CommandRejected](), c.onRejected)
}

func (c *StatusConsumer) onStarted(_ context.Context, event any) error {
	started, ok := event.(eventspkg.ActionStarted)
	if !ok {
		return errors.New("commands mqtt: unexpected event type")
	}
	c.publishValue(started.TargetID, started.ActionID, "status", "pending", started.OccurredAt, true)
	c.publishValue(started.TargetID, started.ActionID, "started_at", started.StartedAt.UTC().Format(time.RFC3339), started.OccurredAt, false)
	return nil
}

func (c *StatusConsumer) onStatusChanged(_ context.Context, event any) error {
	changed, ok := event.(eventspkg.ActionStatusChanged)
	if !ok {
		return errors.New("commands mqtt: unexpected event type")
	}
	c.publishValue(changed.TargetID, changed.ActionID, "status", string(changed.Status), changed.OccurredAt, true)
	return nil
}

func (c *StatusConsumer) onCompleted(_ context.Context, event any) error {
	completed, ok := event.(eventspkg.ActionCompleted)
	if !ok {
		return errors.New("commands mqtt: unexpected event type")
	}
	c.publishValue(completed.TargetID, completed.ActionID, "status", string(completed.Status), completed.CompletedAt, true)
	c.publishValue(completed.TargetID, completed.ActionID, "completed_at", completed.CompletedAt.UTC().Format(time.RFC3339), completed.CompletedAt, false)
	if completed.Error != "" {
		c.publishValue(completed.TargetID, completed.ActionID, "error", completed.Error, completed.CompletedAt, false)
	}
	return nil
}

func (c *StatusConsumer) onRejected(_ context.Context, event any) error {
	rejected, ok := event.(eventspkg.CommandRejected)
	if !ok {
		return errors.New("commands mqtt: unexpected event type")
	}
	payload, err := transport.FormatMessage(rejected.Reason+": "+rejected.Error, rejected.OccurredAt, "")
	if err != nil {
		return err
	}
	c.publisher.Publish(c.topics.ErrorTopic(rejected.TargetID), payload, false)
	return nil
}

func (c *StatusConsumer) publishValue(vehicleID, actionID, field, value string, at time.Time, retain bool) {
	payload, err := transport.FormatMessage(value, at, "")
	if err != nil {
		c.logger.Printf("encode %s for action %s: %v", field, actionID, err)
		return
	}
	c.publisher.Publish(c.topics.ActionTopic(vehicleID, actionID, field), payload, retain)
}
