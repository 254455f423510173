package mqtt

import (
	"context"
	"errors"
	"log"

	"bluelink-bridge/internal/eventing"
	transport "bluelink-bridge/internal/mqtt"
	"bluelink-bridge/internal/vehicles"
)

// Publisher is the outbound transport surface the consumer needs.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool)
}

// DataConsumer flattens refreshed vehicle documents into one retained
// topic per metric.
type DataConsumer struct {
	publisher Publisher
	topics    transport.Topics
	logger    *log.Logger
}

// NewDataConsumer constructs the consumer.
func NewDataConsumer(publisher Publisher, topics transport.Topics, logger *log.Logger) (*DataConsumer, error) {
	if publisher == nil {
		return nil, errors.New("vehicles mqtt: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DataConsumer{publisher: publisher, topics: topics, logger: logger}, nil
}

// Register subscribes the consumer to data refresh events.
func (c *DataConsumer) Register(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[vehicles.VehicleDataRefreshed](), c.onRefreshed)
}

func (c *DataConsumer) onRefreshed(_ context.Context, event any) error {
	refreshed, ok := event.(vehicles.VehicleDataRefreshed)
	if !ok {
		return errors.New("vehicles mqtt: unexpected event type")
	}
	for _, metric := range refreshed.Data.Metrics() {
		payload, err := transport.FormatMessage(metric.Value, refreshed.Data.Timestamp, metric.Unit)
		if err != nil {
			c.logger.Printf("encode metric %s/%s for %s: %v", metric.Category, metric.Name, refreshed.VehicleID, err)
			continue
		}
		c.publisher.Publish(c.topics.MetricTopic(refreshed.VehicleID, metric.Category, metric.Name), payload, true)
	}
	return nil
}
