package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Topics builds and parses the bridge's topic scheme under a common
// base:
//
//	{base}/{vehicleID}/{category}/{metric}           published data
//	{base}/{vehicleID}/actions/{actionID}/{field}    action lifecycle
//	{base}/{vehicleID}/commands/{kind}               inbound commands
type Topics struct {
	base string
}

// NewTopics constructs a topic scheme with the given base.
func NewTopics(base string) (Topics, error) {
	base = strings.Trim(strings.TrimSpace(base), "/")
	if base == "" {
		return Topics{}, errors.New("mqtt: empty base topic")
	}
	if strings.ContainsAny(base, "+#") {
		return Topics{}, fmt.Errorf("mqtt: base topic %q contains wildcards", base)
	}
	return Topics{base: base}, nil
}

// CommandFilter is the subscription filter matching every inbound
// command for every vehicle.
func (t Topics) CommandFilter() string {
	return t.base + "/+/commands/+"
}

// ParseCommandTopic extracts the vehicle id and command kind from an
// inbound command topic.
func (t Topics) ParseCommandTopic(topic string) (vehicleID, kind string, err error) {
	rest, ok := strings.CutPrefix(topic, t.base+"/")
	if !ok {
		return "", "", fmt.Errorf("mqtt: topic %q outside base", topic)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "commands" || parts[0] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("mqtt: %q is not a command topic", topic)
	}
	return parts[0], parts[2], nil
}

// MetricTopic is the topic for one published data point.
func (t Topics) MetricTopic(vehicleID, category, metric string) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.base, vehicleID, category, metric)
}

// ActionTopic is the topic for one field of an action's lifecycle.
func (t Topics) ActionTopic(vehicleID, actionID, field string) string {
	return fmt.Sprintf("%s/%s/actions/%s/%s", t.base, vehicleID, actionID, field)
}

// ErrorTopic carries per-vehicle command rejections.
func (t Topics) ErrorTopic(vehicleID string) string {
	return fmt.Sprintf("%s/%s/error", t.base, vehicleID)
}

// AvailabilityTopic carries the bridge's online/offline state.
func (t Topics) AvailabilityTopic() string {
	return t.base + "/bridge/availability"
}

// Message is the JSON envelope for published values.
type Message struct {
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
	Unit      string `json:"unit,omitempty"`
}

// FormatMessage encodes a value into the publish envelope.
func FormatMessage(value any, at time.Time, unit string) ([]byte, error) {
	return json.Marshal(Message{
		Value:     value,
		Timestamp: at.UTC().Format(time.RFC3339),
		Unit:      unit,
	})
}
