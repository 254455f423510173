package vehicles

import "time"

// VehicleDataRefreshed is published after a successful read, carrying
// the parsed state document.
type VehicleDataRefreshed struct {
	VehicleID  string
	Strategy   string
	Data       VehicleData
	OccurredAt time.Time
}

// RefreshFailed is published when a requested refresh could not be
// served.
type RefreshFailed struct {
	VehicleID  string
	Strategy   string
	Error      string
	OccurredAt time.Time
}
