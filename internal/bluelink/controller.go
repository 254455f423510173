package bluelink

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	commands "bluelink-bridge/internal/commands/domain"
	"bluelink-bridge/internal/resilience"
)

// Vendor command names as submitted on the wire.
const (
	commandLock            = "lock"
	commandUnlock          = "unlock"
	commandClimateStart    = "start_climate"
	commandClimateStop     = "stop_climate"
	commandSetWindows      = "set_windows"
	commandChargePortOpen  = "open_charge_port"
	commandChargePortClose = "close_charge_port"
	commandChargingCurrent = "set_charging_current"
)

// Controller routes remote operations through the resilient client.
// Control commands and status reads use separate breaker classes so
// a flapping read path cannot block commands.
type Controller struct {
	api    *Client
	rc     *resilience.Client
	logger *log.Logger
}

// NewController constructs a controller.
func NewController(api *Client, rc *resilience.Client, logger *log.Logger) (*Controller, error) {
	if api == nil {
		return nil, errors.New("bluelink: nil api client")
	}
	if rc == nil {
		return nil, errors.New("bluelink: nil resilient client")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{api: api, rc: rc, logger: logger}, nil
}

func (c *Controller) send(ctx context.Context, vehicleID, command string, parameters any) (string, error) {
	return resilience.Execute(ctx, c.rc, resilience.OpControl, func(ctx context.Context) (string, error) {
		return c.api.SendCommand(ctx, vehicleID, command, parameters)
	})
}

// Lock locks the vehicle doors.
func (c *Controller) Lock(ctx context.Context, vehicleID string) (string, error) {
	return c.send(ctx, vehicleID, commandLock, nil)
}

// Unlock unlocks the vehicle doors.
func (c *Controller) Unlock(ctx context.Context, vehicleID string) (string, error) {
	return c.send(ctx, vehicleID, commandUnlock, nil)
}

// StartClimate starts climate control with the given settings.
func (c *Controller) StartClimate(ctx context.Context, vehicleID string, params commands.ClimateParams) (string, error) {
	return c.send(ctx, vehicleID, commandClimateStart, params)
}

// StopClimate stops a running climate session.
func (c *Controller) StopClimate(ctx context.Context, vehicleID string) (string, error) {
	return c.send(ctx, vehicleID, commandClimateStop, nil)
}

// SetWindows moves the windows to the requested positions.
func (c *Controller) SetWindows(ctx context.Context, vehicleID string, params commands.WindowParams) (string, error) {
	return c.send(ctx, vehicleID, commandSetWindows, params)
}

// OpenChargePort opens the charge port.
func (c *Controller) OpenChargePort(ctx context.Context, vehicleID string) (string, error) {
	return c.send(ctx, vehicleID, commandChargePortOpen, nil)
}

// CloseChargePort closes the charge port.
func (c *Controller) CloseChargePort(ctx context.Context, vehicleID string) (string, error) {
	return c.send(ctx, vehicleID, commandChargePortClose, nil)
}

// SetChargingCurrent sets the AC charging current level.
func (c *Controller) SetChargingCurrent(ctx context.Context, vehicleID string, params commands.ChargingParams) (string, error) {
	return c.send(ctx, vehicleID, commandChargingCurrent, params)
}

// CheckActionStatus polls the vendor for an action's outcome and maps
// the raw status string onto the tracker's state set.
func (c *Controller) CheckActionStatus(ctx context.Context, vehicleID, actionID string) (commands.ActionStatus, error) {
	raw, err := resilience.Execute(ctx, c.rc, resilience.OpControl, func(ctx context.Context) (string, error) {
		return c.api.ActionStatus(ctx, vehicleID, actionID)
	})
	if err != nil {
		return commands.StatusUnknown, err
	}
	return MapActionStatus(raw), nil
}

// MapActionStatus maps a vendor status string onto an ActionStatus.
// Unrecognized values map to Unknown rather than failing the poll.
func MapActionStatus(raw string) commands.ActionStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS", "COMPLETE":
		return commands.StatusSuccess
	case "FAIL", "ERROR":
		return commands.StatusFailed
	case "PENDING", "PROCESSING":
		return commands.StatusPending
	default:
		return commands.StatusUnknown
	}
}

// ListVehicles lists account vehicles through the read breaker.
func (c *Controller) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	return resilience.Execute(ctx, c.rc, resilience.OpRead, func(ctx context.Context) ([]Vehicle, error) {
		return c.api.ListVehicles(ctx)
	})
}

// VehicleStatus fetches the cached state document through the read
// breaker.
func (c *Controller) VehicleStatus(ctx context.Context, vehicleID string) (json.RawMessage, error) {
	return resilience.Execute(ctx, c.rc, resilience.OpRead, func(ctx context.Context) (json.RawMessage, error) {
		return c.api.VehicleStatus(ctx, vehicleID)
	})
}

// RequestStatusRefresh asks the vehicle for fresh state through the
// read breaker.
func (c *Controller) RequestStatusRefresh(ctx context.Context, vehicleID string) error {
	_, err := resilience.Execute(ctx, c.rc, resilience.OpRead, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.api.RequestStatusRefresh(ctx, vehicleID)
	})
	return err
}
