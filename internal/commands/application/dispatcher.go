package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	commands "bluelink-bridge/internal/commands/domain"
	"bluelink-bridge/internal/observability/metrics"
)

// Dispatcher validates commands and routes each kind to exactly one
// remote operation. The returned action id always comes from the
// remote system, never from the bridge.
type Dispatcher struct {
	remote RemoteController
	logger *log.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(remote RemoteController, logger *log.Logger) (*Dispatcher, error) {
	if remote == nil {
		return nil, errors.New("commands: nil remote controller")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{remote: remote, logger: logger}, nil
}

// Dispatch executes the command's remote operation and returns the
// remote action id. Parameter validation fails fast without any
// remote call.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd commands.Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}

	var (
		actionID string
		err      error
	)
	switch cmd.Kind {
	case commands.KindLock:
		actionID, err = d.remote.Lock(ctx, cmd.TargetID)
	case commands.KindUnlock:
		actionID, err = d.remote.Unlock(ctx, cmd.TargetID)
	case commands.KindClimateStart:
		actionID, err = d.remote.StartClimate(ctx, cmd.TargetID, cmd.Climate)
	case commands.KindClimateStop:
		actionID, err = d.remote.StopClimate(ctx, cmd.TargetID)
	case commands.KindSetWindows:
		actionID, err = d.remote.SetWindows(ctx, cmd.TargetID, cmd.Windows)
	case commands.KindChargePortOpen:
		actionID, err = d.remote.OpenChargePort(ctx, cmd.TargetID)
	case commands.KindChargePortClose:
		actionID, err = d.remote.CloseChargePort(ctx, cmd.TargetID)
	case commands.KindSetChargingCurrent:
		actionID, err = d.remote.SetChargingCurrent(ctx, cmd.TargetID, cmd.Charging)
	default:
		return "", fmt.Errorf("%w: %q", commands.ErrUnknownKind, cmd.Kind)
	}
	if err != nil {
		return "", err
	}
	if actionID == "" {
		return "", errors.New("commands: remote returned empty action id")
	}

	metrics.IncCommandIssued()
	d.logger.Printf("command %s dispatched for target %s, action=%s", cmd.Kind, cmd.TargetID, actionID)
	return actionID, nil
}
