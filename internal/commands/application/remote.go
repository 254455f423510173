package application

import (
	"context"

	commands "bluelink-bridge/internal/commands/domain"
)

// RemoteController is the remote control surface consumed by the
// dispatcher and pollers. Implementations are expected to carry their
// own resilience (circuit breaking, credential refresh).
type RemoteController interface {
	Lock(ctx context.Context, targetID string) (string, error)
	Unlock(ctx context.Context, targetID string) (string, error)
	StartClimate(ctx context.Context, targetID string, params commands.ClimateParams) (string, error)
	StopClimate(ctx context.Context, targetID string) (string, error)
	SetWindows(ctx context.Context, targetID string, params commands.WindowParams) (string, error)
	OpenChargePort(ctx context.Context, targetID string) (string, error)
	CloseChargePort(ctx context.Context, targetID string) (string, error)
	SetChargingCurrent(ctx context.Context, targetID string, params commands.ChargingParams) (string, error)

	// CheckActionStatus performs a single non-blocking status check.
	CheckActionStatus(ctx context.Context, targetID, actionID string) (commands.ActionStatus, error)
}

// DataRefreshRequester requests a forced data refresh on the read path
// after a confirmed success, so subsequent reads reflect the change.
type DataRefreshRequester interface {
	ForceRefresh(ctx context.Context, targetID string) error
}
