package application

import (
	"context"
	"errors"
	"testing"

	commands "bluelink-bridge/internal/commands/domain"
)

func TestDispatchRoutesByKind(t *testing.T) {
	remote := &stubRemote{actionID: "act-1"}
	dispatcher, err := NewDispatcher(remote, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	cases := []struct {
		cmd  commands.Command
		want string
	}{
		{commands.Command{Kind: commands.KindLock, TargetID: "VH1"}, "lock:VH1"},
		{commands.Command{Kind: commands.KindUnlock, TargetID: "VH1"}, "unlock:VH1"},
		{commands.Command{Kind: commands.KindClimateStop, TargetID: "VH1"}, "climate_stop:VH1"},
		{commands.Command{Kind: commands.KindChargePortOpen, TargetID: "VH1"}, "charge_port_open:VH1"},
		{commands.Command{Kind: commands.KindSetChargingCurrent, TargetID: "VH1", Charging: commands.ChargingParams{Level: 2}}, "charging_current:VH1"},
	}
	for i, tc := range cases {
		actionID, err := dispatcher.Dispatch(context.Background(), tc.cmd)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if actionID != "act-1" {
			t.Fatalf("case %d: expected remote action id, got %q", i, actionID)
		}
		if remote.calls[i] != tc.want {
			t.Fatalf("case %d: expected call %q, got %q", i, tc.want, remote.calls[i])
		}
	}
}

func TestDispatchValidatesBeforeRemoteCall(t *testing.T) {
	remote := &stubRemote{actionID: "act-1"}
	dispatcher, err := NewDispatcher(remote, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	cmd := commands.Command{
		Kind:     commands.KindClimateStart,
		TargetID: "VH1",
		Climate:  commands.ClimateParams{Temperature: 50},
	}
	_, err = dispatcher.Dispatch(context.Background(), cmd)
	if !errors.Is(err, commands.ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
	if remote.callCount() != 0 {
		t.Fatalf("invalid command must not reach the remote")
	}
}

func TestDispatchRejectsEmptyActionID(t *testing.T) {
	remote := &stubRemote{actionID: ""}
	dispatcher, err := NewDispatcher(remote, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	_, err = dispatcher.Dispatch(context.Background(), commands.Command{Kind: commands.KindLock, TargetID: "VH1"})
	if err == nil {
		t.Fatalf("expected error for empty remote action id")
	}
}

func TestDispatchPropagatesRemoteError(t *testing.T) {
	remoteErr := errors.New("vehicle unreachable")
	remote := &stubRemote{dispatchErr: remoteErr}
	dispatcher, err := NewDispatcher(remote, testLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	_, err = dispatcher.Dispatch(context.Background(), commands.Command{Kind: commands.KindLock, TargetID: "VH1"})
	if !errors.Is(err, remoteErr) {
		t.Fatalf("expected remote error, got %v", err)
	}
}
