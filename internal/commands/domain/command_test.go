package commands

import (
	"errors"
	"testing"
)

func TestParseCommandLockNeedsNoParams(t *testing.T) {
	cmd, err := ParseCommand("VH123", "lock", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Kind != KindLock || cmd.TargetID != "VH123" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseCommandUnknownKind(t *testing.T) {
	_, err := ParseCommand("VH123", "self_destruct", nil)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestParseCommandInvalidTargetID(t *testing.T) {
	for _, id := range []string{"", "veh icle", "veh/1", "veh#1"} {
		if _, err := ParseCommand(id, "lock", nil); !errors.Is(err, ErrInvalidParameters) {
			t.Fatalf("target %q: expected ErrInvalidParameters, got %v", id, err)
		}
	}
}

func TestParseCommandClimate(t *testing.T) {
	payload := []byte(`{"set_temp": 21.5, "duration": 10, "defrost": true, "front_left_seat": 3}`)
	cmd, err := ParseCommand("VH123", "climate_start", payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Climate.Temperature != 21.5 || cmd.Climate.Duration != 10 || !cmd.Climate.Defrost {
		t.Fatalf("unexpected climate params: %+v", cmd.Climate)
	}
}

func TestParseCommandClimateValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"temp too low", `{"set_temp": 10}`},
		{"temp too high", `{"set_temp": 35}`},
		{"duration too long", `{"duration": 45}`},
		{"seat level too high", `{"front_left_seat": 9}`},
		{"steering out of range", `{"steering_wheel": 2}`},
		{"malformed json", `{"set_temp": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCommand("VH123", "climate_start", []byte(tc.payload))
			if !errors.Is(err, ErrInvalidParameters) {
				t.Fatalf("expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}

func TestParseCommandWindows(t *testing.T) {
	cmd, err := ParseCommand("VH123", "windows", []byte(`{"front_left": "ventilation", "rear_right": "closed"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Windows.FrontLeft != WindowVentilation || cmd.Windows.RearRight != WindowClosed {
		t.Fatalf("unexpected window params: %+v", cmd.Windows)
	}

	_, err = ParseCommand("VH123", "windows", []byte(`{"front_left": "ajar"}`))
	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters for bad state, got %v", err)
	}
}

func TestParseCommandChargingCurrent(t *testing.T) {
	for level := 1; level <= 3; level++ {
		payload := []byte(`{"level": ` + string(rune('0'+level)) + `}`)
		cmd, err := ParseCommand("VH123", "charging_current", payload)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if cmd.Charging.Level != level {
			t.Fatalf("expected level %d, got %d", level, cmd.Charging.Level)
		}
	}

	for _, payload := range []string{`{"level": 0}`, `{"level": 4}`, ``} {
		if _, err := ParseCommand("VH123", "charging_current", []byte(payload)); !errors.Is(err, ErrInvalidParameters) {
			t.Fatalf("payload %q: expected ErrInvalidParameters, got %v", payload, err)
		}
	}
}
