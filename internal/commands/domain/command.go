package commands

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CommandKind identifies a control operation.
type CommandKind string

const (
	KindLock               CommandKind = "lock"
	KindUnlock             CommandKind = "unlock"
	KindClimateStart       CommandKind = "climate_start"
	KindClimateStop        CommandKind = "climate_stop"
	KindSetWindows         CommandKind = "windows"
	KindChargePortOpen     CommandKind = "charge_port_open"
	KindChargePortClose    CommandKind = "charge_port_close"
	KindSetChargingCurrent CommandKind = "charging_current"
)

// ErrInvalidParameters marks caller errors rejected at the dispatch
// boundary, before any remote call.
var ErrInvalidParameters = errors.New("commands: invalid parameters")

// ErrUnknownKind is returned for unrecognized command kinds.
var ErrUnknownKind = errors.New("commands: unknown command kind")

// WindowState is a requested window position.
type WindowState string

const (
	WindowClosed      WindowState = "closed"
	WindowOpen        WindowState = "open"
	WindowVentilation WindowState = "ventilation"
)

// ClimateParams configures a climate_start command. Zero values mean
// "vendor default" and are not sent.
type ClimateParams struct {
	Temperature    float64 `json:"set_temp"`
	Duration       int     `json:"duration"`
	Defrost        bool    `json:"defrost"`
	Heating        bool    `json:"heating"`
	SteeringWheel  int     `json:"steering_wheel"`
	FrontLeftSeat  int     `json:"front_left_seat"`
	FrontRightSeat int     `json:"front_right_seat"`
	RearLeftSeat   int     `json:"rear_left_seat"`
	RearRightSeat  int     `json:"rear_right_seat"`
}

// WindowParams configures a windows command. Empty fields leave the
// window untouched.
type WindowParams struct {
	FrontLeft  WindowState `json:"front_left"`
	FrontRight WindowState `json:"front_right"`
	RearLeft   WindowState `json:"rear_left"`
	RearRight  WindowState `json:"rear_right"`
}

// ChargingParams configures a charging_current command.
// Level 1 allows 100% current, 2 allows 90%, 3 allows 60%.
type ChargingParams struct {
	Level int `json:"level"`
}

// Command is an immutable parsed control request.
type Command struct {
	Kind     CommandKind
	TargetID string

	Climate  ClimateParams
	Windows  WindowParams
	Charging ChargingParams
}

// ParseCommand validates an inbound payload and builds a typed command.
func ParseCommand(targetID string, kind string, payload []byte) (Command, error) {
	if !validTargetID(targetID) {
		return Command{}, fmt.Errorf("%w: invalid target id %q", ErrInvalidParameters, targetID)
	}

	cmd := Command{Kind: CommandKind(kind), TargetID: targetID}
	switch cmd.Kind {
	case KindLock, KindUnlock, KindClimateStop, KindChargePortOpen, KindChargePortClose:
		// No parameters.
	case KindClimateStart:
		if err := unmarshalParams(payload, &cmd.Climate); err != nil {
			return Command{}, err
		}
	case KindSetWindows:
		if err := unmarshalParams(payload, &cmd.Windows); err != nil {
			return Command{}, err
		}
	case KindSetChargingCurrent:
		if err := unmarshalParams(payload, &cmd.Charging); err != nil {
			return Command{}, err
		}
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Validate checks the parameters against the constraints of the kind.
func (c Command) Validate() error {
	switch c.Kind {
	case KindLock, KindUnlock, KindClimateStop, KindChargePortOpen, KindChargePortClose:
		return nil
	case KindClimateStart:
		return c.Climate.validate()
	case KindSetWindows:
		return c.Windows.validate()
	case KindSetChargingCurrent:
		return c.Charging.validate()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

func (p ClimateParams) validate() error {
	if p.Temperature != 0 && (p.Temperature < 14 || p.Temperature > 30) {
		return fmt.Errorf("%w: set_temp %.1f outside 14-30", ErrInvalidParameters, p.Temperature)
	}
	if p.Duration < 0 || p.Duration > 30 {
		return fmt.Errorf("%w: duration %d outside 0-30 minutes", ErrInvalidParameters, p.Duration)
	}
	if p.SteeringWheel < 0 || p.SteeringWheel > 1 {
		return fmt.Errorf("%w: steering_wheel %d must be 0 or 1", ErrInvalidParameters, p.SteeringWheel)
	}
	seats := map[string]int{
		"front_left_seat":  p.FrontLeftSeat,
		"front_right_seat": p.FrontRightSeat,
		"rear_left_seat":   p.RearLeftSeat,
		"rear_right_seat":  p.RearRightSeat,
	}
	for name, level := range seats {
		if level < 0 || level > 8 {
			return fmt.Errorf("%w: %s level %d outside 0-8", ErrInvalidParameters, name, level)
		}
	}
	return nil
}

func (p WindowParams) validate() error {
	states := map[string]WindowState{
		"front_left":  p.FrontLeft,
		"front_right": p.FrontRight,
		"rear_left":   p.RearLeft,
		"rear_right":  p.RearRight,
	}
	for name, state := range states {
		switch state {
		case "", WindowClosed, WindowOpen, WindowVentilation:
		default:
			return fmt.Errorf("%w: %s state %q not in closed/open/ventilation", ErrInvalidParameters, name, state)
		}
	}
	return nil
}

func (p ChargingParams) validate() error {
	if p.Level < 1 || p.Level > 3 {
		return fmt.Errorf("%w: charging current level %d outside 1-3", ErrInvalidParameters, p.Level)
	}
	return nil
}

func unmarshalParams(payload []byte, out any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}

func validTargetID(targetID string) bool {
	if targetID == "" {
		return false
	}
	for _, r := range targetID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
