package vehicles

import (
	"encoding/json"
	"time"
)

// Metric is one published data point. Category groups related metrics
// on the transport side (battery, climate, doors, location).
type Metric struct {
	Category string
	Name     string
	Value    any
	Unit     string
}

// VehicleData is the parsed state document for one vehicle. Optional
// fields are pointers so that absent vendor values are not published
// as zeroes.
type VehicleData struct {
	VehicleID string    `json:"vehicle_id"`
	Timestamp time.Time `json:"timestamp"`

	Battery  *BatteryData `json:"battery,omitempty"`
	EV       *EVData      `json:"ev,omitempty"`
	Climate  *ClimateData `json:"climate,omitempty"`
	Doors    *DoorData    `json:"doors,omitempty"`
	Odometer *float64     `json:"odometer,omitempty"`
}

// BatteryData is the 12V auxiliary battery state.
type BatteryData struct {
	Level *int `json:"level,omitempty"`
}

// EVData is the high-voltage battery and charging state.
type EVData struct {
	BatteryLevel  *int     `json:"battery_level,omitempty"`
	Charging      *bool    `json:"charging,omitempty"`
	PluggedIn     *bool    `json:"plugged_in,omitempty"`
	RangeKM       *float64 `json:"range_km,omitempty"`
	ChargingPower *float64 `json:"charging_power,omitempty"`
	MinutesToFull *int     `json:"minutes_to_full,omitempty"`
	ChargeLimitAC *int     `json:"charge_limit_ac,omitempty"`
	ChargeLimitDC *int     `json:"charge_limit_dc,omitempty"`
}

// ClimateData is the cabin climate state.
type ClimateData struct {
	Active      *bool    `json:"active,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Defrost     *bool    `json:"defrost,omitempty"`
}

// DoorData is the lock and closure state.
type DoorData struct {
	Locked    *bool `json:"locked,omitempty"`
	TrunkOpen *bool `json:"trunk_open,omitempty"`
	HoodOpen  *bool `json:"hood_open,omitempty"`
}

// ParseVehicleData decodes a raw vendor state document.
func ParseVehicleData(vehicleID string, raw json.RawMessage, at time.Time) (VehicleData, error) {
	data := VehicleData{VehicleID: vehicleID, Timestamp: at}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return VehicleData{}, err
	}
	data.VehicleID = vehicleID
	if data.Timestamp.IsZero() {
		data.Timestamp = at
	}
	return data, nil
}

// Metrics flattens the document into publishable data points. Absent
// fields produce no metric.
func (d VehicleData) Metrics() []Metric {
	var out []Metric
	add := func(category, name string, value any, unit string) {
		out = append(out, Metric{Category: category, Name: name, Value: value, Unit: unit})
	}

	if d.Battery != nil && d.Battery.Level != nil {
		add("battery", "aux_level", *d.Battery.Level, "%")
	}
	if d.EV != nil {
		if d.EV.BatteryLevel != nil {
			add("battery", "level", *d.EV.BatteryLevel, "%")
		}
		if d.EV.Charging != nil {
			add("charging", "active", *d.EV.Charging, "")
		}
		if d.EV.PluggedIn != nil {
			add("charging", "plugged_in", *d.EV.PluggedIn, "")
		}
		if d.EV.RangeKM != nil {
			add("battery", "range", *d.EV.RangeKM, "km")
		}
		if d.EV.ChargingPower != nil {
			add("charging", "power", *d.EV.ChargingPower, "kW")
		}
		if d.EV.MinutesToFull != nil {
			add("charging", "minutes_to_full", *d.EV.MinutesToFull, "min")
		}
		if d.EV.ChargeLimitAC != nil {
			add("charging", "limit_ac", *d.EV.ChargeLimitAC, "%")
		}
		if d.EV.ChargeLimitDC != nil {
			add("charging", "limit_dc", *d.EV.ChargeLimitDC, "%")
		}
	}
	if d.Climate != nil {
		if d.Climate.Active != nil {
			add("climate", "active", *d.Climate.Active, "")
		}
		if d.Climate.Temperature != nil {
			add("climate", "temperature", *d.Climate.Temperature, "C")
		}
		if d.Climate.Defrost != nil {
			add("climate", "defrost", *d.Climate.Defrost, "")
		}
	}
	if d.Doors != nil {
		if d.Doors.Locked != nil {
			add("doors", "locked", *d.Doors.Locked, "")
		}
		if d.Doors.TrunkOpen != nil {
			add("doors", "trunk_open", *d.Doors.TrunkOpen, "")
		}
		if d.Doors.HoodOpen != nil {
			add("doors", "hood_open", *d.Doors.HoodOpen, "")
		}
	}
	if d.Odometer != nil {
		add("vehicle", "odometer", *d.Odometer, "km")
	}
	return out
}
