// Package model holds the values shared between the control loop components.
package model

import "time"

// SensorReading is one immutable snapshot of the box environment, captured once per tick.
type SensorReading struct {
	AirTempC          float64   `json:"air_temp_c"`
	HumidityPct       float64   `json:"humidity_pct"`
	LightIntensityPct float64   `json:"light_intensity_pct"`
	WaterLevelPct     float64   `json:"water_level_pct"`
	NutrientAPct      float64   `json:"nutrient_a_pct"`
	MoisturePct       float64   `json:"moisture_pct"`
	CapturedAt        time.Time `json:"-"`
}

// DefaultTargetTempC is the setpoint used until the backend provides one
const DefaultTargetTempC = 24.0

// SystemTargets is the remote-configured state shared across ticks.
// TriggerWatering is a one-shot command: the loop clears it after dispatching.
type SystemTargets struct {
	TargetTempC       float64  `json:"target_temp_c"`
	TargetHumidityPct *float64 `json:"target_humidity_pct,omitempty"`
	TriggerWatering   bool     `json:"-"`
}

// DefaultTargets returns the boot-time targets
func DefaultTargets() SystemTargets {
	return SystemTargets{TargetTempC: DefaultTargetTempC}
}

// Equal reports whether two targets hold the same values
func (t SystemTargets) Equal(o SystemTargets) bool {
	return t.TriggerWatering == o.TriggerWatering && t.SameSetpoints(o)
}

// SameSetpoints compares the persistent part: temperature and humidity
func (t SystemTargets) SameSetpoints(o SystemTargets) bool {
	if t.TargetTempC != o.TargetTempC {
		return false
	}
	if (t.TargetHumidityPct == nil) != (o.TargetHumidityPct == nil) {
		return false
	}
	return t.TargetHumidityPct == nil || *t.TargetHumidityPct == *o.TargetHumidityPct
}

// ActuatorState is the command snapshot computed during a tick.
// When cooling is active HeaterPWM is 0 and FanOn is true.
type ActuatorState struct {
	HeaterPWM        uint8         `json:"heater_pwm"`
	FanOn            bool          `json:"fan_on"`
	LightsOn         bool          `json:"lights_on"`
	FluidStep        string        `json:"fluid_step"`
	FluidStepElapsed time.Duration `json:"-"`
}
