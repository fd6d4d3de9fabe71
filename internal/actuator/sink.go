// Package actuator drives the box outputs: heater, fan, pumps, valve, mixer
// and grow lights. Commands are fire-and-forget; a sink logs its own
// hardware errors and never reports them to the control loop.
package actuator

import (
	"github.com/dokzlo13/plantboxd/internal/control"
	"github.com/dokzlo13/plantboxd/internal/fluid"
)

// Pump identifies one of the two pumps
type Pump int

const (
	PumpWater Pump = iota
	PumpNutrient
)

func (p Pump) String() string {
	if p == PumpNutrient {
		return "nutrient_pump"
	}
	return "water_pump"
}

// Sink receives actuator commands
type Sink interface {
	SetHeater(pwm uint8)
	SetFan(on bool)
	SetPump(pump Pump, on bool)
	SetValve(open bool)
	SetMixer(on bool)
	SetLights(on bool)
}

// ApplyTemperature writes a controller command
func ApplyTemperature(s Sink, cmd control.Command) {
	s.SetHeater(cmd.HeaterPWM)
	s.SetFan(cmd.FanOn)
}

// ApplyFluid writes the output pattern of a fluid step
func ApplyFluid(s Sink, o fluid.Outputs) {
	s.SetPump(PumpNutrient, o.NutrientPump)
	s.SetMixer(o.Mixer)
	s.SetPump(PumpWater, o.WaterPump)
	s.SetValve(o.Valve)
}

// Off drives every output to its safe state
func Off(s Sink) {
	ApplyTemperature(s, control.Command{})
	ApplyFluid(s, fluid.Outputs{})
	s.SetLights(false)
}
