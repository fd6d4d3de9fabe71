// Package control implements the air temperature regulator: a PID loop driving
// the heater duty with a bang-bang fan override for cooling.
package control

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// MaxPWM is the full-scale heater duty
	MaxPWM = 255
	// CoolingBand is how far above target the air may drift before the fan takes over
	CoolingBand = 1.0
	// CirculationThreshold is the heater duty above which the fan assists circulation
	CirculationThreshold = 50
)

// Gains holds the PID coefficients
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// DefaultGains returns the factory tuning
func DefaultGains() Gains {
	return Gains{Kp: 2.0, Ki: 0.5, Kd: 1.0}
}

// Command is the actuator output of one controller update
type Command struct {
	HeaterPWM uint8
	FanOn     bool
}

// Cooling reports whether the command is the active cooling override
func (c Command) Cooling() bool {
	return c.HeaterPWM == 0 && c.FanOn
}

// TemperatureController is a PID regulator for the heater.
// The integral term accumulates without a clamp.
type TemperatureController struct {
	gains Gains

	integral      float64
	previousError float64
	lastTime      time.Time
	command       Command
}

// NewTemperatureController creates a controller whose first interval starts at start
func NewTemperatureController(gains Gains, start time.Time) *TemperatureController {
	return &TemperatureController{
		gains:    gains,
		lastTime: start,
	}
}

// Update computes the heater and fan command for the current reading.
// A non-positive interval since the previous update leaves all state untouched
// and returns the previous command.
func (c *TemperatureController) Update(current, target float64, now time.Time) Command {
	dt := now.Sub(c.lastTime).Seconds()
	if dt <= 0 {
		return c.command
	}

	err := target - current
	c.integral += err * dt
	derivative := (err - c.previousError) / dt

	output := c.gains.Kp*err + c.gains.Ki*c.integral + c.gains.Kd*derivative
	if output > MaxPWM {
		output = MaxPWM
	}
	if output < 0 {
		output = 0
	}

	var cmd Command
	switch {
	case current > target+CoolingBand:
		cmd = Command{HeaterPWM: 0, FanOn: true}
	case output > CirculationThreshold:
		cmd = Command{HeaterPWM: uint8(output), FanOn: true}
	default:
		cmd = Command{HeaterPWM: uint8(output), FanOn: false}
	}

	if cmd != c.command {
		log.Debug().
			Float64("current", current).
			Float64("target", target).
			Float64("output", output).
			Uint8("heater_pwm", cmd.HeaterPWM).
			Bool("fan", cmd.FanOn).
			Msg("Temperature command changed")
	}

	c.previousError = err
	c.lastTime = now
	c.command = cmd
	return cmd
}

// Command returns the most recent command
func (c *TemperatureController) Command() Command {
	return c.command
}

// State exposes the internal accumulators for diagnostics and tests
func (c *TemperatureController) State() (integral, previousError float64) {
	return c.integral, c.previousError
}
