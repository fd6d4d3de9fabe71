package actuator

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/dokzlo13/plantboxd/internal/config"
)

// Relay is a digital output
type Relay interface {
	On() error
	Off() error
}

// PWMPin is an output with a duty cycle
type PWMPin interface {
	PwmWrite(level byte) error
}

// GobotSink drives relays and the heater PWM pin through gobot.
type GobotSink struct {
	heater PWMPin
	relays map[string]Relay
}

// NewGobotSink connects the Raspberry Pi adaptor and starts one driver per pin.
func NewGobotSink(adaptor *raspi.Adaptor, pins config.PinsConfig) (*GobotSink, error) {
	heater := gpio.NewDirectPinDriver(adaptor, pins.Heater)
	if err := heater.Start(); err != nil {
		return nil, fmt.Errorf("start heater pin %s: %w", pins.Heater, err)
	}

	relays := map[string]Relay{}
	for name, pin := range map[string]string{
		"fan":                 pins.Fan,
		PumpWater.String():    pins.WaterPump,
		PumpNutrient.String(): pins.NutrientPump,
		"valve":               pins.Valve,
		"mixer":               pins.Mixer,
		"lights":              pins.Lights,
	} {
		relay := gpio.NewRelayDriver(adaptor, pin)
		if err := relay.Start(); err != nil {
			return nil, fmt.Errorf("start %s relay on pin %s: %w", name, pin, err)
		}
		relays[name] = relay
	}

	log.Info().
		Str("heater", pins.Heater).
		Str("fan", pins.Fan).
		Str("lights", pins.Lights).
		Msg("GPIO drivers started")

	return NewGobotSinkFrom(heater, relays), nil
}

// NewGobotSinkFrom wraps already started drivers. relays is keyed by
// output name: fan, water_pump, nutrient_pump, valve, mixer, lights.
func NewGobotSinkFrom(heater PWMPin, relays map[string]Relay) *GobotSink {
	return &GobotSink{heater: heater, relays: relays}
}

// SetHeater implements Sink
func (s *GobotSink) SetHeater(pwm uint8) {
	if err := s.heater.PwmWrite(pwm); err != nil {
		log.Error().Err(err).Uint8("pwm", pwm).Msg("Failed to write heater PWM")
	}
}

// SetFan implements Sink
func (s *GobotSink) SetFan(on bool) { s.switchRelay("fan", on) }

// SetPump implements Sink
func (s *GobotSink) SetPump(pump Pump, on bool) { s.switchRelay(pump.String(), on) }

// SetValve implements Sink
func (s *GobotSink) SetValve(open bool) { s.switchRelay("valve", open) }

// SetMixer implements Sink
func (s *GobotSink) SetMixer(on bool) { s.switchRelay("mixer", on) }

// SetLights implements Sink
func (s *GobotSink) SetLights(on bool) { s.switchRelay("lights", on) }

func (s *GobotSink) switchRelay(name string, on bool) {
	relay, ok := s.relays[name]
	if !ok {
		return
	}
	var err error
	if on {
		err = relay.On()
	} else {
		err = relay.Off()
	}
	if err != nil {
		log.Error().Err(err).Str("output", name).Bool("on", on).Msg("Failed to switch relay")
	}
}
