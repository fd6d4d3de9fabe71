package actuator

import (
	"github.com/rs/zerolog/log"
)

// LogSink is the simulated hardware: it remembers every output and logs
// only when a value changes.
type LogSink struct {
	heater   *uint8
	switches map[string]bool
}

// NewLogSink creates a sink with every output unknown
func NewLogSink() *LogSink {
	return &LogSink{switches: make(map[string]bool)}
}

// SetHeater implements Sink
func (s *LogSink) SetHeater(pwm uint8) {
	if s.heater != nil && *s.heater == pwm {
		return
	}
	s.heater = &pwm
	log.Info().Uint8("pwm", pwm).Msg("Heater set")
}

// SetFan implements Sink
func (s *LogSink) SetFan(on bool) { s.set("fan", on) }

// SetPump implements Sink
func (s *LogSink) SetPump(pump Pump, on bool) { s.set(pump.String(), on) }

// SetValve implements Sink
func (s *LogSink) SetValve(open bool) { s.set("valve", open) }

// SetMixer implements Sink
func (s *LogSink) SetMixer(on bool) { s.set("mixer", on) }

// SetLights implements Sink
func (s *LogSink) SetLights(on bool) { s.set("lights", on) }

// Switch returns the last commanded value of a named output
func (s *LogSink) Switch(name string) (on, known bool) {
	on, known = s.switches[name]
	return on, known
}

// Heater returns the last commanded heater duty, known is false before the first command
func (s *LogSink) Heater() (pwm uint8, known bool) {
	if s.heater == nil {
		return 0, false
	}
	return *s.heater, true
}

func (s *LogSink) set(name string, on bool) {
	if prev, ok := s.switches[name]; ok && prev == on {
		return
	}
	s.switches[name] = on
	log.Info().Str("output", name).Bool("on", on).Msg("Output switched")
}
