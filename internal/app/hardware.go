package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/dokzlo13/plantboxd/internal/actuator"
	"github.com/dokzlo13/plantboxd/internal/config"
	"github.com/dokzlo13/plantboxd/internal/sensor"
)

const (
	sensorRetries    = 3
	sensorRetryDelay = 50 * time.Millisecond
)

// HardwareService owns the actuator sink and the sensor provider
// selected by hardware.driver, optionally wrapped with Hue lights.
type HardwareService struct {
	Sink    actuator.Sink
	Sensors sensor.Provider

	adaptor *raspi.Adaptor
	hue     *actuator.HueLights
}

// NewHardwareService connects the configured hardware backend.
func NewHardwareService(cfg *config.Config) (*HardwareService, error) {
	h := &HardwareService{}

	switch cfg.Hardware.Driver {
	case config.DriverRaspi:
		adaptor := raspi.NewAdaptor()
		if err := adaptor.Connect(); err != nil {
			return nil, fmt.Errorf("connect raspi adaptor: %w", err)
		}
		h.adaptor = adaptor

		sink, err := actuator.NewGobotSink(adaptor, cfg.Hardware.Pins)
		if err != nil {
			h.Close()
			return nil, err
		}
		h.Sink = sink

		sht, err := sensor.NewSHT2x(adaptor, sensorRetries, sensorRetryDelay)
		if err != nil {
			h.Close()
			return nil, err
		}
		h.Sensors = sht
		log.Info().Msg("Using Raspberry Pi hardware")
	default:
		h.Sink = actuator.NewLogSink()
		h.Sensors = sensor.NewSimulator(uint64(time.Now().UnixNano()))
		log.Info().Msg("Using simulated hardware")
	}

	if cfg.Hue.Enabled {
		bridge := actuator.NewBridge(cfg.Hue.Bridge, cfg.Hue.Token)
		h.hue = actuator.NewHueLights(h.Sink, bridge, cfg.Hue.Lights, cfg.Hue.Timeout.Duration())
		h.Sink = h.hue
		log.Info().
			Str("bridge", cfg.Hue.Bridge).
			Ints("lights", cfg.Hue.Lights).
			Dur("timeout", cfg.Hue.Timeout.Duration()).
			Msg("Grow lights mirrored to Hue")
	}

	// Outputs may still be energized from a previous run
	actuator.Off(h.Sink)

	return h, nil
}

// Close switches every output off and releases the adaptor.
func (h *HardwareService) Close() {
	if h.Sink != nil {
		actuator.Off(h.Sink)
	}
	if h.hue != nil {
		h.hue.Close()
	}
	if h.adaptor != nil {
		if err := h.adaptor.Finalize(); err != nil {
			log.Warn().Err(err).Msg("Failed to finalize raspi adaptor")
		}
	}
}
