package sensor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/dokzlo13/plantboxd/internal/model"
)

// Thermometer is the part of an SHT2x driver the sensor needs
type Thermometer interface {
	Temperature() (float32, error)
	Humidity() (float32, error)
}

// SHT2x reads air temperature and humidity from a Sensirion SHT2x sensor.
// The remaining channels report placeholders.
type SHT2x struct {
	dev        Thermometer
	retries    int
	retryDelay time.Duration
}

// NewSHT2x starts an SHT2x driver on an i2c connector (typically the raspi adaptor).
func NewSHT2x(conn i2c.Connector, retries int, retryDelay time.Duration) (*SHT2x, error) {
	driver := i2c.NewSHT2xDriver(conn)
	if err := driver.Start(); err != nil {
		return nil, fmt.Errorf("start sht2x: %w", err)
	}
	return NewSHT2xFrom(driver, retries, retryDelay), nil
}

// NewSHT2xFrom wraps an already started device.
func NewSHT2xFrom(dev Thermometer, retries int, retryDelay time.Duration) *SHT2x {
	if retries < 1 {
		retries = 1
	}
	return &SHT2x{dev: dev, retries: retries, retryDelay: retryDelay}
}

// Read implements Provider
func (s *SHT2x) Read(now time.Time) (model.SensorReading, error) {
	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		var temp, humidity float32
		temp, err = s.dev.Temperature()
		if err == nil {
			humidity, err = s.dev.Humidity()
			if err == nil {
				r := placeholders(now)
				r.AirTempC = float64(temp)
				r.HumidityPct = float64(humidity)
				return r, nil
			}
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("SHT2x read failed")
		if attempt < s.retries && s.retryDelay > 0 {
			time.Sleep(s.retryDelay)
		}
	}
	return model.SensorReading{}, fmt.Errorf("read sht2x after %d attempts: %w", s.retries, err)
}
