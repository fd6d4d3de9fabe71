// Package sensor produces the per-tick environment snapshot.
package sensor

import (
	"time"

	"github.com/dokzlo13/plantboxd/internal/model"
)

// Provider captures one reading. Implementations are called only from the
// control loop goroutine.
type Provider interface {
	Read(now time.Time) (model.SensorReading, error)
}

// Channels without a real sensor report these fixed values
const (
	PlaceholderHumidityPct       = 60.0
	PlaceholderLightIntensityPct = 85.0
	PlaceholderWaterLevelPct     = 90.0
	PlaceholderNutrientAPct      = 95.0
	PlaceholderMoisturePct       = 45.0
)

// placeholders returns a reading with every unmeasured channel filled in
func placeholders(now time.Time) model.SensorReading {
	return model.SensorReading{
		HumidityPct:       PlaceholderHumidityPct,
		LightIntensityPct: PlaceholderLightIntensityPct,
		WaterLevelPct:     PlaceholderWaterLevelPct,
		NutrientAPct:      PlaceholderNutrientAPct,
		MoisturePct:       PlaceholderMoisturePct,
		CapturedAt:        now,
	}
}

// Fixture returns a fixed reading, or a fixed error. Useful for tests and
// bench runs without hardware.
type Fixture struct {
	Reading model.SensorReading
	Err     error
}

// Read implements Provider
func (f *Fixture) Read(now time.Time) (model.SensorReading, error) {
	if f.Err != nil {
		return model.SensorReading{}, f.Err
	}
	r := f.Reading
	r.CapturedAt = now
	return r, nil
}
