package sensor

import (
	"math/rand/v2"
	"time"

	"github.com/dokzlo13/plantboxd/internal/model"
)

// SimulatorStartTempC is the first simulated air temperature
const SimulatorStartTempC = 22.0

// Simulator models air temperature as a random walk moving by at most
// 0.1 °C per read. Every other channel reports its placeholder.
type Simulator struct {
	rng  *rand.Rand
	temp float64
}

// NewSimulator creates a simulator seeded with seed.
func NewSimulator(seed uint64) *Simulator {
	return &Simulator{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		temp: SimulatorStartTempC,
	}
}

// Read implements Provider
func (s *Simulator) Read(now time.Time) (model.SensorReading, error) {
	// Steps of 0.01 °C in [-0.10, +0.09]
	s.temp += float64(s.rng.IntN(20)-10) / 100.0

	r := placeholders(now)
	r.AirTempC = s.temp
	return r, nil
}
