package sensor

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dokzlo13/plantboxd/internal/model"
)

var now = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func TestSimulator_RandomWalk(t *testing.T) {
	s := NewSimulator(42)
	prev := SimulatorStartTempC

	for i := 0; i < 500; i++ {
		r, err := s.Read(now)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		step := r.AirTempC - prev
		if step < -0.1-1e-9 || step > 0.09+1e-9 {
			t.Fatalf("read %d moved by %v, want within [-0.10, 0.09]", i, step)
		}
		prev = r.AirTempC

		if r.HumidityPct != 60 || r.LightIntensityPct != 85 || r.WaterLevelPct != 90 ||
			r.NutrientAPct != 95 || r.MoisturePct != 45 {
			t.Fatalf("placeholders = %+v", r)
		}
		if !r.CapturedAt.Equal(now) {
			t.Fatalf("CapturedAt = %v", r.CapturedAt)
		}
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	a, b := NewSimulator(7), NewSimulator(7)
	for i := 0; i < 20; i++ {
		ra, _ := a.Read(now)
		rb, _ := b.Read(now)
		if ra.AirTempC != rb.AirTempC {
			t.Fatalf("same seed diverged at read %d", i)
		}
	}
}

type fakeSHT struct {
	temps     []float32
	humidity  float32
	failFirst int
	calls     int
}

func (f *fakeSHT) Temperature() (float32, error) {
	f.calls++
	if f.calls <= f.failFirst {
		return 0, errors.New("i2c nack")
	}
	return f.temps[0], nil
}

func (f *fakeSHT) Humidity() (float32, error) {
	return f.humidity, nil
}

func TestSHT2x_Read(t *testing.T) {
	dev := &fakeSHT{temps: []float32{23.5}, humidity: 58, failFirst: 2}
	s := NewSHT2xFrom(dev, 3, 0)

	r, err := s.Read(now)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if math.Abs(r.AirTempC-23.5) > 1e-6 || math.Abs(r.HumidityPct-58) > 1e-6 {
		t.Errorf("reading = %+v", r)
	}
	if r.WaterLevelPct != PlaceholderWaterLevelPct {
		t.Errorf("WaterLevelPct = %v, want placeholder", r.WaterLevelPct)
	}
	if dev.calls != 3 {
		t.Errorf("device called %d times, want 3", dev.calls)
	}
}

func TestSHT2x_GivesUp(t *testing.T) {
	dev := &fakeSHT{temps: []float32{23.5}, failFirst: 10}
	s := NewSHT2xFrom(dev, 2, 0)

	if _, err := s.Read(now); err == nil {
		t.Fatal("Read() error = nil, want error")
	}
	if dev.calls != 2 {
		t.Errorf("device called %d times, want 2", dev.calls)
	}
}

func TestFixture(t *testing.T) {
	f := &Fixture{Reading: model.SensorReading{AirTempC: 19}}
	r, err := f.Read(now)
	if err != nil || r.AirTempC != 19 || !r.CapturedAt.Equal(now) {
		t.Errorf("Read() = %+v, %v", r, err)
	}

	f.Err = errors.New("unplugged")
	if _, err := f.Read(now); err == nil {
		t.Error("Read() error = nil, want fixture error")
	}
}
