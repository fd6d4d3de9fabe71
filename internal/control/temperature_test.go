package control

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestUpdate_WorkedExample(t *testing.T) {
	c := NewTemperatureController(DefaultGains(), t0)

	cmd := c.Update(22.0, 24.0, t0.Add(time.Second))

	integral, prevErr := c.State()
	if integral != 2.0 {
		t.Errorf("integral = %v, want 2.0", integral)
	}
	if prevErr != 2.0 {
		t.Errorf("previousError = %v, want 2.0", prevErr)
	}
	if cmd != (Command{HeaterPWM: 7, FanOn: false}) {
		t.Errorf("Update() = %+v, want heater 7 fan off", cmd)
	}
}

func TestUpdate_NonPositiveIntervalIsNoop(t *testing.T) {
	c := NewTemperatureController(DefaultGains(), t0)

	// First invocation at the construction instant
	if cmd := c.Update(10, 30, t0); cmd != (Command{}) {
		t.Errorf("first Update() at start = %+v, want zero command", cmd)
	}
	if i, e := c.State(); i != 0 || e != 0 {
		t.Errorf("state changed on dt=0: integral=%v prevErr=%v", i, e)
	}

	want := c.Update(20, 24, t0.Add(2*time.Second))
	wantI, wantE := c.State()

	for _, at := range []time.Time{t0.Add(2 * time.Second), t0.Add(time.Second), t0.Add(-time.Hour)} {
		got := c.Update(35, 10, at)
		if got != want {
			t.Errorf("Update(at=%v) = %+v, want previous command %+v", at.Sub(t0), got, want)
		}
		if i, e := c.State(); i != wantI || e != wantE {
			t.Errorf("Update(at=%v) changed state to %v/%v, want %v/%v", at.Sub(t0), i, e, wantI, wantE)
		}
	}
}

func TestUpdate_CoolingOverride(t *testing.T) {
	tests := []struct {
		current, target float64
	}{
		{25.01, 24},
		{26, 24},
		{40, 18},
		{-5, -7},
	}

	for _, tt := range tests {
		// Warm the integral up first so the raw PID output is large
		c := NewTemperatureController(DefaultGains(), t0)
		c.Update(0, tt.target, t0.Add(10*time.Second))

		cmd := c.Update(tt.current, tt.target, t0.Add(11*time.Second))
		if cmd.HeaterPWM != 0 || !cmd.FanOn {
			t.Errorf("current=%v target=%v: Update() = %+v, want heater 0 fan on", tt.current, tt.target, cmd)
		}
		if !cmd.Cooling() {
			t.Errorf("Cooling() = false for %+v", cmd)
		}
	}
}

func TestUpdate_OverrideBands(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		target  float64
		want    Command
	}{
		// Exactly at the band edge is not cooling: raw output is clamped to 0
		{"at band edge", 25.0, 24.0, Command{HeaterPWM: 0, FanOn: false}},
		// error 30: 60 + 15 + 30 = 105 > 50 -> circulation
		{"heating hard", 0, 30, Command{HeaterPWM: 105, FanOn: true}},
		// error 200 saturates
		{"saturated", 0, 200, Command{HeaterPWM: 255, FanOn: true}},
		// error 7: 14 + 3.5 + 7 = 24.5 -> truncated
		{"gentle", 17, 24, Command{HeaterPWM: 24, FanOn: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewTemperatureController(DefaultGains(), t0)
			got := c.Update(tt.current, tt.target, t0.Add(time.Second))
			if got != tt.want {
				t.Errorf("Update() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUpdate_IntegralAccumulates(t *testing.T) {
	c := NewTemperatureController(DefaultGains(), t0)
	for i := 1; i <= 4; i++ {
		c.Update(23, 24, t0.Add(time.Duration(i)*500*time.Millisecond))
	}
	integral, _ := c.State()
	if integral != 2.0 {
		t.Errorf("integral = %v, want 2.0 after 2s at error 1", integral)
	}
}
