package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Device.ID != "PlantBox-1" {
		t.Errorf("Device.ID = %q, want PlantBox-1", cfg.Device.ID)
	}
	if got := cfg.Loop.Cadence.Duration(); got != 100*time.Millisecond {
		t.Errorf("Loop.Cadence = %v, want 100ms", got)
	}
	if got := cfg.Sync.PollInterval.Duration(); got != 5*time.Second {
		t.Errorf("Sync.PollInterval = %v, want 5s", got)
	}
	if got := cfg.Telemetry.Interval.Duration(); got != 10*time.Second {
		t.Errorf("Telemetry.Interval = %v, want 10s", got)
	}
	if cfg.PID != (PIDConfig{Kp: 2.0, Ki: 0.5, Kd: 1.0}) {
		t.Errorf("PID = %+v, want 2/0.5/1", cfg.PID)
	}
	total := cfg.Fluid.Dispense.Duration() + cfg.Fluid.Mix.Duration() + cfg.Fluid.Distribute.Duration()
	if total != 9*time.Second {
		t.Errorf("fluid cycle = %v, want 9s", total)
	}
	if cfg.Lights.Mode != LightsCycle || cfg.Lights.Period.Duration() != 20*time.Second {
		t.Errorf("Lights = %+v, want 20s cycle", cfg.Lights)
	}
	if !cfg.Ledger.IsEnabled() {
		t.Error("ledger should be enabled by default")
	}
	if got := cfg.Hue.Timeout.Duration(); got != 2*time.Second {
		t.Errorf("Hue.Timeout = %v, want 2s", got)
	}
}

func TestParse_Overrides(t *testing.T) {
	data := `
device:
  id: box-7
backend:
  base_url: http://10.0.0.5:8000/
sync:
  poll_interval: 30s
  setpoint_policy: min
pid:
  kp: 4
lights:
  mode: daily
  start: "07:00"
  end: "21:30"
ledger:
  enabled: false
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Device.ID != "box-7" {
		t.Errorf("Device.ID = %q", cfg.Device.ID)
	}
	if cfg.Sync.PollInterval.Duration() != 30*time.Second {
		t.Errorf("PollInterval = %v", cfg.Sync.PollInterval.Duration())
	}
	// Partially configured gains are taken as written
	if cfg.PID != (PIDConfig{Kp: 4}) {
		t.Errorf("PID = %+v", cfg.PID)
	}
	if cfg.Ledger.IsEnabled() {
		t.Error("ledger should be disabled")
	}
	if got := cfg.Backend.ConfigURL(cfg.Device.ID); got != "http://10.0.0.5:8000/devices/box-7/fetchRefVals" {
		t.Errorf("ConfigURL = %q", got)
	}
	if got := cfg.Backend.TelemetryURL(cfg.Device.ID); got != "http://10.0.0.5:8000/sendTelemetry" {
		t.Errorf("TelemetryURL = %q", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"relative base url", "backend:\n  base_url: /api\n", "base_url"},
		{"unknown policy", "sync:\n  setpoint_policy: median\n", "setpoint_policy"},
		{"lua without script", "sync:\n  setpoint_policy: lua\n", "sync.script"},
		{"unknown light mode", "lights:\n  mode: astro\n", "lights.mode"},
		{"on longer than period", "lights:\n  period: 10s\n  on_duration: 11s\n", "on_duration"},
		{"unknown driver", "hardware:\n  driver: arduino\n", "hardware.driver"},
		{"hue without lights", "hue:\n  enabled: true\n  bridge: 10.0.0.2\n", "hue"},
		{"mqtt without broker", "mqtt:\n  enabled: true\n", "mqtt.broker"},
		{"bad duration", "loop:\n  cadence: fast\n", "duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("PLANTBOX_BACKEND", "http://backend.local:8000")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "backend:\n  base_url: ${PLANTBOX_BACKEND}\ndevice:\n  id: ${PLANTBOX_DEVICE:box-default}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.BaseURL != "http://backend.local:8000" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Device.ID != "box-default" {
		t.Errorf("Device.ID = %q, want default from expression", cfg.Device.ID)
	}
}

func TestEndpoint_EscapesDeviceID(t *testing.T) {
	b := BackendConfig{BaseURL: "http://h:1", ConfigPath: "devices/{device_id}/cfg"}
	if got := b.ConfigURL("box 1"); got != "http://h:1/devices/box%201/cfg" {
		t.Errorf("ConfigURL = %q", got)
	}
}
