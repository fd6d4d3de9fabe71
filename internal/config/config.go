package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration. It is built once at startup and
// passed by pointer to every component; nothing mutates it afterwards.
type Config struct {
	Device          DeviceConfig    `yaml:"device"`
	Backend         BackendConfig   `yaml:"backend"`
	Loop            LoopConfig      `yaml:"loop"`
	Sync            SyncConfig      `yaml:"sync"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`
	PID             PIDConfig       `yaml:"pid"`
	Fluid           FluidConfig     `yaml:"fluid"`
	Lights          LightsConfig    `yaml:"lights"`
	Hardware        HardwareConfig  `yaml:"hardware"`
	Hue             HueConfig       `yaml:"hue"`
	MQTT            MQTTConfig      `yaml:"mqtt"`
	Database        DatabaseConfig  `yaml:"database"`
	Ledger          LedgerConfig    `yaml:"ledger"`
	Status          StatusConfig    `yaml:"status"`
	Log             LogConfig       `yaml:"log"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops

	// Dir is the directory of the loaded file; relative script paths resolve against it
	Dir string `yaml:"-"`
}

// DeviceConfig identifies this box to the backend
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// BackendConfig contains remote backend connection settings
type BackendConfig struct {
	BaseURL       string   `yaml:"base_url"`
	ConfigPath    string   `yaml:"config_path"`    // May contain {device_id}
	TelemetryPath string   `yaml:"telemetry_path"` // May contain {device_id}
	Timeout       Duration `yaml:"timeout"`        // HTTP client timeout, 0 = transport default
}

// LoopConfig contains control loop settings
type LoopConfig struct {
	Cadence Duration `yaml:"cadence"`
}

// SyncConfig contains setpoint synchronization settings
type SyncConfig struct {
	PollInterval   Duration `yaml:"poll_interval"`
	SetpointPolicy string   `yaml:"setpoint_policy"` // midpoint, min, max, lua
	Script         string   `yaml:"script"`          // Lua file for the lua policy
}

// TelemetryConfig contains telemetry push settings
type TelemetryConfig struct {
	Interval Duration `yaml:"interval"`
}

// PIDConfig contains temperature controller gains
type PIDConfig struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// FluidConfig contains watering sequence hold times
type FluidConfig struct {
	Dispense   Duration `yaml:"dispense"`
	Mix        Duration `yaml:"mix"`
	Distribute Duration `yaml:"distribute"`
}

// LightsConfig selects and parameterizes the light schedule.
// Mode "cycle" uses Period/OnDuration, mode "daily" uses Start/End in Timezone.
type LightsConfig struct {
	Mode       string   `yaml:"mode"`
	Period     Duration `yaml:"period"`
	OnDuration Duration `yaml:"on_duration"`
	Start      string   `yaml:"start"`
	End        string   `yaml:"end"`
	Timezone   string   `yaml:"timezone"`
}

// HardwareConfig selects the actuator/sensor backend
type HardwareConfig struct {
	Driver string     `yaml:"driver"` // sim or raspi
	Pins   PinsConfig `yaml:"pins"`
}

// PinsConfig maps actuators to Raspberry Pi header pins
type PinsConfig struct {
	Heater       string `yaml:"heater"`
	Fan          string `yaml:"fan"`
	WaterPump    string `yaml:"water_pump"`
	NutrientPump string `yaml:"nutrient_pump"`
	Valve        string `yaml:"valve"`
	Mixer        string `yaml:"mixer"`
	Lights       string `yaml:"lights"`
}

// HueConfig drives the grow lights through a Hue bridge when enabled
type HueConfig struct {
	Enabled bool     `yaml:"enabled"`
	Bridge  string   `yaml:"bridge"`
	Token   string   `yaml:"token"`
	Lights  []int    `yaml:"lights"`
	Timeout Duration `yaml:"timeout"` // Per bridge request
}

// MQTTConfig contains the event mirror settings
type MQTTConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Broker        string   `yaml:"broker"`
	ClientID      string   `yaml:"client_id"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	TopicPrefix   string   `yaml:"topic_prefix"`
	QoS           byte     `yaml:"qos"`
	MaxRetries    int      `yaml:"max_retries"`
	RetryInterval Duration `yaml:"retry_interval"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"` // Default: true
	Retention       Duration `yaml:"retention"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// IsEnabled returns whether the ledger records bus events
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// StatusConfig contains the local status server settings
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr returns the listen address
func (c *StatusConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Setpoint policies understood by the synchronizer
const (
	PolicyMidpoint = "midpoint"
	PolicyMin      = "min"
	PolicyMax      = "max"
	PolicyLua      = "lua"
)

// Light schedule modes
const (
	LightsCycle = "cycle"
	LightsDaily = "daily"
)

// Hardware drivers
const (
	DriverSim   = "sim"
	DriverRaspi = "raspi"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse parses YAML configuration data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Device.ID == "" {
		cfg.Device.ID = "PlantBox-1"
	}

	// Backend defaults
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://192.168.2.20:8000"
	}
	if cfg.Backend.ConfigPath == "" {
		cfg.Backend.ConfigPath = "/devices/{device_id}/fetchRefVals"
	}
	if cfg.Backend.TelemetryPath == "" {
		cfg.Backend.TelemetryPath = "/sendTelemetry"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = Duration(10 * time.Second)
	}

	// Loop and rate limits
	if cfg.Loop.Cadence == 0 {
		cfg.Loop.Cadence = Duration(100 * time.Millisecond)
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = Duration(5 * time.Second)
	}
	if cfg.Sync.SetpointPolicy == "" {
		cfg.Sync.SetpointPolicy = PolicyMidpoint
	}
	if cfg.Telemetry.Interval == 0 {
		cfg.Telemetry.Interval = Duration(10 * time.Second)
	}

	// PID gains - an all-zero block means "not configured"
	if cfg.PID == (PIDConfig{}) {
		cfg.PID = PIDConfig{Kp: 2.0, Ki: 0.5, Kd: 1.0}
	}

	// Watering sequence
	if cfg.Fluid.Dispense == 0 {
		cfg.Fluid.Dispense = Duration(2 * time.Second)
	}
	if cfg.Fluid.Mix == 0 {
		cfg.Fluid.Mix = Duration(3 * time.Second)
	}
	if cfg.Fluid.Distribute == 0 {
		cfg.Fluid.Distribute = Duration(4 * time.Second)
	}

	// Lights - simulated day/night of 10s each
	if cfg.Lights.Mode == "" {
		cfg.Lights.Mode = LightsCycle
	}
	if cfg.Lights.Period == 0 {
		cfg.Lights.Period = Duration(20 * time.Second)
	}
	if cfg.Lights.OnDuration == 0 {
		cfg.Lights.OnDuration = Duration(10 * time.Second)
	}
	if cfg.Lights.Start == "" {
		cfg.Lights.Start = "06:00"
	}
	if cfg.Lights.End == "" {
		cfg.Lights.End = "20:00"
	}
	if cfg.Lights.Timezone == "" {
		cfg.Lights.Timezone = "UTC"
	}

	// Hardware
	if cfg.Hardware.Driver == "" {
		cfg.Hardware.Driver = DriverSim
	}
	pins := &cfg.Hardware.Pins
	setDefault(&pins.Heater, "12")
	setDefault(&pins.Fan, "16")
	setDefault(&pins.WaterPump, "37")
	setDefault(&pins.NutrientPump, "18")
	setDefault(&pins.Valve, "22")
	setDefault(&pins.Mixer, "29")
	setDefault(&pins.Lights, "36")

	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(2 * time.Second)
	}

	// MQTT
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "plantboxd-" + cfg.Device.ID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "plantbox/" + cfg.Device.ID
	}
	if cfg.MQTT.MaxRetries == 0 {
		cfg.MQTT.MaxRetries = 3
	}
	if cfg.MQTT.RetryInterval == 0 {
		cfg.MQTT.RetryInterval = Duration(2 * time.Second)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./plantbox.sqlite"
	}

	// Ledger defaults
	if cfg.Ledger.Retention == 0 {
		cfg.Ledger.Retention = Duration(30 * 24 * time.Hour)
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}

	// Status server defaults
	if cfg.Status.Port == 0 {
		cfg.Status.Port = 9090
	}
	if cfg.Status.Host == "" {
		cfg.Status.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks values that defaults cannot repair
func (cfg *Config) Validate() error {
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q is not an absolute URL", cfg.Backend.BaseURL)
	}

	switch cfg.Sync.SetpointPolicy {
	case PolicyMidpoint, PolicyMin, PolicyMax:
	case PolicyLua:
		if cfg.Sync.Script == "" {
			return fmt.Errorf("sync.script is required for the %q setpoint policy", PolicyLua)
		}
	default:
		return fmt.Errorf("unknown sync.setpoint_policy %q", cfg.Sync.SetpointPolicy)
	}

	switch cfg.Lights.Mode {
	case LightsCycle:
		if cfg.Lights.OnDuration > cfg.Lights.Period {
			return fmt.Errorf("lights.on_duration must not exceed lights.period")
		}
	case LightsDaily:
	default:
		return fmt.Errorf("unknown lights.mode %q", cfg.Lights.Mode)
	}

	switch cfg.Hardware.Driver {
	case DriverSim, DriverRaspi:
	default:
		return fmt.Errorf("unknown hardware.driver %q", cfg.Hardware.Driver)
	}

	if cfg.Hue.Enabled && (cfg.Hue.Bridge == "" || len(cfg.Hue.Lights) == 0) {
		return fmt.Errorf("hue.bridge and hue.lights are required when hue is enabled")
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// ConfigURL returns the setpoint fetch endpoint for the configured device
func (b BackendConfig) ConfigURL(deviceID string) string {
	return b.endpoint(b.ConfigPath, deviceID)
}

// TelemetryURL returns the telemetry push endpoint for the configured device
func (b BackendConfig) TelemetryURL(deviceID string) string {
	return b.endpoint(b.TelemetryPath, deviceID)
}

func (b BackendConfig) endpoint(path, deviceID string) string {
	path = strings.ReplaceAll(path, "{device_id}", url.PathEscape(deviceID))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(b.BaseURL, "/") + path
}

// GetShutdownTimeout returns the shutdown timeout as time.Duration
func (cfg *Config) GetShutdownTimeout() time.Duration {
	return cfg.ShutdownTimeout.Duration()
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
