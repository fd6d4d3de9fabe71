// Package metrics exposes control loop counters and gauges for Prometheus.
// All methods are safe on a nil *Metrics so components can run without it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plantbox"

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ticks          prometheus.Counter
	overruns       prometheus.Counter
	fetches        *prometheus.CounterVec
	pushes         *prometheus.CounterVec
	fluidCycles    prometheus.Counter
	sensorFailures prometheus.Counter

	airTemp    prometheus.Gauge
	targetTemp prometheus.Gauge
	heaterPWM  prometheus.Gauge
	fan        prometheus.Gauge
	lights     prometheus.Gauge
	fluidStep  prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_ticks_total",
			Help:      "Control loop ticks executed.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_overruns_total",
			Help:      "Ticks that took longer than the loop cadence.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setpoint_fetches_total",
			Help:      "Reference value fetch attempts by result.",
		}, []string{"result"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_pushes_total",
			Help:      "Telemetry push attempts by result.",
		}, []string{"result"}),
		fluidCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fluid_cycles_total",
			Help:      "Completed watering cycles.",
		}),
		sensorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_failures_total",
			Help:      "Sensor reads that failed.",
		}),
		airTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "air_temperature_celsius",
			Help:      "Last measured air temperature.",
		}),
		targetTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_temperature_celsius",
			Help:      "Current temperature setpoint.",
		}),
		heaterPWM: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heater_pwm",
			Help:      "Heater duty cycle (0-255).",
		}),
		fan: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fan_on",
			Help:      "1 when the fan is on.",
		}),
		lights: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lights_on",
			Help:      "1 when the grow lights are on.",
		}),
		fluidStep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fluid_step",
			Help:      "Watering step (0 idle, 1 dispense, 2 mix, 3 distribute).",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks,
		m.overruns,
		m.fetches,
		m.pushes,
		m.fluidCycles,
		m.sensorFailures,
		m.airTemp,
		m.targetTemp,
		m.heaterPWM,
		m.fan,
		m.lights,
		m.fluidStep,
	)

	return m
}

// Handler serves the private registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Tick counts one loop iteration
func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

// Overrun counts a tick that exceeded the cadence
func (m *Metrics) Overrun() {
	if m == nil {
		return
	}
	m.overruns.Inc()
}

// Fetch counts a fetch attempt; skipped attempts are not counted
func (m *Metrics) Fetch(result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
}

// Push counts a push attempt
func (m *Metrics) Push(result string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(result).Inc()
}

// FluidCycleCompleted counts a finished watering cycle
func (m *Metrics) FluidCycleCompleted() {
	if m == nil {
		return
	}
	m.fluidCycles.Inc()
}

// SensorFailure counts a failed read
func (m *Metrics) SensorFailure() {
	if m == nil {
		return
	}
	m.sensorFailures.Inc()
}

// Observe records the latest loop state
func (m *Metrics) Observe(airTempC, targetTempC float64, heaterPWM uint8, fanOn, lightsOn bool, fluidStep int) {
	if m == nil {
		return
	}
	m.airTemp.Set(airTempC)
	m.targetTemp.Set(targetTempC)
	m.heaterPWM.Set(float64(heaterPWM))
	m.fan.Set(boolToFloat(fanOn))
	m.lights.Set(boolToFloat(lightsOn))
	m.fluidStep.Set(float64(fluidStep))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
