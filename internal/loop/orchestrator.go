// Package loop runs the fixed-cadence control loop that ties the box
// together: sync setpoints, read sensors, drive actuators, report telemetry.
package loop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/actuator"
	"github.com/dokzlo13/plantboxd/internal/control"
	"github.com/dokzlo13/plantboxd/internal/eventbus"
	"github.com/dokzlo13/plantboxd/internal/fluid"
	"github.com/dokzlo13/plantboxd/internal/metrics"
	"github.com/dokzlo13/plantboxd/internal/model"
	"github.com/dokzlo13/plantboxd/internal/remote"
	"github.com/dokzlo13/plantboxd/internal/scheduler"
	"github.com/dokzlo13/plantboxd/internal/sensor"
)

// DefaultCadence is the loop period
const DefaultCadence = 100 * time.Millisecond

// Fetcher polls the backend for setpoints
type Fetcher interface {
	MaybeFetch(ctx context.Context, now time.Time, targets *model.SystemTargets) remote.FetchOutcome
}

// Pusher reports telemetry to the backend
type Pusher interface {
	MaybePush(ctx context.Context, now time.Time, reading model.SensorReading, actuators model.ActuatorState) remote.PushOutcome
}

// TargetsSaver persists targets after a successful fetch
type TargetsSaver interface {
	Save(deviceID string, targets model.SystemTargets, at time.Time) error
}

// Deps wires the orchestrator to its collaborators.
// Bus, Metrics and Saver are optional.
type Deps struct {
	DeviceID   string
	Cadence    time.Duration
	Targets    *model.SystemTargets
	Sync       Fetcher
	Reporter   Pusher
	Sensors    sensor.Provider
	Sink       actuator.Sink
	Controller *control.TemperatureController
	Fluid      *fluid.Dispatcher
	Lights     *scheduler.LightScheduler
	Bus        eventbus.Publisher
	Metrics    *metrics.Metrics
	Saver      TargetsSaver
}

// Orchestrator owns all control state. Tick must only be called from one
// goroutine; other goroutines observe the loop through Snapshot.
type Orchestrator struct {
	deps    Deps
	cadence time.Duration

	targets    model.SystemTargets
	reading    model.SensorReading
	hasReading bool
	actuators  model.ActuatorState
	ticks      uint64
	lastFetch  remote.FetchOutcome
	lastPush   remote.PushOutcome

	snapshot atomic.Pointer[Snapshot]
}

// New creates an orchestrator. deps.Targets seeds the shared targets;
// nil means the boot defaults.
func New(deps Deps) *Orchestrator {
	if deps.Bus == nil {
		deps.Bus = eventbus.Discard
	}
	cadence := deps.Cadence
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	targets := model.DefaultTargets()
	if deps.Targets != nil {
		targets = *deps.Targets
	}
	return &Orchestrator{
		deps:      deps,
		cadence:   cadence,
		targets:   targets,
		actuators: model.ActuatorState{FluidStep: fluid.Idle.String()},
	}
}

// Targets returns the current targets (loop goroutine only)
func (o *Orchestrator) Targets() model.SystemTargets {
	return o.targets
}

// Actuators returns the command snapshot of the last tick (loop goroutine only)
func (o *Orchestrator) Actuators() model.ActuatorState {
	return o.actuators
}

// Tick runs one iteration of the control loop at now.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) {
	d := o.deps
	o.ticks++
	d.Metrics.Tick()

	// 1. Setpoints
	before := o.targets
	o.lastFetch = d.Sync.MaybeFetch(ctx, now, &o.targets)
	if o.lastFetch != remote.FetchSkipped {
		d.Metrics.Fetch(o.lastFetch.String())
	}
	if o.lastFetch == remote.FetchUpdated && d.Saver != nil && !before.SameSetpoints(o.targets) {
		if err := d.Saver.Save(d.DeviceID, o.targets, now); err != nil {
			log.Warn().Err(err).Msg("Failed to persist targets")
		}
	}

	// 2. Sensors
	reading, err := d.Sensors.Read(now)
	if err != nil {
		d.Metrics.SensorFailure()
		log.Warn().Err(err).Bool("have_previous", o.hasReading).Msg("Sensor read failed")
		d.Bus.Publish(eventbus.Event{
			Type: eventbus.EventSensorFailed,
			Time: now,
			Data: map[string]any{"error": err.Error()},
		})
	} else {
		o.reading = reading
		o.hasReading = true
	}

	// 3. Temperature
	if o.hasReading {
		cmd := d.Controller.Update(o.reading.AirTempC, o.targets.TargetTempC, now)
		actuator.ApplyTemperature(d.Sink, cmd)
		o.actuators.HeaterPWM = cmd.HeaterPWM
		o.actuators.FanOn = cmd.FanOn
	}

	// 4. Fluid. The first tick writes the idle pattern so relays left
	// energized by a previous run are released.
	if o.ticks == 1 {
		actuator.ApplyFluid(d.Sink, d.Fluid.State().Outputs())
	}
	if tr, changed := d.Fluid.Tick(now); changed {
		o.applyFluid(tr)
	}

	// 5. Lights
	if tr, changed := d.Lights.Tick(now); changed {
		d.Sink.SetLights(tr.On)
		d.Bus.Publish(eventbus.Event{
			Type: eventbus.EventLightsChanged,
			Time: now,
			Data: map[string]any{"on": tr.On},
		})
	}
	o.actuators.LightsOn = d.Lights.On()
	o.actuators.FluidStep = d.Fluid.State().String()
	o.actuators.FluidStepElapsed = d.Fluid.Elapsed(now)

	// 6. Telemetry
	o.lastPush = remote.PushSkipped
	if o.hasReading {
		o.lastPush = d.Reporter.MaybePush(ctx, now, o.reading, o.actuators)
		if o.lastPush != remote.PushSkipped {
			d.Metrics.Push(o.lastPush.String())
		}
	}

	// 7. One-shot watering command
	if o.targets.TriggerWatering {
		if tr, started := d.Fluid.Trigger(now); started {
			o.applyFluid(tr)
			o.actuators.FluidStep = d.Fluid.State().String()
			o.actuators.FluidStepElapsed = 0
		} else {
			d.Bus.Publish(eventbus.Event{
				Type: eventbus.EventWateringIgnored,
				Time: now,
				Data: map[string]any{"cycle_id": d.Fluid.CycleID(), "step": d.Fluid.State().String()},
			})
		}
		o.targets.TriggerWatering = false
	}

	if o.hasReading {
		d.Metrics.Observe(o.reading.AirTempC, o.targets.TargetTempC, o.actuators.HeaterPWM,
			o.actuators.FanOn, o.actuators.LightsOn, int(d.Fluid.State()))
	}
	o.publishSnapshot(now)
}

func (o *Orchestrator) applyFluid(tr fluid.Transition) {
	d := o.deps
	actuator.ApplyFluid(d.Sink, tr.To.Outputs())
	d.Bus.Publish(eventbus.Event{
		Type: eventbus.EventFluidStep,
		Time: tr.At,
		Data: map[string]any{"cycle_id": tr.CycleID, "from": tr.From.String(), "to": tr.To.String()},
	})
	if tr.Completed() {
		d.Metrics.FluidCycleCompleted()
		d.Bus.Publish(eventbus.Event{
			Type: eventbus.EventFluidCycleCompleted,
			Time: tr.At,
			Data: map[string]any{"cycle_id": tr.CycleID},
		})
	}
}

// Run drives Tick from the wall clock until ctx is cancelled. A tick that
// overruns the cadence is followed immediately by the next one; missed
// ticks are not replayed. All outputs are switched off on exit.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Dur("cadence", o.cadence).
		Float64("target_temp_c", o.targets.TargetTempC).
		Msg("Control loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			actuator.Off(o.deps.Sink)
			log.Info().Uint64("ticks", o.ticks).Msg("Control loop stopped")
			return ctx.Err()
		case <-timer.C:
		}

		start := time.Now()
		o.Tick(ctx, start)
		elapsed := time.Since(start)

		wait := o.cadence - elapsed
		if wait < 0 {
			wait = 0
			o.deps.Metrics.Overrun()
			log.Debug().Dur("elapsed", elapsed).Dur("cadence", o.cadence).Msg("Control loop overrun")
			o.deps.Bus.Publish(eventbus.Event{
				Type: eventbus.EventLoopOverrun,
				Time: start,
				Data: map[string]any{"elapsed_ms": elapsed.Milliseconds()},
			})
		}
		timer.Reset(wait)
	}
}
