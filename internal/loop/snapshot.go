package loop

import (
	"time"

	"github.com/dokzlo13/plantboxd/internal/model"
)

// Snapshot is an immutable copy of the loop state after a tick
type Snapshot struct {
	DeviceID     string               `json:"device_id"`
	Tick         uint64               `json:"tick"`
	At           time.Time            `json:"at"`
	Reading      *model.SensorReading `json:"reading,omitempty"`
	Targets      TargetsView          `json:"targets"`
	Actuators    model.ActuatorState  `json:"actuators"`
	FluidCycleID string               `json:"fluid_cycle_id,omitempty"`
	StepElapsed  string               `json:"fluid_step_elapsed"`
	LastFetch    string               `json:"last_fetch"`
	LastPush     string               `json:"last_push"`
}

// TargetsView is the JSON form of the current targets
type TargetsView struct {
	TargetTempC       float64  `json:"target_temp_c"`
	TargetHumidityPct *float64 `json:"target_humidity_pct,omitempty"`
}

func (o *Orchestrator) publishSnapshot(now time.Time) {
	snap := &Snapshot{
		DeviceID:     o.deps.DeviceID,
		Tick:         o.ticks,
		At:           now,
		Actuators:    o.actuators,
		FluidCycleID: o.deps.Fluid.CycleID(),
		StepElapsed:  o.actuators.FluidStepElapsed.String(),
		LastFetch:    o.lastFetch.String(),
		LastPush:     o.lastPush.String(),
		Targets:      TargetsView{TargetTempC: o.targets.TargetTempC},
	}
	if o.targets.TargetHumidityPct != nil {
		h := *o.targets.TargetHumidityPct
		snap.Targets.TargetHumidityPct = &h
	}
	if o.hasReading {
		r := o.reading
		snap.Reading = &r
	}
	o.snapshot.Store(snap)
}

// Snapshot returns the state published by the last tick, nil before the first.
// Safe for concurrent use.
func (o *Orchestrator) Snapshot() *Snapshot {
	return o.snapshot.Load()
}

// Ready reports whether at least one tick has completed
func (o *Orchestrator) Ready() bool {
	return o.snapshot.Load() != nil
}
