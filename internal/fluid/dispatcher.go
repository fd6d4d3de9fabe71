// Package fluid runs the timed watering sequence: dispense nutrients, mix the
// solution, then distribute it to the plant.
package fluid

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// State is a step of the watering sequence
type State int

const (
	Idle State = iota
	DispenseNutrients
	MixSolution
	Distribute
)

// String returns the wire name of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DispenseNutrients:
		return "dispense_nutrients"
	case MixSolution:
		return "mix_solution"
	case Distribute:
		return "distribute"
	default:
		return "unknown"
	}
}

// next returns the step following s; Distribute wraps to Idle
func (s State) next() State {
	if s == Distribute {
		return Idle
	}
	return s + 1
}

// Outputs describes which fluid actuators are energized in a state
type Outputs struct {
	NutrientPump bool
	Mixer        bool
	WaterPump    bool
	Valve        bool
}

// Outputs returns the actuator pattern for the state
func (s State) Outputs() Outputs {
	switch s {
	case DispenseNutrients:
		return Outputs{NutrientPump: true}
	case MixSolution:
		return Outputs{Mixer: true}
	case Distribute:
		return Outputs{WaterPump: true, Valve: true}
	default:
		return Outputs{}
	}
}

// HoldTimes configures how long each active step runs
type HoldTimes struct {
	Dispense   time.Duration
	Mix        time.Duration
	Distribute time.Duration
}

// DefaultHoldTimes returns the factory sequence of 2s, 3s and 4s
func DefaultHoldTimes() HoldTimes {
	return HoldTimes{
		Dispense:   2 * time.Second,
		Mix:        3 * time.Second,
		Distribute: 4 * time.Second,
	}
}

// Total returns the length of an uninterrupted cycle
func (h HoldTimes) Total() time.Duration {
	return h.Dispense + h.Mix + h.Distribute
}

func (h HoldTimes) of(s State) time.Duration {
	switch s {
	case DispenseNutrients:
		return h.Dispense
	case MixSolution:
		return h.Mix
	case Distribute:
		return h.Distribute
	default:
		return 0
	}
}

// Transition describes a step change of the sequence
type Transition struct {
	CycleID string
	From    State
	To      State
	At      time.Time
}

// Completed reports whether the transition ended a cycle
func (t Transition) Completed() bool {
	return t.To == Idle && t.From != Idle
}

// Dispatcher is the watering state machine. Exactly one state is active;
// a trigger while a cycle is running is dropped.
type Dispatcher struct {
	hold HoldTimes

	state     State
	stepStart time.Time
	cycleID   string
}

// NewDispatcher creates an idle dispatcher
func NewDispatcher(hold HoldTimes) *Dispatcher {
	return &Dispatcher{hold: hold}
}

// Trigger starts a cycle if the dispatcher is idle.
// It returns the entry transition and true when a cycle was started.
func (d *Dispatcher) Trigger(now time.Time) (Transition, bool) {
	if d.state != Idle {
		log.Debug().
			Str("cycle_id", d.cycleID).
			Str("state", d.state.String()).
			Msg("Watering already in progress, trigger ignored")
		return Transition{}, false
	}

	d.cycleID = uuid.NewString()
	d.state = DispenseNutrients
	d.stepStart = now

	log.Info().Str("cycle_id", d.cycleID).Msg("Starting watering cycle")
	return Transition{CycleID: d.cycleID, From: Idle, To: DispenseNutrients, At: now}, true
}

// Tick advances the sequence when the current step's hold time has elapsed.
// It returns the transition and true when the state changed.
func (d *Dispatcher) Tick(now time.Time) (Transition, bool) {
	if d.state == Idle {
		return Transition{}, false
	}

	if now.Sub(d.stepStart) < d.hold.of(d.state) {
		return Transition{}, false
	}

	tr := Transition{CycleID: d.cycleID, From: d.state, To: d.state.next(), At: now}
	d.state = tr.To
	d.stepStart = now

	if tr.Completed() {
		log.Info().Str("cycle_id", tr.CycleID).Msg("Watering cycle complete")
		d.cycleID = ""
	} else {
		log.Info().
			Str("cycle_id", tr.CycleID).
			Str("step", tr.To.String()).
			Msg("Watering step")
	}
	return tr, true
}

// State returns the active step
func (d *Dispatcher) State() State {
	return d.state
}

// Elapsed returns how long the active step has been running
func (d *Dispatcher) Elapsed(now time.Time) time.Duration {
	if d.state == Idle {
		return 0
	}
	return now.Sub(d.stepStart)
}

// CycleID returns the id of the running cycle, or "" when idle
func (d *Dispatcher) CycleID() string {
	return d.cycleID
}
