package scheduler

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Transition is emitted when the lights change state
type Transition struct {
	On bool
	At time.Time
}

// LightScheduler tracks the on/off state derived from a Schedule.
// The first tick always reports the current decision so the output is
// written at boot; after that only phase changes produce a transition.
type LightScheduler struct {
	schedule Schedule
	on       bool
	started  bool
}

// NewLightScheduler creates a scheduler with no recorded state
func NewLightScheduler(schedule Schedule) *LightScheduler {
	return &LightScheduler{schedule: schedule}
}

// Tick evaluates the schedule and reports a transition when the decision changed
func (s *LightScheduler) Tick(now time.Time) (Transition, bool) {
	shouldBeOn := s.schedule.ShouldBeOn(now)
	if s.started && shouldBeOn == s.on {
		return Transition{}, false
	}

	s.started = true
	s.on = shouldBeOn
	if shouldBeOn {
		log.Info().Str("schedule", s.schedule.String()).Msg("Lights turning on")
	} else {
		log.Info().Str("schedule", s.schedule.String()).Msg("Lights turning off")
	}
	return Transition{On: shouldBeOn, At: now}, true
}

// On returns the recorded light state
func (s *LightScheduler) On() bool {
	return s.on
}
