// Package scheduler decides when the grow lights are on.
// Different schedule types implement the Schedule interface; LightScheduler
// turns a schedule's decision into on/off transitions.
package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Schedule is the core abstraction for a day/night decision
type Schedule interface {
	// ShouldBeOn reports whether the lights belong on at now
	ShouldBeOn(now time.Time) bool
	// String describes the schedule for logs
	String() string
}

// CycleSchedule is a fixed duty cycle measured in whole seconds from an origin:
// on for the first OnDuration of every Period.
type CycleSchedule struct {
	origin time.Time
	period int64 // seconds
	on     int64 // seconds
}

// NewCycleSchedule creates a duty-cycle schedule anchored at origin.
// Period and on duration are truncated to whole seconds.
func NewCycleSchedule(origin time.Time, period, on time.Duration) (*CycleSchedule, error) {
	p := int64(period / time.Second)
	o := int64(on / time.Second)
	if p <= 0 {
		return nil, fmt.Errorf("cycle period must be at least 1s, got %s", period)
	}
	if o < 0 || o > p {
		return nil, fmt.Errorf("on duration %s outside period %s", on, period)
	}
	return &CycleSchedule{origin: origin, period: p, on: o}, nil
}

// ShouldBeOn implements Schedule: floor(seconds since origin) mod period < on
func (s *CycleSchedule) ShouldBeOn(now time.Time) bool {
	secs := int64(now.Sub(s.origin) / time.Second)
	phase := secs % s.period
	if phase < 0 {
		phase += s.period
	}
	return phase < s.on
}

func (s *CycleSchedule) String() string {
	return fmt.Sprintf("cycle(%ds on / %ds)", s.on, s.period)
}

// DailySchedule keeps the lights on between two times of day in a timezone.
// A window whose end is before its start wraps past midnight.
type DailySchedule struct {
	start TimeOfDay
	end   TimeOfDay
	tz    *time.Location
}

// NewDailySchedule parses the window bounds and loads the timezone
func NewDailySchedule(start, end, timezone string) (*DailySchedule, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %w", err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return nil, fmt.Errorf("invalid end: %w", err)
	}

	tz, err := time.LoadLocation(timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", timezone).Msg("Failed to load timezone, using UTC")
		tz = time.UTC
	}

	return &DailySchedule{start: s, end: e, tz: tz}, nil
}

// ShouldBeOn implements Schedule
func (s *DailySchedule) ShouldBeOn(now time.Time) bool {
	t := sinceMidnight(now, s.tz)
	from, to := s.start.Offset(), s.end.Offset()

	if from <= to {
		return t >= from && t < to
	}
	// Wraps midnight, e.g. 20:00-06:00
	return t >= from || t < to
}

func (s *DailySchedule) String() string {
	return fmt.Sprintf("daily(%s-%s %s)", s.start.Raw, s.end.Raw, s.tz)
}
