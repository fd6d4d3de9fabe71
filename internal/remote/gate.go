package remote

import "time"

// Gate admits at most one attempt per interval. The first call is always
// admitted; later calls are admitted once now - last >= interval.
// An admitted attempt counts whether or not it succeeds.
type Gate struct {
	interval time.Duration
	last     time.Time
	fired    bool
}

// NewGate creates a gate with the given minimum spacing.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Allow reports whether an attempt may run at now and, if so, records it.
func (g *Gate) Allow(now time.Time) bool {
	if g.fired && now.Sub(g.last) < g.interval {
		return false
	}
	g.fired = true
	g.last = now
	return true
}

// Last returns the time of the last admitted attempt, zero if none.
func (g *Gate) Last() time.Time {
	return g.last
}
