package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a parsed fixed "HH:MM" expression
type TimeOfDay struct {
	Raw    string
	Hour   int // 0-23
	Minute int // 0-59
}

// Match patterns like "22:15", "06:30"
var fixedPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseTimeOfDay parses a fixed time expression
func ParseTimeOfDay(expr string) (TimeOfDay, error) {
	expr = strings.TrimSpace(expr)

	matches := fixedPattern.FindStringSubmatch(expr)
	if matches == nil {
		return TimeOfDay{}, fmt.Errorf("invalid time expression: %s", expr)
	}

	hour, _ := strconv.Atoi(matches[1])
	min, _ := strconv.Atoi(matches[2])

	if hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour: %d", hour)
	}
	if min < 0 || min > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute: %d", min)
	}

	return TimeOfDay{Raw: expr, Hour: hour, Minute: min}, nil
}

// Offset returns the time since midnight
func (t TimeOfDay) Offset() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute
}

// sinceMidnight returns the wall-clock time of day of ts in tz
func sinceMidnight(ts time.Time, tz *time.Location) time.Duration {
	local := ts.In(tz)
	return time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
}
