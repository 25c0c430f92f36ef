package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as an offset from midnight.
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from an hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay parses "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in time of day %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in time of day %q", s)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return NewTimeOfDay(hour, minute), nil
}

// TimeOfDayOf returns the wall-clock time of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute()) + TimeOfDay(time.Duration(t.Second())*time.Second+time.Duration(t.Nanosecond()))
}

// On places the time of day on the calendar date of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	return StartOfDay(d).Add(time.Duration(t))
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// StartOfDay returns midnight of d's calendar date in d's location.
func StartOfDay(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.Location())
}

// SchedulerConfig holds the clinic rules the Scheduler enforces. It is built
// once at startup and never modified.
type SchedulerConfig struct {
	OpeningTime     TimeOfDay
	ClosingTime     TimeOfDay
	StartMinutes    []int
	BookingLeadTime time.Duration
}

// Validate checks the configuration is usable.
func (c SchedulerConfig) Validate() error {
	if c.OpeningTime >= c.ClosingTime {
		return fmt.Errorf("clinic opening time %s must be before closing time %s", c.OpeningTime, c.ClosingTime)
	}
	if len(c.StartMinutes) == 0 {
		return fmt.Errorf("at least one appointment start minute is required")
	}
	for _, m := range c.StartMinutes {
		if m < 0 || m > 59 {
			return fmt.Errorf("appointment start minute %d out of range 0-59", m)
		}
	}
	if c.BookingLeadTime < 0 {
		return fmt.Errorf("booking lead time must not be negative, got %s", c.BookingLeadTime)
	}
	return nil
}

// PermitsStartMinute reports whether an appointment may start at minute m.
func (c SchedulerConfig) PermitsStartMinute(m int) bool {
	for _, allowed := range c.StartMinutes {
		if allowed == m {
			return true
		}
	}
	return false
}

// ParseUTCOffset parses an offset such as "+02:00", "-07:00" or "Z" into a
// fixed-offset location.
func ParseUTCOffset(s string) (*time.Location, error) {
	// An unescaped "+" in a query string arrives as a space.
	s = strings.TrimRight(s, " ")
	if strings.HasPrefix(s, " ") {
		s = "+" + strings.TrimLeft(s, " ")
	}
	t, err := time.Parse("Z07:00", s)
	if err != nil {
		return nil, fmt.Errorf("invalid utc offset %q: expected +HH:MM", s)
	}
	_, offsetSeconds := t.Zone()
	return fixedZone(offsetSeconds / 60), nil
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}
