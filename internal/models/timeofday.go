package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on every surface.
const DateLayout = "2006-01-02"

// MinutesPerDay bounds a valid TimeOfDay.
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "H:MM", "HH:MM" and "HH:MM:SS". Seconds must be zero
// so that a parsed value always lands on a whole minute.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	hour, err := parseClockField(parts[0], 1, 23)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	if len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	minute, err := parseClockField(parts[1], 2, 59)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if len(parts) == 3 {
		if len(parts[2]) != 2 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
		sec, err := parseClockField(parts[2], 2, 59)
		if err != nil {
			return 0, fmt.Errorf("invalid second in %q: %w", s, err)
		}
		if sec != 0 {
			return 0, fmt.Errorf("time of day %q is not on a whole minute", s)
		}
	}

	return TimeOfDay(hour*60 + minute), nil
}

func parseClockField(field string, minLen, maxValue int) (int, error) {
	if len(field) < minLen || len(field) > 2 {
		return 0, fmt.Errorf("bad length")
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > maxValue {
		return 0, fmt.Errorf("out of range")
	}
	return v, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf projects t onto its wall-clock minute in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String renders zero-padded HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Valid reports whether t lies inside a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

// On places t on the calendar day of date, in date's location, with
// seconds and nanoseconds zeroed.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// StartOfDay returns midnight of date's calendar day in loc.
func StartOfDay(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last whole second of date's calendar day in loc.
func EndOfDay(date time.Time, loc *time.Location) time.Time {
	return StartOfDay(date, loc).AddDate(0, 0, 1).Add(-time.Second)
}

// SameDate reports whether a and b share year, month and day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}
