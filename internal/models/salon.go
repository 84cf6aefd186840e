package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleTemplate is a salon's standing daily schedule. Times are kept as
// entered by managers and normalized when slots are generated.
type ScheduleTemplate struct {
	OpenTime        string `json:"open_time" yaml:"open_time"`
	CloseTime       string `json:"close_time" yaml:"close_time"`
	IntervalMinutes int    `json:"interval_minutes" yaml:"interval_minutes"`
	LunchStart      string `json:"lunch_start,omitempty" yaml:"lunch_start"`
	LunchEnd        string `json:"lunch_end,omitempty" yaml:"lunch_end"`
}

// HasLunch reports whether either lunch bound is set.
func (t ScheduleTemplate) HasLunch() bool {
	return strings.TrimSpace(t.LunchStart) != "" || strings.TrimSpace(t.LunchEnd) != ""
}

// Lunch returns the parsed lunch window. ok is false when the window is
// absent or malformed.
func (t ScheduleTemplate) Lunch() (start, end TimeOfDay, ok bool) {
	if strings.TrimSpace(t.LunchStart) == "" || strings.TrimSpace(t.LunchEnd) == "" {
		return 0, 0, false
	}
	start, err := ParseTimeOfDay(t.LunchStart)
	if err != nil {
		return 0, 0, false
	}
	end, err = ParseTimeOfDay(t.LunchEnd)
	if err != nil {
		return 0, 0, false
	}
	if start >= end {
		return 0, 0, false
	}
	return start, end, true
}

// Validate enforces the invariants managers must respect when saving a template.
func (t ScheduleTemplate) Validate() error {
	open, err := ParseTimeOfDay(t.OpenTime)
	if err != nil {
		return fmt.Errorf("open_time: %w", err)
	}
	closeAt, err := ParseTimeOfDay(t.CloseTime)
	if err != nil {
		return fmt.Errorf("close_time: %w", err)
	}
	if open >= closeAt {
		return fmt.Errorf("open_time %s must be before close_time %s", open, closeAt)
	}
	if t.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive, got %d", t.IntervalMinutes)
	}
	if !t.HasLunch() {
		return nil
	}
	if strings.TrimSpace(t.LunchStart) == "" || strings.TrimSpace(t.LunchEnd) == "" {
		return fmt.Errorf("lunch_start and lunch_end must be set together")
	}
	if _, _, ok := t.Lunch(); !ok {
		return fmt.Errorf("lunch window %s-%s is invalid", t.LunchStart, t.LunchEnd)
	}
	return nil
}

// ClosurePeriod is a salon-wide blackout over an inclusive date range.
type ClosurePeriod struct {
	ID        int64     `json:"id,omitempty"`
	SalonID   string    `json:"salon_id,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

// Covers reports whether date falls inside the closure, bounds included.
// Only the calendar date of each value is compared.
func (c ClosurePeriod) Covers(date time.Time) bool {
	d := dateKey(date)
	return dateKey(c.StartDate) <= d && d <= dateKey(c.EndDate)
}

func (c ClosurePeriod) Validate() error {
	if dateKey(c.StartDate) > dateKey(c.EndDate) {
		return fmt.Errorf("closure start %s is after end %s",
			c.StartDate.Format(DateLayout), c.EndDate.Format(DateLayout))
	}
	return nil
}

func dateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Salon owns a schedule template and a timezone in which its dates are read.
type Salon struct {
	ID             string           `json:"id" yaml:"id"`
	Name           string           `json:"name" yaml:"name"`
	Timezone       string           `json:"timezone" yaml:"timezone"`
	Template       ScheduleTemplate `json:"template" yaml:"template"`
	ClosedWeekdays []time.Weekday   `json:"closed_weekdays,omitempty" yaml:"closed_weekdays"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Location resolves the salon timezone, falling back to fallback (or UTC)
// when it is empty or unknown.
func (s *Salon) Location(fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if s == nil || strings.TrimSpace(s.Timezone) == "" {
		return fallback
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// ClosedOn reports whether the weekday of date is a weekly day off.
func (s *Salon) ClosedOn(date time.Time) bool {
	for _, wd := range s.ClosedWeekdays {
		if date.Weekday() == wd {
			return true
		}
	}
	return false
}

// EncodeWeekdays renders weekdays as a comma separated list of numbers for storage.
func EncodeWeekdays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

// DecodeWeekdays is the inverse of EncodeWeekdays; unknown entries are skipped.
func DecodeWeekdays(raw string) []time.Weekday {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var days []time.Weekday
	for _, p := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days = append(days, time.Weekday(n))
	}
	return days
}

// DaySchedule is the Schedule Template Provider's answer for one calendar day.
// Date is midnight of that day in the salon's location.
type DaySchedule struct {
	SalonID      string
	Date         time.Time
	Template     ScheduleTemplate
	Closed       bool
	ClosedReason string
}

// Location returns the location of the scheduled day.
func (d DaySchedule) Location() *time.Location {
	if d.Date.IsZero() {
		return time.UTC
	}
	return d.Date.Location()
}
