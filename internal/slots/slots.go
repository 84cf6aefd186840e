// Package slots generates the bookable time grid for one salon day.
package slots

import (
	"time"

	"salonbook/internal/models"
)

// Grid returns the ordered start times of every slot that fits entirely in
// [open, close), skipping starts inside the lunch window. A malformed
// template yields no slots.
func Grid(tpl models.ScheduleTemplate) []models.TimeOfDay {
	open, err := models.ParseTimeOfDay(tpl.OpenTime)
	if err != nil {
		return nil
	}
	closeAt, err := models.ParseTimeOfDay(tpl.CloseTime)
	if err != nil {
		return nil
	}
	step := models.TimeOfDay(tpl.IntervalMinutes)
	if step <= 0 || open >= closeAt {
		return nil
	}

	lunchStart, lunchEnd, hasLunch := tpl.Lunch()

	out := make([]models.TimeOfDay, 0, int((closeAt-open)/step))
	for t := open; t+step <= closeAt; t += step {
		if hasLunch && t >= lunchStart && t < lunchEnd {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Generate returns the slots of day that can still be booked at now. Closed
// days and days before now's date (in the salon's zone) yield nothing; on the
// current day only times strictly after now remain.
func Generate(day models.DaySchedule, now time.Time) []models.TimeOfDay {
	if day.Closed {
		return nil
	}

	localNow := now.In(day.Location())
	dayKey := day.Date.Format(models.DateLayout)
	todayKey := localNow.Format(models.DateLayout)
	if dayKey < todayKey {
		return nil
	}

	grid := Grid(day.Template)
	if dayKey > todayKey {
		return grid
	}

	cutoff := models.TimeOfDayOf(localNow)
	i := 0
	for i < len(grid) && grid[i] <= cutoff {
		i++
	}
	return grid[i:]
}

// Mark tags each time busy when it is in the busy set.
func Mark(times []models.TimeOfDay, busy map[models.TimeOfDay]bool) []models.Slot {
	out := make([]models.Slot, len(times))
	for i, t := range times {
		out[i] = models.Slot{Time: t, Busy: busy[t]}
	}
	return out
}

// Contains reports whether t is one of times.
func Contains(times []models.TimeOfDay, t models.TimeOfDay) bool {
	for _, candidate := range times {
		if candidate == t {
			return true
		}
	}
	return false
}

// Compose joins a calendar date and a time of day into the timestamp an
// appointment is stored under. Seconds and sub-second parts are zero.
func Compose(date time.Time, tod models.TimeOfDay) time.Time {
	return tod.On(date)
}
