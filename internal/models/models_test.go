package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:00", want: "09:00"},
		{in: "9:00", want: "09:00"},
		{in: "09:30:00", want: "09:30"},
		{in: " 23:59 ", want: "23:59"},
		{in: "00:00", want: "00:00"},
		{in: "24:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "09:5", wantErr: true},
		{in: "09:30:15", wantErr: true},
		{in: "nine", wantErr: true},
		{in: "", wantErr: true},
		{in: "-1:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestTimeOfDayOn(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	date := time.Date(2024, 6, 1, 17, 45, 12, 999, loc)
	got := MustParseTimeOfDay("10:30").On(date)

	assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 0, 0, loc), got)
	assert.Equal(t, MustParseTimeOfDay("10:30"), TimeOfDayOf(got))

	// Re-zeroing an already zeroed timestamp is a no-op.
	assert.Equal(t, got, TimeOfDayOf(got).On(got))
}

func TestTimeOfDayText(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.UnmarshalText([]byte("7:05")))
	out, err := tod.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "07:05", string(out))
	assert.Error(t, tod.UnmarshalText([]byte("bad")))
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	instant := time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC) // 22:00 on June 1st in New York
	start := StartOfDay(instant, loc)
	end := EndOfDay(instant, loc)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 6, 1, 23, 59, 59, 0, loc), end)
	assert.True(t, SameDate(start, end))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusConfirmed))
	assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusPending.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusPending.CanTransitionTo(StatusNoShow))

	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusNoShow))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusPending))

	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusNoShow} {
		assert.True(t, s.Terminal(), s)
		for _, next := range AllStatuses {
			assert.False(t, s.CanTransitionTo(next), "%s -> %s", s, next)
		}
	}
	assert.False(t, StatusPending.Terminal())
	assert.False(t, Status("archived").Valid())
}

func TestStatusOccupancy(t *testing.T) {
	assert.True(t, StatusPending.Occupies())
	assert.True(t, StatusConfirmed.Occupies())
	assert.True(t, StatusCompleted.Occupies())
	assert.False(t, StatusCancelled.Occupies())
	assert.False(t, StatusNoShow.Occupies())
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("no-show")
	assert.True(t, ok)
	assert.Equal(t, StatusNoShow, s)

	s, ok = ParseStatus("canceled")
	assert.True(t, ok)
	assert.Equal(t, StatusCancelled, s)

	_, ok = ParseStatus("rejected")
	assert.False(t, ok)
}

func TestScheduleTemplateValidate(t *testing.T) {
	tests := []struct {
		name    string
		tpl     ScheduleTemplate
		wantErr bool
	}{
		{name: "valid", tpl: ScheduleTemplate{OpenTime: "09:00", CloseTime: "18:00", IntervalMinutes: 30}},
		{name: "valid with lunch", tpl: ScheduleTemplate{OpenTime: "09:00", CloseTime: "18:00", IntervalMinutes: 30, LunchStart: "13:00", LunchEnd: "14:00"}},
		{name: "open after close", tpl: ScheduleTemplate{OpenTime: "18:00", CloseTime: "09:00", IntervalMinutes: 30}, wantErr: true},
		{name: "zero interval", tpl: ScheduleTemplate{OpenTime: "09:00", CloseTime: "18:00"}, wantErr: true},
		{name: "half lunch", tpl: ScheduleTemplate{OpenTime: "09:00", CloseTime: "18:00", IntervalMinutes: 30, LunchStart: "13:00"}, wantErr: true},
		{name: "inverted lunch", tpl: ScheduleTemplate{OpenTime: "09:00", CloseTime: "18:00", IntervalMinutes: 30, LunchStart: "14:00", LunchEnd: "13:00"}, wantErr: true},
		{name: "malformed open", tpl: ScheduleTemplate{OpenTime: "9am", CloseTime: "18:00", IntervalMinutes: 30}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tpl.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClosurePeriodCovers(t *testing.T) {
	c := ClosurePeriod{
		StartDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC),
		Reason:    "vacation",
	}
	loc := time.FixedZone("UTC+5", 5*3600)

	assert.False(t, c.Covers(time.Date(2024, 6, 30, 0, 0, 0, 0, loc)))
	assert.True(t, c.Covers(time.Date(2024, 7, 1, 0, 0, 0, 0, loc)))
	assert.True(t, c.Covers(time.Date(2024, 7, 2, 0, 0, 0, 0, loc)))
	assert.True(t, c.Covers(time.Date(2024, 7, 3, 0, 0, 0, 0, loc)))
	assert.False(t, c.Covers(time.Date(2024, 7, 4, 0, 0, 0, 0, loc)))

	assert.NoError(t, c.Validate())
	inverted := ClosurePeriod{StartDate: c.EndDate, EndDate: c.StartDate}
	assert.Error(t, inverted.Validate())
}

func TestWeekdaysRoundTrip(t *testing.T) {
	days := []time.Weekday{time.Sunday, time.Monday}
	assert.Equal(t, "0,1", EncodeWeekdays(days))
	assert.Equal(t, days, DecodeWeekdays("0,1"))
	assert.Equal(t, []time.Weekday{time.Saturday}, DecodeWeekdays("6, 9, x"))
	assert.Nil(t, DecodeWeekdays(""))
}

func TestActorManages(t *testing.T) {
	scoped := Actor{ID: "m1", Role: RoleManager, Salons: []string{"s1"}}
	assert.True(t, scoped.Manages("s1"))
	assert.False(t, scoped.Manages("s2"))

	global := Actor{ID: "m2", Role: RoleManager}
	assert.True(t, global.Manages("anything"))

	client := Actor{ID: "c1", Role: RoleClient}
	assert.False(t, client.Manages("s1"))
}
