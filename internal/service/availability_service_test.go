package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAppointments struct {
	domain.AppointmentRepository
}

func (failingAppointments) ListAppointments(context.Context, string, time.Time, time.Time, []models.Status) ([]*models.Appointment, error) {
	return nil, errors.New("connection refused")
}

func newAvailability(t *testing.T, f *fixture, appts domain.AppointmentRepository) *AvailabilityService {
	t.Helper()
	logger := zerolog.New(io.Discard)
	svc := NewAvailabilityService(schedule.NewProvider(f.db, time.UTC, &logger), appts, &logger)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func slotTimes(slots []models.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time.String())
	}
	return out
}

func busyTimes(slots []models.Slot) []string {
	var out []string
	for _, s := range slots {
		if s.Busy {
			out = append(out, s.Time.String())
		}
	}
	return out
}

func TestListSlotsForDate(t *testing.T) {
	f := newFixture(t, BookingOptions{})
	svc := newAvailability(t, f, f.db)
	ctx := context.Background()
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

	day, err := svc.ListSlotsForDate(ctx, "s1", date)
	require.NoError(t, err)
	assert.False(t, day.Closed)
	assert.Equal(t, "2030-03-04", day.Date)
	require.Len(t, day.Slots, 16)
	assert.Equal(t, "09:00", day.Slots[0].Time.String())
	assert.Equal(t, "17:30", day.Slots[15].Time.String())
	assert.NotContains(t, slotTimes(day.Slots), "13:00")
	assert.NotContains(t, slotTimes(day.Slots), "13:30")
	assert.Empty(t, busyTimes(day.Slots))

	first, err := f.booking.Submit(ctx, request("c1", monday, "09:00"))
	require.NoError(t, err)
	_, err = f.booking.Submit(ctx, request("c2", monday, "11:30"))
	require.NoError(t, err)

	day, err = svc.ListSlotsForDate(ctx, "s1", date)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:30"}, busyTimes(day.Slots))

	// cancelled appointments free their slot
	_, err = f.booking.Cancel(ctx, client("c1"), first.ID)
	require.NoError(t, err)

	day, err = svc.ListSlotsForDate(ctx, "s1", date)
	require.NoError(t, err)
	assert.Equal(t, []string{"11:30"}, busyTimes(day.Slots))
}

func TestListSlotsForDateToday(t *testing.T) {
	f := newFixture(t, BookingOptions{})
	svc := newAvailability(t, f, f.db)
	svc.now = func() time.Time { return time.Date(2030, 3, 4, 10, 10, 0, 0, time.UTC) }

	day, err := svc.ListSlotsForDate(context.Background(), "s1", time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, day.Slots, 13)
	assert.Equal(t, "10:30", day.Slots[0].Time.String())
}

func TestListSlotsForClosedAndPastDays(t *testing.T) {
	f := newFixture(t, BookingOptions{})
	svc := newAvailability(t, f, f.db)
	ctx := context.Background()

	sunday, err := svc.ListSlotsForDate(ctx, "s1", time.Date(2030, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, sunday.Closed)
	assert.Equal(t, schedule.ReasonWeeklyDayOff, sunday.ClosedReason)
	assert.Empty(t, sunday.Slots)

	past, err := svc.ListSlotsForDate(ctx, "s1", time.Date(2030, 2, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, past.Closed)
	assert.Empty(t, past.Slots)

	_, err = svc.ListSlotsForDate(ctx, "missing", time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrSalonNotFound)
}

func TestListSlotsOccupancyUnavailable(t *testing.T) {
	f := newFixture(t, BookingOptions{})
	svc := newAvailability(t, f, failingAppointments{AppointmentRepository: f.db})

	day, err := svc.ListSlotsForDate(context.Background(), "s1", time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, day.OccupancyUnavailable)
	assert.Len(t, day.Slots, 16)
	assert.Empty(t, busyTimes(day.Slots))
}

func TestGetBusySlotsUsesSalonDay(t *testing.T) {
	f := newFixture(t, BookingOptions{})
	ctx := context.Background()
	require.NoError(t, f.db.CreateAppointment(ctx, &models.Appointment{
		SalonID: "s1", ClientID: "c1", ServiceID: "x",
		ScheduledAt: time.Date(2030, 3, 4, 8, 0, 0, 0, time.UTC),
	}))

	svc := newAvailability(t, f, f.db)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	busy, err := svc.GetBusySlots(ctx, "s1", time.Date(2030, 3, 4, 0, 0, 0, 0, tokyo))
	require.NoError(t, err)
	assert.True(t, busy[models.MustParseTimeOfDay("17:00")])

	busy, err = svc.GetBusySlots(ctx, "s1", time.Date(2030, 3, 3, 0, 0, 0, 0, tokyo))
	require.NoError(t, err)
	assert.Empty(t, busy)
}
