package service

import (
	"context"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/slots"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DaySlots is the availability grid of one salon day.
type DaySlots struct {
	SalonID      string        `json:"salon_id"`
	Date         string        `json:"date"`
	Closed       bool          `json:"closed"`
	ClosedReason string        `json:"closed_reason,omitempty"`
	Slots        []models.Slot `json:"slots"`
	// OccupancyUnavailable is set when busy slots could not be loaded and
	// every slot is shown as free.
	OccupancyUnavailable bool `json:"occupancy_unavailable,omitempty"`
}

type AvailabilityService struct {
	templates    domain.TemplateProvider
	appointments domain.AppointmentRepository
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewAvailabilityService(templates domain.TemplateProvider, appointments domain.AppointmentRepository, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		templates:    templates,
		appointments: appointments,
		logger:       logger,
		now:          time.Now,
	}
}

// ListSlotsForDate returns the day's bookable slots tagged busy or free.
// Only the calendar fields of date are used. Unknown salons yield
// domain.ErrSalonNotFound and callers should show no slots.
func (s *AvailabilityService) ListSlotsForDate(ctx context.Context, salonID string, date time.Time) (result *DaySlots, err error) {
	ctx, span := tracer.Start(ctx, "AvailabilityService.ListSlotsForDate", trace.WithAttributes(
		attribute.String("salon.id", salonID),
		attribute.String("date", date.Format(models.DateLayout)),
	))
	defer func() { endSpan(span, err) }()

	started := time.Now()
	defer func() { metrics.ObserveSlotList(time.Since(started).Seconds()) }()

	day, err := s.templates.GetTemplateForDate(ctx, salonID, date)
	if err != nil {
		return nil, err
	}

	result = &DaySlots{
		SalonID:      salonID,
		Date:         day.Date.Format(models.DateLayout),
		Closed:       day.Closed,
		ClosedReason: day.ClosedReason,
		Slots:        []models.Slot{},
	}
	if day.Closed {
		return result, nil
	}

	times := slots.Generate(day, s.now())
	if len(times) == 0 {
		return result, nil
	}

	busy, err := s.GetBusySlots(ctx, salonID, day.Date)
	if err != nil {
		s.logger.Warn().Err(err).Str("salon_id", salonID).Str("date", result.Date).
			Msg("occupancy unavailable, showing all slots as free")
		metrics.IncOccupancyFailure()
		span.AddEvent("occupancy unavailable")
		result.OccupancyUnavailable = true
		busy = nil
	}

	result.Slots = slots.Mark(times, busy)
	span.SetAttributes(attribute.Int("slots.count", len(result.Slots)))
	return result, nil
}

// GetBusySlots returns the times of day on day's calendar date (read in
// day's location) taken by pending, confirmed or completed appointments.
func (s *AvailabilityService) GetBusySlots(ctx context.Context, salonID string, day time.Time) (map[models.TimeOfDay]bool, error) {
	loc := day.Location()
	from := models.StartOfDay(day, loc)
	to := models.EndOfDay(day, loc)

	appts, err := s.appointments.ListAppointments(ctx, salonID, from, to, models.OccupyingStatuses)
	if err != nil {
		return nil, domain.Backend("list appointments", err)
	}

	busy := make(map[models.TimeOfDay]bool, len(appts))
	for _, a := range appts {
		if !a.Status.Occupies() {
			continue
		}
		busy[models.TimeOfDayOf(a.ScheduledAt.In(loc))] = true
	}
	return busy, nil
}
