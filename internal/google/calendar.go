package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultEventDuration = 30 * time.Minute

var _ domain.CalendarWriter = (*CalendarService)(nil)

// CalendarService keeps one calendar event per confirmed appointment.
type CalendarService struct {
	service    *calendar.Service
	calendarID string
	duration   time.Duration
}

func NewCalendarService(ctx context.Context, credentialsFile, calendarID string) (*CalendarService, error) {
	client, err := newHTTPClient(ctx, credentialsFile, calendar.CalendarEventsScope)
	if err != nil {
		return nil, err
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return newCalendarService(srv, calendarID), nil
}

func newCalendarService(srv *calendar.Service, calendarID string) *CalendarService {
	return &CalendarService{service: srv, calendarID: calendarID, duration: defaultEventDuration}
}

// EventID derives a stable calendar event id from an appointment id. Event
// ids only allow the characters a-v and 0-9.
func EventID(appointmentID string) string {
	var b strings.Builder
	b.WriteString("appt")
	for _, r := range strings.ToLower(appointmentID) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'v') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *CalendarService) event(appt *models.Appointment) *calendar.Event {
	start := appt.ScheduledAt.UTC()
	return &calendar.Event{
		Id:          EventID(appt.ID),
		Summary:     fmt.Sprintf("%s: %s", appt.ServiceID, appt.ClientID),
		Description: fmt.Sprintf("Appointment %s at salon %s", appt.ID, appt.SalonID),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: start.Add(s.duration).Format(time.RFC3339), TimeZone: "UTC"},
	}
}

// UpsertAppointmentEvent updates the appointment's event or inserts it.
func (s *CalendarService) UpsertAppointmentEvent(ctx context.Context, appt *models.Appointment) error {
	if appt == nil {
		return errors.New("appointment is nil")
	}

	ev := s.event(appt)
	_, err := s.service.Events.Update(s.calendarID, ev.Id, ev).Context(ctx).Do()
	if err == nil {
		return nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("update calendar event: %w", err)
	}

	if _, err := s.service.Events.Insert(s.calendarID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	return nil
}

// DeleteAppointmentEvent removes the event; a missing event is not an error.
func (s *CalendarService) DeleteAppointmentEvent(ctx context.Context, appointmentID string) error {
	err := s.service.Events.Delete(s.calendarID, EventID(appointmentID)).Context(ctx).Do()
	if err != nil && !isStatus(err, http.StatusNotFound) && !isStatus(err, http.StatusGone) {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
