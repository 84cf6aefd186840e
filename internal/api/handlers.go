package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/service"
)

const defaultNotificationLimit = 50

var transitionActions = map[string]models.Status{
	"confirm":  models.StatusConfirmed,
	"cancel":   models.StatusCancelled,
	"complete": models.StatusCompleted,
	"no-show":  models.StatusNoShow,
}

type scheduleRequest struct {
	Template       models.ScheduleTemplate `json:"template"`
	ClosedWeekdays []time.Weekday          `json:"closed_weekdays"`
}

type closureJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

type bookingRequest struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

func (s *HTTPServer) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, err := s.actors.FromHTTP(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return models.Actor{}, false
	}
	return actor, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func parseDateParam(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", domain.ErrInvalidRequest, name)
	}
	d, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q", domain.ErrInvalidRequest, name, raw)
	}
	return d, nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListSalons(w http.ResponseWriter, r *http.Request) {
	salons, err := s.svc.Salons.ListSalons(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"salons": salons})
}

func (s *HTTPServer) handleGetSalon(w http.ResponseWriter, r *http.Request) {
	salon, err := s.svc.Salons.GetSalon(r.Context(), r.PathValue("salonID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, salon)
}

func (s *HTTPServer) handleListSlots(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r.URL.Query().Get("date"), "date")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	day, err := s.svc.Availability.ListSlotsForDate(r.Context(), r.PathValue("salonID"), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *HTTPServer) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var body scheduleRequest
	if !decodeBody(w, r, &body) {
		return
	}

	salonID := r.PathValue("salonID")
	if err := s.svc.Salons.UpdateSchedule(r.Context(), actor, salonID, body.Template, body.ClosedWeekdays); err != nil {
		writeDomainError(w, err)
		return
	}

	salon, err := s.svc.Salons.GetSalon(r.Context(), salonID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, salon)
}

func (s *HTTPServer) handleListClosures(w http.ResponseWriter, r *http.Request) {
	closures, err := s.svc.Salons.ListClosures(r.Context(), r.PathValue("salonID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]closureJSON, 0, len(closures))
	for _, c := range closures {
		out = append(out, closureJSON{
			StartDate: c.StartDate.Format(models.DateLayout),
			EndDate:   c.EndDate.Format(models.DateLayout),
			Reason:    c.Reason,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"closures": out})
}

func (s *HTTPServer) handleReplaceClosures(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Closures []closureJSON `json:"closures"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	salonID := r.PathValue("salonID")
	closures := make([]models.ClosurePeriod, 0, len(body.Closures))
	for _, c := range body.Closures {
		start, err := parseDateParam(c.StartDate, "start_date")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		end, err := parseDateParam(c.EndDate, "end_date")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		closures = append(closures, models.ClosurePeriod{SalonID: salonID, StartDate: start, EndDate: end, Reason: c.Reason})
	}

	if err := s.svc.Salons.ReplaceClosures(r.Context(), actor, salonID, closures); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closures": body.Closures})
}

// salonRange reads the from/to query dates as whole days in the salon's timezone.
func (s *HTTPServer) salonRange(r *http.Request, salonID string) (time.Time, time.Time, error) {
	from, err := parseDateParam(r.URL.Query().Get("from"), "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDateParam(r.URL.Query().Get("to"), "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", domain.ErrInvalidRequest)
	}

	salon, err := s.svc.Salons.GetSalon(r.Context(), salonID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	loc := salon.Location(nil)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := models.EndOfDay(time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc), loc)
	return start, end, nil
}

func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	salonID := r.PathValue("salonID")
	if !actor.Manages(salonID) {
		writeDomainError(w, domain.ErrForbidden)
		return
	}
	from, to, err := s.salonRange(r, salonID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var statuses []models.Status
	for _, raw := range splitCSV(r.URL.Query().Get("status")) {
		st, ok := models.ParseStatus(raw)
		if !ok {
			writeDomainError(w, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, raw))
			return
		}
		statuses = append(statuses, st)
	}

	appts, err := s.svc.Booking.ListAppointments(r.Context(), actor, salonID, from, to, statuses)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotFound, "not_found", "export is not configured")
		return
	}

	salonID := r.PathValue("salonID")
	if !actor.Manages(salonID) {
		writeDomainError(w, domain.ErrForbidden)
		return
	}
	from, to, err := s.salonRange(r, salonID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	path, err := s.svc.Exporter.Export(r.Context(), salonID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.log.Error().Err(err).Str("file_path", path).Msg("open export")
		writeDomainError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.log.Warn().Err(err).Str("file_path", path).Msg("write export")
	}
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if actor.IsManager() {
		writeDomainError(w, fmt.Errorf("%w: bookings are submitted by clients", domain.ErrForbidden))
		return
	}
	var body bookingRequest
	if !decodeBody(w, r, &body) {
		return
	}

	appt, err := s.svc.Booking.Submit(r.Context(), service.BookingRequest{
		ClientID:  actor.ID,
		SalonID:   r.PathValue("salonID"),
		ServiceID: body.ServiceID,
		Date:      body.Date,
		Time:      body.Time,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	appt, err := s.svc.Booking.GetAppointment(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	target, known := transitionActions[r.PathValue("action")]
	if !known {
		writeError(w, http.StatusNotFound, "not_found", "unknown action")
		return
	}
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	appt, err := s.svc.Booking.Transition(r.Context(), actor, r.PathValue("id"), target)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *HTTPServer) handleMyAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	appts, err := s.svc.Booking.ListClientAppointments(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	limit := defaultNotificationLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeDomainError(w, fmt.Errorf("%w: invalid limit %q", domain.ErrInvalidRequest, raw))
			return
		}
		limit = n
	}

	list, err := s.svc.Booking.ListNotifications(r.Context(), actor, r.URL.Query().Get("salon_id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}
