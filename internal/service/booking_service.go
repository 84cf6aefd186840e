package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/slots"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const notificationTimeLayout = "2006-01-02 15:04 MST"

type BookingOptions struct {
	// Serializable makes Submit check and insert inside one store transaction.
	Serializable     bool
	MaxAdvanceDays   int
	SubmitRateLimit  int
	SubmitRateWindow time.Duration
}

// BookingRequest is a client's request for one slot. Date is YYYY-MM-DD and
// Time is HH:MM, both read in the salon's timezone.
type BookingRequest struct {
	ClientID  string `json:"client_id"`
	SalonID   string `json:"salon_id"`
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

type BookingService struct {
	repo       domain.Repository
	templates  domain.TemplateProvider
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	limiter    domain.SubmissionLimiter
	opts       BookingOptions
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewBookingService(
	repo domain.Repository,
	templates domain.TemplateProvider,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	limiter domain.SubmissionLimiter,
	opts BookingOptions,
	logger *zerolog.Logger,
) *BookingService {
	if opts.MaxAdvanceDays < 0 {
		opts.MaxAdvanceDays = 0
	}
	if opts.SubmitRateWindow <= 0 {
		opts.SubmitRateWindow = time.Minute
	}
	return &BookingService{
		repo:       repo,
		templates:  templates,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		limiter:    limiter,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Submit records a pending appointment for req. The client may hold at most
// one pending request per salon and the slot must not be confirmed for
// anyone. Pending requests from other clients do not block it.
func (s *BookingService) Submit(ctx context.Context, req BookingRequest) (appt *models.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.Submit", trace.WithAttributes(
		attribute.String("salon.id", req.SalonID),
		attribute.String("client.id", req.ClientID),
	))
	defer func() { endSpan(span, err) }()

	appt, err = s.submit(ctx, req)
	if err != nil {
		metrics.IncSubmission(domain.Code(err))
		s.logger.Info().Err(err).Str("salon_id", req.SalonID).Str("client_id", req.ClientID).
			Str("date", req.Date).Str("time", req.Time).Msg("booking request rejected")
		return nil, err
	}
	metrics.IncSubmission("created")

	actor := models.Actor{ID: req.ClientID, Role: models.RoleClient}
	s.publishEvent(ctx, events.EventAppointmentRequested, appt, "", actor)
	s.notify(ctx, models.SalonInbox(appt.SalonID), appt, events.EventAppointmentRequested,
		fmt.Sprintf("New booking request from client %s for %s", appt.ClientID, formatWhen(appt.ScheduledAt)))
	s.enqueueSync(ctx, models.SyncTaskJournalUpsert, appt)

	s.logger.Info().Str("appointment_id", appt.ID).Str("salon_id", appt.SalonID).
		Str("client_id", appt.ClientID).Time("scheduled_at", appt.ScheduledAt).Msg("appointment requested")
	return appt, nil
}

func (s *BookingService) submit(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.SalonID = strings.TrimSpace(req.SalonID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)

	switch {
	case req.ClientID == "":
		return nil, fmt.Errorf("%w: client_id is required", domain.ErrInvalidRequest)
	case req.SalonID == "":
		return nil, fmt.Errorf("%w: salon_id is required", domain.ErrInvalidRequest)
	case req.ServiceID == "":
		return nil, fmt.Errorf("%w: service_id is required", domain.ErrInvalidRequest)
	}

	date, err := time.Parse(models.DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return nil, fmt.Errorf("%w: date: %v", domain.ErrInvalidRequest, err)
	}
	tod, err := models.ParseTimeOfDay(req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: time: %v", domain.ErrInvalidRequest, err)
	}

	if err := s.checkRate(ctx, req.ClientID); err != nil {
		return nil, err
	}

	day, err := s.templates.GetTemplateForDate(ctx, req.SalonID, date)
	if err != nil {
		return nil, err
	}
	if day.Closed {
		return nil, fmt.Errorf("%w: %s", domain.ErrSalonClosed, day.ClosedReason)
	}

	now := s.now()
	scheduledAt := slots.Compose(day.Date, tod)
	if !scheduledAt.After(now) {
		return nil, domain.ErrSlotInPast
	}
	if !slots.Contains(slots.Grid(day.Template), tod) {
		return nil, domain.ErrSlotNotOffered
	}
	if s.opts.MaxAdvanceDays > 0 {
		lastDay := models.StartOfDay(now, day.Location()).AddDate(0, 0, s.opts.MaxAdvanceDays)
		if day.Date.After(lastDay) {
			return nil, domain.ErrDateTooFar
		}
	}

	appt := &models.Appointment{
		SalonID:     req.SalonID,
		ClientID:    req.ClientID,
		ServiceID:   req.ServiceID,
		ScheduledAt: scheduledAt.UTC(),
		Status:      models.StatusPending,
	}

	if s.opts.Serializable {
		if err := s.repo.SubmitAppointment(ctx, appt); err != nil {
			return nil, domain.Backend("submit appointment", err)
		}
		return appt, nil
	}

	pending, err := s.repo.FindPendingForClient(ctx, req.SalonID, req.ClientID)
	if err != nil {
		return nil, domain.Backend("find pending request", err)
	}
	if pending != nil {
		return nil, domain.ErrDuplicatePendingRequest
	}

	confirmed, err := s.repo.FindConfirmedAt(ctx, req.SalonID, appt.ScheduledAt)
	if err != nil {
		return nil, domain.Backend("find confirmed appointment", err)
	}
	if confirmed != nil {
		return nil, domain.ErrSlotAlreadyConfirmed
	}

	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		return nil, domain.Backend("create appointment", err)
	}
	return appt, nil
}

// checkRate fails open when the limiter itself errors.
func (s *BookingService) checkRate(ctx context.Context, clientID string) error {
	if s.limiter == nil || s.opts.SubmitRateLimit <= 0 {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, clientID, s.opts.SubmitRateLimit, s.opts.SubmitRateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("client_id", clientID).Msg("submission limiter unavailable")
		return nil
	}
	if !allowed {
		return domain.ErrTooManyRequests
	}
	return nil
}

func (s *BookingService) Confirm(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return s.Transition(ctx, actor, id, models.StatusConfirmed)
}

func (s *BookingService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return s.Transition(ctx, actor, id, models.StatusCancelled)
}

func (s *BookingService) Complete(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return s.Transition(ctx, actor, id, models.StatusCompleted)
}

func (s *BookingService) MarkNoShow(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return s.Transition(ctx, actor, id, models.StatusNoShow)
}

// Transition moves appointment id to target on behalf of actor. The update
// is conditional on the version read here, so two racing transitions never
// both succeed.
func (s *BookingService) Transition(ctx context.Context, actor models.Actor, id string, target models.Status) (appt *models.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.Transition", trace.WithAttributes(
		attribute.String("appointment.id", id),
		attribute.String("status.target", string(target)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer func() { endSpan(span, err) }()

	var prev models.Status
	appt, prev, err = s.transition(ctx, actor, id, target)
	if err != nil {
		metrics.IncTransition(string(target), domain.Code(err))
		s.logger.Info().Err(err).Str("appointment_id", id).Str("target", string(target)).
			Str("actor_id", actor.ID).Msg("status transition rejected")
		return nil, err
	}
	metrics.IncTransition(string(target), "ok")

	s.afterTransition(ctx, actor, appt, prev)

	s.logger.Info().Str("appointment_id", appt.ID).Str("from", string(prev)).Str("to", string(target)).
		Str("actor_id", actor.ID).Msg("appointment status changed")
	return appt, nil
}

func (s *BookingService) transition(ctx context.Context, actor models.Actor, id string, target models.Status) (*models.Appointment, models.Status, error) {
	if !target.Valid() {
		return nil, "", fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, target)
	}

	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, "", domain.Backend("get appointment", err)
	}

	if err := authorize(actor, appt, target); err != nil {
		return nil, "", err
	}

	prev := appt.Status
	if !prev.CanTransitionTo(target) {
		if target == models.StatusConfirmed && prev == models.StatusCancelled {
			return nil, "", domain.ErrAppointmentWithdrawn
		}
		return nil, "", fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, prev, target)
	}

	now := s.now()
	if target == models.StatusCancelled && !actor.IsManager() &&
		prev == models.StatusConfirmed && !appt.ScheduledAt.After(now) {
		return nil, "", domain.ErrCancelTooLate
	}

	if target == models.StatusConfirmed {
		holder, err := s.repo.FindConfirmedAt(ctx, appt.SalonID, appt.ScheduledAt)
		if err != nil {
			return nil, "", domain.Backend("find confirmed appointment", err)
		}
		if holder != nil && holder.ID != appt.ID {
			return nil, "", domain.ErrRaceLostAtConfirm
		}
	}

	if err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Version, target); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, "", s.explainConflict(ctx, appt.ID, target)
		}
		return nil, "", domain.Backend("update appointment status", err)
	}

	appt.Status = target
	appt.Version++
	appt.UpdatedAt = now.UTC()
	return appt, prev, nil
}

// explainConflict re-reads an appointment whose versioned update lost and
// reports a withdrawal when the client cancelled it first.
func (s *BookingService) explainConflict(ctx context.Context, id string, target models.Status) error {
	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return domain.ErrConcurrentModification
	}
	if target == models.StatusConfirmed && current.Status == models.StatusCancelled {
		return domain.ErrAppointmentWithdrawn
	}
	return domain.ErrConcurrentModification
}

func authorize(actor models.Actor, appt *models.Appointment, target models.Status) error {
	if strings.TrimSpace(actor.ID) == "" {
		return domain.ErrForbidden
	}
	if actor.IsManager() {
		if !actor.Manages(appt.SalonID) {
			return domain.ErrForbidden
		}
		return nil
	}
	if target.RequiresManager() || actor.ID != appt.ClientID {
		return domain.ErrForbidden
	}
	return nil
}

func (s *BookingService) afterTransition(ctx context.Context, actor models.Actor, appt *models.Appointment, prev models.Status) {
	when := formatWhen(appt.ScheduledAt)

	switch appt.Status {
	case models.StatusConfirmed:
		s.publishEvent(ctx, events.EventAppointmentConfirmed, appt, prev, actor)
		s.notify(ctx, appt.ClientID, appt, events.EventAppointmentConfirmed,
			fmt.Sprintf("Your appointment on %s is confirmed", when))
		s.enqueueSync(ctx, models.SyncTaskCalendarUpsert, appt)

	case models.StatusCancelled:
		s.publishEvent(ctx, events.EventAppointmentCancelled, appt, prev, actor)
		if actor.IsManager() {
			s.notify(ctx, appt.ClientID, appt, events.EventAppointmentCancelled,
				fmt.Sprintf("Your appointment on %s was cancelled by the salon", when))
		} else {
			s.notify(ctx, models.SalonInbox(appt.SalonID), appt, events.EventAppointmentCancelled,
				fmt.Sprintf("Client %s cancelled the appointment on %s", appt.ClientID, when))
		}
		if prev == models.StatusConfirmed {
			s.enqueueSync(ctx, models.SyncTaskCalendarDelete, appt)
		}

	case models.StatusCompleted:
		s.publishEvent(ctx, events.EventAppointmentCompleted, appt, prev, actor)
		s.notify(ctx, appt.ClientID, appt, events.EventAppointmentCompleted,
			fmt.Sprintf("Thank you for visiting on %s", when))

	case models.StatusNoShow:
		s.publishEvent(ctx, events.EventAppointmentNoShow, appt, prev, actor)
		s.notify(ctx, appt.ClientID, appt, events.EventAppointmentNoShow,
			fmt.Sprintf("You missed your appointment on %s", when))
	}

	s.enqueueSync(ctx, models.SyncTaskJournalUpsert, appt)
}

// GetAppointment returns the appointment to its client or to a manager of its salon.
func (s *BookingService) GetAppointment(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, domain.Backend("get appointment", err)
	}
	if actor.Manages(appt.SalonID) || (!actor.IsManager() && actor.ID != "" && actor.ID == appt.ClientID) {
		return appt, nil
	}
	return nil, domain.ErrForbidden
}

// ListAppointments returns a salon's appointments scheduled in [from, to].
func (s *BookingService) ListAppointments(ctx context.Context, actor models.Actor, salonID string, from, to time.Time, statuses []models.Status) ([]*models.Appointment, error) {
	if !actor.Manages(salonID) {
		return nil, domain.ErrForbidden
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, st)
		}
	}
	appts, err := s.repo.ListAppointments(ctx, salonID, from, to, statuses)
	if err != nil {
		return nil, domain.Backend("list appointments", err)
	}
	return appts, nil
}

func (s *BookingService) ListClientAppointments(ctx context.Context, actor models.Actor) ([]*models.Appointment, error) {
	if actor.ID == "" || actor.IsManager() {
		return nil, domain.ErrForbidden
	}
	appts, err := s.repo.ListClientAppointments(ctx, actor.ID)
	if err != nil {
		return nil, domain.Backend("list client appointments", err)
	}
	return appts, nil
}

// ListNotifications returns the actor's inbox, or a salon inbox when
// salonID is set and the actor manages that salon.
func (s *BookingService) ListNotifications(ctx context.Context, actor models.Actor, salonID string, limit int) ([]*models.Notification, error) {
	recipient := actor.ID
	if salonID != "" {
		if !actor.Manages(salonID) {
			return nil, domain.ErrForbidden
		}
		recipient = models.SalonInbox(salonID)
	}
	if recipient == "" {
		return nil, domain.ErrForbidden
	}
	list, err := s.repo.ListNotifications(ctx, recipient, limit)
	if err != nil {
		return nil, domain.Backend("list notifications", err)
	}
	return list, nil
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, appt *models.Appointment, prev models.Status, actor models.Actor) {
	if s.eventBus == nil {
		return
	}

	payload := events.AppointmentEventPayload{
		AppointmentID: appt.ID,
		SalonID:       appt.SalonID,
		ClientID:      appt.ClientID,
		ServiceID:     appt.ServiceID,
		ScheduledAt:   appt.ScheduledAt,
		Status:        string(appt.Status),
		PrevStatus:    string(prev),
		Version:       appt.Version,
		ChangedBy:     actor.ID,
		ChangedByRole: string(actor.Role),
	}

	if err := s.eventBus.PublishJSON(ctx, eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appt.ID).Msg("publish event error")
	}
}

func (s *BookingService) notify(ctx context.Context, recipient string, appt *models.Appointment, kind, message string) {
	n := &models.Notification{
		RecipientID:   recipient,
		AppointmentID: appt.ID,
		Kind:          kind,
		Message:       message,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.logger.Error().Err(err).Str("recipient", recipient).Str("appointment_id", appt.ID).Msg("notification error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, appt *models.Appointment) {
	if s.syncWorker == nil {
		return
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, appt); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Str("task", taskType).Msg("sync enqueue error")
	}
}

func formatWhen(t time.Time) string {
	return t.UTC().Format(notificationTimeLayout)
}
