package domain

import (
	"context"
	"time"

	"salonbook/internal/models"
)

// SalonRepository reads and replaces salon schedules and closures.
type SalonRepository interface {
	GetSalon(ctx context.Context, id string) (*models.Salon, error)
	ListSalons(ctx context.Context) ([]*models.Salon, error)
	UpsertSalon(ctx context.Context, salon *models.Salon) error
	UpdateSchedule(ctx context.Context, salonID string, tpl models.ScheduleTemplate, closedWeekdays []time.Weekday) error
	ListClosures(ctx context.Context, salonID string) ([]models.ClosurePeriod, error)
	ReplaceClosures(ctx context.Context, salonID string, closures []models.ClosurePeriod) error
}

// AppointmentRepository is the appointment half of the Backend Data Service.
// Find* methods return (nil, nil) when nothing matches.
type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	SubmitAppointment(ctx context.Context, appt *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	FindPendingForClient(ctx context.Context, salonID, clientID string) (*models.Appointment, error)
	FindConfirmedAt(ctx context.Context, salonID string, scheduledAt time.Time) (*models.Appointment, error)
	ListAppointments(ctx context.Context, salonID string, from, to time.Time, statuses []models.Status) ([]*models.Appointment, error)
	ListClientAppointments(ctx context.Context, clientID string) ([]*models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, fromVersion int64, status models.Status) error
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error)
}

type SyncTaskRepository interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Repository is implemented by both the SQLite and the PostgreSQL stores.
type Repository interface {
	SalonRepository
	AppointmentRepository
	NotificationRepository
	SyncTaskRepository
	Close() error
}

type TemplateProvider interface {
	GetTemplateForDate(ctx context.Context, salonID string, date time.Time) (models.DaySchedule, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, eventType string, payload interface{}) error
}

// SubmissionLimiter throttles booking submissions per client.
type SubmissionLimiter interface {
	Allow(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error)
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, appt *models.Appointment) error
}

type JournalWriter interface {
	UpsertAppointment(ctx context.Context, appt *models.Appointment) error
}

type CalendarWriter interface {
	UpsertAppointmentEvent(ctx context.Context, appt *models.Appointment) error
	DeleteAppointmentEvent(ctx context.Context, appointmentID string) error
}
