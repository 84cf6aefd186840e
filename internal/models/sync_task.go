package models

import "time"

// SyncTask is a queued mirror job for the appointment journal or calendar.
type SyncTask struct {
	ID            int64      `json:"id"`
	TaskType      string     `json:"task_type"`
	AppointmentID string     `json:"appointment_id"`
	Payload       string     `json:"payload"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	LastError     *string    `json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at"`
	NextRetryAt   *time.Time `json:"next_retry_at"`
}

const (
	SyncTaskJournalUpsert  = "journal_upsert"
	SyncTaskCalendarUpsert = "calendar_upsert"
	SyncTaskCalendarDelete = "calendar_delete"
)
