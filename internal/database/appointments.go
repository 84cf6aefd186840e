package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/google/uuid"
)

var _ domain.Repository = (*DB)(nil)

const appointmentColumns = `id, salon_id, client_id, service_id, scheduled_at, status, created_at, updated_at, version`

func scanAppointment(row interface{ Scan(dest ...any) error }) (*models.Appointment, error) {
	var (
		a                                 models.Appointment
		status                            string
		scheduledAt, createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.SalonID, &a.ClientID, &a.ServiceID,
		&scheduledAt, &status, &createdAt, &updatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	a.Status = models.Status(status)
	if a.ScheduledAt, err = parseTime(scheduledAt); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAppointments(rows *sql.Rows) ([]*models.Appointment, error) {
	defer rows.Close()

	var out []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func insertAppointment(ctx context.Context, q querier, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}
	now := time.Now().UTC()
	appt.ScheduledAt = appt.ScheduledAt.UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt.Version = 1

	query := `INSERT INTO appointments (` + appointmentColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query,
		appt.ID, appt.SalonID, appt.ClientID, appt.ServiceID,
		formatTime(appt.ScheduledAt), string(appt.Status),
		formatTime(now), formatTime(now), appt.Version)
	if err != nil {
		if isConstraintViolation(err) && appt.Status == models.StatusConfirmed {
			return domain.ErrSlotAlreadyConfirmed
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func findPendingForClient(ctx context.Context, q querier, salonID, clientID string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE salon_id = ? AND client_id = ? AND status = ?
              ORDER BY created_at LIMIT 1`
	a, err := scanAppointment(q.QueryRowContext(ctx, query, salonID, clientID, string(models.StatusPending)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending appointment: %w", err)
	}
	return a, nil
}

func findConfirmedAt(ctx context.Context, q querier, salonID string, scheduledAt time.Time) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE salon_id = ? AND scheduled_at = ? AND status = ?
              LIMIT 1`
	a, err := scanAppointment(q.QueryRowContext(ctx, query, salonID, formatTime(scheduledAt), string(models.StatusConfirmed)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find confirmed appointment: %w", err)
	}
	return a, nil
}

func (db *DB) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	return insertAppointment(ctx, db, appt)
}

// SubmitAppointment runs the duplicate-request check, the confirmed-slot
// check and the insert inside a single transaction.
func (db *DB) SubmitAppointment(ctx context.Context, appt *models.Appointment) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		pending, err := findPendingForClient(ctx, tx, appt.SalonID, appt.ClientID)
		if err != nil {
			return err
		}
		if pending != nil {
			return domain.ErrDuplicatePendingRequest
		}

		confirmed, err := findConfirmedAt(ctx, tx, appt.SalonID, appt.ScheduledAt)
		if err != nil {
			return err
		}
		if confirmed != nil {
			return domain.ErrSlotAlreadyConfirmed
		}

		return insertAppointment(ctx, tx, appt)
	})
}

func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

func (db *DB) FindPendingForClient(ctx context.Context, salonID, clientID string) (*models.Appointment, error) {
	return findPendingForClient(ctx, db, salonID, clientID)
}

func (db *DB) FindConfirmedAt(ctx context.Context, salonID string, scheduledAt time.Time) (*models.Appointment, error) {
	return findConfirmedAt(ctx, db, salonID, scheduledAt)
}

// ListAppointments returns the salon's appointments scheduled within
// [from, to], optionally restricted to statuses.
func (db *DB) ListAppointments(ctx context.Context, salonID string, from, to time.Time, statuses []models.Status) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE salon_id = ? AND scheduled_at >= ? AND scheduled_at <= ?`
	args := []any{salonID, formatTime(from), formatTime(to)}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY scheduled_at, created_at`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return scanAppointments(rows)
}

func (db *DB) ListClientAppointments(ctx context.Context, clientID string) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE client_id = ? ORDER BY scheduled_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client appointments: %w", err)
	}
	return scanAppointments(rows)
}

// UpdateAppointmentStatus moves the appointment to status if it is still at
// fromVersion. A second confirmed appointment for the same slot is rejected
// by the partial unique index.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id string, fromVersion int64, status models.Status) error {
	query := `UPDATE appointments
              SET status = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ?`
	res, err := db.ExecContext(ctx, query, string(status), formatTime(time.Now()), id, fromVersion)
	if err != nil {
		if isConstraintViolation(err) {
			return domain.ErrRaceLostAtConfirm
		}
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM appointments WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAppointmentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check appointment: %w", err)
	}
	return domain.ErrConcurrentModification
}
