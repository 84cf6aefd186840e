package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, salon_id, client_id, service_id, scheduled_at, status, created_at, updated_at, version`

// queryer is satisfied by *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var (
		a      models.Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.SalonID, &a.ClientID, &a.ServiceID,
		&a.ScheduledAt, &status, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	a.Status = models.Status(status)
	a.ScheduledAt = a.ScheduledAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]*models.Appointment, error) {
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

func insertAppointment(ctx context.Context, q queryer, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}
	appt.ScheduledAt = appt.ScheduledAt.UTC()

	err := q.QueryRow(ctx, `
		INSERT INTO appointments (id, salon_id, client_id, service_id, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at, version
	`, appt.ID, appt.SalonID, appt.ClientID, appt.ServiceID, appt.ScheduledAt, string(appt.Status),
	).Scan(&appt.CreatedAt, &appt.UpdatedAt, &appt.Version)
	if err != nil {
		if pgCode(err) == codeUniqueViolation && appt.Status == models.StatusConfirmed {
			return domain.ErrSlotAlreadyConfirmed
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	appt.CreatedAt = appt.CreatedAt.UTC()
	appt.UpdatedAt = appt.UpdatedAt.UTC()
	return nil
}

func findPendingForClient(ctx context.Context, q queryer, salonID, clientID string) (*models.Appointment, error) {
	a, err := scanAppointment(q.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE salon_id = $1 AND client_id = $2 AND status = $3
		ORDER BY created_at LIMIT 1
	`, salonID, clientID, string(models.StatusPending)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending appointment: %w", err)
	}
	return a, nil
}

func findConfirmedAt(ctx context.Context, q queryer, salonID string, scheduledAt time.Time) (*models.Appointment, error) {
	a, err := scanAppointment(q.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE salon_id = $1 AND scheduled_at = $2 AND status = $3
		LIMIT 1
	`, salonID, scheduledAt.UTC(), string(models.StatusConfirmed)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find confirmed appointment: %w", err)
	}
	return a, nil
}

func (s *Store) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	return insertAppointment(ctx, s.pool, appt)
}

// SubmitAppointment performs the duplicate and confirmed-slot checks and the
// insert in one SERIALIZABLE transaction. A serialization failure surfaces
// as domain.ErrConcurrentModification.
func (s *Store) SubmitAppointment(ctx context.Context, appt *models.Appointment) error {
	return s.withTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
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

func (s *Store) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

func (s *Store) FindPendingForClient(ctx context.Context, salonID, clientID string) (*models.Appointment, error) {
	return findPendingForClient(ctx, s.pool, salonID, clientID)
}

func (s *Store) FindConfirmedAt(ctx context.Context, salonID string, scheduledAt time.Time) (*models.Appointment, error) {
	return findConfirmedAt(ctx, s.pool, salonID, scheduledAt)
}

func (s *Store) ListAppointments(ctx context.Context, salonID string, from, to time.Time, statuses []models.Status) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE salon_id = $1 AND scheduled_at >= $2 AND scheduled_at <= $3`
	args := []any{salonID, from.UTC(), to.UTC()}

	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		args = append(args, names)
		query += ` AND status = ANY($4)`
	}
	query += ` ORDER BY scheduled_at, created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (s *Store) ListClientAppointments(ctx context.Context, clientID string) ([]*models.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE client_id = $1 ORDER BY scheduled_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id string, fromVersion int64, status models.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now(), version = version + 1
		WHERE id = $1 AND version = $2
	`, id, fromVersion, string(status))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return domain.ErrRaceLostAtConfirm
		}
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT true FROM appointments WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAppointmentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check appointment: %w", err)
	}
	return domain.ErrConcurrentModification
}
