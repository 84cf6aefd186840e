package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

const salonColumns = `id, name, timezone, open_time, close_time, interval_minutes,
    lunch_start, lunch_end, closed_weekdays, created_at, updated_at`

func scanSalon(row interface{ Scan(dest ...any) error }) (*models.Salon, error) {
	var (
		s                    models.Salon
		weekdays             string
		createdAt, updatedAt string
	)
	err := row.Scan(&s.ID, &s.Name, &s.Timezone,
		&s.Template.OpenTime, &s.Template.CloseTime, &s.Template.IntervalMinutes,
		&s.Template.LunchStart, &s.Template.LunchEnd, &weekdays, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.ClosedWeekdays = models.DecodeWeekdays(weekdays)
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) GetSalon(ctx context.Context, id string) (*models.Salon, error) {
	row := db.QueryRowContext(ctx, `SELECT `+salonColumns+` FROM salons WHERE id = ?`, id)
	salon, err := scanSalon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSalonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get salon %s: %w", id, err)
	}
	return salon, nil
}

func (db *DB) ListSalons(ctx context.Context) ([]*models.Salon, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+salonColumns+` FROM salons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list salons: %w", err)
	}
	defer rows.Close()

	var salons []*models.Salon
	for rows.Next() {
		s, err := scanSalon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salon: %w", err)
		}
		salons = append(salons, s)
	}
	return salons, rows.Err()
}

// UpsertSalon inserts the salon or overwrites its name, timezone and schedule.
func (db *DB) UpsertSalon(ctx context.Context, salon *models.Salon) error {
	now := time.Now().UTC()
	query := `INSERT INTO salons (` + salonColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                timezone = excluded.timezone,
                open_time = excluded.open_time,
                close_time = excluded.close_time,
                interval_minutes = excluded.interval_minutes,
                lunch_start = excluded.lunch_start,
                lunch_end = excluded.lunch_end,
                closed_weekdays = excluded.closed_weekdays,
                updated_at = excluded.updated_at`

	tz := salon.Timezone
	if tz == "" {
		tz = "UTC"
	}
	_, err := db.ExecContext(ctx, query,
		salon.ID, salon.Name, tz,
		salon.Template.OpenTime, salon.Template.CloseTime, salon.Template.IntervalMinutes,
		salon.Template.LunchStart, salon.Template.LunchEnd,
		models.EncodeWeekdays(salon.ClosedWeekdays),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert salon %s: %w", salon.ID, err)
	}
	salon.Timezone = tz
	salon.UpdatedAt = now
	if salon.CreatedAt.IsZero() {
		salon.CreatedAt = now
	}
	return nil
}

func (db *DB) UpdateSchedule(ctx context.Context, salonID string, tpl models.ScheduleTemplate, closedWeekdays []time.Weekday) error {
	query := `UPDATE salons SET open_time = ?, close_time = ?, interval_minutes = ?,
                lunch_start = ?, lunch_end = ?, closed_weekdays = ?, updated_at = ?
              WHERE id = ?`
	res, err := db.ExecContext(ctx, query,
		tpl.OpenTime, tpl.CloseTime, tpl.IntervalMinutes, tpl.LunchStart, tpl.LunchEnd,
		models.EncodeWeekdays(closedWeekdays), formatTime(time.Now()), salonID)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrSalonNotFound
	}
	return nil
}

func (db *DB) ListClosures(ctx context.Context, salonID string) ([]models.ClosurePeriod, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, salon_id, start_date, end_date, reason FROM closures WHERE salon_id = ? ORDER BY start_date`, salonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list closures: %w", err)
	}
	defer rows.Close()

	var closures []models.ClosurePeriod
	for rows.Next() {
		var (
			c          models.ClosurePeriod
			start, end string
		)
		if err := rows.Scan(&c.ID, &c.SalonID, &start, &end, &c.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan closure: %w", err)
		}
		if c.StartDate, err = time.Parse(models.DateLayout, start); err != nil {
			return nil, fmt.Errorf("failed to parse closure start: %w", err)
		}
		if c.EndDate, err = time.Parse(models.DateLayout, end); err != nil {
			return nil, fmt.Errorf("failed to parse closure end: %w", err)
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

// ReplaceClosures swaps the salon's closure list in one transaction.
func (db *DB) ReplaceClosures(ctx context.Context, salonID string, closures []models.ClosurePeriod) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM salons WHERE id = ?`, salonID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSalonNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check salon: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM closures WHERE salon_id = ?`, salonID); err != nil {
			return fmt.Errorf("failed to clear closures: %w", err)
		}

		for _, c := range closures {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO closures (salon_id, start_date, end_date, reason) VALUES (?, ?, ?, ?)`,
				salonID, c.StartDate.Format(models.DateLayout), c.EndDate.Format(models.DateLayout), c.Reason)
			if err != nil {
				return fmt.Errorf("failed to insert closure: %w", err)
			}
		}
		return nil
	})
}
