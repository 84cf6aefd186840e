package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/jackc/pgx/v5"
)

const salonColumns = `id, name, timezone, open_time, close_time, interval_minutes,
	lunch_start, lunch_end, closed_weekdays, created_at, updated_at`

func scanSalon(row pgx.Row) (*models.Salon, error) {
	var (
		s        models.Salon
		weekdays string
	)
	err := row.Scan(&s.ID, &s.Name, &s.Timezone,
		&s.Template.OpenTime, &s.Template.CloseTime, &s.Template.IntervalMinutes,
		&s.Template.LunchStart, &s.Template.LunchEnd, &weekdays, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.ClosedWeekdays = models.DecodeWeekdays(weekdays)
	return &s, nil
}

func (s *Store) GetSalon(ctx context.Context, id string) (*models.Salon, error) {
	salon, err := scanSalon(s.pool.QueryRow(ctx, `SELECT `+salonColumns+` FROM salons WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSalonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get salon %s: %w", id, err)
	}
	return salon, nil
}

func (s *Store) ListSalons(ctx context.Context) ([]*models.Salon, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+salonColumns+` FROM salons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list salons: %w", err)
	}
	defer rows.Close()

	var salons []*models.Salon
	for rows.Next() {
		salon, err := scanSalon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salon: %w", err)
		}
		salons = append(salons, salon)
	}
	return salons, rows.Err()
}

func (s *Store) UpsertSalon(ctx context.Context, salon *models.Salon) error {
	tz := salon.Timezone
	if tz == "" {
		tz = "UTC"
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO salons (id, name, timezone, open_time, close_time, interval_minutes,
			lunch_start, lunch_end, closed_weekdays)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			open_time = EXCLUDED.open_time,
			close_time = EXCLUDED.close_time,
			interval_minutes = EXCLUDED.interval_minutes,
			lunch_start = EXCLUDED.lunch_start,
			lunch_end = EXCLUDED.lunch_end,
			closed_weekdays = EXCLUDED.closed_weekdays,
			updated_at = now()
		RETURNING created_at, updated_at
	`, salon.ID, salon.Name, tz,
		salon.Template.OpenTime, salon.Template.CloseTime, salon.Template.IntervalMinutes,
		salon.Template.LunchStart, salon.Template.LunchEnd,
		models.EncodeWeekdays(salon.ClosedWeekdays),
	).Scan(&salon.CreatedAt, &salon.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert salon %s: %w", salon.ID, err)
	}
	salon.Timezone = tz
	return nil
}

func (s *Store) UpdateSchedule(ctx context.Context, salonID string, tpl models.ScheduleTemplate, closedWeekdays []time.Weekday) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE salons SET open_time = $2, close_time = $3, interval_minutes = $4,
			lunch_start = $5, lunch_end = $6, closed_weekdays = $7, updated_at = now()
		WHERE id = $1
	`, salonID, tpl.OpenTime, tpl.CloseTime, tpl.IntervalMinutes, tpl.LunchStart, tpl.LunchEnd,
		models.EncodeWeekdays(closedWeekdays))
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSalonNotFound
	}
	return nil
}

func (s *Store) ListClosures(ctx context.Context, salonID string) ([]models.ClosurePeriod, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, salon_id, start_date, end_date, reason
		FROM closures WHERE salon_id = $1 ORDER BY start_date
	`, salonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list closures: %w", err)
	}
	defer rows.Close()

	var closures []models.ClosurePeriod
	for rows.Next() {
		var c models.ClosurePeriod
		if err := rows.Scan(&c.ID, &c.SalonID, &c.StartDate, &c.EndDate, &c.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan closure: %w", err)
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

func (s *Store) ReplaceClosures(ctx context.Context, salonID string, closures []models.ClosurePeriod) error {
	return s.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT true FROM salons WHERE id = $1 FOR UPDATE`, salonID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSalonNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock salon: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM closures WHERE salon_id = $1`, salonID); err != nil {
			return fmt.Errorf("failed to clear closures: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range closures {
			batch.Queue(`INSERT INTO closures (salon_id, start_date, end_date, reason) VALUES ($1, $2, $3, $4)`,
				salonID, c.StartDate.Format(models.DateLayout), c.EndDate.Format(models.DateLayout), c.Reason)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert closures: %w", err)
		}
		return nil
	})
}
