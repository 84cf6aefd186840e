package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS salons (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	open_time TEXT NOT NULL,
	close_time TEXT NOT NULL,
	interval_minutes INTEGER NOT NULL,
	lunch_start TEXT NOT NULL DEFAULT '',
	lunch_end TEXT NOT NULL DEFAULT '',
	closed_weekdays TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS closures (
	id BIGSERIAL PRIMARY KEY,
	salon_id TEXT NOT NULL REFERENCES salons(id) ON DELETE CASCADE,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS appointments (
	id TEXT PRIMARY KEY,
	salon_id TEXT NOT NULL,
	client_id TEXT NOT NULL,
	service_id TEXT NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	version BIGINT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL,
	appointment_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_queue (
	id BIGSERIAL PRIMARY KEY,
	task_type TEXT NOT NULL,
	appointment_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ,
	next_retry_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_closures_salon ON closures(salon_id);
CREATE INDEX IF NOT EXISTS idx_appointments_salon_slot ON appointments(salon_id, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_appointments_salon_client ON appointments(salon_id, client_id, status);
CREATE INDEX IF NOT EXISTS idx_appointments_client ON appointments(client_id);
CREATE UNIQUE INDEX IF NOT EXISTS ux_appointments_confirmed_slot
	ON appointments(salon_id, scheduled_at) WHERE status = 'confirmed';
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
