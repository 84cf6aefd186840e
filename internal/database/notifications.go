package database

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/models"

	"github.com/google/uuid"
)

// fixed width so created_at sorts lexicographically
const notificationTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, appointment_id, kind, message, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, n.AppointmentID, n.Kind, n.Message, n.CreatedAt.Format(notificationTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications first.
func (db *DB) ListNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, recipient_id, appointment_id, kind, message, created_at
         FROM notifications WHERE recipient_id = ?
         ORDER BY created_at DESC, rowid DESC LIMIT ?`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var (
			n         models.Notification
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.AppointmentID, &n.Kind, &n.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if n.CreatedAt, err = time.Parse(notificationTimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse notification time: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
