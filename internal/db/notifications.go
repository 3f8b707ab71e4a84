package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"carealert/internal/models"
)

const notificationColumns = `id, user_id, type, channel, title, message, payload, created_at, sent_at, attempts`

func scanNotifications(rows pgx.Rows) ([]models.Notification, error) {
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Channel,
			&n.Title,
			&n.Message,
			&n.Payload,
			&n.CreatedAt,
			&n.SentAt,
			&n.Attempts,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// NotificationExists reports whether any channel already holds a
// notification of this type for the source entity.
func (d *DB) NotificationExists(ctx context.Context, userID uuid.UUID, notificationType string, source models.SourceEntity) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND type = $2
			  AND payload->>'source_type' = $3 AND payload->>'source_id' = $4
		)
	`

	var exists bool
	err := d.Pool.QueryRow(ctx, query, userID, notificationType, source.Type, source.ID).Scan(&exists)
	return exists, err
}

// CreateNotification inserts a pending notification record.
func (d *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, channel, title, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	payload := n.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	_, err := d.Pool.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Channel, n.Title, n.Message, payload, n.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert %s notification: %w", n.Channel, ErrDuplicateNotification)
		}
		return err
	}
	return nil
}

// ListPendingNotifications returns up to limit undelivered records on the
// given channels. Records with fewer failed attempts come first, then oldest
// first.
func (d *DB) ListPendingNotifications(ctx context.Context, channels []string, limit int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE sent_at IS NULL AND channel = ANY($1)
		ORDER BY attempts ASC, created_at ASC, id ASC
		LIMIT $2`

	rows, err := d.Pool.Query(ctx, query, channels, limit)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

// MarkNotificationSent records delivery. Already-delivered records are
// reported as not found so a record is never marked twice.
func (d *DB) MarkNotificationSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := d.Pool.Exec(ctx, `UPDATE notifications SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`, id, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// RecordDeliveryAttempt counts one failed delivery of a pending record.
func (d *DB) RecordDeliveryAttempt(ctx context.Context, id uuid.UUID) error {
	tag, err := d.Pool.Exec(ctx, `UPDATE notifications SET attempts = attempts + 1 WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// CountPendingByChannel returns the number of undelivered records per channel.
func (d *DB) CountPendingByChannel(ctx context.Context) (map[string]int, error) {
	rows, err := d.Pool.Query(ctx, `SELECT channel, COUNT(*) FROM notifications WHERE sent_at IS NULL GROUP BY channel`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var channel string
		var n int
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, err
		}
		counts[channel] = n
	}
	return counts, rows.Err()
}

// ListNotificationsForUser returns a user's in-app notifications, newest first.
func (d *DB) ListNotificationsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 AND channel = 'in_app'
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := d.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}
