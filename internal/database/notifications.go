package database

import (
	"context"
	"fmt"
	"time"

	"bookmyfaculty/internal/models"
)

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, title, message, kind, reservation_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID,
		n.Title,
		n.Message,
		n.Kind,
		n.ReservationID,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now

	return nil
}

// ListNotificationsByUser returns the newest notifications first, capped
// at limit (or 50 when limit <= 0).
func (db *DB) ListNotificationsByUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, title, message, kind, COALESCE(reservation_id, 0), created_at, read_at
         FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Title,
			&n.Message,
			&n.Kind,
			&n.ReservationID,
			&n.CreatedAt,
			&n.ReadAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkNotificationRead stamps read_at on the user's own notification.
// Marking an already read entry is a no-op; a foreign or missing id is
// ErrNotificationNotFound.
func (db *DB) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
