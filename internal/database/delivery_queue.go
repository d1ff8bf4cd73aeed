package database

import (
	"context"
	"fmt"
	"time"

	"bookmyfaculty/internal/models"
)

// CreateDeliveryTask persists an outbox entry before any delivery attempt,
// so observer fan-out survives a crash between commit and delivery.
func (db *DB) CreateDeliveryTask(ctx context.Context, task *models.DeliveryTask) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO delivery_tasks (channel, event_type, reservation_id, payload, status, attempts, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		task.Channel,
		task.EventType,
		task.ReservationID,
		task.Payload,
		models.TaskStatusPending,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.Status = models.TaskStatusPending
	task.CreatedAt = now
	task.UpdatedAt = now

	return nil
}

func (db *DB) UpdateDeliveryTask(ctx context.Context, id int64, status string, attempts int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE delivery_tasks SET status = ?, attempts = ?, updated_at = ? WHERE id = ?`,
		status, attempts, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update delivery task: %w", err)
	}
	return nil
}

// ListPendingDeliveryTasks returns the oldest pending tasks, used by the
// worker's polling fallback when the queue path loses a task.
func (db *DB) ListPendingDeliveryTasks(ctx context.Context, limit int) ([]models.DeliveryTask, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, channel, event_type, reservation_id, payload, status, attempts, created_at, updated_at
         FROM delivery_tasks WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		models.TaskStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.DeliveryTask
	for rows.Next() {
		var task models.DeliveryTask
		err := rows.Scan(
			&task.ID,
			&task.Channel,
			&task.EventType,
			&task.ReservationID,
			&task.Payload,
			&task.Status,
			&task.Attempts,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery tasks: %w", err)
	}

	return tasks, nil
}
