package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookmyfaculty/internal/models"
)

// CreateSlot persists a new slot. Temporal validation (start in the
// future) belongs to the scheduling service; the store only records.
func (db *DB) CreateSlot(ctx context.Context, slot *models.Slot) error {
	now := time.Now().UTC()
	query := `INSERT INTO slots (provider_id, start_time, end_time, is_booked, created_at)
              VALUES (?, ?, ?, 0, ?)`
	result, err := db.ExecContext(ctx, query,
		slot.ProviderID,
		slot.StartTime.UTC(),
		slot.EndTime.UTC(),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	slot.ID = id
	slot.IsBooked = false
	slot.CreatedAt = now

	return nil
}

func (db *DB) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	query := `SELECT id, provider_id, start_time, end_time, is_booked, created_at
              FROM slots WHERE id = ?`

	var slot models.Slot
	err := db.QueryRowContext(ctx, query, id).Scan(
		&slot.ID,
		&slot.ProviderID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsBooked,
		&slot.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	return &slot, nil
}

// DeleteSlot removes a slot unless a confirmed reservation references it.
// The existence check and the delete run in one transaction so a racing
// booking either blocks the delete or finds the slot gone.
func (db *DB) DeleteSlot(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var confirmed int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE slot_id = ? AND status = ?`,
		id, models.StatusConfirmed,
	).Scan(&confirmed)
	if err != nil {
		return fmt.Errorf("failed to check reservations for slot: %w", err)
	}
	if confirmed > 0 {
		return ErrSlotHasReservation
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSlotNotFound
	}

	return tx.Commit()
}

// ListSlots returns a provider's slots inside [from, to), ascending by
// start time. booked narrows to booked or free slots when non-nil. The
// listing is stateless; callers resume by re-querying with a new range.
func (db *DB) ListSlots(ctx context.Context, providerID int64, from, to time.Time, booked *bool) ([]models.Slot, error) {
	query := `SELECT id, provider_id, start_time, end_time, is_booked, created_at
              FROM slots
              WHERE provider_id = ? AND start_time >= ? AND start_time < ?`
	args := []any{providerID, from.UTC(), to.UTC()}

	if booked != nil {
		query += ` AND is_booked = ?`
		args = append(args, *booked)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		var slot models.Slot
		err := rows.Scan(
			&slot.ID,
			&slot.ProviderID,
			&slot.StartTime,
			&slot.EndTime,
			&slot.IsBooked,
			&slot.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}

	return slots, nil
}

// RecomputeSlotBooked realigns the advisory is_booked cache with the
// reservation ledger. Used by operational tooling; normal writes keep the
// flag in the same transaction as the authoritative change.
func (db *DB) RecomputeSlotBooked(ctx context.Context, slotID int64) error {
	query := `UPDATE slots SET is_booked = EXISTS (
                  SELECT 1 FROM reservations WHERE slot_id = slots.id AND status = ?
              ) WHERE id = ?`
	result, err := db.ExecContext(ctx, query, models.StatusConfirmed, slotID)
	if err != nil {
		return fmt.Errorf("failed to recompute is_booked: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSlotNotFound
	}
	return nil
}
