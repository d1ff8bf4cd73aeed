package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookmyfaculty/internal/models"
)

// BookSlot atomically claims a slot for a student. The insert is issued
// optimistically inside one transaction; the confirmed-per-slot unique
// index decides the race. A naive read-then-insert would let two callers
// both observe a free slot, which is exactly the bug this path avoids.
//
// On success the reservation is filled in (id, status, timestamps) and the
// slot's advisory is_booked flag is set in the same transaction.
func (db *DB) BookSlot(ctx context.Context, res *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// The slot must still exist at commit time; a concurrent DeleteSlot
	// serializes against this transaction.
	var providerID int64
	err = tx.QueryRowContext(ctx, `SELECT provider_id FROM slots WHERE id = ?`, res.SlotID).Scan(&providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load slot in tx: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (slot_id, provider_id, student_id, notes, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.SlotID,
		providerID,
		res.StudentID,
		res.Notes,
		models.StatusConfirmed,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	// Advisory cache only; the unique index above is what prevents
	// double-booking.
	if _, err := tx.ExecContext(ctx, `UPDATE slots SET is_booked = 1 WHERE id = ?`, res.SlotID); err != nil {
		return fmt.Errorf("failed to mark slot booked: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	res.ID = id
	res.ProviderID = providerID
	res.Status = models.StatusConfirmed
	res.CreatedAt = now
	res.UpdatedAt = now

	return nil
}

// CancelReservation marks a reservation cancelled and clears the slot's
// advisory flag in the same transaction. Cancellation is terminal:
// cancelling an already-cancelled reservation is a conflict.
func (db *DB) CancelReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT id, slot_id, provider_id, student_id, notes, status, created_at, updated_at
         FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation in tx: %w", err)
	}

	if res.Status == models.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusCancelled, now, id,
	); err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	// The unique index guarantees no other confirmed reservation references
	// this slot, so the flag simply goes to free.
	if _, err := tx.ExecContext(ctx, `UPDATE slots SET is_booked = 0 WHERE id = ?`, res.SlotID); err != nil {
		return nil, fmt.Errorf("failed to clear slot booked flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	res.Status = models.StatusCancelled
	res.UpdatedAt = now

	return res, nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	res, err := scanReservation(db.QueryRowContext(ctx,
		`SELECT id, slot_id, provider_id, student_id, notes, status, created_at, updated_at
         FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return res, nil
}

// GetConfirmedReservationBySlot returns the confirmed reservation holding
// the slot, or ErrReservationNotFound when the slot is open.
func (db *DB) GetConfirmedReservationBySlot(ctx context.Context, slotID int64) (*models.Reservation, error) {
	res, err := scanReservation(db.QueryRowContext(ctx,
		`SELECT id, slot_id, provider_id, student_id, notes, status, created_at, updated_at
         FROM reservations WHERE slot_id = ? AND status = ?`,
		slotID, models.StatusConfirmed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation by slot: %w", err)
	}
	return res, nil
}

func (db *DB) ListReservationsByStudent(ctx context.Context, studentID int64) ([]models.Reservation, error) {
	return db.listReservations(ctx,
		`SELECT id, slot_id, provider_id, student_id, notes, status, created_at, updated_at
         FROM reservations WHERE student_id = ? ORDER BY created_at DESC`, studentID)
}

func (db *DB) ListReservationsByProvider(ctx context.Context, providerID int64) ([]models.Reservation, error) {
	return db.listReservations(ctx,
		`SELECT id, slot_id, provider_id, student_id, notes, status, created_at, updated_at
         FROM reservations WHERE provider_id = ? ORDER BY created_at DESC`, providerID)
}

// ListReservationsBySlot returns the full booking history of one slot,
// oldest first. Rebooked slots have one row per cycle.
func (db *DB) ListReservationsBySlot(ctx context.Context, slotID int64) ([]models.Reservation, error) {
	return db.listReservations(ctx,
		`SELECT id, slot_id, provider_id, student_id, notes, status, created_at, updated_at
         FROM reservations WHERE slot_id = ? ORDER BY created_at ASC`, slotID)
}

func (db *DB) listReservations(ctx context.Context, query string, arg any) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		var res models.Reservation
		err := rows.Scan(
			&res.ID,
			&res.SlotID,
			&res.ProviderID,
			&res.StudentID,
			&res.Notes,
			&res.Status,
			&res.CreatedAt,
			&res.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}

	return reservations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var res models.Reservation
	err := row.Scan(
		&res.ID,
		&res.SlotID,
		&res.ProviderID,
		&res.StudentID,
		&res.Notes,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
