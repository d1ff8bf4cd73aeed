package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors form the store side of the error taxonomy. Callers match
// with errors.Is and translate to their own surface (HTTP status, log).
var (
	// ErrSlotNotFound: the referenced slot does not exist (never retry).
	ErrSlotNotFound = errors.New("slot not found")

	// ErrReservationNotFound: the referenced reservation does not exist.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrPastDate: the slot's start instant is not in the future.
	ErrPastDate = errors.New("slot start time is in the past")

	// ErrSlotTaken: a concurrent booking won the race for this slot.
	// Clients must not retry blindly; a human picks another slot.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrAlreadyCancelled: the reservation is terminal; repeated
	// cancellation is a conflict, not a no-op.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")

	// ErrSlotHasReservation: the slot cannot be deleted while a confirmed
	// reservation references it.
	ErrSlotHasReservation = errors.New("slot has a confirmed reservation")

	// ErrNotificationNotFound: no notification with this id belongs to the
	// requesting user.
	ErrNotificationNotFound = errors.New("notification not found")
)

// isUniqueViolation reports whether err is the unique-constraint failure
// raised by the confirmed-per-slot index. That violation is the one
// authoritative signal that another booking committed first.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
