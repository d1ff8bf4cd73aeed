package models

import "time"

// Reservation is a student's claim on a slot. At most one reservation per
// slot may be confirmed at any instant; cancelled reservations are terminal
// and are never reopened. Rebooking a slot creates a fresh row.
type Reservation struct {
	ID         int64     `json:"id"`
	SlotID     int64     `json:"slot_id"`
	ProviderID int64     `json:"provider_id"`
	StudentID  int64     `json:"student_id"`
	Notes      string    `json:"notes,omitempty"`
	Status     string    `json:"status"` // confirmed, cancelled
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Active reports whether the reservation still holds its slot.
func (r *Reservation) Active() bool {
	return r.Status == StatusConfirmed
}
