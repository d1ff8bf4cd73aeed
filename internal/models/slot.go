package models

import "time"

// SlotDuration is the fixed length of every consultation slot.
const SlotDuration = 15 * time.Minute

// Slot is a single bookable interval published by a provider (faculty).
// Slots are immutable after creation: they are either deleted while free
// or consumed by reservations.
type Slot struct {
	ID         int64     `json:"id"`
	ProviderID int64     `json:"provider_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	// IsBooked is a denormalized cache over confirmed reservations.
	// The reservations table is the source of truth; readers must
	// tolerate momentary staleness and never decide on this field.
	IsBooked  bool      `json:"is_booked"`
	CreatedAt time.Time `json:"created_at"`
}
