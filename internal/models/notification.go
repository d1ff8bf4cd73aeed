package models

import "time"

// Notification is an in-app feed entry derived from a committed state
// transition. It is a signal to re-read current state, not an
// authoritative snapshot.
type Notification struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Kind          string     `json:"kind"` // booking, cancellation
	ReservationID int64      `json:"reservation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
}

// DeliveryTask is one unit of external observer delivery (Telegram,
// Sheets). Tasks are persisted before delivery so a crash never loses a
// committed transition; delivery is at-least-once.
type DeliveryTask struct {
	ID            int64     `json:"id"`
	Channel       string    `json:"channel"`
	EventType     string    `json:"event_type"`
	ReservationID int64     `json:"reservation_id"`
	Payload       string    `json:"payload"`
	Status        string    `json:"status"` // pending, done, failed
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
