package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types for committed state transitions. Observers treat every event
// as a signal to re-read current state; the payload is a convenience
// snapshot, never authoritative.
const (
	EventReservationConfirmed = "reservation_confirmed"
	EventReservationCancelled = "reservation_cancelled"
	EventSlotCreated          = "slot_created"
	EventSlotDeleted          = "slot_deleted"
)

// ReservationEventPayload is the minimal reservation snapshot carried to
// observers (dashboards, notification channels, counters).
type ReservationEventPayload struct {
	ReservationID int64     `json:"reservation_id"`
	SlotID        int64     `json:"slot_id"`
	ProviderID    int64     `json:"provider_id"`
	StudentID     int64     `json:"student_id"`
	Status        string    `json:"status"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Notes         string    `json:"notes,omitempty"`
	ActorID       int64     `json:"actor_id,omitempty"`
	ActorRole     string    `json:"actor_role,omitempty"`
}

// SlotEventPayload describes slot lifecycle transitions.
type SlotEventPayload struct {
	SlotID     int64     `json:"slot_id"`
	ProviderID int64     `json:"provider_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	ActorID    int64     `json:"actor_id,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Handler reacts to an event. Errors are the handler's own problem:
// publishing never fails the committing caller on observer health.
type Handler func(event *Event) error

// Bus provides in-process pub/sub for committed transitions. Delivery is
// at-least-once per subscriber and unordered across subscribers.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handlers run
// synchronously in registration order; a failing handler never stops the
// fan-out to the rest.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *Bus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
