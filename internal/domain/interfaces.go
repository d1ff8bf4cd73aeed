package domain

import (
	"context"
	"time"

	"bookmyfaculty/internal/models"
)

// Store is the persistence surface the scheduling service and the API
// depend on: the slot store, the reservation ledger, the in-app
// notification feed and the delivery outbox.
type Store interface {
	CreateSlot(ctx context.Context, slot *models.Slot) error
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
	DeleteSlot(ctx context.Context, id int64) error
	ListSlots(ctx context.Context, providerID int64, from, to time.Time, booked *bool) ([]models.Slot, error)

	BookSlot(ctx context.Context, res *models.Reservation) error
	CancelReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetConfirmedReservationBySlot(ctx context.Context, slotID int64) (*models.Reservation, error)
	ListReservationsByStudent(ctx context.Context, studentID int64) ([]models.Reservation, error)
	ListReservationsByProvider(ctx context.Context, providerID int64) ([]models.Reservation, error)
	ListReservationsBySlot(ctx context.Context, slotID int64) ([]models.Reservation, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsByUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) error

	CreateDeliveryTask(ctx context.Context, task *models.DeliveryTask) error
	UpdateDeliveryTask(ctx context.Context, id int64, status string, attempts int) error
	ListPendingDeliveryTasks(ctx context.Context, limit int) ([]models.DeliveryTask, error)
}

// EventPublisher decouples the consistency engine from its observers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// RateLimitRepository answers whether a client key may make another
// request inside the window. Implementations: redis, in-memory, failover.
type RateLimitRepository interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Channel is one external delivery target for committed transitions
// (Telegram, Sheets). Deliveries are retried by the worker; a channel
// never influences commit outcomes.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, task models.DeliveryTask) error
}
