package service

import (
	"context"
	"errors"
	"time"

	"bookmyfaculty/internal/database"
	"bookmyfaculty/internal/domain"
	"bookmyfaculty/internal/events"
	"bookmyfaculty/internal/metrics"
	"bookmyfaculty/internal/models"

	"github.com/rs/zerolog"
)

// ErrNotAllowed is returned when the acting identity lacks rights for the
// operation. Never retryable.
var ErrNotAllowed = errors.New("actor is not allowed to perform this action")

// SchedulingService is the consistency engine. It is the sole writer of
// reservation status and the slot booked flag; every mutation is a single
// storage transaction and correctness rests on the store's
// confirmed-per-slot uniqueness constraint, not on any in-process
// coordination between requests.
type SchedulingService struct {
	store  domain.Store
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func NewSchedulingService(store domain.Store, bus domain.EventPublisher, logger *zerolog.Logger) *SchedulingService {
	return &SchedulingService{
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// CreateSlot publishes a new bookable interval for a provider. Only the
// provider themselves (or an admin) may create it, and only for a start
// instant strictly in the future. End time is fixed at start plus the
// slot duration.
func (s *SchedulingService) CreateSlot(ctx context.Context, actor models.Actor, providerID int64, start time.Time) (*models.Slot, error) {
	if !actor.IsAdmin() && (actor.ID != providerID || !actor.IsFaculty()) {
		return nil, ErrNotAllowed
	}

	if !start.After(time.Now()) {
		return nil, database.ErrPastDate
	}

	slot := &models.Slot{
		ProviderID: providerID,
		StartTime:  start.UTC(),
		EndTime:    start.Add(models.SlotDuration).UTC(),
	}

	if err := s.store.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}

	s.publishSlotEvent(events.EventSlotCreated, slot, actor)

	return slot, nil
}

// DeleteSlot removes a slot that is not held by a confirmed reservation.
func (s *SchedulingService) DeleteSlot(ctx context.Context, actor models.Actor, slotID int64) error {
	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}

	if !actor.IsAdmin() && actor.ID != slot.ProviderID {
		return ErrNotAllowed
	}

	if err := s.store.DeleteSlot(ctx, slotID); err != nil {
		return err
	}

	s.publishSlotEvent(events.EventSlotDeleted, slot, actor)

	return nil
}

// ListSlots returns a provider's slots in [from, to) ascending by start.
func (s *SchedulingService) ListSlots(ctx context.Context, providerID int64, from, to time.Time, booked *bool) ([]models.Slot, error) {
	return s.store.ListSlots(ctx, providerID, from, to, booked)
}

// Book attempts to claim a slot for the acting student. The check and the
// insert are one indivisible storage operation; when two callers race for
// the same slot exactly one commits and the other receives ErrSlotTaken.
// Callers must not retry a conflict automatically, and after a timeout
// they must re-query before any retry because the original attempt may
// have committed.
func (s *SchedulingService) Book(ctx context.Context, actor models.Actor, slotID int64, notes string) (*models.Reservation, error) {
	if !actor.IsStudent() {
		return nil, ErrNotAllowed
	}

	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}

	// Slots are immutable, so the start instant read here cannot change
	// under us; only existence is re-checked inside the transaction.
	if !slot.StartTime.After(time.Now()) {
		return nil, database.ErrPastDate
	}

	res := &models.Reservation{
		SlotID:    slotID,
		StudentID: actor.ID,
		Notes:     notes,
	}

	if err := s.store.BookSlot(ctx, res); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBookingConflict()
			s.logger.Info().
				Int64("slot_id", slotID).
				Int64("student_id", actor.ID).
				Msg("booking lost the race for slot")
		}
		return nil, err
	}

	metrics.IncBooking()
	s.publishReservationEvent(events.EventReservationConfirmed, res, slot, actor)

	return res, nil
}

// Cancel irreversibly cancels a reservation. Allowed to the reservation's
// student or an admin. Cancelling an already-cancelled reservation is a
// conflict: the caller is told its view of the world is stale.
func (s *SchedulingService) Cancel(ctx context.Context, actor models.Actor, reservationID int64) (*models.Reservation, error) {
	res, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && actor.ID != res.StudentID {
		return nil, ErrNotAllowed
	}

	cancelled, err := s.store.CancelReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	metrics.IncCancellation()

	slot, err := s.store.GetSlot(ctx, cancelled.SlotID)
	if err != nil {
		// The slot is only needed to enrich the event snapshot.
		slot = &models.Slot{ID: cancelled.SlotID, ProviderID: cancelled.ProviderID}
	}
	s.publishReservationEvent(events.EventReservationCancelled, cancelled, slot, actor)

	return cancelled, nil
}

func (s *SchedulingService) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	return s.store.GetSlot(ctx, id)
}

// ListSlotHistory returns every reservation a slot has carried, oldest
// first. Restricted to the slot's provider and admins.
func (s *SchedulingService) ListSlotHistory(ctx context.Context, actor models.Actor, slotID int64) ([]models.Reservation, error) {
	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && actor.ID != slot.ProviderID {
		return nil, ErrNotAllowed
	}

	return s.store.ListReservationsBySlot(ctx, slotID)
}

func (s *SchedulingService) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

func (s *SchedulingService) ListReservationsByStudent(ctx context.Context, studentID int64) ([]models.Reservation, error) {
	return s.store.ListReservationsByStudent(ctx, studentID)
}

func (s *SchedulingService) ListReservationsByProvider(ctx context.Context, providerID int64) ([]models.Reservation, error) {
	return s.store.ListReservationsByProvider(ctx, providerID)
}

func (s *SchedulingService) ListNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	return s.store.ListNotificationsByUser(ctx, userID, limit)
}

// MarkNotificationRead scopes the update to the actor's own feed, so a
// foreign notification id reads as not found.
func (s *SchedulingService) MarkNotificationRead(ctx context.Context, actor models.Actor, id int64) error {
	return s.store.MarkNotificationRead(ctx, id, actor.ID)
}

func (s *SchedulingService) publishReservationEvent(eventType string, res *models.Reservation, slot *models.Slot, actor models.Actor) {
	if s.bus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: res.ID,
		SlotID:        res.SlotID,
		ProviderID:    res.ProviderID,
		StudentID:     res.StudentID,
		Status:        res.Status,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
		Notes:         res.Notes,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
	}

	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", res.ID).Msg("publish event error")
	}
}

func (s *SchedulingService) publishSlotEvent(eventType string, slot *models.Slot, actor models.Actor) {
	if s.bus == nil {
		return
	}

	payload := events.SlotEventPayload{
		SlotID:     slot.ID,
		ProviderID: slot.ProviderID,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		ActorID:    actor.ID,
	}

	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("slot_id", slot.ID).Msg("publish event error")
	}
}
