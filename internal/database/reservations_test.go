package database

import (
	"context"
	"testing"
	"time"

	"bookmyfaculty/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookSlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 10, time.Now().Add(time.Hour))

	res := &models.Reservation{SlotID: slot.ID, StudentID: 77, Notes: "thesis questions"}
	err := db.BookSlot(ctx, res)
	require.NoError(t, err)

	assert.NotZero(t, res.ID)
	assert.Equal(t, int64(10), res.ProviderID)
	assert.Equal(t, models.StatusConfirmed, res.Status)
	assert.False(t, res.CreatedAt.IsZero())

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBooked)
}

func TestBookSlot_SlotNotFound(t *testing.T) {
	db := setupTestDB(t)

	err := db.BookSlot(context.Background(), &models.Reservation{SlotID: 9999, StudentID: 1})
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestBookSlot_Taken(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 10, time.Now().Add(time.Hour))

	require.NoError(t, db.BookSlot(ctx, &models.Reservation{SlotID: slot.ID, StudentID: 1}))

	err := db.BookSlot(ctx, &models.Reservation{SlotID: slot.ID, StudentID: 2})
	assert.ErrorIs(t, err, ErrSlotTaken)

	// The loser must not have left a row behind.
	history, err := db.ListReservationsBySlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCancelReservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 10, time.Now().Add(time.Hour))
	res := &models.Reservation{SlotID: slot.ID, StudentID: 1}
	require.NoError(t, db.BookSlot(ctx, res))

	cancelled, err := db.CancelReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, res.ID, cancelled.ID)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBooked)
}

func TestCancelReservation_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.CancelReservation(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCancelReservation_AlreadyCancelled(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 10, time.Now().Add(time.Hour))
	res := &models.Reservation{SlotID: slot.ID, StudentID: 1}
	require.NoError(t, db.BookSlot(ctx, res))

	_, err := db.CancelReservation(ctx, res.ID)
	require.NoError(t, err)

	// Cancellation is terminal; a second attempt is a conflict, not a
	// no-op.
	_, err = db.CancelReservation(ctx, res.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

// TestRebookingCycle walks the full lifecycle: book, cancel, rebook by
// another student. The cancelled row stays in the ledger and the new
// confirmed row coexists with it on the same slot.
func TestRebookingCycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 10, time.Now().Add(time.Hour))

	first := &models.Reservation{SlotID: slot.ID, StudentID: 1}
	require.NoError(t, db.BookSlot(ctx, first))

	_, err := db.CancelReservation(ctx, first.ID)
	require.NoError(t, err)

	second := &models.Reservation{SlotID: slot.ID, StudentID: 2}
	require.NoError(t, db.BookSlot(ctx, second))

	history, err := db.ListReservationsBySlot(ctx, slot.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, models.StatusCancelled, history[0].Status)
	assert.Equal(t, second.ID, history[1].ID)
	assert.Equal(t, models.StatusConfirmed, history[1].Status)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBooked)
}

func TestGetReservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 10, time.Now().Add(time.Hour))
	res := &models.Reservation{SlotID: slot.ID, StudentID: 1, Notes: "grading dispute"}
	require.NoError(t, db.BookSlot(ctx, res))

	got, err := db.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
	assert.Equal(t, "grading dispute", got.Notes)

	_, err = db.GetReservation(ctx, 9999)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestGetConfirmedReservationBySlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 10, time.Now().Add(time.Hour))

	_, err := db.GetConfirmedReservationBySlot(ctx, slot.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	res := &models.Reservation{SlotID: slot.ID, StudentID: 1}
	require.NoError(t, db.BookSlot(ctx, res))

	holder, err := db.GetConfirmedReservationBySlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, holder.ID)

	_, err = db.CancelReservation(ctx, res.ID)
	require.NoError(t, err)

	_, err = db.GetConfirmedReservationBySlot(ctx, slot.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestListReservations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slotA := createTestSlot(t, db, 10, time.Now().Add(time.Hour))
	slotB := createTestSlot(t, db, 20, time.Now().Add(2*time.Hour))

	require.NoError(t, db.BookSlot(ctx, &models.Reservation{SlotID: slotA.ID, StudentID: 1}))
	require.NoError(t, db.BookSlot(ctx, &models.Reservation{SlotID: slotB.ID, StudentID: 1}))

	byStudent, err := db.ListReservationsByStudent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byStudent, 2)

	byProvider, err := db.ListReservationsByProvider(ctx, 10)
	require.NoError(t, err)
	require.Len(t, byProvider, 1)
	assert.Equal(t, slotA.ID, byProvider[0].SlotID)

	byStudent, err = db.ListReservationsByStudent(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, byStudent)
}
