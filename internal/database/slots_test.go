package database

import (
	"context"
	"testing"
	"time"

	"bookmyfaculty/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Minute)
	slot := createTestSlot(t, db, 42, start)

	assert.NotZero(t, slot.ID)
	assert.False(t, slot.IsBooked)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ProviderID)
	assert.True(t, got.StartTime.Equal(start))
	assert.True(t, got.EndTime.Equal(start.Add(models.SlotDuration)))
	assert.False(t, got.IsBooked)
}

func TestGetSlot_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetSlot(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestDeleteSlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 1, time.Now().Add(time.Hour))

	err := db.DeleteSlot(ctx, slot.ID)
	require.NoError(t, err)

	_, err = db.GetSlot(ctx, slot.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestDeleteSlot_NotFound(t *testing.T) {
	db := setupTestDB(t)

	err := db.DeleteSlot(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestDeleteSlot_WithConfirmedReservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 1, time.Now().Add(time.Hour))
	res := &models.Reservation{SlotID: slot.ID, StudentID: 7}
	require.NoError(t, db.BookSlot(ctx, res))

	err := db.DeleteSlot(ctx, slot.ID)
	assert.ErrorIs(t, err, ErrSlotHasReservation)

	// Cancelling releases the slot for deletion.
	_, err = db.CancelReservation(ctx, res.ID)
	require.NoError(t, err)

	err = db.DeleteSlot(ctx, slot.ID)
	assert.NoError(t, err)
}

func TestListSlots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Minute)

	// Out of order on purpose; listing must sort by start time.
	second := createTestSlot(t, db, 1, base.Add(30*time.Minute))
	first := createTestSlot(t, db, 1, base)
	createTestSlot(t, db, 2, base) // other provider

	slots, err := db.ListSlots(ctx, 1, base.Add(-time.Hour), base.Add(2*time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, first.ID, slots[0].ID)
	assert.Equal(t, second.ID, slots[1].ID)
}

func TestListSlots_WindowExcludesEnd(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Minute)
	createTestSlot(t, db, 1, base)
	createTestSlot(t, db, 1, base.Add(time.Hour))

	// [from, to): the slot at exactly `to` must not appear.
	slots, err := db.ListSlots(ctx, 1, base, base.Add(time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].StartTime.Equal(base))
}

func TestListSlots_BookedFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Minute)
	free := createTestSlot(t, db, 1, base)
	taken := createTestSlot(t, db, 1, base.Add(time.Hour))

	require.NoError(t, db.BookSlot(ctx, &models.Reservation{SlotID: taken.ID, StudentID: 5}))

	onlyFree := false
	slots, err := db.ListSlots(ctx, 1, base.Add(-time.Hour), base.Add(2*time.Hour), &onlyFree)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, free.ID, slots[0].ID)

	onlyBooked := true
	slots, err = db.ListSlots(ctx, 1, base.Add(-time.Hour), base.Add(2*time.Hour), &onlyBooked)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, taken.ID, slots[0].ID)
}

func TestRecomputeSlotBooked(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	slot := createTestSlot(t, db, 1, time.Now().Add(time.Hour))
	require.NoError(t, db.BookSlot(ctx, &models.Reservation{SlotID: slot.ID, StudentID: 5}))

	// Corrupt the advisory flag, then realign it from the ledger.
	_, err := db.ExecContext(ctx, `UPDATE slots SET is_booked = 0 WHERE id = ?`, slot.ID)
	require.NoError(t, err)

	require.NoError(t, db.RecomputeSlotBooked(ctx, slot.ID))

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBooked)
}

func TestRecomputeSlotBooked_NotFound(t *testing.T) {
	db := setupTestDB(t)

	err := db.RecomputeSlotBooked(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}
