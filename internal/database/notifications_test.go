package database

import (
	"context"
	"fmt"
	"testing"

	"bookmyfaculty/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := &models.Notification{
		UserID:        7,
		Title:         "Appointment Confirmed!",
		Message:       "Your consultation is confirmed.",
		Kind:          models.NotificationKindBooking,
		ReservationID: 3,
	}
	require.NoError(t, db.CreateNotification(ctx, n))
	assert.NotZero(t, n.ID)

	list, err := db.ListNotificationsByUser(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Appointment Confirmed!", list[0].Title)
	assert.Nil(t, list[0].ReadAt)

	// Other users see nothing.
	list, err = db.ListNotificationsByUser(ctx, 8, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListNotificationsByUser_Limit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		n := &models.Notification{
			UserID:  1,
			Title:   fmt.Sprintf("n%d", i),
			Message: "m",
			Kind:    models.NotificationKindBooking,
		}
		require.NoError(t, db.CreateNotification(ctx, n))
	}

	list, err := db.ListNotificationsByUser(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	// Newest first.
	full, err := db.ListNotificationsByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, full, 5)
	assert.Equal(t, "n4", full[0].Title)
}

func TestMarkNotificationRead(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := &models.Notification{UserID: 1, Title: "t", Message: "m", Kind: models.NotificationKindCancellation}
	require.NoError(t, db.CreateNotification(ctx, n))

	require.NoError(t, db.MarkNotificationRead(ctx, n.ID, 1))

	list, err := db.ListNotificationsByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].ReadAt)

	// Marking again keeps the original timestamp and still succeeds.
	firstRead := list[0].ReadAt
	require.NoError(t, db.MarkNotificationRead(ctx, n.ID, 1))
	list, err = db.ListNotificationsByUser(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, firstRead, list[0].ReadAt)
}

func TestMarkNotificationRead_WrongUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := &models.Notification{UserID: 1, Title: "t", Message: "m", Kind: models.NotificationKindBooking}
	require.NoError(t, db.CreateNotification(ctx, n))

	err := db.MarkNotificationRead(ctx, n.ID, 2)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	err = db.MarkNotificationRead(ctx, 9999, 1)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestDeliveryTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.DeliveryTask{
		Channel:       models.ChannelTelegram,
		EventType:     "reservation_confirmed",
		ReservationID: 5,
		Payload:       `{"reservation_id":5}`,
	}
	require.NoError(t, db.CreateDeliveryTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	pending, err := db.ListPendingDeliveryTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, task.ID, pending[0].ID)

	require.NoError(t, db.UpdateDeliveryTask(ctx, task.ID, models.TaskStatusDone, 1))

	pending, err = db.ListPendingDeliveryTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
