package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bookmyfaculty/internal/database"
	"bookmyfaculty/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportProviderReservations(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "export.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	slot := &models.Slot{
		ProviderID: 10,
		StartTime:  time.Now().Add(24 * time.Hour),
		EndTime:    time.Now().Add(24*time.Hour + models.SlotDuration),
	}
	require.NoError(t, db.CreateSlot(ctx, slot))

	res := &models.Reservation{SlotID: slot.ID, StudentID: 1, Notes: "exam review"}
	require.NoError(t, db.BookSlot(ctx, res))

	exporter := NewXLSXExporter(db, filepath.Join(t.TempDir(), "exports"), &logger)

	filePath, err := exporter.ExportProviderReservations(ctx, 10)
	require.NoError(t, err)
	assert.FileExists(t, filePath)

	f, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one reservation")
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, models.StatusConfirmed, rows[1][3])
	assert.Equal(t, "exam review", rows[1][6])
}

func TestExportProviderReservations_Empty(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "export.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	exporter := NewXLSXExporter(db, filepath.Join(t.TempDir(), "exports"), &logger)

	filePath, err := exporter.ExportProviderReservations(context.Background(), 999)
	require.NoError(t, err)
	assert.FileExists(t, filePath)
}
