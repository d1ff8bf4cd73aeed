package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookmyfaculty/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestSlot(t *testing.T, db *DB, providerID int64, start time.Time) *models.Slot {
	t.Helper()
	slot := &models.Slot{
		ProviderID: providerID,
		StartTime:  start,
		EndTime:    start.Add(models.SlotDuration),
	}
	require.NoError(t, db.CreateSlot(context.Background(), slot))
	return slot
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)

	err := db.Ping(context.Background())
	assert.NoError(t, err)
}

func TestCreateTables_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	// Re-running schema creation against an existing database must be a
	// no-op.
	err := createTables(db.DB)
	require.NoError(t, err)
}
