package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bookmyfaculty/internal/domain"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// XLSXExporter writes a provider's reservation ledger to an Excel
// workbook under the configured export directory. The file is a
// point-in-time view; re-exporting after further transitions produces a
// new file.
type XLSXExporter struct {
	store  domain.Store
	path   string
	logger zerolog.Logger
}

func NewXLSXExporter(store domain.Store, path string, logger *zerolog.Logger) *XLSXExporter {
	var exportLogger zerolog.Logger
	if logger != nil {
		exportLogger = logger.With().Str("component", "xlsx_export").Logger()
	}
	return &XLSXExporter{store: store, path: path, logger: exportLogger}
}

// ExportProviderReservations writes every reservation for the provider,
// cancelled included, and returns the file path.
func (e *XLSXExporter) ExportProviderReservations(ctx context.Context, providerID int64) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	reservations, err := e.store.ListReservationsByProvider(ctx, providerID)
	if err != nil {
		return "", fmt.Errorf("failed to list reservations: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Reservations"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Slot ID", "Student ID", "Status", "Start", "End", "Notes", "Created At", "Updated At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "I1", headerStyle)

	for i, res := range reservations {
		row := i + 2

		// Slot times live on the slot, not the reservation. Deleted slots
		// leave the time columns blank.
		start, end := "", ""
		if slot, err := e.store.GetSlot(ctx, res.SlotID); err == nil {
			start = slot.StartTime.Format("2006-01-02 15:04")
			end = slot.EndTime.Format("2006-01-02 15:04")
		}

		values := []interface{}{
			res.ID,
			res.SlotID,
			res.StudentID,
			res.Status,
			start,
			end,
			res.Notes,
			res.CreatedAt.Format("2006-01-02 15:04"),
			res.UpdatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "D", 12)
	_ = f.SetColWidth(sheetName, "E", "I", 20)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("provider_%d_reservations_%s.xlsx", providerID, time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("failed to save export file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", len(reservations)).Msg("reservation export written")
	return filePath, nil
}
