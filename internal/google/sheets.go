package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"bookmyfaculty/internal/events"
	"bookmyfaculty/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	reservationsRange = "Reservations!A:A"
	statusColumn      = "Reservations!E%d:E%d"
)

var errRowNotFound = errors.New("reservation row not found")

// SheetsChannel mirrors the reservation ledger into a Google spreadsheet.
// Confirmed reservations are appended; cancellations update the status
// cell of the matching row. The sheet is a convenience view for faculty
// coordinators, never read back by the service.
type SheetsChannel struct {
	service *sheets.Service
	sheetID string

	// rowCache maps reservation id to its 1-based sheet row so status
	// updates avoid a full column scan.
	rowCache map[int64]int
	cacheMu  sync.RWMutex
}

func NewSheetsChannel(credentialsFile, sheetID string) (*SheetsChannel, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return &SheetsChannel{
		service:  srv,
		sheetID:  sheetID,
		rowCache: make(map[int64]int),
	}, nil
}

func (s *SheetsChannel) Name() string { return models.ChannelSheets }

func (s *SheetsChannel) Deliver(ctx context.Context, task models.DeliveryTask) error {
	var payload events.ReservationEventPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		return fmt.Errorf("failed to decode task payload: %w", err)
	}

	switch task.EventType {
	case events.EventReservationConfirmed:
		return s.appendReservation(ctx, payload)
	case events.EventReservationCancelled:
		return s.markCancelled(ctx, payload)
	default:
		return nil
	}
}

// TestConnection reads the header cell to verify credentials and sharing.
func (s *SheetsChannel) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.sheetID, "Reservations!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func (s *SheetsChannel) appendReservation(ctx context.Context, p events.ReservationEventPayload) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{reservationRowValues(p)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.sheetID, reservationsRange, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (s *SheetsChannel) markCancelled(ctx context.Context, p events.ReservationEventPayload) error {
	rowIdx, err := s.findReservationRow(ctx, p.ReservationID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			// Cancellation can arrive before the append has been delivered;
			// write the full row with its terminal status instead.
			return s.appendReservation(ctx, p)
		}
		return err
	}

	rangeData := fmt.Sprintf(statusColumn, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.sheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{{models.StatusCancelled}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// findReservationRow locates the 1-based row for a reservation id in
// column A, consulting the cache first.
func (s *SheetsChannel) findReservationRow(ctx context.Context, reservationID int64) (int, error) {
	if reservationID == 0 {
		return 0, fmt.Errorf("reservation id is required")
	}

	if row, ok := s.getCachedRow(reservationID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.sheetID, reservationsRange).Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case string:
			fmt.Sscanf(v, "%d", &id)
		}
		if id == reservationID {
			rowIdx := i + 1 // sheet rows are 1-based
			s.setCachedRow(reservationID, rowIdx)
			return rowIdx, nil
		}
	}

	return 0, errRowNotFound
}

func (s *SheetsChannel) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsChannel) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func reservationRowValues(p events.ReservationEventPayload) []interface{} {
	return []interface{}{
		p.ReservationID,
		p.SlotID,
		p.ProviderID,
		p.StudentID,
		p.Status,
		p.StartTime.Format("2006-01-02 15:04"),
		p.EndTime.Format("2006-01-02 15:04"),
		p.Notes,
	}
}
