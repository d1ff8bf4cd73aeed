package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookmyfaculty/internal/database"
	"bookmyfaculty/internal/models"
	"bookmyfaculty/internal/service"
)

const defaultListWindow = 14 * 24 * time.Hour

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSlots(w, r)
	case http.MethodPost:
		s.createSlot(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		ProviderID int64  `json:"provider_id"`
		StartTime  string `json:"start_time"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	if body.ProviderID == 0 {
		body.ProviderID = actor.ID
	}

	start, err := time.Parse(time.RFC3339, body.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time; expected RFC3339")
		return
	}

	slot, err := s.scheduling.CreateSlot(r.Context(), actor, body.ProviderID, start)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, slot)
}

func (s *HTTPServer) listSlots(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireActor(w, r); !ok {
		return
	}

	q := r.URL.Query()

	providerID, err := parseID(q.Get("provider_id"))
	if err != nil || providerID == 0 {
		writeError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	now := time.Now()
	from, to := now, now.Add(defaultListWindow)
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from; expected RFC3339")
			return
		}
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to; expected RFC3339")
			return
		}
	}

	var booked *bool
	if raw := strings.TrimSpace(q.Get("booked")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid booked; expected true or false")
			return
		}
		booked = &v
	}

	slots, err := s.scheduling.ListSlots(r.Context(), providerID, from, to, booked)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if slots == nil {
		slots = []models.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// handleSlotByID serves /api/v1/slots/{id} and /api/v1/slots/{id}/reservations.
func (s *HTTPServer) handleSlotByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/slots/")
	idStr, tail, _ := strings.Cut(rest, "/")

	id, err := parseID(idStr)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	switch {
	case tail == "" && r.Method == http.MethodDelete:
		s.deleteSlot(w, r, id)
	case tail == "" && r.Method == http.MethodGet:
		s.getSlot(w, r, id)
	case tail == "reservations" && r.Method == http.MethodGet:
		s.listSlotReservations(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getSlot(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := s.requireActor(w, r); !ok {
		return
	}

	slot, err := s.scheduling.GetSlot(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *HTTPServer) deleteSlot(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	if err := s.scheduling.DeleteSlot(r.Context(), actor, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// listSlotReservations returns a slot's full booking history, oldest
// first. Faculty see their own slots; admins see any.
func (s *HTTPServer) listSlotReservations(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	history, err := s.scheduling.ListSlotHistory(r.Context(), actor, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if history == nil {
		history = []models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": history})
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReservations(w, r)
	case http.MethodPost:
		s.book(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) book(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		SlotID int64  `json:"slot_id"`
		Notes  string `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.SlotID == 0 {
		writeError(w, http.StatusBadRequest, "slot_id is required")
		return
	}

	res, err := s.scheduling.Book(r.Context(), actor, body.SlotID, body.Notes)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// listReservations is actor-scoped: students see their own bookings,
// faculty see their provider ledger, admins pick a view via query.
func (s *HTTPServer) listReservations(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var (
		reservations []models.Reservation
		err          error
	)

	switch {
	case actor.IsStudent():
		reservations, err = s.scheduling.ListReservationsByStudent(r.Context(), actor.ID)
	case actor.IsFaculty():
		reservations, err = s.scheduling.ListReservationsByProvider(r.Context(), actor.ID)
	case actor.IsAdmin():
		q := r.URL.Query()
		if studentID, perr := parseID(q.Get("student_id")); perr == nil && studentID != 0 {
			reservations, err = s.scheduling.ListReservationsByStudent(r.Context(), studentID)
		} else if providerID, perr := parseID(q.Get("provider_id")); perr == nil && providerID != 0 {
			reservations, err = s.scheduling.ListReservationsByProvider(r.Context(), providerID)
		} else {
			writeError(w, http.StatusBadRequest, "student_id or provider_id is required")
			return
		}
	default:
		writeError(w, http.StatusForbidden, "unknown role")
		return
	}

	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if reservations == nil {
		reservations = []models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

// handleReservationByID serves /api/v1/reservations/{id} and
// /api/v1/reservations/{id}/cancel.
func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reservations/")
	idStr, tail, _ := strings.Cut(rest, "/")

	id, err := parseID(idStr)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	switch {
	case tail == "" && r.Method == http.MethodGet:
		s.getReservation(w, r, id)
	case tail == "cancel" && r.Method == http.MethodPost:
		s.cancel(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getReservation(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	res, err := s.scheduling.GetReservation(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Reservations are visible to their parties and admins only.
	if !actor.IsAdmin() && actor.ID != res.StudentID && actor.ID != res.ProviderID {
		writeError(w, http.StatusForbidden, service.ErrNotAllowed.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) cancel(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	res, err := s.scheduling.Cancel(r.Context(), actor, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	notifications, err := s.scheduling.ListNotifications(r.Context(), actor.ID, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if notifications == nil {
		notifications = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

// handleNotificationByID serves /api/v1/notifications/{id}/read.
func (s *HTTPServer) handleNotificationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/notifications/")
	idStr, tail, _ := strings.Cut(rest, "/")

	id, err := parseID(idStr)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if tail != "read" || r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	if err := s.scheduling.MarkNotificationRead(r.Context(), actor, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExport streams an xlsx snapshot of a provider's reservation
// ledger. Faculty export their own; admins export any provider.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "exports are not enabled")
		return
	}

	providerID, err := parseID(r.URL.Query().Get("provider_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider_id")
		return
	}
	if providerID == 0 {
		providerID = actor.ID
	}

	if !actor.IsAdmin() && (!actor.IsFaculty() || actor.ID != providerID) {
		writeError(w, http.StatusForbidden, service.ErrNotAllowed.Error())
		return
	}

	filePath, err := s.exporter.ExportProviderReservations(r.Context(), providerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=reservations.xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, filePath)
}

func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return models.Actor{}, false
	}
	return actor, true
}

// writeServiceError maps domain errors onto HTTP status codes. Conflicts
// carry 409 so clients can tell "lost the race" from "bad request".
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, database.ErrPastDate):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, database.ErrSlotNotFound),
		errors.Is(err, database.ErrReservationNotFound),
		errors.Is(err, database.ErrNotificationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrSlotTaken),
		errors.Is(err, database.ErrAlreadyCancelled),
		errors.Is(err, database.ErrSlotHasReservation):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("request_id", r.Header.Get(requestIDHeader)).
			Str("path", r.URL.Path).
			Msg("internal error")
		writeError(w, status, "internal error")
		return
	}

	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
