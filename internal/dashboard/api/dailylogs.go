package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/opensass/eldflow/internal/eld"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
)

// DailyLogHandler handles daily logs and their entries.
type DailyLogHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewDailyLogHandler creates a new daily log handler.
func NewDailyLogHandler(store storage.Store, logger zerolog.Logger) *DailyLogHandler {
	return &DailyLogHandler{
		store:  store,
		logger: logger.With().Str("handler", "daily-log").Logger(),
	}
}

// DailyLogRequest is the body of a daily log creation.
type DailyLogRequest struct {
	LogDate   time.Time `json:"logDate"`
	Signature string    `json:"signature,omitempty"`
}

// LogEntryRequest is the body of a log entry creation.
type LogEntryRequest struct {
	Time     time.Time `json:"time"`
	Status   string    `json:"status"`
	Location string    `json:"location"`
	Remarks  string    `json:"remarks,omitempty"`
}

func (h *DailyLogHandler) ownedLog(ctx context.Context, driverID, logID string) (*storage.DailyLog, error) {
	log, err := h.store.DailyLogs().Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	if log.DriverID != driverID {
		return nil, storage.ErrNotFound
	}
	return log, nil
}

// List returns the daily logs of a trip.
func (h *DailyLogHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	trip, err := ownedTrip(ctx, h.store.Trips(), id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "trip")
		return
	}

	logs, err := h.store.DailyLogs().ListByTrip(ctx, id.DriverID, trip.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "daily logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dailyLogs": orEmpty(logs),
		"count":     len(logs),
	})
}

// Create stores a daily log on a trip.
func (h *DailyLogHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	trip, err := ownedTrip(ctx, h.store.Trips(), id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "trip")
		return
	}

	var req DailyLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LogDate.IsZero() {
		writeError(w, http.StatusBadRequest, "Log date is required")
		return
	}
	if req.Signature != "" {
		if _, err := base64.StdEncoding.DecodeString(req.Signature); err != nil {
			writeError(w, http.StatusBadRequest, "Signature must be base64 encoded")
			return
		}
	}

	log := storage.DailyLog{
		ID:        uuid.NewString(),
		DriverID:  id.DriverID,
		TripID:    trip.ID,
		LogDate:   req.LogDate.UTC(),
		Signature: req.Signature,
	}
	if err := h.store.DailyLogs().Add(ctx, log); err != nil {
		writeStoreError(w, h.logger, err, "daily log")
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

// ListEntries returns the entries of a daily log in time order.
func (h *DailyLogHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	log, err := h.ownedLog(ctx, id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "daily log")
		return
	}

	entries, err := h.store.DailyLogs().ListEntries(ctx, log.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "log entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": orEmpty(entries),
		"count":   len(entries),
	})
}

// CreateEntry records a status change on a daily log.
func (h *DailyLogHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	log, err := h.ownedLog(ctx, id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "daily log")
		return
	}

	var req LogEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, ok := eld.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown duty status")
		return
	}
	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		writeError(w, http.StatusBadRequest, "Location is required")
		return
	}
	if req.Time.IsZero() {
		req.Time = time.Now()
	}

	entry := storage.LogEntry{
		ID:       uuid.NewString(),
		LogID:    log.ID,
		Time:     req.Time.UTC(),
		Status:   status.String(),
		Location: req.Location,
		Remarks:  strings.TrimSpace(req.Remarks),
	}
	if err := h.store.DailyLogs().AddEntry(ctx, entry); err != nil {
		writeStoreError(w, h.logger, err, "log entry")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
