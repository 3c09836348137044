package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opensass/eldflow/internal/eld"
	"github.com/opensass/eldflow/internal/metrics"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
)

// EldLogHandler serves the duty-status ledger of a trip.
type EldLogHandler struct {
	store  storage.Store
	panels *PanelRegistry
	logger zerolog.Logger
}

// NewEldLogHandler creates a new ELD log handler.
func NewEldLogHandler(store storage.Store, panels *PanelRegistry, logger zerolog.Logger) *EldLogHandler {
	return &EldLogHandler{
		store:  store,
		panels: panels,
		logger: logger.With().Str("handler", "eld").Logger(),
	}
}

// formHour accepts an hour typed into the form either as a JSON number or
// as the raw text.
type formHour string

func (h *formHour) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = formHour(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*h = ""
		return nil
	}
	*h = formHour(data)
	return nil
}

// SegmentRequest is one duty-status segment as submitted by the log form.
type SegmentRequest struct {
	StartHour formHour `json:"startHour"`
	EndHour   formHour `json:"endHour"`
	Status    string   `json:"status"`
	Location  string   `json:"location"`
	Note      string   `json:"note"`
}

func (req SegmentRequest) candidate() (eld.RawCandidate, error) {
	status, ok := eld.ParseStatus(req.Status)
	if !ok {
		return eld.RawCandidate{}, &eld.ValidationError{
			Kind:    eld.KindInvalidStatus,
			Field:   "status",
			Message: "unknown duty status: " + req.Status,
		}
	}
	return eld.RawCandidate{
		StartHour: string(req.StartHour),
		EndHour:   string(req.EndHour),
		Status:    status,
		Location:  req.Location,
		Note:      req.Note,
	}, nil
}

// LedgerResponse is the stored ledger of a trip.
type LedgerResponse struct {
	TripID   string             `json:"tripId"`
	Logs     []storage.EldLog   `json:"logs"`
	Segments []eld.Segment      `json:"segments"`
	Totals   eld.AggregateHours `json:"totals"`
	Overlaps []eld.Overlap      `json:"overlaps,omitempty"`
	Dropped  int                `json:"dropped"`
	Count    int                `json:"count"`
}

// SubmitResponse is returned for an accepted segment.
type SubmitResponse struct {
	ID       string             `json:"id"`
	Segment  eld.Segment        `json:"segment"`
	Totals   eld.AggregateHours `json:"totals"`
	Snapshot eld.Snapshot       `json:"snapshot"`
}

// List returns the persisted logs of a trip with the ledger rebuilt from
// them. Records with a status the ledger does not count are dropped from
// the segments and reported.
func (h *EldLogHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	tripID := mux.Vars(r)["id"]
	if _, err := ownedTrip(ctx, h.store.Trips(), id.DriverID, tripID); err != nil {
		writeStoreError(w, h.logger, err, "trip")
		return
	}

	logs, err := h.store.EldLogs().ListByTrip(ctx, id.DriverID, tripID)
	if err != nil {
		writeStoreError(w, h.logger, err, "eld logs")
		return
	}

	records := make([]eld.Record, 0, len(logs))
	for _, log := range logs {
		records = append(records, storage.RecordFromLog(log))
	}
	ledger, dropped := eld.FromEntriesReport(tripID, records)
	if len(dropped) > 0 {
		metrics.DroppedRecords.Add(float64(len(dropped)))
		h.logger.Debug().
			Str("trip_id", tripID).
			Int("dropped", len(dropped)).
			Msg("Dropped records with unrecognized status")
	}

	if logs == nil {
		logs = []storage.EldLog{}
	}
	writeJSON(w, http.StatusOK, LedgerResponse{
		TripID:   tripID,
		Logs:     logs,
		Segments: ledger.Segments(),
		Totals:   eld.Aggregate(ledger).Rounded(),
		Overlaps: ledger.Overlaps(),
		Dropped:  len(dropped),
		Count:    len(logs),
	})
}

const submitAttempts = 3

// Submit validates a segment and persists it through the session's panel.
func (h *EldLogHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req SegmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	raw, err := req.candidate()
	if err != nil {
		var verr *eld.ValidationError
		errors.As(err, &verr)
		metrics.SegmentSubmissions.WithLabelValues("invalid").Inc()
		writeValidationError(w, verr)
		return
	}

	ctx := r.Context()
	tripID := mux.Vars(r)["id"]

	var (
		panel *eld.Panel
		res   eld.Result
	)
	// Another view of the same session may switch the shared panel between
	// selecting the trip and submitting.
	for attempt := 0; attempt < submitAttempts; attempt++ {
		panel, err = h.panels.Panel(ctx, id, tripID)
		if err != nil {
			h.writePersistenceError(w, err)
			return
		}

		res, err = panel.Submit(ctx, tripID, raw).Wait(ctx)
		if err != nil {
			// The client went away; the submission still completes.
			if errors.Is(err, context.DeadlineExceeded) {
				writeError(w, http.StatusGatewayTimeout, "Submission timed out")
			}
			return
		}
		if !errors.Is(res.Err, eld.ErrTripChanged) {
			break
		}
	}

	if errors.Is(res.Err, eld.ErrTripChanged) {
		metrics.SegmentSubmissions.WithLabelValues("stale").Inc()
		writeError(w, http.StatusConflict, "Trip changed during submission, please retry")
		return
	}

	if res.State == eld.StateFailed {
		var verr *eld.ValidationError
		if errors.As(res.Err, &verr) {
			metrics.SegmentSubmissions.WithLabelValues("invalid").Inc()
			writeValidationError(w, verr)
			return
		}
		metrics.SegmentSubmissions.WithLabelValues("failed").Inc()
		h.writePersistenceError(w, res.Err)
		return
	}

	if res.Stale {
		metrics.SegmentSubmissions.WithLabelValues("stale").Inc()
	} else {
		metrics.SegmentSubmissions.WithLabelValues("success").Inc()
	}
	metrics.SegmentHours.WithLabelValues(res.Segment.Status.String()).Add(res.Segment.Duration())

	h.logger.Info().
		Str("trip_id", tripID).
		Str("log_id", res.ID).
		Str("status", res.Segment.Status.String()).
		Float64("hours", res.Segment.Duration()).
		Msg("Segment stored")

	writeJSON(w, http.StatusCreated, SubmitResponse{
		ID:       res.ID,
		Segment:  res.Segment,
		Totals:   res.Totals.Rounded(),
		Snapshot: panel.Snapshot(),
	})
}

func (h *EldLogHandler) writePersistenceError(w http.ResponseWriter, err error) {
	pe := eld.ClassifyPersistence(err)
	switch pe.Kind {
	case eld.PersistenceUnauthorized:
		// Trips of other drivers are reported as missing.
		writeError(w, http.StatusNotFound, "Trip not found")
	case eld.PersistenceNetworkFailure:
		h.logger.Warn().Err(err).Msg("Segment storage unreachable")
		writeError(w, http.StatusServiceUnavailable, "Log storage is unavailable")
	default:
		h.logger.Error().Err(err).Msg("Failed to store segment")
		writeError(w, http.StatusInternalServerError, "Failed to store segment")
	}
}
