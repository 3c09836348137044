package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
)

// FuelingHandler handles fueling stop API requests.
type FuelingHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewFuelingHandler creates a new fueling stop handler.
func NewFuelingHandler(store storage.Store, logger zerolog.Logger) *FuelingHandler {
	return &FuelingHandler{
		store:  store,
		logger: logger.With().Str("handler", "fueling").Logger(),
	}
}

// FuelingStopRequest records fuel taken on.
type FuelingStopRequest struct {
	Location   string  `json:"location"`
	FuelAmount float64 `json:"fuelAmount"`
}

// List returns the fueling stops of a trip.
func (h *FuelingHandler) List(w http.ResponseWriter, r *http.Request) {
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

	stops, err := h.store.FuelingStops().ListByTrip(ctx, trip.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "fueling stops")
		return
	}

	var gallons float64
	for _, stop := range stops {
		gallons += stop.FuelAmount
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fuelingStops": orEmpty(stops),
		"count":        len(stops),
		"totalGallons": gallons,
	})
}

// Create records a fueling stop on a trip.
func (h *FuelingHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req FuelingStopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		writeError(w, http.StatusBadRequest, "Location is required")
		return
	}
	if req.FuelAmount <= 0 {
		writeError(w, http.StatusBadRequest, "Fuel amount must be positive")
		return
	}

	stop := storage.FuelingStop{
		ID:         uuid.NewString(),
		TripID:     trip.ID,
		Location:   req.Location,
		FuelAmount: req.FuelAmount,
	}
	if err := h.store.FuelingStops().Add(ctx, stop); err != nil {
		writeStoreError(w, h.logger, err, "fueling stop")
		return
	}

	writeJSON(w, http.StatusCreated, stop)
}

// orEmpty turns a nil slice into an empty one so it encodes as [].
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
