package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/opensass/eldflow/internal/places"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/opensass/eldflow/internal/upstream"
	"github.com/rs/zerolog"
)

// MaxCycleHours is the 70-hour/8-day limit a trip's used cycle may not exceed.
const MaxCycleHours = 70.0

// DistanceFinder computes the drive between two places.
type DistanceFinder interface {
	Distance(ctx context.Context, origin, destination string) (places.Route, error)
}

// CoverFinder picks a cover picture for a place.
type CoverFinder interface {
	Cover(ctx context.Context, topic string) (string, error)
}

// TripHandler handles trip API requests.
type TripHandler struct {
	store     storage.Store
	distance  DistanceFinder
	covers    CoverFinder
	onDeleted []func(driverID, tripID string)
	logger    zerolog.Logger
}

// NewTripHandler creates a new trip handler. distance and covers may be nil.
func NewTripHandler(store storage.Store, distance DistanceFinder, covers CoverFinder, logger zerolog.Logger) *TripHandler {
	return &TripHandler{
		store:    store,
		distance: distance,
		covers:   covers,
		logger:   logger.With().Str("handler", "trip").Logger(),
	}
}

// OnDeleted registers fn to run after a trip is deleted.
func (h *TripHandler) OnDeleted(fn func(driverID, tripID string)) {
	h.onDeleted = append(h.onDeleted, fn)
}

// CreateTripRequest is the body of a trip creation.
type CreateTripRequest struct {
	CurrentLocation string             `json:"currentLocation"`
	PickupLocation  string             `json:"pickupLocation"`
	DropoffLocation string             `json:"dropoffLocation"`
	CycleUsedHours  float64            `json:"cycleUsedHours"`
	Status          storage.TripStatus `json:"status"`
}

// UpdateTripRequest changes the status or location of a trip.
type UpdateTripRequest struct {
	Status          *storage.TripStatus `json:"status,omitempty"`
	CurrentLocation *string             `json:"currentLocation,omitempty"`
}

// ownedTrip loads a trip belonging to driverID. Other drivers' trips are
// reported as missing.
func ownedTrip(ctx context.Context, trips storage.TripStore, driverID, tripID string) (*storage.Trip, error) {
	trip, err := trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID != driverID {
		return nil, storage.ErrNotFound
	}
	return trip, nil
}

// List returns the trips of the current driver.
func (h *TripHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	trips, err := h.store.Trips().ListByDriver(r.Context(), id.DriverID)
	if err != nil {
		writeStoreError(w, h.logger, err, "trips")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trips": trips,
		"count": len(trips),
	})
}

// Get returns a single trip.
func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	trip, err := ownedTrip(r.Context(), h.store.Trips(), id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// Create stores a new trip. Distance, duration and cover are looked up on
// a best-effort basis.
func (h *TripHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req CreateTripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.CurrentLocation = strings.TrimSpace(req.CurrentLocation)
	req.PickupLocation = strings.TrimSpace(req.PickupLocation)
	req.DropoffLocation = strings.TrimSpace(req.DropoffLocation)

	if req.CurrentLocation == "" || req.PickupLocation == "" || req.DropoffLocation == "" {
		writeError(w, http.StatusBadRequest, "Current, pickup and dropoff locations are required")
		return
	}
	if req.CycleUsedHours < 0 || req.CycleUsedHours > MaxCycleHours {
		writeError(w, http.StatusBadRequest, "Cycle used hours must be between 0 and 70")
		return
	}

	trip := storage.Trip{
		ID:              uuid.NewString(),
		DriverID:        id.DriverID,
		CurrentLocation: req.CurrentLocation,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		CycleUsedHours:  req.CycleUsedHours,
		Status:          req.Status,
	}
	if trip.Status == "" {
		trip.Status = storage.TripPending
	}

	ctx := r.Context()
	h.enrich(ctx, &trip)

	if err := h.store.Trips().Create(ctx, trip); err != nil {
		writeStoreError(w, h.logger, err, "trip")
		return
	}

	created, err := h.store.Trips().Get(ctx, trip.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "trip")
		return
	}

	h.logger.Info().
		Str("trip_id", trip.ID).
		Str("driver_id", id.DriverID).
		Msg("Trip created")

	writeJSON(w, http.StatusCreated, created)
}

// enrich fills in distance, duration and picture. Failures only log.
func (h *TripHandler) enrich(ctx context.Context, trip *storage.Trip) {
	if h.distance != nil {
		route, err := h.distance.Distance(ctx, trip.CurrentLocation, trip.DropoffLocation)
		if err != nil {
			h.lookupFailed(err, trip.ID, "Distance lookup failed")
		}
		miles := route.DistanceMiles
		minutes := route.DurationMinutes()
		trip.DistanceMiles = &miles
		trip.EstimatedDuration = &minutes
	}

	if h.covers != nil {
		picture, err := h.covers.Cover(ctx, trip.CurrentLocation)
		if err != nil {
			h.lookupFailed(err, trip.ID, "Cover lookup failed")
		}
		trip.Picture = picture
	}
}

func (h *TripHandler) lookupFailed(err error, tripID, msg string) {
	event := h.logger.Warn()
	if errors.Is(err, upstream.ErrNotConfigured) {
		event = h.logger.Debug()
	}
	event.Err(err).Str("trip_id", tripID).Msg(msg)
}

// Update changes status and current location.
func (h *TripHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateTripRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Status != nil {
		trip.Status = *req.Status
	}
	if req.CurrentLocation != nil {
		location := strings.TrimSpace(*req.CurrentLocation)
		if location == "" {
			writeError(w, http.StatusBadRequest, "Current location cannot be empty")
			return
		}
		trip.CurrentLocation = location
	}
	trip.UpdatedAt = time.Now()

	if err := h.store.Trips().Update(ctx, *trip); err != nil {
		writeStoreError(w, h.logger, err, "trip")
		return
	}

	h.logger.Info().Str("trip_id", trip.ID).Str("status", string(trip.Status)).Msg("Trip updated")
	writeJSON(w, http.StatusOK, trip)
}

// Delete removes a trip and its ELD logs.
func (h *TripHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.store.Trips().Delete(ctx, trip.ID); err != nil {
		writeStoreError(w, h.logger, err, "trip")
		return
	}

	for _, fn := range h.onDeleted {
		fn(trip.DriverID, trip.ID)
	}

	h.logger.Info().Str("trip_id", trip.ID).Msg("Trip deleted")
	w.WriteHeader(http.StatusNoContent)
}
