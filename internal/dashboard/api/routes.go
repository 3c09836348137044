package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
)

// RouteHandler handles routes, waypoints and route stops.
type RouteHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewRouteHandler creates a new route handler.
func NewRouteHandler(store storage.Store, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{
		store:  store,
		logger: logger.With().Str("handler", "route").Logger(),
	}
}

// WaypointRequest is an intermediate point, optionally with an ETA.
type WaypointRequest struct {
	Location string     `json:"location"`
	ETA      *time.Time `json:"eta,omitempty"`
}

// RouteRequest is the body of a route creation.
type RouteRequest struct {
	StartLocation        string            `json:"startLocation"`
	EndLocation          string            `json:"endLocation"`
	Waypoints            []WaypointRequest `json:"waypoints"`
	TotalDistanceMiles   float64           `json:"totalDistanceMiles"`
	EstimatedTimeMinutes int64             `json:"estimatedTimeMinutes"`
}

// RouteStopRequest is the body of a route stop creation.
type RouteStopRequest struct {
	Location        string           `json:"location"`
	StopType        storage.StopType `json:"stopType"`
	DurationMinutes int64            `json:"durationMinutes"`
}

func (req WaypointRequest) waypoint() (storage.Waypoint, bool) {
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return storage.Waypoint{}, false
	}
	return storage.Waypoint{ID: uuid.NewString(), Location: location, ETA: req.ETA}, true
}

// ownedRoute loads a route whose trip belongs to driverID.
func (h *RouteHandler) ownedRoute(ctx context.Context, driverID, routeID string) (*storage.Route, error) {
	route, err := h.store.Routes().Get(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if _, err := ownedTrip(ctx, h.store.Trips(), driverID, route.TripID); err != nil {
		return nil, err
	}
	return route, nil
}

// List returns the routes of a trip.
func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
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

	routes, err := h.store.Routes().ListByTrip(ctx, trip.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "routes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"routes": orEmpty(routes),
		"count":  len(routes),
	})
}

// Create stores a route on a trip.
func (h *RouteHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req RouteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	route := storage.Route{
		ID:                   uuid.NewString(),
		TripID:               trip.ID,
		StartLocation:        strings.TrimSpace(req.StartLocation),
		EndLocation:          strings.TrimSpace(req.EndLocation),
		TotalDistanceMiles:   req.TotalDistanceMiles,
		EstimatedTimeMinutes: req.EstimatedTimeMinutes,
		Waypoints:            []storage.Waypoint{},
	}
	if route.StartLocation == "" || route.EndLocation == "" {
		writeError(w, http.StatusBadRequest, "Start and end locations are required")
		return
	}
	if route.TotalDistanceMiles < 0 || route.EstimatedTimeMinutes < 0 {
		writeError(w, http.StatusBadRequest, "Distance and time cannot be negative")
		return
	}
	for _, wr := range req.Waypoints {
		wp, ok := wr.waypoint()
		if !ok {
			writeError(w, http.StatusBadRequest, "Waypoint location is required")
			return
		}
		route.Waypoints = append(route.Waypoints, wp)
	}

	if err := h.store.Routes().Add(ctx, route); err != nil {
		writeStoreError(w, h.logger, err, "route")
		return
	}

	h.logger.Info().Str("trip_id", trip.ID).Str("route_id", route.ID).Int("waypoints", len(route.Waypoints)).Msg("Route created")
	writeJSON(w, http.StatusCreated, route)
}

// CreateWaypoint stores a standalone waypoint.
func (h *RouteHandler) CreateWaypoint(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	var req WaypointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	wp, ok := req.waypoint()
	if !ok {
		writeError(w, http.StatusBadRequest, "Location is required")
		return
	}

	if err := h.store.Routes().AddWaypoint(r.Context(), wp); err != nil {
		writeStoreError(w, h.logger, err, "waypoint")
		return
	}
	writeJSON(w, http.StatusCreated, wp)
}

// ListStops returns the stops of a route.
func (h *RouteHandler) ListStops(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	route, err := h.ownedRoute(ctx, id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "route")
		return
	}

	stops, err := h.store.Routes().ListStops(ctx, route.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "route stops")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stops": orEmpty(stops),
		"count": len(stops),
	})
}

// CreateStop adds a planned stop to a route.
func (h *RouteHandler) CreateStop(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	route, err := h.ownedRoute(ctx, id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "route")
		return
	}

	var req RouteStopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		writeError(w, http.StatusBadRequest, "Location is required")
		return
	}
	if !req.StopType.Valid() {
		writeError(w, http.StatusBadRequest, "Stop type must be Rest, Fueling or Inspection")
		return
	}
	if req.DurationMinutes < 0 {
		writeError(w, http.StatusBadRequest, "Duration cannot be negative")
		return
	}

	stop := storage.RouteStop{
		ID:              uuid.NewString(),
		RouteID:         route.ID,
		Location:        req.Location,
		StopType:        req.StopType,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.store.Routes().AddStop(ctx, stop); err != nil {
		writeStoreError(w, h.logger, err, "route stop")
		return
	}
	writeJSON(w, http.StatusCreated, stop)
}
