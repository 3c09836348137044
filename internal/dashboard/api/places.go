package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/opensass/eldflow/internal/places"
	"github.com/rs/zerolog"
)

// Autocompleter suggests places for partial input.
type Autocompleter interface {
	Autocomplete(ctx context.Context, input string) ([]places.Prediction, error)
}

// PlacesHandler proxies place suggestions for the trip form.
type PlacesHandler struct {
	places Autocompleter
	logger zerolog.Logger
}

// NewPlacesHandler creates a new places handler.
func NewPlacesHandler(places Autocompleter, logger zerolog.Logger) *PlacesHandler {
	return &PlacesHandler{
		places: places,
		logger: logger.With().Str("handler", "places").Logger(),
	}
}

// Autocomplete returns predictions for ?input=.
func (h *PlacesHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if input == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": []places.Prediction{}})
		return
	}

	predictions, err := h.places.Autocomplete(r.Context(), input)
	if err != nil {
		writeStoreError(w, h.logger, err, "places")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": orEmpty(predictions),
	})
}
