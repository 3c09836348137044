package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opensass/eldflow/internal/eld"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/opensass/eldflow/internal/upstream"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// writeValidationError reports a rejected segment.
func writeValidationError(w http.ResponseWriter, verr *eld.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   http.StatusText(http.StatusUnprocessableEntity),
		Message: verr.Message,
		Code:    http.StatusUnprocessableEntity,
		Kind:    string(verr.Kind),
		Field:   verr.Field,
	})
}

// writeStoreError maps storage and upstream errors to a status code.
// Anything unexpected is logged and reported as a 500.
func writeStoreError(w http.ResponseWriter, logger zerolog.Logger, err error, what string) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, upstream.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "External service is not configured")
	case errors.As(err, &se), errors.Is(err, upstream.ErrUnavailable):
		logger.Warn().Err(err).Msg("Upstream request failed")
		writeError(w, http.StatusBadGateway, "External service request failed")
	default:
		logger.Error().Err(err).Msgf("Failed to handle %s", what)
		writeError(w, http.StatusInternalServerError, "Failed to process "+what)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
