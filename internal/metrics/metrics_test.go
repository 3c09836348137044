package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerExposesCollectors(t *testing.T) {
	SegmentSubmissions.WithLabelValues("success").Inc()
	SegmentHours.WithLabelValues("Driving").Add(2.5)

	srv := NewServer("127.0.0.1:0", zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `eldflow_segment_submissions_total{outcome="success"}`))
	assert.True(t, strings.Contains(body, `eldflow_segment_hours_total{status="Driving"}`))
}

func TestServerHealth(t *testing.T) {
	srv := NewServer("127.0.0.1:0", zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
