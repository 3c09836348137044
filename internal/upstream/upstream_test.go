package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	c := New(Options{Service: "test", Timeout: time.Second, MaxRetries: 2}, zerolog.Nop())

	var out struct {
		Value int `json:"value"`
	}
	err := c.GetJSON(context.Background(), srv.URL, http.Header{"X-Test": {"yes"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	c := New(Options{Service: "test", Timeout: time.Second}, zerolog.Nop())
	err := c.PostJSON(context.Background(), srv.URL, nil, map[string]string{"a": "b"}, &struct{}{})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Equal(t, "bad key", se.Body)
}

func TestParseTimeout(t *testing.T) {
	d, err := ParseTimeout("", 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	_, err = ParseTimeout("soon", time.Second)
	assert.Error(t, err)
}

func TestGetJSONDecodeFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	c := New(Options{Service: "test", Timeout: time.Second}, zerolog.Nop())
	err := c.GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
