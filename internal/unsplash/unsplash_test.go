package unsplash

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/photos", r.URL.Path)
		assert.Equal(t, "Amarillo, TX", r.URL.Query().Get("query"))
		assert.Equal(t, "Client-ID access", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"total":2,"results":[{"id":"a","urls":{"regular":"https://img/a"}},{"id":"b","urls":{"regular":"https://img/b"}}]}`))
	}))
	defer srv.Close()

	c, err := New(config.UnsplashConfig{AccessKey: "access", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	c.pick = func(n int) int { return n - 1 }

	got, err := c.Cover(context.Background(), "Amarillo, TX")
	require.NoError(t, err)
	assert.Equal(t, "https://img/b", got)
}

func TestCoverNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":0,"results":[]}`))
	}))
	defer srv.Close()

	c, err := New(config.UnsplashConfig{AccessKey: "access", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	got, err := c.Cover(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCoverNotConfigured(t *testing.T) {
	c, err := New(config.UnsplashConfig{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Cover(context.Background(), "x")
	assert.ErrorIs(t, err, upstream.ErrNotConfigured)
}
