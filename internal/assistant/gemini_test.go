package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"<p>Hi "},{"text":"there</p>"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(config.GeminiConfig{APIKey: "secret", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.Model())

	text, err := g.GenerateContent(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi there</p>", text)
}

func TestGeminiBlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	g, err := NewGemini(config.GeminiConfig{APIKey: "secret", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.GenerateContent(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGeminiStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	g, err := NewGemini(config.GeminiConfig{APIKey: "bad", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.GenerateContent(context.Background(), "hello")
	var se *upstream.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestGeminiNotConfigured(t *testing.T) {
	g, err := NewGemini(config.GeminiConfig{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.GenerateContent(context.Background(), "hello")
	assert.ErrorIs(t, err, upstream.ErrNotConfigured)
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "html fence", in: "```html\n<h1>Route</h1>\n```", want: "<h1>Route</h1>"},
		{name: "bare fence", in: "```\n<p>ok</p>\n```\n", want: "<p>ok</p>"},
		{name: "no fence", in: "  <p>plain</p> ", want: "<p>plain</p>"},
		{name: "empty", in: "```html```", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.in))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Amarillo, TX", "Where can I park overnight?")
	assert.Contains(t, prompt, "'Amarillo, TX'")
	assert.Contains(t, prompt, "'Where can I park overnight?'")
	assert.Contains(t, prompt, "HTML")
}
