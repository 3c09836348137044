package assistant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/upstream"
	"github.com/rs/zerolog"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// Gemini calls the generateContent endpoint of the Gemini API. It is safe
// for concurrent use; build one and share it.
type Gemini struct {
	http    *upstream.Client
	baseURL string
	apiKey  string
	model   string
}

// NewGemini creates a client from the gemini config section.
func NewGemini(cfg config.GeminiConfig, logger zerolog.Logger) (*Gemini, error) {
	timeout, err := upstream.ParseTimeout(cfg.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		http:    upstream.New(upstream.Options{Service: "gemini", Timeout: timeout, MaxRetries: cfg.MaxRetries}, logger),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
	}, nil
}

// Model returns the model name requests are sent to.
func (g *Gemini) Model() string { return g.model }

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// GenerateContent sends a single-turn prompt and returns the text of the
// first candidate.
func (g *Gemini) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", upstream.ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}

	var resp generateResponse
	if err := g.http.PostJSON(ctx, endpoint, http.Header{}, req, &resp); err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: gemini blocked prompt: %s", upstream.ErrUnavailable, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", upstream.ErrUnavailable)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
