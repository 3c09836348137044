// Package upstream builds the HTTP clients used for external APIs.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/opensass/eldflow/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured is returned by clients that have no API key.
	ErrNotConfigured = errors.New("upstream: api key not configured")

	// ErrUnavailable wraps transport failures and unusable responses.
	ErrUnavailable = errors.New("upstream: service unavailable")
)

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 512

// StatusError is returned when an API answers with a non-2xx status.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Service, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	Service    string
	Timeout    time.Duration
	MaxRetries int
}

// Client is a retrying JSON client for one external service.
type Client struct {
	service string
	http    *retryablehttp.Client
}

// New creates a client that logs retries through logger.
func New(opts Options, logger zerolog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.MaxRetries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = leveledLogger{logger: logger.With().Str("component", "upstream").Str("service", opts.Service).Logger()}

	return &Client{service: opts.Service, http: rc}
}

// ParseTimeout parses a duration, falling back to def when empty.
func ParseTimeout(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", value, err)
	}
	return d, nil
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, headers http.Header, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, headers, out)
}

// PostJSON sends in as a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, headers, out)
}

func (c *Client) do(req *retryablehttp.Request, headers http.Header, out any) error {
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamDuration.WithLabelValues(c.service).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.service, "error").Inc()
		return fmt.Errorf("%w: http request: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(c.service, "status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Service: c.service, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.service, "decode").Inc()
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	metrics.UpstreamRequests.WithLabelValues(c.service, "ok").Inc()
	return nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
