// Package places talks to the Google Places Autocomplete and Distance
// Matrix APIs.
package places

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/upstream"
	"github.com/rs/zerolog"
)

// MetersPerMile converts Distance Matrix meters to miles.
const MetersPerMile = 1609.34

// Prediction is one autocomplete suggestion.
type Prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// Route is the driving distance and duration between two places.
type Route struct {
	DistanceMiles   float64 `json:"distance_miles"`
	DurationSeconds int64   `json:"duration_seconds"`
}

// DurationMinutes rounds the duration to whole minutes.
func (r Route) DurationMinutes() int64 {
	return (r.DurationSeconds + 30) / 60
}

// Client calls the Google Maps web services.
type Client struct {
	http    *upstream.Client
	baseURL string
	apiKey  string
}

// New creates a client from the google config section.
func New(cfg config.GoogleConfig, logger zerolog.Logger) (*Client, error) {
	timeout, err := upstream.ParseTimeout(cfg.Timeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:    upstream.New(upstream.Options{Service: "google_maps", Timeout: timeout, MaxRetries: cfg.MaxRetries}, logger),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.MapsAPIKey,
	}, nil
}

type autocompleteResponse struct {
	Predictions  []Prediction `json:"predictions"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// Autocomplete returns place suggestions for a partial address.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	if c.apiKey == "" {
		return nil, upstream.ErrNotConfigured
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return []Prediction{}, nil
	}

	q := url.Values{}
	q.Set("input", input)
	q.Set("key", c.apiKey)

	var resp autocompleteResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/place/autocomplete/json?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("places autocomplete: %w", err)
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	if resp.Predictions == nil {
		resp.Predictions = []Prediction{}
	}
	return resp.Predictions, nil
}

type matrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"` // meters
			} `json:"distance"`
			Duration struct {
				Value int64 `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Distance returns the driving route between origin and destination. Only
// the first matrix element is used; an empty matrix yields a zero Route.
func (c *Client) Distance(ctx context.Context, origin, destination string) (Route, error) {
	if c.apiKey == "" {
		return Route{}, upstream.ErrNotConfigured
	}

	q := url.Values{}
	q.Set("origins", origin)
	q.Set("destinations", destination)
	q.Set("units", "imperial")
	q.Set("key", c.apiKey)

	var resp matrixResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/distancematrix/json?"+q.Encode(), nil, &resp); err != nil {
		return Route{}, fmt.Errorf("distance matrix: %w", err)
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return Route{}, err
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Route{}, nil
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "" && el.Status != "OK" {
		return Route{}, nil
	}
	return Route{
		DistanceMiles:   el.Distance.Value / MetersPerMile,
		DurationSeconds: el.Duration.Value,
	}, nil
}

// checkStatus maps the API's in-body status to an error. ZERO_RESULTS is
// a valid empty answer.
func checkStatus(status, message string) error {
	switch status {
	case "", "OK", "ZERO_RESULTS":
		return nil
	default:
		if message != "" {
			return fmt.Errorf("google maps: %s: %s", status, message)
		}
		return fmt.Errorf("google maps: %s", status)
	}
}
