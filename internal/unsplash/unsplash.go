// Package unsplash picks trip cover photos from Unsplash search.
package unsplash

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/upstream"
	"github.com/rs/zerolog"
)

// Client searches Unsplash photos.
type Client struct {
	http      *upstream.Client
	baseURL   string
	accessKey string
	pick      func(n int) int
}

// New creates a client from the unsplash config section.
func New(cfg config.UnsplashConfig, logger zerolog.Logger) (*Client, error) {
	timeout, err := upstream.ParseTimeout(cfg.Timeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:      upstream.New(upstream.Options{Service: "unsplash", Timeout: timeout, MaxRetries: cfg.MaxRetries}, logger),
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		accessKey: cfg.AccessKey,
		pick:      rand.Intn,
	}, nil
}

type searchResponse struct {
	Total   int `json:"total"`
	Results []struct {
		ID   string `json:"id"`
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// Cover returns the regular-size URL of a random photo matching topic, or
// "" when nothing matches.
func (c *Client) Cover(ctx context.Context, topic string) (string, error) {
	if c.accessKey == "" {
		return "", upstream.ErrNotConfigured
	}

	q := url.Values{}
	q.Set("query", topic)
	q.Set("per_page", "10")

	headers := http.Header{}
	headers.Set("Authorization", "Client-ID "+c.accessKey)
	headers.Set("Accept-Version", "v1")

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/search/photos?"+q.Encode(), headers, &resp); err != nil {
		return "", fmt.Errorf("unsplash search: %w", err)
	}

	urls := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URLs.Regular != "" {
			urls = append(urls, r.URLs.Regular)
		}
	}
	if len(urls) == 0 {
		return "", nil
	}
	return urls[c.pick(len(urls))], nil
}
