package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerClient(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	defer limiter.Stop()

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	assert.True(t, limiter.Allow("10.0.0.2"), "other clients keep their own budget")
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()

	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name         string
		origins      []string
		method       string
		origin       string
		expectStatus int
		expectHeader string
	}{
		{name: "wildcard preflight", origins: []string{"*"}, method: http.MethodOptions, origin: "https://app.example", expectStatus: http.StatusNoContent, expectHeader: "https://app.example"},
		{name: "allowed origin", origins: []string{"https://app.example"}, method: http.MethodGet, origin: "https://app.example", expectStatus: http.StatusTeapot, expectHeader: "https://app.example"},
		{name: "foreign origin", origins: []string{"https://app.example"}, method: http.MethodGet, origin: "https://evil.example", expectStatus: http.StatusTeapot, expectHeader: ""},
		{name: "no origin", origins: []string{"*"}, method: http.MethodGet, expectStatus: http.StatusTeapot, expectHeader: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/trips", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()

			CORSMiddleware(tt.origins)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectStatus, rec.Code)
			assert.Equal(t, tt.expectHeader, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := tokenFromRequest(req)
	assert.ErrorIs(t, err, ErrInvalidToken)

	req.Header.Set("Authorization", "Token abc")
	_, err = tokenFromRequest(req)
	assert.ErrorIs(t, err, ErrInvalidToken)

	req.Header.Set("Authorization", "Bearer abc")
	token, err := tokenFromRequest(req)
	assert.NoError(t, err)
	assert.Equal(t, "abc", token)

	cookieReq := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieReq.AddCookie(&http.Cookie{Name: TokenCookie, Value: "from-cookie"})
	token, err = tokenFromRequest(cookieReq)
	assert.NoError(t, err)
	assert.Equal(t, "from-cookie", token)
}
