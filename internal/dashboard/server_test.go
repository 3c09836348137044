package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opensass/eldflow/internal/clock"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := openTestStore(t)
	s, err := NewServer(Config{
		JWTSecret:       "test-secret",
		TokenExpiration: time.Hour,
		RateLimit:       1000,
		AllowedOrigins:  []string{"*"},
	}, Dependencies{Store: store, Clock: clock.Real{}}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	return &testServer{t: t, handler: s.Handler()}
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(name, email string) string {
	ts.t.Helper()

	rec := ts.do(http.MethodPost, "/api/auth/signup", "", SignupRequest{Name: name, Email: email, Password: "password1"})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: "password1"})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(ts.t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServerHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServerAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/trips", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := ts.login("Ada", "ada@example.com")

	rec = ts.do(http.MethodPost, "/api/auth/signup", "", SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "password1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[storage.Driver](t, rec)
	assert.Equal(t, "ada@example.com", me.Email)

	rec = ts.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "logout revokes the token")
}

func TestServerTripAndLedger(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login("Ada", "ada@example.com")

	rec := ts.do(http.MethodPost, "/api/trips", token, map[string]interface{}{
		"currentLocation": "Dallas, TX",
		"pickupLocation":  "Fort Worth, TX",
		"dropoffLocation": "Denver, CO",
		"cycleUsedHours":  12.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trip := decode[storage.Trip](t, rec)
	assert.Equal(t, storage.TripPending, trip.Status)

	rec = ts.do(http.MethodPost, "/api/trips", token, map[string]interface{}{
		"currentLocation": "Dallas, TX",
		"pickupLocation":  "Fort Worth, TX",
		"dropoffLocation": "Denver, CO",
		"cycleUsedHours":  71,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/trips/" + trip.ID + "/eld-logs"

	rec = ts.do(http.MethodPost, path, token, map[string]interface{}{"startHour": "8", "endHour": "6", "status": "Driving"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "invalid_range", decode[map[string]interface{}](t, rec)["kind"])

	rec = ts.do(http.MethodPost, path, token, map[string]interface{}{"startHour": 0, "endHour": 1, "status": "Parked"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "status", decode[map[string]interface{}](t, rec)["field"])

	rec = ts.do(http.MethodPost, path, token, map[string]interface{}{"startHour": 0, "endHour": 8, "status": "OffDuty", "location": "Dallas", "note": "rest"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, path, token, map[string]interface{}{"startHour": "8", "endHour": "10.5", "status": "Driving", "location": "Dallas", "note": "haul"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	submitted := decode[map[string]interface{}](t, rec)
	totals := submitted["totals"].(map[string]interface{})
	assert.Equal(t, 8.0, totals["off_duty_hours"])
	assert.Equal(t, 2.5, totals["driving_hours"])

	rec = ts.do(http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decode[map[string]interface{}](t, rec)
	assert.Equal(t, 2.0, ledger["count"])
	assert.Equal(t, 2.5, ledger["totals"].(map[string]interface{})["driving_hours"])

	other := ts.login("Grace", "grace@example.com")
	rec = ts.do(http.MethodGet, "/api/trips/"+trip.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(http.MethodPost, path, other, map[string]interface{}{"startHour": 10.5, "endHour": 12, "status": "OnDuty"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/trips/"+trip.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerPages(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get("Location"))

	rec = ts.do(http.MethodGet, "/login", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="login-form"`)

	token := ts.login("Ada", "ada@example.com")
	rec = ts.do(http.MethodPost, "/api/trips", token, map[string]interface{}{
		"currentLocation": "Amarillo, TX",
		"pickupLocation":  "Dallas, TX",
		"dropoffLocation": "Denver, CO",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	trip := decode[storage.Trip](t, rec)

	rec = ts.do(http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Amarillo, TX")

	rec = ts.do(http.MethodGet, "/dashboard/trip/read/"+trip.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-trip="`+trip.ID+`"`)
	assert.Contains(t, body, "Sleeper Berth")

	rec = ts.do(http.MethodGet, "/dashboard/trip/edit/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	rec = ts.do(http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":404`)
}
