package dashboard

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensass/eldflow/internal/clock"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/opensass/eldflow/internal/storage/bolt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *bolt.Store {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "eldflow.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestAuth(t *testing.T) (*AuthService, *clock.Fixed) {
	t.Helper()

	store := openTestStore(t)
	clk := clock.NewFixed(time.Now())
	return NewAuthService(store.Drivers(), store.Sessions(), "test-secret", time.Hour, clk, zerolog.Nop()), clk
}

func TestSignupValidation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignupRequest
		err  error
	}{
		{name: "blank name", req: SignupRequest{Name: " ", Email: "a@example.com", Password: "password1"}, err: ErrNameRequired},
		{name: "bad email", req: SignupRequest{Name: "Ada", Email: "not-an-email", Password: "password1"}, err: ErrInvalidEmail},
		{name: "short password", req: SignupRequest{Name: "Ada", Email: "a@example.com", Password: "short"}, err: ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Signup(ctx, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSignupNormalizesEmail(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	driver, err := auth.Signup(ctx, SignupRequest{Name: "Ada", Email: " Ada@Example.COM ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", driver.Email)
	assert.Equal(t, RoleDriver, driver.Role)
	assert.NotEqual(t, "password1", driver.PasswordHash)

	_, err = auth.Signup(ctx, SignupRequest{Name: "Other", Email: "ada@example.com", Password: "password2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginAndAuthenticate(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, token, err := auth.Login(ctx, "ADA@example.com", "password1")
	require.NoError(t, err)

	claims, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.DriverID, claims.DriverID)
	assert.Equal(t, session.ID, claims.SessionID)

	require.NoError(t, auth.Logout(ctx, session.ID))
	_, err = auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	auth, clk := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)
	_, token, err := auth.Login(ctx, "ada@example.com", "password1")
	require.NoError(t, err)

	other := NewAuthService(nil, nil, "other-secret", time.Hour, clk, zerolog.Nop())
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.ValidateToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	clk.Advance(2 * time.Hour)
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUpdateProfileAndChangePassword(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	driver, err := auth.Signup(ctx, SignupRequest{Name: "Ada", Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)

	blank := "  "
	_, err = auth.UpdateProfile(ctx, driver.ID, ProfileRequest{Name: &blank})
	assert.ErrorIs(t, err, ErrNameRequired)

	name, license := " Ada Lovelace ", "TX-1234"
	updated, err := auth.UpdateProfile(ctx, driver.ID, ProfileRequest{Name: &name, LicenseNumber: &license})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Equal(t, "TX-1234", updated.LicenseNumber)

	assert.ErrorIs(t, auth.ChangePassword(ctx, driver.ID, "wrong", "password2"), ErrInvalidCredentials)
	assert.ErrorIs(t, auth.ChangePassword(ctx, driver.ID, "password1", "short"), ErrWeakPassword)
	require.NoError(t, auth.ChangePassword(ctx, driver.ID, "password1", "password2"))

	_, _, err = auth.Login(ctx, "ada@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.Login(ctx, "ada@example.com", "password2")
	assert.NoError(t, err)
}

func TestCleanupExpiredSessions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	sessions := store.Sessions()
	require.NoError(t, sessions.Put(ctx, storage.Session{ID: "live", DriverID: "d", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.Put(ctx, storage.Session{ID: "dead", DriverID: "d", ExpiresAt: now.Add(-time.Hour)}))

	auth := NewAuthService(store.Drivers(), sessions, "secret", time.Hour, clock.NewFixed(now), zerolog.Nop())
	count, err := auth.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, auth.ActiveSessions(ctx))

	_, err = sessions.Get(ctx, "dead")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
