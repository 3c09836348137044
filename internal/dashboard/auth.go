package dashboard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opensass/eldflow/internal/clock"
	"github.com/opensass/eldflow/internal/metrics"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultTokenExpiration is the default lifetime of a session.
const DefaultTokenExpiration = 24 * time.Hour

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a JWT token is invalid.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionExpired is returned when the token's session is gone.
	ErrSessionExpired = errors.New("session expired")
)

// Claims represents the JWT claims of a driver session.
type Claims struct {
	DriverID  string `json:"driver_id"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// AuthService handles driver authentication. Every token is bound to a
// stored session so logging out revokes it.
type AuthService struct {
	drivers         storage.DriverStore
	sessions        storage.SessionStore
	jwtSecret       []byte
	tokenExpiration time.Duration
	clock           clock.Clock
	logger          zerolog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(drivers storage.DriverStore, sessions storage.SessionStore, jwtSecret string, tokenExpiration time.Duration, clk clock.Clock, logger zerolog.Logger) *AuthService {
	if tokenExpiration == 0 {
		tokenExpiration = DefaultTokenExpiration
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &AuthService{
		drivers:         drivers,
		sessions:        sessions,
		jwtSecret:       []byte(jwtSecret),
		tokenExpiration: tokenExpiration,
		clock:           clk,
		logger:          logger.With().Str("component", "auth").Logger(),
	}
}

// Signup registers a driver.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*storage.Driver, error) {
	return RegisterDriver(ctx, s.drivers, req, s.clock.Now().UTC())
}

// Login authenticates a driver and creates a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*storage.Session, string, error) {
	driver, err := s.drivers.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get driver: %w", err)
	}

	if err := VerifyPassword(password, driver.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := s.clock.Now().UTC()
	if err := s.drivers.UpdateLastLogin(ctx, driver.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("driver_id", driver.ID).Msg("Failed to update last login")
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, "", fmt.Errorf("generate session ID: %w", err)
	}

	session := &storage.Session{
		ID:           sessionID,
		DriverID:     driver.ID,
		Email:        driver.Email,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.tokenExpiration),
	}
	if err := s.sessions.Put(ctx, *session); err != nil {
		return nil, "", fmt.Errorf("store session: %w", err)
	}
	metrics.ActiveSessions.Inc()

	token, err := s.GenerateToken(session)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return session, token, nil
}

// Logout removes a session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	metrics.ActiveSessions.Dec()
	return nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateToken signs a token for session.
func (s *AuthService) GenerateToken(session *storage.Session) (string, error) {
	claims := &Claims{
		DriverID:  session.DriverID,
		Email:     session.Email,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.DriverID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			NotBefore: jwt.NewNumericDate(session.CreatedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signedToken, nil
}

// Authenticate validates a token, checks its session is still live and
// records activity on it.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.DriverID != claims.DriverID || session.IsExpired(s.clock.Now()) {
		return nil, ErrSessionExpired
	}

	if err := s.sessions.Touch(ctx, session.ID, s.clock.Now().UTC()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Debug().Err(err).Str("session_id", session.ID).Msg("Failed to refresh session")
	}

	return claims, nil
}

// Driver loads the account behind a session.
func (s *AuthService) Driver(ctx context.Context, driverID string) (*storage.Driver, error) {
	return s.drivers.Get(ctx, driverID)
}

// UpdateProfile applies the non-nil fields of req.
func (s *AuthService) UpdateProfile(ctx context.Context, driverID string, req ProfileRequest) (*storage.Driver, error) {
	driver, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		driver.Name = name
	}
	if req.Photo != nil {
		driver.Photo = *req.Photo
	}
	if req.LicenseNumber != nil {
		driver.LicenseNumber = *req.LicenseNumber
	}
	if req.EldDeviceID != nil {
		driver.EldDeviceID = *req.EldDeviceID
	}
	driver.UpdatedAt = s.clock.Now().UTC()

	if err := s.drivers.Update(ctx, *driver); err != nil {
		return nil, fmt.Errorf("update driver: %w", err)
	}
	return driver, nil
}

// ChangePassword changes a driver's password.
func (s *AuthService) ChangePassword(ctx context.Context, driverID, oldPassword, newPassword string) error {
	driver, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return fmt.Errorf("get driver: %w", err)
	}

	if err := VerifyPassword(oldPassword, driver.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	newHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	driver.PasswordHash = newHash
	driver.UpdatedAt = s.clock.Now().UTC()

	if err := s.drivers.Update(ctx, *driver); err != nil {
		return fmt.Errorf("update driver: %w", err)
	}

	return nil
}

// CleanupExpiredSessions removes expired sessions and refreshes the
// active session gauge.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	count, err := s.sessions.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if active, err := s.sessions.Count(ctx); err == nil {
		metrics.ActiveSessions.Set(float64(active))
	}
	return count, nil
}

// ActiveSessions returns the number of stored sessions.
func (s *AuthService) ActiveSessions(ctx context.Context) int {
	count, err := s.sessions.Count(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Failed to count sessions")
		return 0
	}
	return count
}

// generateSessionID generates a random session ID.
func generateSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// StartSessionCleanup periodically removes expired sessions until ctx is
// done.
func (s *AuthService) StartSessionCleanup(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = 15 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := s.CleanupExpiredSessions(ctx)
				if err != nil {
					s.logger.Error().Err(err).Msg("Session cleanup failed")
					continue
				}
				if count > 0 {
					s.logger.Info().Int("count", count).Msg("Cleaned up expired sessions")
				}
			}
		}
	}()
}
