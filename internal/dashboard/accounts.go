package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensass/eldflow/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	BcryptCost = 12

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8

	// RoleDriver is the role of self-registered accounts.
	RoleDriver = "driver"
)

var (
	// ErrEmailTaken is returned when an account already uses the email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrWeakPassword is returned for passwords below MinPasswordLength.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

	// ErrInvalidEmail is returned for malformed addresses.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrNameRequired is returned when the name is blank.
	ErrNameRequired = errors.New("name is required")
)

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterDriver validates req and creates the account.
func RegisterDriver(ctx context.Context, drivers storage.DriverStore, req SignupRequest, now time.Time) (*storage.Driver, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	email := NormalizeEmail(req.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	driver := storage.Driver{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleDriver,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := drivers.Create(ctx, driver); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create driver: %w", err)
	}
	return &driver, nil
}
