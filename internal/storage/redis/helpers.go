package redis

import (
	"fmt"
	"time"

	"github.com/opensass/eldflow/internal/storage"
)

// parseSession converts a Redis hash to Session
func parseSession(data map[string]string) (*storage.Session, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	lastActivity, err := time.Parse(time.RFC3339Nano, data["last_activity"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_activity: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, data["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}

	return &storage.Session{
		ID:           data["id"],
		DriverID:     data["driver_id"],
		Email:        data["email"],
		CreatedAt:    createdAt,
		LastActivity: lastActivity,
		ExpiresAt:    expiresAt,
	}, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
