package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestPutSessionScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	script := redis.NewScript(putSessionScript)

	tests := []struct {
		name      string
		id        string
		ttlMillis int64
		want      string
		wantKey   bool
	}{
		{name: "live session", id: "s1", ttlMillis: 60000, want: "OK", wantKey: true},
		{name: "expired session", id: "s2", ttlMillis: 0, want: "EXPIRED", wantKey: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := []string{sessionKey(tt.id), sessionExpiryKey}
			got, err := script.Run(ctx, client, keys,
				tt.id, "driver", "a@b.c", "t0", "t0", "t1", 1000, tt.ttlMillis).Text()
			if err != nil {
				t.Fatalf("script failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
			if mr.Exists(sessionKey(tt.id)) != tt.wantKey {
				t.Errorf("Expected key existence %v", tt.wantKey)
			}
		})
	}

	members, err := mr.ZMembers(sessionExpiryKey)
	if err != nil {
		t.Fatalf("ZMembers failed: %v", err)
	}
	if len(members) != 1 || members[0] != "s1" {
		t.Errorf("Expected expiry index [s1], got %v", members)
	}
}

func TestPurgeExpiredScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	_, _ = mr.ZAdd(sessionExpiryKey, 100, "old")
	_, _ = mr.ZAdd(sessionExpiryKey, 500, "new")
	_ = mr.Set(sessionKey("old"), "x")

	n, err := redis.NewScript(purgeExpiredScript).Run(ctx, client, []string{sessionExpiryKey}, sessionKeyPrefix, 200).Int()
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 purged entry, got %d", n)
	}
	if mr.Exists(sessionKey("old")) {
		t.Error("Expected old session key to be removed")
	}
}
