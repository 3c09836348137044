package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to the server named by ELDFLOW_TEST_MONGO_URI and
// uses a throwaway database.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("ELDFLOW_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ELDFLOW_TEST_MONGO_URI not set")
	}

	store, err := Open(config.MongoConfig{
		URI:            uri,
		Database:       "eldflow_test_" + uuid.NewString()[:8],
		ConnectTimeout: "5s",
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.db.Drop(context.Background())
		_ = store.Close()
	})
	return store
}

func TestDriverStoreUniqueEmail(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Drivers().Create(ctx, storage.Driver{ID: "d1", Email: "Ada@Example.com"}))
	err := store.Drivers().Create(ctx, storage.Driver{ID: "d2", Email: "ada@example.com"})
	assert.True(t, errors.Is(err, storage.ErrConflict), "expected conflict, got %v", err)

	got, err := store.Drivers().GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)
}

func TestTripCascadeDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Trips().Create(ctx, storage.Trip{ID: "t1", DriverID: "d1"}))
	require.NoError(t, store.EldLogs().Add(ctx, storage.EldLog{ID: "l1", DriverID: "d1", TripID: "t1", Status: "Driving"}))

	trips, err := store.Trips().ListByDriver(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, storage.TripPending, trips[0].Status)

	require.NoError(t, store.Trips().Delete(ctx, "t1"))
	logs, err := store.EldLogs().ListByTrip(ctx, "d1", "t1")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Sessions().Put(ctx, storage.Session{ID: "s1", DriverID: "d1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Sessions().Put(ctx, storage.Session{ID: "s2", DriverID: "d1", ExpiresAt: now.Add(-time.Hour)}))

	_, err := store.Sessions().Get(ctx, "s2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	deleted, err := store.Sessions().DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.LessOrEqual(t, deleted, 1)

	count, err := store.Sessions().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
