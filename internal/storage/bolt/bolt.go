package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/opensass/eldflow/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketDrivers       = "drivers"
	bucketTrips         = "trips"
	bucketEldLogs       = "eld_logs"
	bucketFuelingStops  = "fueling_stops"
	bucketRoutes        = "routes"
	bucketWaypoints     = "waypoints"
	bucketRouteStops    = "route_stops"
	bucketDailyLogs     = "daily_logs"
	bucketLogEntries    = "log_entries"
	bucketConversations = "conversations"
	bucketMessages      = "messages"
	bucketSessions      = "sessions"
	bucketIndexes       = "indexes"

	// index buckets, nested under bucketIndexes
	indexDriverEmail       = "driver_email"
	indexDriverTrips       = "driver_trips"
	indexTripEldLogs       = "trip_eld_logs"
	indexTripFueling       = "trip_fueling"
	indexTripRoutes        = "trip_routes"
	indexRouteStops        = "route_stops"
	indexTripDailyLogs     = "trip_daily_logs"
	indexLogEntries        = "log_entries"
	indexTripConversations = "trip_conversations"
	indexConversationMsgs  = "conversation_messages"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := []string{
			bucketDrivers,
			bucketTrips,
			bucketEldLogs,
			bucketFuelingStops,
			bucketRoutes,
			bucketWaypoints,
			bucketRouteStops,
			bucketDailyLogs,
			bucketLogEntries,
			bucketConversations,
			bucketMessages,
			bucketSessions,
			bucketIndexes,
		}

		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}

		indexes := tx.Bucket([]byte(bucketIndexes))
		if indexes == nil {
			return fmt.Errorf("indexes bucket missing")
		}
		for _, name := range []string{
			indexDriverEmail,
			indexDriverTrips,
			indexTripEldLogs,
			indexTripFueling,
			indexTripRoutes,
			indexRouteStops,
			indexTripDailyLogs,
			indexLogEntries,
			indexTripConversations,
			indexConversationMsgs,
		} {
			if _, err := indexes.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s index: %w", name, err)
			}
		}

		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Drivers returns the driver store.
func (s *Store) Drivers() storage.DriverStore { return &driverStore{db: s.db} }

// Trips returns the trip store.
func (s *Store) Trips() storage.TripStore { return &tripStore{db: s.db} }

// EldLogs returns the ELD log store.
func (s *Store) EldLogs() storage.EldLogStore { return &eldLogStore{db: s.db} }

// FuelingStops returns the fueling stop store.
func (s *Store) FuelingStops() storage.FuelingStopStore { return &fuelingStopStore{db: s.db} }

// Routes returns the route store.
func (s *Store) Routes() storage.RouteStore { return &routeStore{db: s.db} }

// DailyLogs returns the daily log store.
func (s *Store) DailyLogs() storage.DailyLogStore { return &dailyLogStore{db: s.db} }

// Conversations returns the conversation store.
func (s *Store) Conversations() storage.ConversationStore { return &conversationStore{db: s.db} }

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore { return &sessionStore{db: s.db} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

// orderKey sorts index entries by creation time, then id.
func orderKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d-%s", ts.UnixNano(), id))
}

func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func getBucketValue[T any](ctx context.Context, db *bbolt.DB, bucket string, key string) (*T, error) {
	var item *T
	err := db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		var result T
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		item = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func putValue(tx *bbolt.Tx, bucket string, key string, value any) error {
	data, err := marshal(value)
	if err != nil {
		return err
	}
	b := tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("bucket missing: %s", bucket)
	}
	return b.Put([]byte(key), data)
}

// putIndexed stores value under key and records it in the parent index.
func putIndexed(ctx context.Context, db *bbolt.DB, bucket, key string, value any, index, parent string, created time.Time) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := putValue(tx, bucket, key, value); err != nil {
			return err
		}
		idx, err := ensureIndexBucket(tx, index, normalizeIndexKey(parent))
		if err != nil {
			return err
		}
		return idx.Put(orderKey(created, key), []byte(key))
	})
}

// listIndexed returns the values referenced by an index bucket in creation order.
func listIndexed[T any](ctx context.Context, db *bbolt.DB, bucket string, index, parent string) ([]T, error) {
	items := make([]T, 0)
	err := db.View(func(tx *bbolt.Tx) error {
		idx := indexBucket(tx, index, normalizeIndexKey(parent))
		if idx == nil {
			return nil
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucket)
		}
		return idx.ForEach(func(_, id []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			value := b.Get(id)
			if value == nil {
				return nil
			}
			var item T
			if err := unmarshal(value, &item); err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func indexBucket(tx *bbolt.Tx, path ...string) *bbolt.Bucket {
	current := tx.Bucket([]byte(bucketIndexes))
	for _, part := range path {
		if current == nil {
			return nil
		}
		current = current.Bucket([]byte(part))
	}
	return current
}

func ensureIndexBucket(tx *bbolt.Tx, path ...string) (*bbolt.Bucket, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty index bucket path")
	}
	root := tx.Bucket([]byte(bucketIndexes))
	if root == nil {
		return nil, fmt.Errorf("indexes bucket missing")
	}
	current := root
	for _, part := range path {
		bucket := current.Bucket([]byte(part))
		if bucket == nil {
			var err error
			bucket, err = current.CreateBucketIfNotExists([]byte(part))
			if err != nil {
				return nil, err
			}
		}
		current = bucket
	}
	return current, nil
}

func normalizeIndexKey(value string) string {
	if value == "" {
		return "unknown"
	}
	return strings.ToLower(strings.TrimSpace(value))
}
