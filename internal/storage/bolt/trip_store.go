package bolt

import (
	"context"
	"time"

	"github.com/opensass/eldflow/internal/storage"
	"go.etcd.io/bbolt"
)

type tripStore struct {
	db *bbolt.DB
}

func (s *tripStore) Create(ctx context.Context, trip storage.Trip) error {
	stamp(&trip.CreatedAt, &trip.UpdatedAt)
	if trip.Status == "" {
		trip.Status = storage.TripPending
	}
	return putIndexed(ctx, s.db, bucketTrips, trip.ID, trip, indexDriverTrips, trip.DriverID, trip.CreatedAt)
}

func (s *tripStore) Get(ctx context.Context, id string) (*storage.Trip, error) {
	return getBucketValue[storage.Trip](ctx, s.db, bucketTrips, id)
}

func (s *tripStore) ListByDriver(ctx context.Context, driverID string) ([]storage.Trip, error) {
	return listIndexed[storage.Trip](ctx, s.db, bucketTrips, indexDriverTrips, driverID)
}

func (s *tripStore) Update(ctx context.Context, trip storage.Trip) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketTrips))
		data := bucket.Get([]byte(trip.ID))
		if data == nil {
			return storage.ErrNotFound
		}
		var existing storage.Trip
		if err := unmarshal(data, &existing); err != nil {
			return err
		}
		// ownership and creation time are fixed at create
		trip.DriverID = existing.DriverID
		trip.CreatedAt = existing.CreatedAt
		trip.UpdatedAt = time.Now().UTC()
		return putValue(tx, bucketTrips, trip.ID, trip)
	})
}

// Delete removes a trip together with its ELD logs.
func (s *tripStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketTrips))
		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrNotFound
		}
		var trip storage.Trip
		if err := unmarshal(data, &trip); err != nil {
			return err
		}

		if idx := indexBucket(tx, indexDriverTrips, normalizeIndexKey(trip.DriverID)); idx != nil {
			if err := idx.Delete(orderKey(trip.CreatedAt, trip.ID)); err != nil {
				return err
			}
		}
		if _, err := deleteChildren(tx, bucketEldLogs, indexTripEldLogs, id); err != nil {
			return err
		}
		return bucket.Delete([]byte(id))
	})
}

// deleteChildren removes every value referenced by a parent index and the index itself.
func deleteChildren(tx *bbolt.Tx, bucket, index, parent string) (int, error) {
	indexes := indexBucket(tx, index)
	if indexes == nil {
		return 0, nil
	}
	key := []byte(normalizeIndexKey(parent))
	idx := indexes.Bucket(key)
	if idx == nil {
		return 0, nil
	}

	b := tx.Bucket([]byte(bucket))
	deleted := 0
	if err := idx.ForEach(func(_, id []byte) error {
		if b.Get(id) == nil {
			return nil
		}
		deleted++
		return b.Delete(id)
	}); err != nil {
		return 0, err
	}
	return deleted, indexes.DeleteBucket(key)
}
