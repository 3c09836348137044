package bolt

import (
	"context"

	"github.com/opensass/eldflow/internal/storage"
	"go.etcd.io/bbolt"
)

type eldLogStore struct {
	db *bbolt.DB
}

func (s *eldLogStore) Add(ctx context.Context, log storage.EldLog) error {
	stamp(&log.CreatedAt, &log.UpdatedAt)
	return putIndexed(ctx, s.db, bucketEldLogs, log.ID, log, indexTripEldLogs, log.TripID, log.CreatedAt)
}

// ListByTrip returns the trip's logs written by driverID, oldest first.
func (s *eldLogStore) ListByTrip(ctx context.Context, driverID, tripID string) ([]storage.EldLog, error) {
	logs, err := listIndexed[storage.EldLog](ctx, s.db, bucketEldLogs, indexTripEldLogs, tripID)
	if err != nil {
		return nil, err
	}
	filtered := logs[:0]
	for _, log := range logs {
		if log.DriverID == driverID {
			filtered = append(filtered, log)
		}
	}
	return filtered, nil
}

func (s *eldLogStore) DeleteByTrip(ctx context.Context, tripID string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := deleteChildren(tx, bucketEldLogs, indexTripEldLogs, tripID)
		deleted = n
		return err
	})
	return deleted, err
}
