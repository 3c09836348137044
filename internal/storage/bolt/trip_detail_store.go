package bolt

import (
	"context"

	"github.com/opensass/eldflow/internal/storage"
	"go.etcd.io/bbolt"
)

type fuelingStopStore struct {
	db *bbolt.DB
}

func (s *fuelingStopStore) Add(ctx context.Context, stop storage.FuelingStop) error {
	stamp(&stop.CreatedAt, &stop.UpdatedAt)
	return putIndexed(ctx, s.db, bucketFuelingStops, stop.ID, stop, indexTripFueling, stop.TripID, stop.CreatedAt)
}

func (s *fuelingStopStore) ListByTrip(ctx context.Context, tripID string) ([]storage.FuelingStop, error) {
	return listIndexed[storage.FuelingStop](ctx, s.db, bucketFuelingStops, indexTripFueling, tripID)
}

type routeStore struct {
	db *bbolt.DB
}

func (s *routeStore) Add(ctx context.Context, route storage.Route) error {
	stamp(&route.CreatedAt, &route.UpdatedAt)
	for i := range route.Waypoints {
		stamp(&route.Waypoints[i].CreatedAt, &route.Waypoints[i].UpdatedAt)
	}
	return putIndexed(ctx, s.db, bucketRoutes, route.ID, route, indexTripRoutes, route.TripID, route.CreatedAt)
}

func (s *routeStore) Get(ctx context.Context, id string) (*storage.Route, error) {
	return getBucketValue[storage.Route](ctx, s.db, bucketRoutes, id)
}

func (s *routeStore) ListByTrip(ctx context.Context, tripID string) ([]storage.Route, error) {
	return listIndexed[storage.Route](ctx, s.db, bucketRoutes, indexTripRoutes, tripID)
}

func (s *routeStore) AddWaypoint(ctx context.Context, waypoint storage.Waypoint) error {
	stamp(&waypoint.CreatedAt, &waypoint.UpdatedAt)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return putValue(tx, bucketWaypoints, waypoint.ID, waypoint)
	})
}

func (s *routeStore) AddStop(ctx context.Context, stop storage.RouteStop) error {
	stamp(&stop.CreatedAt, &stop.UpdatedAt)
	return putIndexed(ctx, s.db, bucketRouteStops, stop.ID, stop, indexRouteStops, stop.RouteID, stop.CreatedAt)
}

func (s *routeStore) ListStops(ctx context.Context, routeID string) ([]storage.RouteStop, error) {
	return listIndexed[storage.RouteStop](ctx, s.db, bucketRouteStops, indexRouteStops, routeID)
}

type dailyLogStore struct {
	db *bbolt.DB
}

func (s *dailyLogStore) Add(ctx context.Context, log storage.DailyLog) error {
	stamp(&log.CreatedAt, &log.UpdatedAt)
	return putIndexed(ctx, s.db, bucketDailyLogs, log.ID, log, indexTripDailyLogs, log.TripID, log.CreatedAt)
}

func (s *dailyLogStore) Get(ctx context.Context, id string) (*storage.DailyLog, error) {
	return getBucketValue[storage.DailyLog](ctx, s.db, bucketDailyLogs, id)
}

func (s *dailyLogStore) ListByTrip(ctx context.Context, driverID, tripID string) ([]storage.DailyLog, error) {
	logs, err := listIndexed[storage.DailyLog](ctx, s.db, bucketDailyLogs, indexTripDailyLogs, tripID)
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

func (s *dailyLogStore) AddEntry(ctx context.Context, entry storage.LogEntry) error {
	stamp(&entry.CreatedAt, &entry.UpdatedAt)
	return putIndexed(ctx, s.db, bucketLogEntries, entry.ID, entry, indexLogEntries, entry.LogID, entry.Time)
}

func (s *dailyLogStore) ListEntries(ctx context.Context, logID string) ([]storage.LogEntry, error) {
	return listIndexed[storage.LogEntry](ctx, s.db, bucketLogEntries, indexLogEntries, logID)
}
