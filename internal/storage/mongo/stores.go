package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opensass/eldflow/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type driverStore struct {
	coll *mongo.Collection
}

func (s *driverStore) Create(ctx context.Context, driver storage.Driver) error {
	stamp(&driver.CreatedAt, &driver.UpdatedAt)
	driver.Email = strings.ToLower(strings.TrimSpace(driver.Email))
	return insert(ctx, s.coll, driver)
}

func (s *driverStore) Get(ctx context.Context, id string) (*storage.Driver, error) {
	return findOne[storage.Driver](ctx, s.coll, bson.M{"_id": id})
}

func (s *driverStore) GetByEmail(ctx context.Context, email string) (*storage.Driver, error) {
	return findOne[storage.Driver](ctx, s.coll, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *driverStore) List(ctx context.Context) ([]storage.Driver, error) {
	return findMany[storage.Driver](ctx, s.coll, bson.M{}, "createdAt")
}

func (s *driverStore) Update(ctx context.Context, driver storage.Driver) error {
	existing, err := s.Get(ctx, driver.ID)
	if err != nil {
		return err
	}
	driver.CreatedAt = existing.CreatedAt
	driver.UpdatedAt = time.Now().UTC()
	driver.Email = strings.ToLower(strings.TrimSpace(driver.Email))
	return replace(ctx, s.coll, driver.ID, driver)
}

func (s *driverStore) UpdateLastLogin(ctx context.Context, id string, loginTime time.Time) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"lastLogin": loginTime, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type tripStore struct {
	coll *mongo.Collection
	logs *mongo.Collection
}

func (s *tripStore) Create(ctx context.Context, trip storage.Trip) error {
	stamp(&trip.CreatedAt, &trip.UpdatedAt)
	if trip.Status == "" {
		trip.Status = storage.TripPending
	}
	return insert(ctx, s.coll, trip)
}

func (s *tripStore) Get(ctx context.Context, id string) (*storage.Trip, error) {
	return findOne[storage.Trip](ctx, s.coll, bson.M{"_id": id})
}

func (s *tripStore) ListByDriver(ctx context.Context, driverID string) ([]storage.Trip, error) {
	return findMany[storage.Trip](ctx, s.coll, bson.M{"driverId": driverID}, "createdAt")
}

func (s *tripStore) Update(ctx context.Context, trip storage.Trip) error {
	existing, err := s.Get(ctx, trip.ID)
	if err != nil {
		return err
	}
	trip.DriverID = existing.DriverID
	trip.CreatedAt = existing.CreatedAt
	trip.UpdatedAt = time.Now().UTC()
	return replace(ctx, s.coll, trip.ID, trip)
}

// Delete removes a trip and its ELD logs.
func (s *tripStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	if _, err := s.logs.DeleteMany(ctx, bson.M{"tripId": id}); err != nil {
		return fmt.Errorf("delete trip logs: %w", err)
	}
	return nil
}

type eldLogStore struct {
	coll *mongo.Collection
}

func (s *eldLogStore) Add(ctx context.Context, log storage.EldLog) error {
	stamp(&log.CreatedAt, &log.UpdatedAt)
	return insert(ctx, s.coll, log)
}

func (s *eldLogStore) ListByTrip(ctx context.Context, driverID, tripID string) ([]storage.EldLog, error) {
	return findMany[storage.EldLog](ctx, s.coll, bson.M{"tripId": tripID, "driverId": driverID}, "createdAt")
}

func (s *eldLogStore) DeleteByTrip(ctx context.Context, tripID string) (int, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"tripId": tripID})
	if err != nil {
		return 0, fmt.Errorf("delete eld logs: %w", err)
	}
	return int(res.DeletedCount), nil
}

type fuelingStopStore struct {
	coll *mongo.Collection
}

func (s *fuelingStopStore) Add(ctx context.Context, stop storage.FuelingStop) error {
	stamp(&stop.CreatedAt, &stop.UpdatedAt)
	return insert(ctx, s.coll, stop)
}

func (s *fuelingStopStore) ListByTrip(ctx context.Context, tripID string) ([]storage.FuelingStop, error) {
	return findMany[storage.FuelingStop](ctx, s.coll, bson.M{"tripId": tripID}, "createdAt")
}

type routeStore struct {
	routes    *mongo.Collection
	waypoints *mongo.Collection
	stops     *mongo.Collection
}

func (s *routeStore) Add(ctx context.Context, route storage.Route) error {
	stamp(&route.CreatedAt, &route.UpdatedAt)
	for i := range route.Waypoints {
		stamp(&route.Waypoints[i].CreatedAt, &route.Waypoints[i].UpdatedAt)
	}
	return insert(ctx, s.routes, route)
}

func (s *routeStore) Get(ctx context.Context, id string) (*storage.Route, error) {
	return findOne[storage.Route](ctx, s.routes, bson.M{"_id": id})
}

func (s *routeStore) ListByTrip(ctx context.Context, tripID string) ([]storage.Route, error) {
	return findMany[storage.Route](ctx, s.routes, bson.M{"tripId": tripID}, "createdAt")
}

func (s *routeStore) AddWaypoint(ctx context.Context, waypoint storage.Waypoint) error {
	stamp(&waypoint.CreatedAt, &waypoint.UpdatedAt)
	return insert(ctx, s.waypoints, waypoint)
}

func (s *routeStore) AddStop(ctx context.Context, stop storage.RouteStop) error {
	stamp(&stop.CreatedAt, &stop.UpdatedAt)
	return insert(ctx, s.stops, stop)
}

func (s *routeStore) ListStops(ctx context.Context, routeID string) ([]storage.RouteStop, error) {
	return findMany[storage.RouteStop](ctx, s.stops, bson.M{"routeId": routeID}, "createdAt")
}

type dailyLogStore struct {
	logs    *mongo.Collection
	entries *mongo.Collection
}

func (s *dailyLogStore) Add(ctx context.Context, log storage.DailyLog) error {
	stamp(&log.CreatedAt, &log.UpdatedAt)
	return insert(ctx, s.logs, log)
}

func (s *dailyLogStore) Get(ctx context.Context, id string) (*storage.DailyLog, error) {
	return findOne[storage.DailyLog](ctx, s.logs, bson.M{"_id": id})
}

func (s *dailyLogStore) ListByTrip(ctx context.Context, driverID, tripID string) ([]storage.DailyLog, error) {
	return findMany[storage.DailyLog](ctx, s.logs, bson.M{"tripId": tripID, "driverId": driverID}, "logDate")
}

func (s *dailyLogStore) AddEntry(ctx context.Context, entry storage.LogEntry) error {
	stamp(&entry.CreatedAt, &entry.UpdatedAt)
	return insert(ctx, s.entries, entry)
}

func (s *dailyLogStore) ListEntries(ctx context.Context, logID string) ([]storage.LogEntry, error) {
	return findMany[storage.LogEntry](ctx, s.entries, bson.M{"logId": logID}, "time")
}

type conversationStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func (s *conversationStore) Create(ctx context.Context, conversation storage.Conversation) error {
	stamp(&conversation.CreatedAt, &conversation.UpdatedAt)
	return insert(ctx, s.conversations, conversation)
}

func (s *conversationStore) Get(ctx context.Context, id string) (*storage.Conversation, error) {
	return findOne[storage.Conversation](ctx, s.conversations, bson.M{"_id": id})
}

func (s *conversationStore) ListByTrip(ctx context.Context, driverID, tripID string) ([]storage.Conversation, error) {
	return findMany[storage.Conversation](ctx, s.conversations, bson.M{"trip": tripID, "user": driverID}, "createdAt")
}

func (s *conversationStore) AddMessage(ctx context.Context, message storage.Message) error {
	stamp(&message.CreatedAt, &message.UpdatedAt)
	if message.Timestamp.IsZero() {
		message.Timestamp = message.CreatedAt
	}
	return insert(ctx, s.messages, message)
}

func (s *conversationStore) ListMessages(ctx context.Context, conversationID string) ([]storage.Message, error) {
	return findMany[storage.Message](ctx, s.messages, bson.M{"conversation": conversationID}, "timestamp")
}

func (s *conversationStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.messages.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return int(res.DeletedCount), nil
}

type sessionStore struct {
	coll *mongo.Collection
}

func (s *sessionStore) Put(ctx context.Context, session storage.Session) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": session.ID}, session, upsert())
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *sessionStore) Get(ctx context.Context, id string) (*storage.Session, error) {
	session, err := findOne[storage.Session](ctx, s.coll, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	// the TTL monitor runs once a minute, so filter here too
	if session.IsExpired(time.Now()) {
		return nil, storage.ErrNotFound
	}
	return session, nil
}

func (s *sessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"lastActivity": at}})
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": now}})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (s *sessionStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"expiresAt": bson.M{"$gte": time.Now()}})
	return int(n), err
}
