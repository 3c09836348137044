package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names match the original deployment so existing databases can
// be pointed at directly.
const (
	collDrivers       = "users"
	collTrips         = "trips"
	collEldLogs       = "eld_logs"
	collFuelingStops  = "fueling_stops"
	collRoutes        = "routes"
	collWaypoints     = "waypoints"
	collRouteStops    = "route_stops"
	collDailyLogs     = "daily_logs"
	collLogEntries    = "log_entries"
	collConversations = "conversations"
	collMessages      = "messages"
	collSessions      = "sessions"
)

// Store implements the storage.Store interface using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and ensures the indexes exist.
func Open(cfg config.MongoConfig) (*Store, error) {
	timeout := 10 * time.Second
	if cfg.ConnectTimeout != "" {
		d, err := time.ParseDuration(cfg.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid connect_timeout: %w", err)
		}
		timeout = d
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	store := &Store{client: client, db: client.Database(cfg.Database)}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collDrivers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collTrips:         {{Keys: bson.D{{Key: "driverId", Value: 1}, {Key: "createdAt", Value: 1}}}},
		collEldLogs:       {{Keys: bson.D{{Key: "tripId", Value: 1}, {Key: "driverId", Value: 1}}}},
		collFuelingStops:  {{Keys: bson.D{{Key: "tripId", Value: 1}}}},
		collRoutes:        {{Keys: bson.D{{Key: "tripId", Value: 1}}}},
		collRouteStops:    {{Keys: bson.D{{Key: "routeId", Value: 1}}}},
		collDailyLogs:     {{Keys: bson.D{{Key: "tripId", Value: 1}, {Key: "driverId", Value: 1}}}},
		collLogEntries:    {{Keys: bson.D{{Key: "logId", Value: 1}, {Key: "time", Value: 1}}}},
		collConversations: {{Keys: bson.D{{Key: "trip", Value: 1}, {Key: "user", Value: 1}}}},
		collMessages:      {{Keys: bson.D{{Key: "conversation", Value: 1}, {Key: "timestamp", Value: 1}}}},
		collSessions: {
			// expired sessions are reaped by the server
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Drivers() storage.DriverStore { return &driverStore{coll: s.db.Collection(collDrivers)} }

func (s *Store) Trips() storage.TripStore {
	return &tripStore{coll: s.db.Collection(collTrips), logs: s.db.Collection(collEldLogs)}
}

func (s *Store) EldLogs() storage.EldLogStore { return &eldLogStore{coll: s.db.Collection(collEldLogs)} }

func (s *Store) FuelingStops() storage.FuelingStopStore {
	return &fuelingStopStore{coll: s.db.Collection(collFuelingStops)}
}

func (s *Store) Routes() storage.RouteStore {
	return &routeStore{
		routes:    s.db.Collection(collRoutes),
		waypoints: s.db.Collection(collWaypoints),
		stops:     s.db.Collection(collRouteStops),
	}
}

func (s *Store) DailyLogs() storage.DailyLogStore {
	return &dailyLogStore{logs: s.db.Collection(collDailyLogs), entries: s.db.Collection(collLogEntries)}
}

func (s *Store) Conversations() storage.ConversationStore {
	return &conversationStore{
		conversations: s.db.Collection(collConversations),
		messages:      s.db.Collection(collMessages),
	}
}

func (s *Store) Sessions() storage.SessionStore { return &sessionStore{coll: s.db.Collection(collSessions)} }

func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func insert(ctx context.Context, coll *mongo.Collection, doc any) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert into %s: %w", coll.Name(), err)
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var item T
	if err := coll.FindOne(ctx, filter).Decode(&item); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	return &item, nil
}

func findMany[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sortField string) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: 1}})
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return items, nil
}

// replace overwrites a document by id.
func replace(ctx context.Context, coll *mongo.Collection, id string, doc any) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("replace in %s: %w", coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func upsert() *options.ReplaceOptions {
	return options.Replace().SetUpsert(true)
}
