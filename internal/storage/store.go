package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record is missing from storage.
	ErrNotFound = errors.New("storage: record not found")

	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("storage: record already exists")
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	Drivers() DriverStore
	Trips() TripStore
	EldLogs() EldLogStore
	FuelingStops() FuelingStopStore
	Routes() RouteStore
	DailyLogs() DailyLogStore
	Conversations() ConversationStore
	Sessions() SessionStore
}

// DriverStore manages driver accounts. Email is unique.
type DriverStore interface {
	Create(ctx context.Context, driver Driver) error
	Get(ctx context.Context, id string) (*Driver, error)
	GetByEmail(ctx context.Context, email string) (*Driver, error)
	List(ctx context.Context) ([]Driver, error)
	Update(ctx context.Context, driver Driver) error
	UpdateLastLogin(ctx context.Context, id string, loginTime time.Time) error
}

// TripStore manages trips.
type TripStore interface {
	Create(ctx context.Context, trip Trip) error
	Get(ctx context.Context, id string) (*Trip, error)
	ListByDriver(ctx context.Context, driverID string) ([]Trip, error)
	Update(ctx context.Context, trip Trip) error
	Delete(ctx context.Context, id string) error
}

// EldLogStore manages persisted duty-status segments.
type EldLogStore interface {
	Add(ctx context.Context, log EldLog) error
	ListByTrip(ctx context.Context, driverID, tripID string) ([]EldLog, error)
	DeleteByTrip(ctx context.Context, tripID string) (int, error)
}

// FuelingStopStore manages fueling stops.
type FuelingStopStore interface {
	Add(ctx context.Context, stop FuelingStop) error
	ListByTrip(ctx context.Context, tripID string) ([]FuelingStop, error)
}

// RouteStore manages routes, standalone waypoints and route stops.
type RouteStore interface {
	Add(ctx context.Context, route Route) error
	Get(ctx context.Context, id string) (*Route, error)
	ListByTrip(ctx context.Context, tripID string) ([]Route, error)
	AddWaypoint(ctx context.Context, waypoint Waypoint) error
	AddStop(ctx context.Context, stop RouteStop) error
	ListStops(ctx context.Context, routeID string) ([]RouteStop, error)
}

// DailyLogStore manages daily logs and their entries.
type DailyLogStore interface {
	Add(ctx context.Context, log DailyLog) error
	Get(ctx context.Context, id string) (*DailyLog, error)
	ListByTrip(ctx context.Context, driverID, tripID string) ([]DailyLog, error)
	AddEntry(ctx context.Context, entry LogEntry) error
	ListEntries(ctx context.Context, logID string) ([]LogEntry, error)
}

// ConversationStore manages chat conversations and messages.
type ConversationStore interface {
	Create(ctx context.Context, conversation Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	ListByTrip(ctx context.Context, driverID, tripID string) ([]Conversation, error)
	AddMessage(ctx context.Context, message Message) error
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionStore manages dashboard sessions.
type SessionStore interface {
	Put(ctx context.Context, session Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// SessionBackend is a standalone session store with its own connection.
type SessionBackend interface {
	Sessions() SessionStore
	Close() error
}

// WithSessions returns a Store that serves sessions from backend and
// everything else from store. Closing it closes both.
func WithSessions(store Store, backend SessionBackend) Store {
	return &splitStore{Store: store, backend: backend}
}

type splitStore struct {
	Store
	backend SessionBackend
}

func (s *splitStore) Sessions() SessionStore { return s.backend.Sessions() }

func (s *splitStore) Close() error {
	return errors.Join(s.backend.Close(), s.Store.Close())
}
