package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensass/eldflow/internal/eld"
	"github.com/opensass/eldflow/internal/storage"
)

func TestDriverStoreEmailIndex(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	driver := storage.Driver{ID: "driver-a", Name: "Ada", Email: "Ada@Example.com"}
	if err := store.Drivers().Create(ctx, driver); err != nil {
		t.Fatalf("create driver: %v", err)
	}

	got, err := store.Drivers().GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != "driver-a" {
		t.Fatalf("expected driver-a, got %s", got.ID)
	}

	err = store.Drivers().Create(ctx, storage.Driver{ID: "driver-b", Email: "ADA@example.com"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	driver.Email = "ada@fleet.example"
	if err := store.Drivers().Update(ctx, driver); err != nil {
		t.Fatalf("update driver: %v", err)
	}
	if _, err := store.Drivers().GetByEmail(ctx, "ada@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected old email to be released, got %v", err)
	}
	if _, err := store.Drivers().GetByEmail(ctx, "ada@fleet.example"); err != nil {
		t.Fatalf("get by new email: %v", err)
	}
}

func TestTripStoreListAndCascadeDelete(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"trip-1", "trip-2"} {
		trip := storage.Trip{ID: id, DriverID: "driver-a", CurrentLocation: "Dallas", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Trips().Create(ctx, trip); err != nil {
			t.Fatalf("create trip: %v", err)
		}
	}
	if err := store.Trips().Create(ctx, storage.Trip{ID: "trip-3", DriverID: "driver-b"}); err != nil {
		t.Fatalf("create trip: %v", err)
	}

	trips, err := store.Trips().ListByDriver(ctx, "driver-a")
	if err != nil {
		t.Fatalf("list trips: %v", err)
	}
	if len(trips) != 2 || trips[0].ID != "trip-1" {
		t.Fatalf("expected [trip-1 trip-2], got %+v", trips)
	}
	if trips[0].Status != storage.TripPending {
		t.Fatalf("expected pending status, got %s", trips[0].Status)
	}

	for i := 0; i < 3; i++ {
		if err := store.EldLogs().Add(ctx, storage.EldLog{ID: "log-" + string(rune('a'+i)), DriverID: "driver-a", TripID: "trip-1"}); err != nil {
			t.Fatalf("add eld log: %v", err)
		}
	}

	if err := store.Trips().Delete(ctx, "trip-1"); err != nil {
		t.Fatalf("delete trip: %v", err)
	}
	logs, err := store.EldLogs().ListByTrip(ctx, "driver-a", "trip-1")
	if err != nil {
		t.Fatalf("list eld logs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected logs to be cascaded, got %d", len(logs))
	}
	trips, _ = store.Trips().ListByDriver(ctx, "driver-a")
	if len(trips) != 1 {
		t.Fatalf("expected 1 remaining trip, got %d", len(trips))
	}
	if err := store.Trips().Delete(ctx, "trip-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEldLogStoreFiltersByDriver(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	_ = store.EldLogs().Add(ctx, storage.EldLog{ID: "a", DriverID: "driver-a", TripID: "trip-1", Status: "Driving"})
	_ = store.EldLogs().Add(ctx, storage.EldLog{ID: "b", DriverID: "driver-b", TripID: "trip-1", Status: "OnDuty"})

	logs, err := store.EldLogs().ListByTrip(ctx, "driver-a", "trip-1")
	if err != nil {
		t.Fatalf("list eld logs: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != "a" {
		t.Fatalf("expected only driver-a log, got %+v", logs)
	}
}

func TestConversationStoreMessageRetention(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	conversations := store.Conversations()
	if err := conversations.Create(ctx, storage.Conversation{ID: "c1", DriverID: "driver-a", TripID: "trip-1", Title: "Trip chat"}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	old := time.Now().Add(-48 * time.Hour)
	if err := conversations.AddMessage(ctx, storage.Message{ID: "m1", ConversationID: "c1", Sender: storage.SenderDriver, Content: "hi", Timestamp: old}); err != nil {
		t.Fatalf("add message: %v", err)
	}
	if err := conversations.AddMessage(ctx, storage.Message{ID: "m2", ConversationID: "c1", Sender: storage.SenderGemini, Content: "<p>hello</p>"}); err != nil {
		t.Fatalf("add message: %v", err)
	}

	deleted, err := conversations.DeleteMessagesBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete messages: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted message, got %d", deleted)
	}

	messages, err := conversations.ListMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "m2" {
		t.Fatalf("expected [m2], got %+v", messages)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	now := time.Now()
	sessions := store.Sessions()
	_ = sessions.Put(ctx, storage.Session{ID: "live", DriverID: "d", ExpiresAt: now.Add(time.Hour)})
	_ = sessions.Put(ctx, storage.Session{ID: "dead", DriverID: "d", ExpiresAt: now.Add(-time.Hour)})

	if _, err := sessions.Get(ctx, "dead"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected expired session to be hidden, got %v", err)
	}
	if err := sessions.Touch(ctx, "live", now); err != nil {
		t.Fatalf("touch session: %v", err)
	}

	deleted, err := sessions.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted session, got %d", deleted)
	}
	count, _ := sessions.Count(ctx)
	if count != 1 {
		t.Fatalf("expected 1 remaining session, got %d", count)
	}
}

func TestLedgerBackendRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	if err := store.Trips().Create(ctx, storage.Trip{ID: "trip-1", DriverID: "driver-a"}); err != nil {
		t.Fatalf("create trip: %v", err)
	}

	backend := storage.NewLedgerBackend(store)
	panel := eld.NewPanel(backend, backend, "driver-a")
	if err := panel.SelectTrip(ctx, "trip-1"); err != nil {
		t.Fatalf("select trip: %v", err)
	}

	res, err := panel.Submit(ctx, "trip-1", eld.RawCandidate{StartHour: "0", EndHour: "8", Status: eld.OffDuty, Location: "Dallas", Note: "rest"}).Wait(ctx)
	if err != nil || res.State != eld.StateSuccess {
		t.Fatalf("submit: state=%v err=%v result err=%v", res.State, err, res.Err)
	}

	logs, err := store.EldLogs().ListByTrip(ctx, "driver-a", "trip-1")
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].OffDutyHours != 8 || logs[0].OdometerReading == nil || *logs[0].OdometerReading != 0 {
		t.Fatalf("unexpected stored log: %+v", logs[0])
	}

	reloaded := eld.NewPanel(backend, backend, "driver-a")
	if err := reloaded.SelectTrip(ctx, "trip-1"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.Snapshot().Totals.OffDuty; got != 8 {
		t.Fatalf("expected 8 off-duty hours after reload, got %v", got)
	}

	intruder := eld.NewPanel(backend, backend, "driver-b")
	err = intruder.SelectTrip(ctx, "trip-1")
	var pe *eld.PersistenceError
	if !errors.As(err, &pe) || pe.Kind != eld.PersistenceUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "eldflow.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
