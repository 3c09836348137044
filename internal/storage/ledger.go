package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opensass/eldflow/internal/eld"
)

// LedgerBackend serves a panel from a Store. The token handed to the panel
// is the id of the authenticated driver; trips owned by anyone else are
// rejected as unauthorized.
type LedgerBackend struct {
	store Store
	now   func() time.Time
}

// NewLedgerBackend creates a backend over store.
func NewLedgerBackend(store Store) *LedgerBackend {
	return &LedgerBackend{store: store, now: time.Now}
}

var _ eld.TripDataProvider = (*LedgerBackend)(nil)
var _ eld.LogSubmissionService = (*LedgerBackend)(nil)

func (b *LedgerBackend) authorize(ctx context.Context, tripID, driverID string) error {
	if driverID == "" {
		return eld.ErrUnauthorized
	}
	trip, err := b.store.Trips().Get(ctx, tripID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return eld.ErrUnauthorized
		}
		return err
	}
	if trip.DriverID != driverID {
		return eld.ErrUnauthorized
	}
	return nil
}

// GetLogs returns the persisted segments of a trip as ledger records.
func (b *LedgerBackend) GetLogs(ctx context.Context, tripID, driverID string) ([]eld.Record, error) {
	if err := b.authorize(ctx, tripID, driverID); err != nil {
		return nil, err
	}
	logs, err := b.store.EldLogs().ListByTrip(ctx, driverID, tripID)
	if err != nil {
		return nil, err
	}
	records := make([]eld.Record, 0, len(logs))
	for _, log := range logs {
		records = append(records, RecordFromLog(log))
	}
	return records, nil
}

// Store persists one submitted segment with its aggregate snapshot.
func (b *LedgerBackend) Store(ctx context.Context, entry eld.Entry) (string, error) {
	if err := b.authorize(ctx, entry.TripID, entry.Token); err != nil {
		return "", err
	}
	log := LogFromEntry(entry, b.now().UTC())
	if err := b.store.EldLogs().Add(ctx, log); err != nil {
		return "", err
	}
	return log.ID, nil
}

// RecordFromLog converts a stored log into a ledger record.
func RecordFromLog(log EldLog) eld.Record {
	return eld.Record{
		ID:        log.ID,
		StartHour: log.StartHour,
		EndHour:   log.EndHour,
		Status:    log.Status,
		Location:  log.Location,
		Note:      log.Note,
	}
}

// LogFromEntry builds the stored form of a submitted entry. The odometer is
// always recorded as zero.
func LogFromEntry(entry eld.Entry, now time.Time) EldLog {
	odometer := 0.0
	totals := entry.Totals.Rounded()
	return EldLog{
		ID:                uuid.NewString(),
		DriverID:          entry.Token,
		TripID:            entry.TripID,
		StartHour:         entry.Segment.StartHour,
		EndHour:           entry.Segment.EndHour,
		Status:            entry.Segment.Status.String(),
		Location:          entry.Segment.Location,
		Note:              entry.Segment.Note,
		OdometerReading:   &odometer,
		OffDutyHours:      totals.OffDuty,
		SleeperBerthHours: totals.Sleeper,
		DrivingHours:      totals.Driving,
		OnDutyHours:       totals.OnDuty,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
