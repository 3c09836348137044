package eld

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	logs map[string][]Record
	err  error
}

func (f *fakeProvider) GetLogs(_ context.Context, tripID, _ string) ([]Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.logs[tripID], nil
}

type fakeService struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	release chan struct{}
}

func (f *fakeService) Store(_ context.Context, e Entry) (string, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.entries = append(f.entries, e)
	return "log-1", nil
}

func newTestPanel(t *testing.T, svc *fakeService) *Panel {
	t.Helper()
	provider := &fakeProvider{logs: map[string][]Record{
		"trip-a": {{StartHour: 0, EndHour: 8, Status: "OffDuty", Location: "a", Note: "b"}},
	}}
	p := NewPanel(provider, svc, "token")
	require.NoError(t, p.SelectTrip(context.Background(), "trip-a"))
	return p
}

func TestPanelSubmitSuccess(t *testing.T) {
	svc := &fakeService{}
	p := newTestPanel(t, svc)

	var transitions []State
	p.OnTransition(func(_, to State) { transitions = append(transitions, to) })

	res, err := p.Submit(context.Background(), "trip-a", RawCandidate{StartHour: "8", EndHour: "10", Status: Driving, Location: "Tulsa", Note: "go"}).
		Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, "log-1", res.ID)
	assert.Equal(t, 2, len(p.Snapshot().Segments))
	require.Len(t, svc.entries, 1)
	assert.InDelta(t, 8.0, svc.entries[0].Totals.OffDuty, 1e-9)
	assert.InDelta(t, 2.0, svc.entries[0].Totals.Driving, 1e-9)
	assert.Equal(t, "trip-a", svc.entries[0].TripID)
	assert.Equal(t, []State{StateValidating, StateSubmitting, StateSuccess, StateIdle}, transitions)
}

func TestPanelInvalidRangeLeavesLedgerUnchanged(t *testing.T) {
	svc := &fakeService{}
	p := newTestPanel(t, svc)
	before := p.Snapshot().Segments

	res, err := p.Submit(context.Background(), "trip-a", RawCandidate{StartHour: "10", EndHour: "9", Location: "x", Note: "y"}).
		Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrInvalidRange)
	assert.Equal(t, before, p.Snapshot().Segments)
	assert.Empty(t, svc.entries)
	assert.Equal(t, StateIdle, p.State())
}

func TestPanelRollsBackOnPersistenceFailure(t *testing.T) {
	svc := &fakeService{err: ErrUnauthorized}
	p := newTestPanel(t, svc)

	res, err := p.Submit(context.Background(), "trip-a", RawCandidate{StartHour: "8", EndHour: "9", Status: OnDuty, Location: "x", Note: "y"}).
		Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.State)
	var pe *PersistenceError
	require.True(t, errors.As(res.Err, &pe))
	assert.Equal(t, PersistenceUnauthorized, pe.Kind)
	assert.Len(t, p.Snapshot().Segments, 1)
}

func TestPanelIgnoresStaleCompletion(t *testing.T) {
	svc := &fakeService{err: errors.New("network down"), release: make(chan struct{})}
	p := newTestPanel(t, svc)

	pending := p.Submit(context.Background(), "trip-a", RawCandidate{StartHour: "8", EndHour: "9", Status: OnDuty, Location: "x", Note: "y"})
	require.NoError(t, p.SelectTrip(context.Background(), "trip-b"))
	close(svc.release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := pending.Wait(ctx)
	require.NoError(t, err)

	assert.True(t, res.Stale)
	snap := p.Snapshot()
	assert.Equal(t, "trip-b", snap.TripID)
	assert.Empty(t, snap.Segments)
	assert.Equal(t, uint64(2), snap.Generation)
}

func TestPanelSelectTripError(t *testing.T) {
	p := NewPanel(&fakeProvider{err: ErrUnauthorized}, &fakeService{}, "")
	err := p.SelectTrip(context.Background(), "trip-a")

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PersistenceUnauthorized, pe.Kind)
	assert.Empty(t, p.TripID())

	res, err := p.Submit(context.Background(), "trip-a", RawCandidate{StartHour: "8", EndHour: "9", Status: OnDuty, Location: "x", Note: "y"}).
		Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrTripChanged)
}

func TestPanelSubmitForOtherTripIsRejected(t *testing.T) {
	svc := &fakeService{}
	p := newTestPanel(t, svc)
	require.NoError(t, p.SelectTrip(context.Background(), "trip-b"))

	res, err := p.Submit(context.Background(), "trip-a", RawCandidate{StartHour: "8", EndHour: "9", Status: OnDuty, Location: "x", Note: "y"}).
		Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.True(t, res.Stale)
	assert.ErrorIs(t, res.Err, ErrTripChanged)
	assert.Empty(t, p.Snapshot().Segments)
	assert.Empty(t, svc.entries)
	assert.Equal(t, StateIdle, p.State())
}

// gatedService blocks each Store call until the test answers for that
// segment's start hour.
type gatedService struct {
	mu      sync.Mutex
	gates   map[float64]chan error
	entries []Entry
}

func (g *gatedService) Store(_ context.Context, e Entry) (string, error) {
	if err := <-g.gates[e.Segment.StartHour]; err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, e)
	return "log-2", nil
}

func TestPanelConcurrentSubmissionsUseAcknowledgedTotals(t *testing.T) {
	svc := &gatedService{gates: map[float64]chan error{1: make(chan error), 5: make(chan error)}}
	provider := &fakeProvider{logs: map[string][]Record{
		"trip-a": {{StartHour: 0, EndHour: 8, Status: "OffDuty", Location: "a", Note: "b"}},
	}}
	p := NewPanel(provider, svc, "token")
	require.NoError(t, p.SelectTrip(context.Background(), "trip-a"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first := p.Submit(ctx, "trip-a", RawCandidate{StartHour: "1", EndHour: "3", Status: Driving, Location: "x", Note: "y"})
	second := p.Submit(ctx, "trip-a", RawCandidate{StartHour: "5", EndHour: "6", Status: Driving, Location: "x", Note: "y"})
	assert.InDelta(t, 3.0, p.Snapshot().Totals.Driving, 1e-9)

	svc.gates[1] <- errors.New("connection reset")
	res, err := first.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateSubmitting, p.State())

	svc.gates[5] <- nil
	res, err = second.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, StateIdle, p.State())

	snap := p.Snapshot()
	assert.Len(t, snap.Segments, 2)
	assert.InDelta(t, 1.0, snap.Totals.Driving, 1e-9)

	require.Len(t, svc.entries, 1)
	assert.InDelta(t, 1.0, svc.entries[0].Totals.Driving, 1e-9)
	assert.InDelta(t, 8.0, svc.entries[0].Totals.OffDuty, 1e-9)
}

type slowProvider struct {
	fakeProvider
	release chan struct{}
}

func (s *slowProvider) GetLogs(ctx context.Context, tripID, token string) ([]Record, error) {
	<-s.release
	return s.fakeProvider.GetLogs(ctx, tripID, token)
}

func TestPanelSubmitWaitsForTripLoad(t *testing.T) {
	provider := &slowProvider{
		fakeProvider: fakeProvider{logs: map[string][]Record{
			"trip-a": {{StartHour: 0, EndHour: 8, Status: "OffDuty", Location: "a", Note: "b"}},
		}},
		release: make(chan struct{}),
	}
	svc := &fakeService{}
	p := NewPanel(provider, svc, "token")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	selected := make(chan error, 1)
	go func() { selected <- p.SelectTrip(ctx, "trip-a") }()
	require.Eventually(t, func() bool { return p.TripID() == "trip-a" }, time.Second, time.Millisecond)

	submitted := make(chan Result, 1)
	go func() {
		res, _ := p.Submit(ctx, "trip-a", RawCandidate{StartHour: "8", EndHour: "10", Status: Driving, Location: "x", Note: "y"}).Wait(ctx)
		submitted <- res
	}()

	close(provider.release)
	require.NoError(t, <-selected)

	res := <-submitted
	assert.Equal(t, StateSuccess, res.State)
	assert.InDelta(t, 8.0, res.Totals.OffDuty, 1e-9)
	assert.InDelta(t, 2.0, res.Totals.Driving, 1e-9)
	assert.Len(t, p.Snapshot().Segments, 2)
}
