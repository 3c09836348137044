package eld

import (
	"context"
	"sync"
)

// TripDataProvider supplies the persisted log records of a trip.
type TripDataProvider interface {
	GetLogs(ctx context.Context, tripID, token string) ([]Record, error)
}

// Entry is what gets persisted for one submitted segment. Totals is the
// aggregate of the acknowledged segments plus the new one.
type Entry struct {
	TripID  string
	Token   string
	Segment Segment
	Totals  AggregateHours
}

// LogSubmissionService persists a submitted entry and returns its id.
type LogSubmissionService interface {
	Store(ctx context.Context, entry Entry) (string, error)
}

// State is the submission state of a Panel.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of one submission.
type Result struct {
	State   State
	ID      string
	Segment Segment
	Totals  AggregateHours
	Err     error
	// Stale is set when the panel switched trips before persistence finished.
	Stale bool
}

// Pending tracks an in-flight submission.
type Pending struct {
	done   chan struct{}
	result Result
}

// Done is closed once the submission has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the submission finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func completed(r Result) *Pending {
	p := &Pending{done: make(chan struct{}), result: r}
	close(p.done)
	return p
}

// Snapshot is a consistent view of a Panel.
type Snapshot struct {
	TripID     string         `json:"trip_id"`
	Segments   []Segment      `json:"segments"`
	Totals     AggregateHours `json:"totals"`
	State      string         `json:"state"`
	Generation uint64         `json:"generation"`
	Overlaps   []Overlap      `json:"overlaps,omitempty"`
}

// Panel owns the ledger of the trip currently shown in one view and runs
// the submit flow against it.
type Panel struct {
	provider TripDataProvider
	service  LogSubmissionService
	token    string

	mu         sync.Mutex
	ledger     *Ledger
	inflight   []Segment
	loading    chan struct{}
	generation uint64
	state      State
	observers  []func(from, to State)
}

// NewPanel creates a panel with an empty ledger and no trip selected.
func NewPanel(provider TripDataProvider, service LogSubmissionService, token string) *Panel {
	return &Panel{
		provider: provider,
		service:  service,
		token:    token,
		ledger:   NewLedger(""),
	}
}

// OnTransition registers a callback invoked on every state change.
// Callbacks run with the panel lock held and must not call back into it.
func (p *Panel) OnTransition(fn func(from, to State)) {
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	p.mu.Unlock()
}

func (p *Panel) setState(s State) {
	from := p.state
	p.state = s
	for _, fn := range p.observers {
		fn(from, s)
	}
}

// TripID returns the selected trip.
func (p *Panel) TripID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.TripID()
}

// State returns the current submission state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the ledger and its totals under one lock.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		TripID:     p.ledger.TripID(),
		Segments:   p.ledger.Segments(),
		Totals:     Aggregate(p.ledger),
		State:      p.state.String(),
		Generation: p.generation,
		Overlaps:   p.ledger.Overlaps(),
	}
}

// SelectTrip discards the current ledger and loads the given trip.
// Completions of submissions issued before the switch are ignored, and
// submissions issued during the load wait for it.
func (p *Panel) SelectTrip(ctx context.Context, tripID string) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.ledger.SwitchTrip(tripID)
	p.inflight = nil
	loading := make(chan struct{})
	p.loading = loading
	p.mu.Unlock()

	records, err := p.provider.GetLogs(ctx, tripID, p.token)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loading == loading {
		p.loading = nil
	}
	close(loading)

	if err != nil {
		// Nothing is shown for a trip that failed to load.
		if gen == p.generation {
			p.ledger.SwitchTrip("")
		}
		return ClassifyPersistence(err)
	}
	if gen == p.generation {
		p.ledger = FromEntries(tripID, records)
	}
	return nil
}

// Submit validates raw form input for tripID. A valid segment is appended to
// the ledger right away and persisted in the background; if persistence
// fails the segment is removed again. Submitting for a trip the panel no
// longer shows fails with ErrTripChanged and leaves the ledger untouched.
func (p *Panel) Submit(ctx context.Context, tripID string, raw RawCandidate) *Pending {
	p.mu.Lock()
	for p.loading != nil {
		loading := p.loading
		p.mu.Unlock()
		select {
		case <-loading:
		case <-ctx.Done():
			return completed(Result{State: StateFailed, Err: ClassifyPersistence(ctx.Err())})
		}
		p.mu.Lock()
	}
	if p.ledger.TripID() != tripID {
		p.mu.Unlock()
		return completed(Result{State: StateFailed, Stale: true, Err: ErrTripChanged})
	}

	p.setState(StateValidating)
	seg, err := ValidateRaw(raw)
	if err != nil {
		p.setState(StateFailed)
		p.setState(p.restingState())
		p.mu.Unlock()
		return completed(Result{State: StateFailed, Err: err})
	}

	entry := Entry{
		TripID:  tripID,
		Token:   p.token,
		Segment: seg,
		Totals:  AggregateSegments(append(p.acknowledged(), seg)),
	}
	p.ledger.Append(seg)
	p.inflight = append(p.inflight, seg)
	gen := p.generation
	p.setState(StateSubmitting)
	p.mu.Unlock()

	pending := &Pending{done: make(chan struct{})}
	go func() {
		id, err := p.service.Store(context.WithoutCancel(ctx), entry)
		pending.result = p.complete(gen, entry, id, err)
		close(pending.done)
	}()
	return pending
}

func (p *Panel) complete(gen uint64, entry Entry, id string, err error) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := Result{ID: id, Segment: entry.Segment, Totals: entry.Totals}
	if err != nil {
		res.State = StateFailed
		res.Err = ClassifyPersistence(err)
	} else {
		res.State = StateSuccess
	}

	if gen != p.generation {
		res.Stale = true
		return res
	}

	p.inflight = removeLast(p.inflight, entry.Segment)
	if err != nil {
		p.ledger.remove(entry.Segment)
	}
	p.setState(res.State)
	p.setState(p.restingState())
	return res
}

// restingState is Submitting while other submissions are still in flight.
func (p *Panel) restingState() State {
	if len(p.inflight) > 0 {
		return StateSubmitting
	}
	return StateIdle
}

// acknowledged returns the ledger segments minus those still in flight.
func (p *Panel) acknowledged() []Segment {
	segs := p.ledger.Segments()
	for _, seg := range p.inflight {
		segs = removeLast(segs, seg)
	}
	return segs
}

// removeLast removes the most recent segment equal to seg.
func removeLast(segs []Segment, seg Segment) []Segment {
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] == seg {
			return append(segs[:i], segs[i+1:]...)
		}
	}
	return segs
}
