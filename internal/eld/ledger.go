package eld

import "sort"

// Record is a persisted log entry as seen by the ledger.
type Record struct {
	ID        string  `json:"id,omitempty"`
	StartHour float64 `json:"start_hour"`
	EndHour   float64 `json:"end_hour"`
	Status    string  `json:"status"`
	Location  string  `json:"location"`
	Note      string  `json:"note"`
}

// Ledger is the ordered list of segments for one trip.
// It is not safe for concurrent use; Panel serializes access.
type Ledger struct {
	tripID   string
	segments []Segment
}

// NewLedger returns an empty ledger for a trip.
func NewLedger(tripID string) *Ledger {
	return &Ledger{tripID: tripID}
}

// FromEntries rebuilds a ledger from persisted records, dropping records
// whose status tag is not recognized.
func FromEntries(tripID string, records []Record) *Ledger {
	l, _ := FromEntriesReport(tripID, records)
	return l
}

// FromEntriesReport is FromEntries that also returns the dropped records.
func FromEntriesReport(tripID string, records []Record) (*Ledger, []Record) {
	l := NewLedger(tripID)
	var dropped []Record
	for _, r := range records {
		status, ok := decodeStoredStatus(r.Status)
		if !ok {
			dropped = append(dropped, r)
			continue
		}
		l.segments = append(l.segments, Segment{
			StartHour: r.StartHour,
			EndHour:   r.EndHour,
			Status:    status,
			Location:  r.Location,
			Note:      r.Note,
		})
	}
	return l, dropped
}

// ToEntries maps the ledger back to records.
func (l *Ledger) ToEntries() []Record {
	records := make([]Record, 0, len(l.segments))
	for _, s := range l.segments {
		records = append(records, Record{
			StartHour: s.StartHour,
			EndHour:   s.EndHour,
			Status:    s.Status.String(),
			Location:  s.Location,
			Note:      s.Note,
		})
	}
	return records
}

// TripID returns the trip the ledger belongs to.
func (l *Ledger) TripID() string { return l.tripID }

// Len returns the number of segments.
func (l *Ledger) Len() int { return len(l.segments) }

// Segments returns a copy of the segments in insertion order.
func (l *Ledger) Segments() []Segment {
	out := make([]Segment, len(l.segments))
	copy(out, l.segments)
	return out
}

// Append adds a segment at the end.
func (l *Ledger) Append(s Segment) {
	l.segments = append(l.segments, s)
}

// SwitchTrip empties the ledger and rebinds it to another trip.
func (l *Ledger) SwitchTrip(tripID string) {
	l.tripID = tripID
	l.segments = nil
}

// remove drops the most recent segment equal to s.
func (l *Ledger) remove(s Segment) {
	l.segments = removeLast(l.segments, s)
}

func (l *Ledger) clone() *Ledger {
	return &Ledger{tripID: l.tripID, segments: l.Segments()}
}

// Overlap is a pair of segment indexes whose time ranges intersect.
type Overlap struct {
	First  int
	Second int
}

// Overlaps lists intersecting segment pairs. Appending never rejects
// overlaps; this is only used to flag them on the log grid.
func (l *Ledger) Overlaps() []Overlap {
	idx := make([]int, len(l.segments))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return l.segments[idx[a]].StartHour < l.segments[idx[b]].StartHour
	})

	var out []Overlap
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			if l.segments[idx[b]].StartHour >= l.segments[idx[a]].EndHour {
				break
			}
			first, second := idx[a], idx[b]
			if first > second {
				first, second = second, first
			}
			out = append(out, Overlap{First: first, Second: second})
		}
	}
	return out
}
