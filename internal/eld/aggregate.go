package eld

import (
	"fmt"
	"math"
)

// AggregateHours holds cumulative hours for the four billable statuses.
type AggregateHours struct {
	OffDuty float64 `json:"off_duty_hours"`
	Sleeper float64 `json:"sleeper_berth_hours"`
	Driving float64 `json:"driving_hours"`
	OnDuty  float64 `json:"on_duty_hours"`
}

// Aggregate sums segment durations per billable status.
func Aggregate(l *Ledger) AggregateHours {
	return AggregateSegments(l.segments)
}

// AggregateSegments is Aggregate over a plain slice.
func AggregateSegments(segments []Segment) AggregateHours {
	var h AggregateHours
	for _, s := range segments {
		d := s.Duration()
		switch s.Status {
		case OffDuty:
			h.OffDuty += d
		case Sleeper:
			h.Sleeper += d
		case Driving:
			h.Driving += d
		case OnDuty:
			h.OnDuty += d
		case PersonalConveyance, YardMove:
		}
	}
	return h
}

// Get returns the bucket for a status. Non-billable statuses return 0.
func (h AggregateHours) Get(s DutyStatus) float64 {
	switch s {
	case OffDuty:
		return h.OffDuty
	case Sleeper:
		return h.Sleeper
	case Driving:
		return h.Driving
	case OnDuty:
		return h.OnDuty
	}
	return 0
}

// Add returns the elementwise sum.
func (h AggregateHours) Add(o AggregateHours) AggregateHours {
	return AggregateHours{
		OffDuty: h.OffDuty + o.OffDuty,
		Sleeper: h.Sleeper + o.Sleeper,
		Driving: h.Driving + o.Driving,
		OnDuty:  h.OnDuty + o.OnDuty,
	}
}

// Total returns the sum of all four buckets.
func (h AggregateHours) Total() float64 {
	return h.OffDuty + h.Sleeper + h.Driving + h.OnDuty
}

// Rounded returns a copy with every bucket rounded to 2 decimals.
func (h AggregateHours) Rounded() AggregateHours {
	return AggregateHours{
		OffDuty: round2(h.OffDuty),
		Sleeper: round2(h.Sleeper),
		Driving: round2(h.Driving),
		OnDuty:  round2(h.OnDuty),
	}
}

// Format renders one bucket for display, e.g. "7.50 hrs".
func (h AggregateHours) Format(s DutyStatus) string {
	return fmt.Sprintf("%.2f hrs", h.Get(s))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
