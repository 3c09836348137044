package eld

import (
	"math"
	"strconv"
	"strings"
)

// HoursPerDay bounds every segment.
const HoursPerDay = 24.0

// Segment is one contiguous duty-status interval within a log day.
type Segment struct {
	StartHour float64    `json:"start_hour"`
	EndHour   float64    `json:"end_hour"`
	Status    DutyStatus `json:"status"`
	Location  string     `json:"location"`
	Note      string     `json:"note"`
}

// Duration returns the length of the segment in hours.
func (s Segment) Duration() float64 {
	return s.EndHour - s.StartHour
}

// Candidate is an unvalidated segment.
type Candidate struct {
	StartHour float64
	EndHour   float64
	Status    DutyStatus
	Location  string
	Note      string
}

// RawCandidate is a candidate as typed into the log form.
type RawCandidate struct {
	StartHour string     `json:"start_hour"`
	EndHour   string     `json:"end_hour"`
	Status    DutyStatus `json:"status"`
	Location  string     `json:"location"`
	Note      string     `json:"note"`
}

// ParseCandidate converts form text into a Candidate.
func ParseCandidate(raw RawCandidate) (Candidate, error) {
	start, err := parseHour("start_hour", raw.StartHour)
	if err != nil {
		return Candidate{}, err
	}
	end, err := parseHour("end_hour", raw.EndHour)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{
		StartHour: start,
		EndHour:   end,
		Status:    raw.Status,
		Location:  raw.Location,
		Note:      raw.Note,
	}, nil
}

func parseHour(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || !finite(v) {
		return 0, &ValidationError{Kind: KindNonNumeric, Field: field, Message: field + " must be a number"}
	}
	return v, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks a candidate and returns the resulting Segment.
func Validate(c Candidate) (Segment, error) {
	switch {
	case !finite(c.StartHour):
		return Segment{}, &ValidationError{Kind: KindInvalidRange, Field: "start_hour", Message: "start hour must be a finite number"}
	case !finite(c.EndHour):
		return Segment{}, &ValidationError{Kind: KindInvalidRange, Field: "end_hour", Message: "end hour must be a finite number"}
	case c.StartHour < 0:
		return Segment{}, &ValidationError{Kind: KindInvalidRange, Field: "start_hour", Message: "start hour must not be negative"}
	case c.EndHour > HoursPerDay:
		return Segment{}, &ValidationError{Kind: KindInvalidRange, Field: "end_hour", Message: "end hour must not exceed 24"}
	case c.StartHour >= c.EndHour:
		return Segment{}, &ValidationError{Kind: KindInvalidRange, Field: "end_hour", Message: "end hour must be after start hour"}
	}

	location := strings.TrimSpace(c.Location)
	if location == "" {
		return Segment{}, &ValidationError{Kind: KindMissingField, Field: "location", Message: "location is required"}
	}
	note := strings.TrimSpace(c.Note)
	if note == "" {
		return Segment{}, &ValidationError{Kind: KindMissingField, Field: "note", Message: "note is required"}
	}

	return Segment{
		StartHour: c.StartHour,
		EndHour:   c.EndHour,
		Status:    c.Status,
		Location:  location,
		Note:      note,
	}, nil
}

// ValidateRaw parses then validates form input.
func ValidateRaw(raw RawCandidate) (Segment, error) {
	c, err := ParseCandidate(raw)
	if err != nil {
		return Segment{}, err
	}
	return Validate(c)
}
