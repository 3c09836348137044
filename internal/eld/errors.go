package eld

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ValidationKind classifies a segment validation failure.
type ValidationKind string

const (
	KindInvalidRange  ValidationKind = "invalid_range"
	KindNonNumeric    ValidationKind = "non_numeric"
	KindMissingField  ValidationKind = "missing_field"
	KindInvalidStatus ValidationKind = "invalid_status"
)

var (
	// ErrInvalidRange matches validation errors of kind KindInvalidRange.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrNonNumeric matches validation errors of kind KindNonNumeric.
	ErrNonNumeric = errors.New("hour is not a number")

	// ErrMissingField matches validation errors of kind KindMissingField.
	ErrMissingField = errors.New("required field is empty")

	// ErrInvalidStatus matches validation errors of kind KindInvalidStatus.
	ErrInvalidStatus = errors.New("unknown duty status")
)

// ValidationError is returned by Validate and ParseCandidate.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Is lets errors.Is match a ValidationError against the kind sentinels.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrInvalidRange:
		return e.Kind == KindInvalidRange
	case ErrNonNumeric:
		return e.Kind == KindNonNumeric
	case ErrMissingField:
		return e.Kind == KindMissingField
	case ErrInvalidStatus:
		return e.Kind == KindInvalidStatus
	}
	return false
}

// PersistenceKind classifies a failure reported by a LogSubmissionService.
type PersistenceKind string

const (
	PersistenceUnauthorized   PersistenceKind = "unauthorized"
	PersistenceNetworkFailure PersistenceKind = "network_failure"
	PersistenceUnknown        PersistenceKind = "unknown"
)

// ErrUnauthorized is returned by collaborators when the auth token is rejected.
var ErrUnauthorized = errors.New("not authenticated")

// ErrTripChanged is returned by Panel.Submit when the panel no longer shows
// the trip the segment was entered for.
var ErrTripChanged = errors.New("panel switched to another trip")

// PersistenceError wraps a failed store call.
type PersistenceError struct {
	Kind PersistenceKind
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist log entry (%s): %v", e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ClassifyPersistence wraps err in a PersistenceError with the matching kind.
func ClassifyPersistence(err error) *PersistenceError {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe
	}

	kind := PersistenceUnknown
	var netErr net.Error
	switch {
	case errors.Is(err, ErrUnauthorized):
		kind = PersistenceUnauthorized
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		kind = PersistenceNetworkFailure
	}
	return &PersistenceError{Kind: kind, Err: err}
}
