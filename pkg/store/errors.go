package store

import (
	"context"
	"errors"
)

// Sentinel errors forming the failure taxonomy shared by every backend and
// the coordination layer above them. Implementations wrap these with
// fmt.Errorf("...: %w", ...) so callers can match the class with errors.Is
// while the driver-level cause stays inspectable.
var (
	// ErrUnavailable means the store could not be reached, or the call timed
	// out. Retryable by the caller; nothing in this module retries on its own.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound means the addressed entity does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrInvalid means the input is malformed: an empty required field, a
	// comment whose parent post does not exist, or an immutable field change.
	ErrInvalid = errors.New("invalid input")

	// ErrConflict means an insert collided with an already-stored identity.
	ErrConflict = errors.New("duplicate identity")

	// ErrInvalidTransition is returned by the phase controller for a phase
	// advance that skips a step or fails its precondition.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrPrimaryUnavailable is the authoritative failure of a mutation: the
	// store holding write authority rejected or could not perform the write,
	// the operation failed as a whole, and the other store was never
	// attempted.
	ErrPrimaryUnavailable = errors.New("primary unavailable")
)

// Error class names used in ledger rows, log fields and metric labels.
const (
	ClassUnavailable        = "unavailable"
	ClassNotFound           = "not_found"
	ClassInvalid            = "invalid"
	ClassConflict           = "conflict"
	ClassInvalidTransition  = "invalid_transition"
	ClassPrimaryUnavailable = "primary_unavailable"
	ClassCanceled           = "canceled"
	ClassInternal           = "internal"
)

// Classify maps an error onto its taxonomy class name. Deadline expiry counts
// as unavailable (a store that cannot answer in time is unreachable for the
// caller's purposes); a canceled context is reported as canceled, not as a
// store failure. Anything unrecognized is internal.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPrimaryUnavailable):
		return ClassPrimaryUnavailable
	case errors.Is(err, ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return ClassUnavailable
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrInvalid):
		return ClassInvalid
	case errors.Is(err, ErrConflict):
		return ClassConflict
	case errors.Is(err, ErrInvalidTransition):
		return ClassInvalidTransition
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	default:
		return ClassInternal
	}
}
