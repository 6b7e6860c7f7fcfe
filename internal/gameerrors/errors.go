// Package gameerrors defines the error taxonomy shared by the room,
// session, realtime and query layers. Callers classify with errors.Is
// against the sentinel values; the constructors attach context while
// keeping the sentinel in the chain.
package gameerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing request fields.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an absent room, session or participant.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict marks an operation attempted against the wrong
	// round or status. Never retried automatically by the server.
	ErrStateConflict = errors.New("state conflict")

	// ErrDuplicateSubmission marks a second play for the same
	// (session, round, participant). Benign rejection, not a fault.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrRaceLost marks losing a conditional-write race, such as the
	// bingo-slot decrement. Benign; the caller continues without effect.
	ErrRaceLost = errors.New("race lost")

	// ErrTransport marks an Event Fabric delivery failure. Always absorbed
	// internally: local and durable state has already advanced.
	ErrTransport = errors.New("transport error")
)

// Validation returns a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns a not-found error naming the missing entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// StateConflict returns a state-conflict error with a formatted message.
func StateConflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, fmt.Sprintf(format, args...))
}
