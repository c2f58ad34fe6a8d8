package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	// ErrNotFound is a resolver/lookup miss. Non-fatal: on the identity
	// path it signals "create a new record".
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is a unique-constraint collision, usually a handle racing
	// with a concurrent create. Recovered by re-query + merge, never
	// surfaced raw to callers.
	ErrConflict = errors.New("conflict: resource already exists")
	// ErrUpstreamUnavailable means the booking-system API could not be
	// reached. Callers degrade to null metrics and keep saving.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	// ErrParse marks a malformed raw event: skip it, count it, continue.
	ErrParse = errors.New("unparseable payload")

	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal server error")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
