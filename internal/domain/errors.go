package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Validation and persistent-external errors are surfaced
// to the caller as-is; internal errors are logged at error level by
// callers and returned as a generic wrapped failure.
var (
	// ErrNotFound is returned when a lookup by id/name finds no row.
	ErrNotFound = errors.New("not found")

	// ErrValidation covers unknown runner/event/layout references,
	// duplicate host/stream/name conflicts, and attempts to delete a
	// referenced entity.
	ErrValidation = errors.New("validation error")

	// ErrUnknownLayout is a persistent-external error: the broadcast
	// engine has no scene matching the requested or inferred layout.
	ErrUnknownLayout = errors.New("unknown layout")

	// ErrViewTransform is a persistent-external error: applying a
	// transform to a duplicated scene item failed, naming the view.
	ErrViewTransform = errors.New("view transform error")
)

// Validationf wraps ErrValidation with a formatted message, matching the
// store's error-wrapping idiom ("%s: %w").
func Validationf(format string, args ...any) error {
	return wrapf(ErrValidation, format, args...)
}

// ViewTransformf wraps ErrViewTransform, naming the offending view.
func ViewTransformf(format string, args ...any) error {
	return wrapf(ErrViewTransform, format, args...)
}

func wrapf(sentinel error, format string, args ...any) error {
	return &wrappedError{sentinel: sentinel, msg: fmt.Sprintf(format, args...)}
}

type wrappedError struct {
	sentinel error
	msg      string
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.sentinel }
