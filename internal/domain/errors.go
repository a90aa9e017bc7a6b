package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks a transient store failure. Callers may retry
	// the specific operation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned when a document is absent. Deletes never
	// return it.
	ErrNotFound = errors.New("not found")

	ErrRoomNotFound   = fmt.Errorf("room %w", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)

	// ErrConfigMissing aborts a sweep run before any action is taken.
	ErrConfigMissing = errors.New("required configuration missing")

	// ErrPartialSweep is wrapped by PartialSweepError.
	ErrPartialSweep = errors.New("partial sweep failure")

	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidKey   = fmt.Errorf("%w: invalid document key", ErrInvalidInput)
)

// Unavailable wraps err as a store failure for op unless it already is one.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
