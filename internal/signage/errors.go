package signage

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is against these.
var (
	// ErrNotFound matches every entity-specific not-found error below.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input, before any storage call.
	ErrValidation = errors.New("validation failed")

	// ErrStorage wraps failures of the underlying persistence operation.
	ErrStorage = errors.New("storage failure")
)

var (
	// ErrDisplayNotFound is returned when a display ID does not exist.
	ErrDisplayNotFound = fmt.Errorf("display %w", ErrNotFound)

	// ErrViewNotFound is returned when a view ID does not exist.
	ErrViewNotFound = fmt.Errorf("view %w", ErrNotFound)

	// ErrSlotNotFound is returned when a content slot ID does not exist
	// or does not belong to the view being reconciled.
	ErrSlotNotFound = fmt.Errorf("content slot %w", ErrNotFound)

	// ErrOptionNotFound is returned when a (slot, key) option does not exist.
	ErrOptionNotFound = fmt.Errorf("content slot option %w", ErrNotFound)

	// ErrClientIDTaken is returned when another display already uses a client identifier.
	ErrClientIDTaken = fmt.Errorf("%w: client identifier already in use", ErrValidation)
)

// storageErr tags err as a storage failure with a short description.
func storageErr(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, fmt.Sprintf(format, args...), err)
}
