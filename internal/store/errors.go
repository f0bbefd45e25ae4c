package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate of
	// a unique entity (e.g. a card for an item the user already has).
	ErrDuplicate = errors.New("entity already exists")

	// ErrConflict is returned when a compare-and-set write loses to a
	// concurrent writer: the expected version no longer matches the stored
	// row. Recoverable by reloading and retrying.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// Entity-specific "not found" errors.

	// ErrCardNotFound indicates that the requested card does not exist.
	ErrCardNotFound = fmt.Errorf("%w: card", ErrNotFound)

	// ErrParametersNotFound indicates that no parameter vector has been
	// stored yet.
	ErrParametersNotFound = fmt.Errorf("%w: parameters", ErrNotFound)
)

// IsNotFoundError checks whether the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError carries structured context for a failed store operation so the
// failing call can be reconstructed for diagnosis.
type StoreError struct {
	Entity    string // The entity type (e.g. "card", "review_log").
	Operation string // The operation that failed (e.g. "save", "append").
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError with the given context.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
