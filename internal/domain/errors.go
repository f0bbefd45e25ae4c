package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidRating is returned when a review rating is not one of
	// again, hard, good or easy.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrInvalidState is returned when a card's state/step combination is
	// outside the scheduler's transition table. This is defensive: given the
	// entity invariants it should be unreachable.
	ErrInvalidState = errors.New("invalid card state")

	// ErrInvalidStability is returned when a hydrated stability value is not
	// strictly positive.
	ErrInvalidStability = errors.New("stability must be positive")

	// ErrInvalidDifficulty is returned when a hydrated difficulty value is
	// outside [1, 10].
	ErrInvalidDifficulty = errors.New("difficulty must be in [1, 10]")
)
