// Package review orchestrates the review flow: it fetches due cards, gates
// reviews on due time, grades answers, applies the scheduler, and persists
// the outcome atomically.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
)

// Grader judges a user's answer for a card and maps it to a rating. The
// orchestrator treats it as opaque: it may compare strings, consult a
// typo-tolerant matcher, or ask the user directly.
type Grader interface {
	Grade(ctx context.Context, card *domain.Card) (domain.Rating, error)
}

// GraderFunc adapts a plain function to the Grader interface.
type GraderFunc func(ctx context.Context, card *domain.Card) (domain.Rating, error)

// Grade implements Grader.
func (f GraderFunc) Grade(ctx context.Context, card *domain.Card) (domain.Rating, error) {
	return f(ctx, card)
}

// SubmitResult carries the outcome of a submitted review.
type SubmitResult struct {
	Card *domain.Card      // Rescheduled card as persisted.
	Log  *domain.ReviewLog // Appended history entry.
}

// SubmitOption adjusts a single submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	ignoreDue bool
}

// IgnoreDue disables the due-time gate for one submission, for cramming or
// manual corrections ahead of schedule.
func IgnoreDue() SubmitOption {
	return func(o *submitOptions) { o.ignoreDue = true }
}

// Service provides review orchestration.
type Service interface {
	// AddCard registers a new vocabulary item for the user and returns the
	// created card. Returns ErrCardExists if the user already has one.
	AddCard(ctx context.Context, userID uuid.UUID, itemKey string) (*domain.Card, error)

	// NextCard retrieves the user's most overdue card.
	// Returns ErrNoCardsDue when nothing is due.
	NextCard(ctx context.Context, userID uuid.UUID) (*domain.Card, error)

	// Preview returns the card each of the four ratings would produce, so
	// the caller can display the candidate intervals. Read-only, no fuzz.
	Preview(ctx context.Context, userID uuid.UUID, itemKey string) (map[domain.Rating]*domain.Card, error)

	// SubmitRating grades the card with an explicit rating, reschedules it
	// and appends a review log atomically. Cards not yet due are rejected
	// with ErrNotDue unless IgnoreDue is passed. Lost compare-and-set races
	// are retried a bounded number of times; beyond that the call fails
	// with ErrConflictRetriesExhausted.
	SubmitRating(ctx context.Context, userID uuid.UUID, itemKey string, rating domain.Rating, opts ...SubmitOption) (*SubmitResult, error)

	// SubmitAnswer grades the card through the given grader, then proceeds
	// as SubmitRating. Grader failures are wrapped in a GradingError and
	// leave the card untouched.
	SubmitAnswer(ctx context.Context, userID uuid.UUID, itemKey string, grader Grader, opts ...SubmitOption) (*SubmitResult, error)

	// Retrievability predicts the probability of recall for the card now.
	Retrievability(ctx context.Context, userID uuid.UUID, itemKey string) (float64, error)

	// History returns all of the user's review logs in review-time order.
	History(ctx context.Context, userID uuid.UUID) ([]domain.ReviewLog, error)

	// Reschedule rebuilds the card's scheduling state by replaying its
	// review history through the current parameters and persists the result,
	// typically after a parameter refit has shifted the model. The card's
	// history is untouched.
	Reschedule(ctx context.Context, userID uuid.UUID, itemKey string) (*domain.Card, error)

	// RemoveCard deletes the card. Its review logs are retained: they remain
	// part of the optimizer's training set.
	RemoveCard(ctx context.Context, userID uuid.UUID, itemKey string) error
}

// Common error types for the review service.
var (
	// ErrNoCardsDue indicates that the user has no cards due for review.
	ErrNoCardsDue = errors.New("no cards due for review")

	// ErrCardNotFound indicates that the card does not exist.
	ErrCardNotFound = errors.New("card not found")

	// ErrCardExists indicates the user already has a card for the item.
	ErrCardExists = errors.New("card already exists for item")

	// ErrNotDue indicates the card's due time has not arrived yet.
	ErrNotDue = errors.New("card is not due for review")

	// ErrConflictRetriesExhausted indicates that concurrent reviews of the
	// same card kept winning the compare-and-set race past the retry budget.
	ErrConflictRetriesExhausted = errors.New("review conflict retries exhausted")
)

// GradingError wraps a failure from the grading collaborator. The review is
// aborted and the card left unchanged.
type GradingError struct {
	Err error
}

// Error implements the error interface for GradingError.
func (e *GradingError) Error() string {
	return fmt.Sprintf("grading failed: %v", e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *GradingError) Unwrap() error {
	return e.Err
}

// ServiceError wraps unexpected errors from the review service with the
// failing operation, so consumers can differentiate with errors.As instead
// of string matching.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
