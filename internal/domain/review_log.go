package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReviewLog-specific validation errors.
var (
	// ErrLogIDEmpty is returned when a review log ID is empty or nil.
	ErrLogIDEmpty = errors.New("review log ID cannot be empty")

	// ErrLogUserIDEmpty is returned when a review log's user ID is empty.
	ErrLogUserIDEmpty = errors.New("review log user ID cannot be empty")

	// ErrLogItemKeyEmpty is returned when a review log's item key is empty.
	ErrLogItemKeyEmpty = errors.New("review log item key cannot be empty")

	// ErrLogNegativeDays is returned when elapsed or scheduled days are negative.
	ErrLogNegativeDays = errors.New("review log day counts cannot be negative")
)

// ReviewLog records a single grading event applied to a card.
//
// Logs are append-only: created exactly once per applied review by the
// scheduler and never mutated afterwards. Together they form the training
// set for the parameter optimizer and the audit trail for diagnosing a
// scheduling decision.
type ReviewLog struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	ItemKey          string    `json:"item_key"`
	ItemType         string    `json:"item_type"`
	Rating           Rating    `json:"rating"`
	ReviewedAt       time.Time `json:"reviewed_at"`
	ElapsedDays      float64   `json:"elapsed_days"`   // Since the previous review; 0 for the first.
	ScheduledDays    float64   `json:"scheduled_days"` // Interval chosen by this review.
	StateBefore      State     `json:"state_before"`
	StateAfter       State     `json:"state_after"`
	StepBefore       int       `json:"step_before"`
	StepAfter        int       `json:"step_after"`
	StabilityBefore  *float64  `json:"stability_before"` // nil for a first review.
	StabilityAfter   float64   `json:"stability_after"`
	DifficultyBefore *float64  `json:"difficulty_before"` // nil for a first review.
	DifficultyAfter  float64   `json:"difficulty_after"`
	CreatedAt        time.Time `json:"created_at"`
}

// Validate checks the review log's invariants.
func (l *ReviewLog) Validate() error {
	if l.ID == uuid.Nil {
		return ErrLogIDEmpty
	}
	if l.UserID == uuid.Nil {
		return ErrLogUserIDEmpty
	}
	if l.ItemKey == "" {
		return ErrLogItemKeyEmpty
	}
	if !l.Rating.IsValid() {
		return ErrInvalidRating
	}
	if !l.StateBefore.IsValid() || !l.StateAfter.IsValid() {
		return ErrInvalidState
	}
	if l.ElapsedDays < 0 || l.ScheduledDays < 0 {
		return ErrLogNegativeDays
	}
	return nil
}

// Succeeded reports whether the review counts as a successful recall.
// Only an again rating is a failure; hard, good and easy are successes.
func (l *ReviewLog) Succeeded() bool {
	return l.Rating != RatingAgain
}
