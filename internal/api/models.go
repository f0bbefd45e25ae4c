package api

import (
	"time"

	"github.com/kioku-srs/kioku/internal/domain"
)

// AddCardRequest represents the request body for registering a new item.
type AddCardRequest struct {
	ItemKey string `json:"item_key" validate:"required"`
}

// SubmitReviewRequest represents the request body for submitting a review.
type SubmitReviewRequest struct {
	Rating    string `json:"rating" validate:"required,oneof=again hard good easy"`
	IgnoreDue bool   `json:"ignore_due"`
}

// CardResponse represents the response data for a card.
type CardResponse struct {
	UserID     string     `json:"user_id"`
	ItemKey    string     `json:"item_key"`
	ItemType   string     `json:"item_type"`
	State      string     `json:"state"`
	Step       int        `json:"step"`
	Stability  *float64   `json:"stability,omitempty"`
	Difficulty *float64   `json:"difficulty,omitempty"`
	Due        time.Time  `json:"due"`
	LastReview *time.Time `json:"last_review,omitempty"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ReviewLogResponse represents the response data for a recorded review.
type ReviewLogResponse struct {
	ID            string    `json:"id"`
	ItemKey       string    `json:"item_key"`
	Rating        string    `json:"rating"`
	ReviewedAt    time.Time `json:"reviewed_at"`
	ElapsedDays   float64   `json:"elapsed_days"`
	ScheduledDays float64   `json:"scheduled_days"`
	StateBefore   string    `json:"state_before"`
	StateAfter    string    `json:"state_after"`
}

// SubmitReviewResponse bundles the rescheduled card with its log entry.
type SubmitReviewResponse struct {
	Card CardResponse      `json:"card"`
	Log  ReviewLogResponse `json:"log"`
}

// RetrievabilityResponse reports the predicted recall probability.
type RetrievabilityResponse struct {
	Retrievability float64 `json:"retrievability"`
}

func cardToResponse(card *domain.Card) CardResponse {
	return CardResponse{
		UserID:     card.UserID.String(),
		ItemKey:    card.ItemKey,
		ItemType:   card.ItemType,
		State:      card.State.String(),
		Step:       card.Step,
		Stability:  card.Stability,
		Difficulty: card.Difficulty,
		Due:        card.Due,
		LastReview: card.LastReview,
		Version:    card.Version,
		CreatedAt:  card.CreatedAt,
		UpdatedAt:  card.UpdatedAt,
	}
}

func logToResponse(entry *domain.ReviewLog) ReviewLogResponse {
	return ReviewLogResponse{
		ID:            entry.ID.String(),
		ItemKey:       entry.ItemKey,
		Rating:        entry.Rating.String(),
		ReviewedAt:    entry.ReviewedAt,
		ElapsedDays:   entry.ElapsedDays,
		ScheduledDays: entry.ScheduledDays,
		StateBefore:   entry.StateBefore.String(),
		StateAfter:    entry.StateAfter.String(),
	}
}
