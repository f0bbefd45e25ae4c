package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Card-specific validation errors.
var (
	// ErrCardUserIDEmpty is returned when a card's user ID is empty or nil.
	ErrCardUserIDEmpty = errors.New("card user ID cannot be empty")

	// ErrCardItemKeyEmpty is returned when a card's item key is empty.
	ErrCardItemKeyEmpty = errors.New("card item key cannot be empty")

	// ErrCardItemTypeEmpty is returned when a card's item type is empty.
	ErrCardItemTypeEmpty = errors.New("card item type cannot be empty")

	// ErrCardMemoryUnset is returned when a card past the New state is
	// missing stability, difficulty or a last-review timestamp.
	ErrCardMemoryUnset = errors.New("reviewed card must carry memory state")

	// ErrCardDueBeforeReview is returned when a card's due time precedes its
	// last review.
	ErrCardDueBeforeReview = errors.New("card due time cannot precede last review")

	// ErrCardStepNegative is returned when a card's step index is negative.
	ErrCardStepNegative = errors.New("card step cannot be negative")
)

// ItemTypeVocab is the discriminator for vocabulary items. It allows several
// item kinds to share one persisted table.
const ItemTypeVocab = "vocab"

// Card holds the memory and lifecycle state of one (user, item) pair.
//
// Stability, Difficulty and LastReview are nil exactly while the card is in
// the New state; the first review initializes all three. Version is the
// compare-and-set token owned by the persistence layer: every accepted write
// increments it, and a stale version on save signals a concurrent review.
type Card struct {
	UserID     uuid.UUID  `json:"user_id"`
	ItemKey    string     `json:"item_key"`
	ItemType   string     `json:"item_type"`
	State      State      `json:"state"`
	Step       int        `json:"step"` // Meaningful only in Learning/Relearning.
	Stability  *float64   `json:"stability"`
	Difficulty *float64   `json:"difficulty"`
	Due        time.Time  `json:"due"`
	LastReview *time.Time `json:"last_review"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewCard creates a card in the New state for the given user and item,
// due immediately. now supplies the creation timestamp so callers with an
// injected clock stay in control of due-time comparisons.
func NewCard(userID uuid.UUID, itemKey string, now time.Time) (*Card, error) {
	now = now.UTC()
	card := &Card{
		UserID:    userID,
		ItemKey:   itemKey,
		ItemType:  ItemTypeVocab,
		State:     StateNew,
		Step:      0,
		Due:       now, // Available for review immediately.
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}

// Validate checks the card's invariants. It is called on construction and on
// hydration from storage; out-of-range values are rejected, never clamped.
func (c *Card) Validate() error {
	if c.UserID == uuid.Nil {
		return ErrCardUserIDEmpty
	}
	if c.ItemKey == "" {
		return ErrCardItemKeyEmpty
	}
	if c.ItemType == "" {
		return ErrCardItemTypeEmpty
	}
	if !c.State.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, int(c.State))
	}
	if c.Step < 0 {
		return fmt.Errorf("%w: %d", ErrCardStepNegative, c.Step)
	}

	if c.State == StateNew {
		if c.Stability != nil || c.Difficulty != nil || c.LastReview != nil {
			return fmt.Errorf("%w: new card carries memory state", ErrInvalidState)
		}
		return nil
	}

	if c.Stability == nil || c.Difficulty == nil || c.LastReview == nil {
		return ErrCardMemoryUnset
	}
	if *c.Stability <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidStability, *c.Stability)
	}
	if *c.Difficulty < 1 || *c.Difficulty > 10 {
		return fmt.Errorf("%w: %g", ErrInvalidDifficulty, *c.Difficulty)
	}
	if c.Due.Before(*c.LastReview) {
		return ErrCardDueBeforeReview
	}
	return nil
}

// Clone returns a deep copy of the card. Pointer fields are copied by value.
func (c *Card) Clone() *Card {
	out := *c
	if c.Stability != nil {
		v := *c.Stability
		out.Stability = &v
	}
	if c.Difficulty != nil {
		v := *c.Difficulty
		out.Difficulty = &v
	}
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return &out
}

// IsDue reports whether the card is due for review at the given time.
func (c *Card) IsDue(now time.Time) bool {
	return !now.Before(c.Due)
}

// SetStability assigns the stability value in place.
func (c *Card) SetStability(s float64) { c.Stability = &s }

// SetDifficulty assigns the difficulty value in place.
func (c *Card) SetDifficulty(d float64) { c.Difficulty = &d }
