package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
)

// CardStore defines the persistence interface for cards.
//
// Per-card mutation is serialized with a compare-and-set protocol: Save takes
// the version the caller loaded and fails with ErrConflict when the stored
// row has moved on, so two concurrent reviews of the same card produce
// exactly one accepted write.
type CardStore interface {
	// Create saves a new card. Validates the entity first.
	// Returns ErrDuplicate if the (user, item, type) card already exists.
	Create(ctx context.Context, card *domain.Card) error

	// Get retrieves a card by its (user, item) identity.
	// Returns ErrCardNotFound if it does not exist.
	Get(ctx context.Context, userID uuid.UUID, itemKey string) (*domain.Card, error)

	// GetNextDue retrieves the user's most overdue card at the given time.
	// Returns ErrCardNotFound when nothing is due.
	GetNextDue(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.Card, error)

	// Save writes the card if and only if the stored row still carries
	// expectedVersion, incrementing the version on success. Returns
	// ErrConflict when a concurrent writer won, ErrCardNotFound when the
	// card does not exist.
	Save(ctx context.Context, card *domain.Card, expectedVersion int64) error

	// Delete removes a card. Returns ErrCardNotFound if it does not exist.
	// The scheduler never calls this; removal is a collaborator concern.
	Delete(ctx context.Context, userID uuid.UUID, itemKey string) error

	// WithTx returns a CardStore bound to the given transaction.
	WithTx(tx *sql.Tx) CardStore
}
