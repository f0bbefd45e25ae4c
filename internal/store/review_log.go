package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
)

// ReviewLogStore defines the persistence interface for review logs.
// Logs are append-only: there is no update or delete.
type ReviewLogStore interface {
	// Append stores a new review log entry. Validates the entity first.
	Append(ctx context.Context, log *domain.ReviewLog) error

	// ListByUser returns all of a user's review logs ordered by review time,
	// the training set for a per-user parameter fit.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ReviewLog, error)

	// ListSince returns all review logs recorded at or after the given time,
	// across users, ordered by review time. Used for global fits.
	ListSince(ctx context.Context, since time.Time) ([]domain.ReviewLog, error)

	// WithTx returns a ReviewLogStore bound to the given transaction.
	WithTx(tx *sql.Tx) ReviewLogStore
}
