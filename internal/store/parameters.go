package store

import (
	"context"
	"time"

	"github.com/kioku-srs/kioku/internal/domain/srs"
)

// ParametersRecord is one versioned, timestamped parameter vector as stored.
// The optimizer appends a new record per successful fit; schedulers load the
// latest at construction and swap it in atomically.
type ParametersRecord struct {
	Version          int64       `json:"version"`
	Weights          srs.Weights `json:"weights"`
	DesiredRetention float64     `json:"desired_retention"`
	ReviewCount      int         `json:"review_count"` // Observations behind the fit.
	LogLoss          float64     `json:"log_loss"`
	TrainedAt        time.Time   `json:"trained_at"`
}

// ParametersStore defines the persistence interface for parameter vectors.
type ParametersStore interface {
	// Latest returns the most recent parameter record.
	// Returns ErrParametersNotFound when none has been stored.
	Latest(ctx context.Context) (*ParametersRecord, error)

	// Save appends a new parameter record, assigning it the next version.
	// Records are never updated in place.
	Save(ctx context.Context, rec *ParametersRecord) error
}
