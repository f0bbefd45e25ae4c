package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kioku-srs/kioku/internal/domain/srs"
	"github.com/kioku-srs/kioku/internal/platform/logger"
	"github.com/kioku-srs/kioku/internal/store"
)

// PostgresParametersStore implements the store.ParametersStore interface
// using a PostgreSQL database as the storage backend. Weight vectors are
// stored as JSONB so the column survives changes to the weight count.
type PostgresParametersStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresParametersStore creates a new PostgreSQL implementation of the
// ParametersStore interface. If logger is nil, a default logger will be used.
func NewPostgresParametersStore(db store.DBTX, logger *slog.Logger) *PostgresParametersStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresParametersStore{
		db:     db,
		logger: logger.With(slog.String("component", "parameters_store")),
	}
}

// Ensure PostgresParametersStore implements store.ParametersStore.
var _ store.ParametersStore = (*PostgresParametersStore)(nil)

// Latest implements store.ParametersStore.Latest.
// Returns store.ErrParametersNotFound when no fit has ever been stored.
func (s *PostgresParametersStore) Latest(ctx context.Context) (*store.ParametersRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT version, weights, desired_retention, review_count, log_loss, trained_at
		FROM srs_parameters
		ORDER BY version DESC
		LIMIT 1
	`

	var (
		rec     store.ParametersRecord
		weights []byte
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&rec.Version,
		&weights,
		&rec.DesiredRetention,
		&rec.ReviewCount,
		&rec.LogLoss,
		&rec.TrainedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrParametersNotFound
	}
	if err != nil {
		log.Error("failed to load latest parameters", slog.String("error", err.Error()))
		return nil, err
	}

	var w srs.Weights
	if err := json.Unmarshal(weights, &w); err != nil {
		return nil, fmt.Errorf("%w: malformed weight vector: %v", store.ErrInvalidEntity, err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	rec.Weights = w

	return &rec, nil
}

// Save implements store.ParametersStore.Save.
// The stored version is assigned by the database and written back into rec.
func (s *PostgresParametersStore) Save(ctx context.Context, rec *store.ParametersRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := rec.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	weights, err := json.Marshal(rec.Weights)
	if err != nil {
		return fmt.Errorf("marshaling weight vector: %w", err)
	}

	query := `
		INSERT INTO srs_parameters (weights, desired_retention, review_count, log_loss, trained_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING version
	`
	err = s.db.QueryRowContext(
		ctx,
		query,
		weights,
		rec.DesiredRetention,
		rec.ReviewCount,
		rec.LogLoss,
		rec.TrainedAt,
	).Scan(&rec.Version)
	if err != nil {
		log.Error("failed to save parameters", slog.String("error", err.Error()))
		return err
	}

	log.Info("parameters saved",
		slog.Int64("version", rec.Version),
		slog.Int("review_count", rec.ReviewCount),
		slog.Float64("log_loss", rec.LogLoss))
	return nil
}
