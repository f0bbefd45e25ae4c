package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/platform/logger"
	"github.com/kioku-srs/kioku/internal/store"
)

// PostgresReviewLogStore implements the store.ReviewLogStore interface using
// a PostgreSQL database as the storage backend. The backing table is
// append-only; no update or delete statements exist here.
type PostgresReviewLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewLogStore creates a new PostgreSQL implementation of the
// ReviewLogStore interface. If logger is nil, a default logger will be used.
func NewPostgresReviewLogStore(db store.DBTX, logger *slog.Logger) *PostgresReviewLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_log_store")),
	}
}

// Ensure PostgresReviewLogStore implements store.ReviewLogStore.
var _ store.ReviewLogStore = (*PostgresReviewLogStore)(nil)

// WithTx implements store.ReviewLogStore.WithTx.
func (s *PostgresReviewLogStore) WithTx(tx *sql.Tx) store.ReviewLogStore {
	return &PostgresReviewLogStore{db: tx, logger: s.logger}
}

const reviewLogColumns = `id, user_id, item_key, item_type, rating, reviewed_at,
		elapsed_days, scheduled_days, state_before, state_after, step_before, step_after,
		stability_before, stability_after, difficulty_before, difficulty_after, created_at`

// Append implements store.ReviewLogStore.Append.
func (s *PostgresReviewLogStore) Append(ctx context.Context, entry *domain.ReviewLog) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := entry.Validate(); err != nil {
		log.Warn("review log validation failed during append",
			slog.String("error", err.Error()),
			slog.String("log_id", entry.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO review_logs (` + reviewLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.ItemKey,
		entry.ItemType,
		entry.Rating.String(),
		entry.ReviewedAt,
		entry.ElapsedDays,
		entry.ScheduledDays,
		entry.StateBefore.String(),
		entry.StateAfter.String(),
		entry.StepBefore,
		entry.StepAfter,
		entry.StabilityBefore,
		entry.StabilityAfter,
		entry.DifficultyBefore,
		entry.DifficultyAfter,
		entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: review log %s", store.ErrDuplicate, entry.ID)
		}

		log.Error("failed to append review log",
			slog.String("error", err.Error()),
			slog.String("log_id", entry.ID.String()),
			slog.String("user_id", entry.UserID.String()),
			slog.String("item_key", entry.ItemKey))
		return err
	}

	return nil
}

// ListByUser implements store.ReviewLogStore.ListByUser.
func (s *PostgresReviewLogStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ReviewLog, error) {
	query := `
		SELECT ` + reviewLogColumns + `
		FROM review_logs
		WHERE user_id = $1
		ORDER BY reviewed_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.scanLogs(rows)
}

// ListSince implements store.ReviewLogStore.ListSince.
func (s *PostgresReviewLogStore) ListSince(ctx context.Context, since time.Time) ([]domain.ReviewLog, error) {
	query := `
		SELECT ` + reviewLogColumns + `
		FROM review_logs
		WHERE reviewed_at >= $1
		ORDER BY reviewed_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.scanLogs(rows)
}

func (s *PostgresReviewLogStore) scanLogs(rows *sql.Rows) ([]domain.ReviewLog, error) {
	var logs []domain.ReviewLog

	for rows.Next() {
		var (
			entry            domain.ReviewLog
			ratingName       string
			stateBefore      string
			stateAfter       string
			stabilityBefore  sql.NullFloat64
			difficultyBefore sql.NullFloat64
		)

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.ItemKey,
			&entry.ItemType,
			&ratingName,
			&entry.ReviewedAt,
			&entry.ElapsedDays,
			&entry.ScheduledDays,
			&stateBefore,
			&stateAfter,
			&entry.StepBefore,
			&entry.StepAfter,
			&stabilityBefore,
			&entry.StabilityAfter,
			&difficultyBefore,
			&entry.DifficultyAfter,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if err := entry.Rating.UnmarshalText([]byte(ratingName)); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		if err := entry.StateBefore.UnmarshalText([]byte(stateBefore)); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		if err := entry.StateAfter.UnmarshalText([]byte(stateAfter)); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		if stabilityBefore.Valid {
			v := stabilityBefore.Float64
			entry.StabilityBefore = &v
		}
		if difficultyBefore.Valid {
			v := difficultyBefore.Float64
			entry.DifficultyBefore = &v
		}

		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
