package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/platform/logger"
	"github.com/kioku-srs/kioku/internal/store"
)

// PostgresCardStore implements the store.CardStore interface using a
// PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the
// CardStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore.
var _ store.CardStore = (*PostgresCardStore)(nil)

// WithTx implements store.CardStore.WithTx.
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{db: tx, logger: s.logger}
}

const cardColumns = `user_id, item_key, item_type, state, step, stability, difficulty,
		due, last_review, version, created_at, updated_at`

// Create implements store.CardStore.Create.
// Returns store.ErrDuplicate if the user already has a card for the item.
func (s *PostgresCardStore) Create(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.String("item_key", card.ItemKey))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		card.UserID,
		card.ItemKey,
		card.ItemType,
		card.State.String(),
		card.Step,
		card.Stability,
		card.Difficulty,
		card.Due,
		card.LastReview,
		card.Version,
		card.CreatedAt,
		card.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("duplicate card",
				slog.String("user_id", card.UserID.String()),
				slog.String("item_key", card.ItemKey))
			return fmt.Errorf("%w: card for item %q", store.ErrDuplicate, card.ItemKey)
		}

		log.Error("failed to create card",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.String("item_key", card.ItemKey))
		return err
	}

	log.Info("card created",
		slog.String("user_id", card.UserID.String()),
		slog.String("item_key", card.ItemKey))
	return nil
}

// Get implements store.CardStore.Get.
// Returns store.ErrCardNotFound if the card does not exist.
func (s *PostgresCardStore) Get(ctx context.Context, userID uuid.UUID, itemKey string) (*domain.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE user_id = $1 AND item_key = $2 AND item_type = $3
	`
	row := s.db.QueryRowContext(ctx, query, userID, itemKey, domain.ItemTypeVocab)
	return s.scanCard(ctx, row)
}

// GetNextDue implements store.CardStore.GetNextDue.
// Returns store.ErrCardNotFound when the user has no card due at now.
func (s *PostgresCardStore) GetNextDue(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE user_id = $1 AND due <= $2
		ORDER BY due ASC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, userID, now)
	return s.scanCard(ctx, row)
}

// Save implements store.CardStore.Save.
// The write succeeds only when the stored version still equals
// expectedVersion; the version column is incremented in the same statement.
// On success the card's Version field reflects the stored value.
func (s *PostgresCardStore) Save(ctx context.Context, card *domain.Card, expectedVersion int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during save",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.String("item_key", card.ItemKey))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE cards
		SET state = $1, step = $2, stability = $3, difficulty = $4,
			due = $5, last_review = $6, version = version + 1, updated_at = $7
		WHERE user_id = $8 AND item_key = $9 AND item_type = $10 AND version = $11
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		card.State.String(),
		card.Step,
		card.Stability,
		card.Difficulty,
		card.Due,
		card.LastReview,
		card.UpdatedAt,
		card.UserID,
		card.ItemKey,
		card.ItemType,
		expectedVersion,
	)
	if err != nil {
		log.Error("failed to save card",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.String("item_key", card.ItemKey))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		card.Version = expectedVersion + 1
		return nil
	}

	// No row matched: either the card is gone or a concurrent writer bumped
	// the version. Distinguish the two for the caller.
	var current int64
	err = s.db.QueryRowContext(ctx,
		`SELECT version FROM cards WHERE user_id = $1 AND item_key = $2 AND item_type = $3`,
		card.UserID, card.ItemKey, card.ItemType,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrCardNotFound
	}
	if err != nil {
		return err
	}

	log.Warn("card save lost compare-and-set race",
		slog.String("user_id", card.UserID.String()),
		slog.String("item_key", card.ItemKey),
		slog.Int64("expected_version", expectedVersion),
		slog.Int64("stored_version", current))
	return fmt.Errorf("%w: card %q expected version %d, stored %d",
		store.ErrConflict, card.ItemKey, expectedVersion, current)
}

// Delete implements store.CardStore.Delete.
// Returns store.ErrCardNotFound if the card does not exist.
func (s *PostgresCardStore) Delete(ctx context.Context, userID uuid.UUID, itemKey string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cards WHERE user_id = $1 AND item_key = $2 AND item_type = $3`,
		userID, itemKey, domain.ItemTypeVocab,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrCardNotFound
	}
	return nil
}

// scanCard hydrates one card row, validating it before it reaches the
// scheduler.
func (s *PostgresCardStore) scanCard(ctx context.Context, row *sql.Row) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		card       domain.Card
		stateName  string
		stability  sql.NullFloat64
		difficulty sql.NullFloat64
		lastReview sql.NullTime
	)

	err := row.Scan(
		&card.UserID,
		&card.ItemKey,
		&card.ItemType,
		&stateName,
		&card.Step,
		&stability,
		&difficulty,
		&card.Due,
		&lastReview,
		&card.Version,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCardNotFound
	}
	if err != nil {
		log.Error("failed to scan card row", slog.String("error", err.Error()))
		return nil, err
	}

	if err := card.State.UnmarshalText([]byte(stateName)); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if stability.Valid {
		card.SetStability(stability.Float64)
	}
	if difficulty.Valid {
		card.SetDifficulty(difficulty.Float64)
	}
	if lastReview.Valid {
		t := lastReview.Time
		card.LastReview = &t
	}

	if err := card.Validate(); err != nil {
		log.Error("stored card failed hydration validation",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.String("item_key", card.ItemKey))
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	return &card, nil
}
