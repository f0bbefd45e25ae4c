package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/domain/srs"
	"github.com/kioku-srs/kioku/internal/platform/logger"
	"github.com/kioku-srs/kioku/internal/store"
)

// maxConflictRetries bounds how often a lost compare-and-set race is retried
// before ErrConflictRetriesExhausted surfaces.
const maxConflictRetries = 3

// Verify interface compliance at compile time.
var _ Service = (*reviewServiceImpl)(nil)

// reviewServiceImpl implements the Service interface.
type reviewServiceImpl struct {
	cards     store.CardStore
	logs      store.ReviewLogStore
	scheduler srs.Service
	logger    *slog.Logger

	// runTx and now are indirections for tests.
	runTx func(ctx context.Context, fn store.TxFn) error
	now   func() time.Time
}

// NewService creates a new review Service implementation. db carries the
// transactions that make card save and log append atomic.
func NewService(
	db *sql.DB,
	cards store.CardStore,
	logs store.ReviewLogStore,
	scheduler srs.Service,
	logger *slog.Logger,
) Service {
	if db == nil {
		panic("db cannot be nil")
	}
	if cards == nil {
		panic("cards cannot be nil")
	}
	if logs == nil {
		panic("logs cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &reviewServiceImpl{
		cards:     cards,
		logs:      logs,
		scheduler: scheduler,
		logger:    logger.With(slog.String("component", "review_service")),
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
		now: time.Now,
	}
}

// AddCard implements Service.AddCard.
func (s *reviewServiceImpl) AddCard(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := domain.NewCard(userID, itemKey, s.now())
	if err != nil {
		return nil, NewServiceError("add_card", "invalid card", err)
	}
	if err := s.cards.Create(ctx, card); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			log.Debug("card already exists",
				slog.String("user_id", userID.String()),
				slog.String("item_key", itemKey))
			return nil, ErrCardExists
		}
		log.Error("failed to add card",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("item_key", itemKey))
		return nil, NewServiceError("add_card", "failed to create card", err)
	}

	return card, nil
}

// NextCard implements Service.NextCard.
func (s *reviewServiceImpl) NextCard(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := s.cards.GetNextDue(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			log.Debug("no cards due", slog.String("user_id", userID.String()))
			return nil, ErrNoCardsDue
		}
		log.Error("failed to get next due card",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewServiceError("next_card", "failed to get next due card", err)
	}

	return card, nil
}

// Preview implements Service.Preview.
func (s *reviewServiceImpl) Preview(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
) (map[domain.Rating]*domain.Card, error) {
	card, err := s.getCard(ctx, userID, itemKey, "preview")
	if err != nil {
		return nil, err
	}

	preview, err := s.scheduler.Preview(card, s.now())
	if err != nil {
		return nil, NewServiceError("preview", "failed to preview intervals", err)
	}
	return preview, nil
}

// SubmitRating implements Service.SubmitRating.
func (s *reviewServiceImpl) SubmitRating(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
	rating domain.Rating,
	opts ...SubmitOption,
) (*SubmitResult, error) {
	if !rating.IsValid() {
		return nil, domain.ErrInvalidRating
	}
	return s.submit(ctx, userID, itemKey, fixedRating(rating), opts...)
}

// SubmitAnswer implements Service.SubmitAnswer.
func (s *reviewServiceImpl) SubmitAnswer(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
	grader Grader,
	opts ...SubmitOption,
) (*SubmitResult, error) {
	if grader == nil {
		panic("grader cannot be nil")
	}
	return s.submit(ctx, userID, itemKey, grader, opts...)
}

// Retrievability implements Service.Retrievability.
func (s *reviewServiceImpl) Retrievability(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
) (float64, error) {
	card, err := s.getCard(ctx, userID, itemKey, "retrievability")
	if err != nil {
		return 0, err
	}
	return s.scheduler.Retrievability(card, s.now()), nil
}

// History implements Service.History.
func (s *reviewServiceImpl) History(
	ctx context.Context,
	userID uuid.UUID,
) ([]domain.ReviewLog, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	entries, err := s.logs.ListByUser(ctx, userID)
	if err != nil {
		log.Error("failed to list review history",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewServiceError("history", "failed to list review logs", err)
	}
	return entries, nil
}

// Reschedule implements Service.Reschedule. The card's history is replayed
// onto a fresh replay base under the scheduler's current parameters; the
// rebuilt card is persisted with the same compare-and-set retry discipline as
// a submitted review, so a concurrent review cannot be silently overwritten.
func (s *reviewServiceImpl) Reschedule(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var lastConflict error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		card, err := s.getCard(ctx, userID, itemKey, "reschedule")
		if err != nil {
			return nil, err
		}

		all, err := s.logs.ListByUser(ctx, userID)
		if err != nil {
			log.Error("failed to list review logs",
				slog.String("error", err.Error()),
				slog.String("user_id", userID.String()),
				slog.String("item_key", itemKey))
			return nil, NewServiceError("reschedule", "failed to list review logs", err)
		}
		entries := make([]domain.ReviewLog, 0, len(all))
		for _, e := range all {
			if e.ItemKey == card.ItemKey && e.ItemType == card.ItemType {
				entries = append(entries, e)
			}
		}

		fresh, err := domain.NewCard(userID, itemKey, card.CreatedAt)
		if err != nil {
			return nil, NewServiceError("reschedule", "invalid replay base", err)
		}

		rebuilt, err := s.scheduler.Reschedule(fresh, entries)
		if err != nil {
			return nil, NewServiceError("reschedule", "failed to replay history", err)
		}

		err = s.cards.Save(ctx, rebuilt, card.Version)
		if err == nil {
			log.Info("card rescheduled",
				slog.String("user_id", userID.String()),
				slog.String("item_key", itemKey),
				slog.Int("reviews", len(entries)),
				slog.String("state", rebuilt.State.String()),
				slog.Time("due", rebuilt.Due))
			return rebuilt, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			log.Error("failed to persist rescheduled card",
				slog.String("error", err.Error()),
				slog.String("user_id", userID.String()),
				slog.String("item_key", itemKey))
			return nil, NewServiceError("reschedule", "failed to persist rescheduled card", err)
		}

		lastConflict = err
		log.Warn("reschedule lost compare-and-set race, retrying",
			slog.String("user_id", userID.String()),
			slog.String("item_key", itemKey),
			slog.Int("attempt", attempt+1))
	}

	return nil, fmt.Errorf("%w: %v", ErrConflictRetriesExhausted, lastConflict)
}

// RemoveCard implements Service.RemoveCard.
func (s *reviewServiceImpl) RemoveCard(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.cards.Delete(ctx, userID, itemKey); err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			return ErrCardNotFound
		}
		log.Error("failed to delete card",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("item_key", itemKey))
		return NewServiceError("remove_card", "failed to delete card", err)
	}

	log.Info("card removed",
		slog.String("user_id", userID.String()),
		slog.String("item_key", itemKey))
	return nil
}

// fixedRating is a Grader that ignores the card and returns a preselected
// rating, backing SubmitRating.
func fixedRating(r domain.Rating) Grader {
	return GraderFunc(func(context.Context, *domain.Card) (domain.Rating, error) {
		return r, nil
	})
}

// submit runs the full review pipeline: load, gate, grade, schedule,
// persist. On a lost compare-and-set race the card is reloaded and the
// pipeline rerun, so the grade applies to the state that actually won.
func (s *reviewServiceImpl) submit(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
	grader Grader,
	opts ...SubmitOption,
) (*SubmitResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var options submitOptions
	for _, opt := range opts {
		opt(&options)
	}

	var lastConflict error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		card, err := s.getCard(ctx, userID, itemKey, "submit")
		if err != nil {
			return nil, err
		}

		now := s.now()
		if !options.ignoreDue && !card.IsDue(now) {
			log.Debug("card not due",
				slog.String("user_id", userID.String()),
				slog.String("item_key", itemKey),
				slog.Time("due", card.Due))
			return nil, fmt.Errorf("%w: due at %s", ErrNotDue, card.Due.Format(time.RFC3339))
		}

		rating, err := grader.Grade(ctx, card)
		if err != nil {
			return nil, &GradingError{Err: err}
		}
		if !rating.IsValid() {
			return nil, &GradingError{Err: domain.ErrInvalidRating}
		}

		updated, entry, err := s.scheduler.ApplyReview(card, rating, now)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidRating) || errors.Is(err, domain.ErrInvalidState) {
				return nil, err
			}
			return nil, NewServiceError("submit", "failed to apply review", err)
		}

		err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			if err := s.cards.WithTx(tx).Save(ctx, updated, card.Version); err != nil {
				return err
			}
			return s.logs.WithTx(tx).Append(ctx, entry)
		})
		if err == nil {
			log.Info("review accepted",
				slog.String("user_id", userID.String()),
				slog.String("item_key", itemKey),
				slog.String("rating", rating.String()),
				slog.String("state", updated.State.String()),
				slog.Time("due", updated.Due))
			return &SubmitResult{Card: updated, Log: entry}, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			log.Error("failed to persist review",
				slog.String("error", err.Error()),
				slog.String("user_id", userID.String()),
				slog.String("item_key", itemKey))
			return nil, NewServiceError("submit", "failed to persist review", err)
		}

		lastConflict = err
		log.Warn("review lost compare-and-set race, retrying",
			slog.String("user_id", userID.String()),
			slog.String("item_key", itemKey),
			slog.Int("attempt", attempt+1))
	}

	return nil, fmt.Errorf("%w: %v", ErrConflictRetriesExhausted, lastConflict)
}

// getCard loads a card, mapping store.ErrCardNotFound to the service
// sentinel.
func (s *reviewServiceImpl) getCard(
	ctx context.Context,
	userID uuid.UUID,
	itemKey string,
	operation string,
) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := s.cards.Get(ctx, userID, itemKey)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			return nil, ErrCardNotFound
		}
		log.Error("failed to load card",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("item_key", itemKey))
		return nil, NewServiceError(operation, "failed to load card", err)
	}
	return card, nil
}
