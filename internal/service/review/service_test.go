package review

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/domain/srs"
	"github.com/kioku-srs/kioku/internal/platform/logger"
	"github.com/kioku-srs/kioku/internal/store"
)

// newTestService wires the service onto in-memory fakes with a controllable
// clock. The transaction runner passes a nil tx straight through; the fakes
// ignore it.
func newTestService(t *testing.T, cards *fakeCardStore, logs *fakeReviewLogStore) (*reviewServiceImpl, *time.Time) {
	t.Helper()

	scheduler, err := srs.NewService(nil)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := &reviewServiceImpl{
		cards:     cards,
		logs:      logs,
		scheduler: scheduler,
		logger:    slog.Default(),
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return fn(ctx, nil)
		},
		now: func() time.Time { return now },
	}
	return svc, &now
}

func addTestCard(t *testing.T, svc *reviewServiceImpl, userID uuid.UUID, itemKey string) *domain.Card {
	t.Helper()
	card, err := svc.AddCard(context.Background(), userID, itemKey)
	require.NoError(t, err)
	return card
}

func TestAddCard(t *testing.T) {
	t.Parallel()

	svc, now := newTestService(t, newFakeCardStore(), newFakeReviewLogStore())
	userID := uuid.New()

	card, err := svc.AddCard(context.Background(), userID, "犬")
	require.NoError(t, err)
	assert.Equal(t, domain.StateNew, card.State)
	assert.Nil(t, card.Stability)
	assert.Nil(t, card.Difficulty)
	assert.Equal(t, int64(1), card.Version)

	// The card is stamped from the service clock, so it is due the moment it
	// is created — even when that clock is nowhere near the wall clock.
	assert.Equal(t, *now, card.Due)
	assert.Equal(t, *now, card.CreatedAt)
	assert.True(t, card.IsDue(*now))

	_, err = svc.AddCard(context.Background(), userID, "犬")
	assert.ErrorIs(t, err, ErrCardExists)
}

func TestNextCard(t *testing.T) {
	t.Parallel()

	cards := newFakeCardStore()
	svc, _ := newTestService(t, cards, newFakeReviewLogStore())
	userID := uuid.New()

	_, err := svc.NextCard(context.Background(), userID)
	assert.ErrorIs(t, err, ErrNoCardsDue)

	addTestCard(t, svc, userID, "猫")

	card, err := svc.NextCard(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "猫", card.ItemKey)
}

func TestPreviewReturnsAllRatings(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newFakeCardStore(), newFakeReviewLogStore())
	userID := uuid.New()
	addTestCard(t, svc, userID, "水")

	preview, err := svc.Preview(context.Background(), userID, "水")
	require.NoError(t, err)
	require.Len(t, preview, 4)
	for _, r := range domain.Ratings {
		require.Contains(t, preview, r)
		assert.NotNil(t, preview[r])
	}

	_, err = svc.Preview(context.Background(), userID, "missing")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestSubmitRating(t *testing.T) {
	t.Parallel()

	cards := newFakeCardStore()
	logs := newFakeReviewLogStore()
	svc, _ := newTestService(t, cards, logs)
	userID := uuid.New()
	addTestCard(t, svc, userID, "火")

	result, err := svc.SubmitRating(context.Background(), userID, "火", domain.RatingGood)
	require.NoError(t, err)
	require.NotNil(t, result.Card)
	require.NotNil(t, result.Log)
	assert.Equal(t, int64(2), result.Card.Version)
	assert.Equal(t, domain.RatingGood, result.Log.Rating)
	assert.Equal(t, domain.StateNew, result.Log.StateBefore)
	assert.Equal(t, 1, logs.count())

	stored, err := cards.Get(context.Background(), userID, "火")
	require.NoError(t, err)
	assert.Equal(t, result.Card.State, stored.State)
	assert.Equal(t, result.Card.Version, stored.Version)
}

func TestSubmitRatingInvalidRating(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newFakeCardStore(), newFakeReviewLogStore())

	_, err := svc.SubmitRating(context.Background(), uuid.New(), "火", domain.Rating(9))
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
}

func TestSubmitRatingNotDue(t *testing.T) {
	t.Parallel()

	cards := newFakeCardStore()
	logs := newFakeReviewLogStore()
	svc, now := newTestService(t, cards, logs)
	userID := uuid.New()
	card := addTestCard(t, svc, userID, "木")

	// Move the stored due time into the service clock's future.
	cards.bump(userID, "木", now.Add(48*time.Hour))

	_, err := svc.SubmitRating(context.Background(), userID, "木", domain.RatingGood)
	assert.ErrorIs(t, err, ErrNotDue)
	assert.Zero(t, logs.count())

	// The override reviews ahead of schedule.
	require.Equal(t, domain.StateNew, card.State)
	result, err := svc.SubmitRating(context.Background(), userID, "木", domain.RatingGood, IgnoreDue())
	require.NoError(t, err)
	assert.Equal(t, 1, logs.count())
	assert.NotNil(t, result.Card.Stability)
}

func TestSubmitRatingConflictRetries(t *testing.T) {
	t.Parallel()

	t.Run("retries after losing the race and wins against fresh state", func(t *testing.T) {
		t.Parallel()

		cards := newFakeCardStore()
		logs := newFakeReviewLogStore()
		svc, _ := newTestService(t, cards, logs)
		userID := uuid.New()
		addTestCard(t, svc, userID, "金")

		// Two injected conflicts, then the real compare-and-set runs.
		cards.saveErrs = []error{store.ErrConflict, store.ErrConflict, nil}

		result, err := svc.SubmitRating(context.Background(), userID, "金", domain.RatingGood)
		require.NoError(t, err)
		assert.Equal(t, 3, cards.saveCalls)
		assert.Equal(t, int64(2), result.Card.Version)
		// Conflicted attempts must not leave log entries behind.
		assert.Equal(t, 1, logs.count())
	})

	t.Run("surfaces exhaustion after the retry budget", func(t *testing.T) {
		t.Parallel()

		cards := newFakeCardStore()
		logs := newFakeReviewLogStore()
		svc, _ := newTestService(t, cards, logs)
		userID := uuid.New()
		addTestCard(t, svc, userID, "土")

		cards.saveErrs = []error{
			store.ErrConflict, store.ErrConflict,
			store.ErrConflict, store.ErrConflict,
		}

		_, err := svc.SubmitRating(context.Background(), userID, "土", domain.RatingGood)
		require.ErrorIs(t, err, ErrConflictRetriesExhausted)
		assert.Equal(t, 1+maxConflictRetries, cards.saveCalls)
		assert.Zero(t, logs.count())
	})

	t.Run("exactly one winner per version", func(t *testing.T) {
		t.Parallel()

		cards := newFakeCardStore()
		svc, _ := newTestService(t, cards, newFakeReviewLogStore())
		userID := uuid.New()
		addTestCard(t, svc, userID, "日")

		// First submission wins at version 1.
		first, err := svc.SubmitRating(context.Background(), userID, "日", domain.RatingGood, IgnoreDue())
		require.NoError(t, err)
		assert.Equal(t, int64(2), first.Card.Version)

		// A second submission against the updated row wins at version 2;
		// the stale version 1 can never be written again.
		second, err := svc.SubmitRating(context.Background(), userID, "日", domain.RatingGood, IgnoreDue())
		require.NoError(t, err)
		assert.Equal(t, int64(3), second.Card.Version)

		err = cards.Save(context.Background(), first.Card, 1)
		assert.ErrorIs(t, err, store.ErrConflict)
	})
}

func TestSubmitRatingConflictWarningLogged(t *testing.T) {
	// Not parallel: the captured logger replaces the process default.
	logBuf, testLogger, cleanup := logger.SetupTestLogger(t, nil)
	defer cleanup()

	cards := newFakeCardStore()
	logs := newFakeReviewLogStore()
	svc, _ := newTestService(t, cards, logs)
	svc.logger = testLogger.With(slog.String("component", "review_service"))

	userID := uuid.New()
	addTestCard(t, svc, userID, "雨")

	cards.saveErrs = []error{store.ErrConflict, nil}

	_, err := svc.SubmitRating(context.Background(), userID, "雨", domain.RatingGood)
	require.NoError(t, err)

	// The lost race leaves a structured warning behind before the retry wins.
	logger.AssertLogContains(t, logBuf, "review lost compare-and-set race")

	entries, err := logBuf.GetLogEntries()
	require.NoError(t, err)

	var warning map[string]interface{}
	for _, entry := range entries {
		if entry["msg"] == "review lost compare-and-set race, retrying" {
			warning = entry
			break
		}
	}
	require.NotNil(t, warning, "expected a retry warning entry")
	assert.Equal(t, "WARN", warning["level"])
	assert.Equal(t, "雨", warning["item_key"])
	assert.Equal(t, float64(1), warning["attempt"])
	assert.Equal(t, "review_service", warning["component"])
}

func TestSubmitAnswer(t *testing.T) {
	t.Parallel()

	t.Run("grader decides the rating", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t, newFakeCardStore(), newFakeReviewLogStore())
		userID := uuid.New()
		addTestCard(t, svc, userID, "山")

		grader := GraderFunc(func(ctx context.Context, card *domain.Card) (domain.Rating, error) {
			assert.Equal(t, "山", card.ItemKey)
			return domain.RatingEasy, nil
		})

		result, err := svc.SubmitAnswer(context.Background(), userID, "山", grader)
		require.NoError(t, err)
		assert.Equal(t, domain.RatingEasy, result.Log.Rating)
		assert.Equal(t, domain.StateReview, result.Card.State)
	})

	t.Run("grader failure aborts without touching the card", func(t *testing.T) {
		t.Parallel()

		cards := newFakeCardStore()
		logs := newFakeReviewLogStore()
		svc, _ := newTestService(t, cards, logs)
		userID := uuid.New()
		addTestCard(t, svc, userID, "川")

		graderErr := errors.New("matcher unavailable")
		grader := GraderFunc(func(ctx context.Context, card *domain.Card) (domain.Rating, error) {
			return 0, graderErr
		})

		_, err := svc.SubmitAnswer(context.Background(), userID, "川", grader)

		var gradingErr *GradingError
		require.ErrorAs(t, err, &gradingErr)
		assert.ErrorIs(t, err, graderErr)
		assert.Zero(t, logs.count())

		stored, err := cards.Get(context.Background(), userID, "川")
		require.NoError(t, err)
		assert.Equal(t, domain.StateNew, stored.State)
		assert.Equal(t, int64(1), stored.Version)
	})
}

func TestHistory(t *testing.T) {
	t.Parallel()

	cards := newFakeCardStore()
	logs := newFakeReviewLogStore()
	svc, _ := newTestService(t, cards, logs)
	userID := uuid.New()
	stranger := uuid.New()

	entries, err := svc.History(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	addTestCard(t, svc, userID, "犬")
	addTestCard(t, svc, userID, "猫")
	addTestCard(t, svc, stranger, "犬")

	_, err = svc.SubmitRating(context.Background(), userID, "犬", domain.RatingGood)
	require.NoError(t, err)
	_, err = svc.SubmitRating(context.Background(), userID, "猫", domain.RatingEasy)
	require.NoError(t, err)
	_, err = svc.SubmitRating(context.Background(), stranger, "犬", domain.RatingAgain)
	require.NoError(t, err)

	entries, err = svc.History(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "犬", entries[0].ItemKey)
	assert.Equal(t, domain.RatingGood, entries[0].Rating)
	assert.Equal(t, "猫", entries[1].ItemKey)
	for _, e := range entries {
		assert.Equal(t, userID, e.UserID)
	}
}

func TestReschedule(t *testing.T) {
	t.Parallel()

	t.Run("rebuilds the card from its history", func(t *testing.T) {
		t.Parallel()

		cards := newFakeCardStore()
		logs := newFakeReviewLogStore()
		svc, _ := newTestService(t, cards, logs)
		userID := uuid.New()
		addTestCard(t, svc, userID, "金")
		addTestCard(t, svc, userID, "銀")

		result, err := svc.SubmitRating(context.Background(), userID, "金", domain.RatingGood)
		require.NoError(t, err)
		// The sibling card's history must not bleed into the replay.
		_, err = svc.SubmitRating(context.Background(), userID, "銀", domain.RatingAgain)
		require.NoError(t, err)

		rebuilt, err := svc.Reschedule(context.Background(), userID, "金")
		require.NoError(t, err)

		// A replay under unchanged parameters reproduces the submitted
		// memory state and bumps the compare-and-set version.
		assert.Equal(t, result.Card.State, rebuilt.State)
		assert.Equal(t, result.Card.Step, rebuilt.Step)
		require.NotNil(t, rebuilt.Stability)
		require.NotNil(t, rebuilt.Difficulty)
		assert.InDelta(t, *result.Card.Stability, *rebuilt.Stability, 1e-12)
		assert.InDelta(t, *result.Card.Difficulty, *rebuilt.Difficulty, 1e-12)
		assert.Equal(t, result.Card.Version+1, rebuilt.Version)

		stored, err := cards.Get(context.Background(), userID, "金")
		require.NoError(t, err)
		assert.Equal(t, rebuilt.Version, stored.Version)
		assert.Equal(t, rebuilt.State, stored.State)

		// The history itself is untouched.
		assert.Equal(t, 2, logs.count())
	})

	t.Run("reschedules a never-reviewed card to its creation time", func(t *testing.T) {
		t.Parallel()

		cards := newFakeCardStore()
		svc, now := newTestService(t, cards, newFakeReviewLogStore())
		userID := uuid.New()
		addTestCard(t, svc, userID, "雪")

		rebuilt, err := svc.Reschedule(context.Background(), userID, "雪")
		require.NoError(t, err)
		assert.Equal(t, domain.StateNew, rebuilt.State)
		assert.Equal(t, *now, rebuilt.Due)
		assert.Equal(t, int64(2), rebuilt.Version)
	})

	t.Run("missing card", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t, newFakeCardStore(), newFakeReviewLogStore())

		_, err := svc.Reschedule(context.Background(), uuid.New(), "missing")
		assert.ErrorIs(t, err, ErrCardNotFound)
	})

	t.Run("retries a lost compare-and-set race", func(t *testing.T) {
		t.Parallel()

		cards := newFakeCardStore()
		svc, _ := newTestService(t, cards, newFakeReviewLogStore())
		userID := uuid.New()
		addTestCard(t, svc, userID, "風")

		cards.saveErrs = []error{store.ErrConflict, nil}

		rebuilt, err := svc.Reschedule(context.Background(), userID, "風")
		require.NoError(t, err)
		assert.Equal(t, 2, cards.saveCalls)
		assert.Equal(t, int64(2), rebuilt.Version)
	})

	t.Run("surfaces exhaustion after the retry budget", func(t *testing.T) {
		t.Parallel()

		cards := newFakeCardStore()
		svc, _ := newTestService(t, cards, newFakeReviewLogStore())
		userID := uuid.New()
		addTestCard(t, svc, userID, "雷")

		cards.saveErrs = []error{
			store.ErrConflict, store.ErrConflict,
			store.ErrConflict, store.ErrConflict,
		}

		_, err := svc.Reschedule(context.Background(), userID, "雷")
		assert.ErrorIs(t, err, ErrConflictRetriesExhausted)
	})
}

func TestRemoveCard(t *testing.T) {
	t.Parallel()

	cards := newFakeCardStore()
	logs := newFakeReviewLogStore()
	svc, _ := newTestService(t, cards, logs)
	userID := uuid.New()
	addTestCard(t, svc, userID, "星")

	_, err := svc.SubmitRating(context.Background(), userID, "星", domain.RatingGood)
	require.NoError(t, err)

	err = svc.RemoveCard(context.Background(), userID, "星")
	require.NoError(t, err)

	_, err = svc.NextCard(context.Background(), userID)
	assert.ErrorIs(t, err, ErrNoCardsDue)

	// Removal keeps the review history for the optimizer.
	assert.Equal(t, 1, logs.count())

	err = svc.RemoveCard(context.Background(), userID, "星")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestRetrievability(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newFakeCardStore(), newFakeReviewLogStore())
	userID := uuid.New()
	addTestCard(t, svc, userID, "月")

	// Never-reviewed cards predict zero recall probability.
	r, err := svc.Retrievability(context.Background(), userID, "月")
	require.NoError(t, err)
	assert.Zero(t, r)

	_, err = svc.SubmitRating(context.Background(), userID, "月", domain.RatingEasy)
	require.NoError(t, err)

	r, err = svc.Retrievability(context.Background(), userID, "月")
	require.NoError(t, err)
	assert.Greater(t, r, 0.0)
	assert.LessOrEqual(t, r, 1.0)
}
