package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReviewLog(t *testing.T) *ReviewLog {
	t.Helper()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	stability := 4.2
	difficulty := 5.1
	log := &ReviewLog{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		ItemKey:          "犬",
		ItemType:         ItemTypeVocab,
		Rating:           RatingGood,
		ReviewedAt:       now,
		ElapsedDays:      3.5,
		ScheduledDays:    4,
		StateBefore:      StateReview,
		StateAfter:       StateReview,
		StabilityBefore:  &stability,
		StabilityAfter:   6.8,
		DifficultyBefore: &difficulty,
		DifficultyAfter:  5.0,
		CreatedAt:        now,
	}
	require.NoError(t, log.Validate())
	return log
}

func TestReviewLogValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(l *ReviewLog)
		wantErr error
	}{
		{
			name:    "missing ID",
			mutate:  func(l *ReviewLog) { l.ID = uuid.Nil },
			wantErr: ErrLogIDEmpty,
		},
		{
			name:    "missing user ID",
			mutate:  func(l *ReviewLog) { l.UserID = uuid.Nil },
			wantErr: ErrLogUserIDEmpty,
		},
		{
			name:    "missing item key",
			mutate:  func(l *ReviewLog) { l.ItemKey = "" },
			wantErr: ErrLogItemKeyEmpty,
		},
		{
			name:    "invalid rating",
			mutate:  func(l *ReviewLog) { l.Rating = Rating(9) },
			wantErr: ErrInvalidRating,
		},
		{
			name:    "invalid state before",
			mutate:  func(l *ReviewLog) { l.StateBefore = State(0) },
			wantErr: ErrInvalidState,
		},
		{
			name:    "invalid state after",
			mutate:  func(l *ReviewLog) { l.StateAfter = State(7) },
			wantErr: ErrInvalidState,
		},
		{
			name:    "negative elapsed days",
			mutate:  func(l *ReviewLog) { l.ElapsedDays = -0.1 },
			wantErr: ErrLogNegativeDays,
		},
		{
			name:    "negative scheduled days",
			mutate:  func(l *ReviewLog) { l.ScheduledDays = -1 },
			wantErr: ErrLogNegativeDays,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			log := validReviewLog(t)
			tc.mutate(log)
			assert.ErrorIs(t, log.Validate(), tc.wantErr)
		})
	}

	t.Run("first review with nil before fields is valid", func(t *testing.T) {
		t.Parallel()

		log := validReviewLog(t)
		log.StateBefore = StateNew
		log.StateAfter = StateLearning
		log.ElapsedDays = 0
		log.StabilityBefore = nil
		log.DifficultyBefore = nil
		assert.NoError(t, log.Validate())
	})
}

func TestReviewLogSucceeded(t *testing.T) {
	t.Parallel()

	log := validReviewLog(t)

	log.Rating = RatingAgain
	assert.False(t, log.Succeeded())

	for _, r := range []Rating{RatingHard, RatingGood, RatingEasy} {
		log.Rating = r
		assert.True(t, log.Succeeded())
	}
}
