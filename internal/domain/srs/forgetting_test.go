package srs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioku-srs/kioku/internal/domain"
)

func defaultModel() model {
	return newModel(DefaultWeights)
}

func TestRetrievabilityCurve(t *testing.T) {
	t.Parallel()

	m := defaultModel()

	// Immediately after a review recall is certain, for any stability.
	for _, s := range []float64{0.1, 1, 10, 365} {
		assert.InDelta(t, 1.0, m.retrievability(0, s), 1e-12)
	}

	// Retrievability decreases with elapsed time.
	prev := 1.0
	for _, elapsed := range []float64{1, 5, 10, 50, 200} {
		r := m.retrievability(elapsed, 10)
		assert.Less(t, r, prev, "elapsed=%g", elapsed)
		assert.Greater(t, r, 0.0)
		prev = r
	}

	// At fixed elapsed time, higher stability retains more.
	assert.Greater(t, m.retrievability(10, 20), m.retrievability(10, 10))

	// Stability is calibrated so that recall at elapsed == stability hits the
	// 90% anchor of the curve.
	assert.InDelta(t, 0.9, m.retrievability(10, 10), 1e-9)
	assert.InDelta(t, 0.9, m.retrievability(42, 42), 1e-9)
}

func TestIntervalInvertsCurve(t *testing.T) {
	t.Parallel()

	m := defaultModel()

	// With the default 0.9 anchor, the interval at 0.9 retention is the
	// stability itself.
	assert.Equal(t, 10, m.interval(10, 0.9, 36500))
	assert.Equal(t, 100, m.interval(100, 0.9, 36500))

	// Lower desired retention stretches the interval, higher compresses it.
	assert.Greater(t, m.interval(10, 0.8, 36500), m.interval(10, 0.9, 36500))
	assert.Less(t, m.interval(10, 0.97, 36500), m.interval(10, 0.9, 36500))

	// Clamped to at least one day and at most the configured maximum.
	assert.Equal(t, 1, m.interval(0.01, 0.9, 36500))
	assert.Equal(t, 365, m.interval(1e6, 0.9, 365))
}

func TestInitStability(t *testing.T) {
	t.Parallel()

	m := defaultModel()

	for i, r := range domain.Ratings {
		assert.InDelta(t, DefaultWeights[i], m.initStability(r), 1e-12)
	}

	// Better first answers start with stronger memories.
	assert.Less(t, m.initStability(domain.RatingAgain), m.initStability(domain.RatingHard))
	assert.Less(t, m.initStability(domain.RatingHard), m.initStability(domain.RatingGood))
	assert.Less(t, m.initStability(domain.RatingGood), m.initStability(domain.RatingEasy))
}

func TestInitDifficulty(t *testing.T) {
	t.Parallel()

	m := defaultModel()

	prev := 11.0
	for _, r := range domain.Ratings {
		d := m.initDifficulty(r, true)
		assert.GreaterOrEqual(t, d, 1.0)
		assert.LessOrEqual(t, d, 10.0)
		assert.Less(t, d, prev, "worse answers imply harder items")
		prev = d
	}
}

func TestNextDifficultyStaysInRange(t *testing.T) {
	t.Parallel()

	m := defaultModel()

	for _, d := range []float64{1, 2.5, 5, 7.5, 10} {
		for _, r := range domain.Ratings {
			next := m.nextDifficulty(d, r)
			assert.GreaterOrEqual(t, next, 1.0, "d=%g rating=%s", d, r)
			assert.LessOrEqual(t, next, 10.0, "d=%g rating=%s", d, r)
		}
	}

	// Failures push difficulty up, easy answers pull it down.
	assert.Greater(t, m.nextDifficulty(5, domain.RatingAgain), 5.0)
	assert.Less(t, m.nextDifficulty(5, domain.RatingEasy), 5.0)
}

func TestRecallStabilityGrowth(t *testing.T) {
	t.Parallel()

	m := defaultModel()
	const s, d = 10.0, 5.0
	retr := m.retrievability(10, s)

	good := m.recallStability(d, s, retr, domain.RatingGood)
	hard := m.recallStability(d, s, retr, domain.RatingHard)
	easy := m.recallStability(d, s, retr, domain.RatingEasy)

	assert.Greater(t, good, s, "successful recall grows stability")
	assert.Less(t, hard, good)
	assert.Greater(t, easy, good)

	// Recalling an item the model had nearly written off is stronger evidence
	// than recalling one reviewed early.
	lateRetr := m.retrievability(30, s)
	earlyRetr := m.retrievability(2, s)
	assert.Greater(t,
		m.recallStability(d, s, lateRetr, domain.RatingGood),
		m.recallStability(d, s, earlyRetr, domain.RatingGood))
}

func TestForgetStabilityAlwaysShrinks(t *testing.T) {
	t.Parallel()

	m := defaultModel()

	for _, s := range []float64{0.5, 5, 10, 100} {
		for _, d := range []float64{1.0, 5.0, 10.0} {
			retr := m.retrievability(s, s)
			next := m.forgetStability(d, s, retr)
			assert.Greater(t, next, 0.0)
			assert.Less(t, next, s, "s=%g d=%g", s, d)
		}
	}
}

func TestShortTermStability(t *testing.T) {
	t.Parallel()

	m := defaultModel()

	// Same-day good/easy answers never shrink the memory.
	for _, s := range []float64{0.5, 2, 10} {
		assert.GreaterOrEqual(t, m.shortTermStability(s, domain.RatingGood), s)
		assert.GreaterOrEqual(t, m.shortTermStability(s, domain.RatingEasy), s)
	}

	// A same-day failure must not grow it.
	require.Less(t, m.shortTermStability(10, domain.RatingAgain), 10.0)
}
