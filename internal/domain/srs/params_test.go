package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParameters(t *testing.T) {
	t.Parallel()

	p := DefaultParameters()
	require.NoError(t, p.Validate())

	assert.Equal(t, DefaultWeights, p.Weights)
	assert.Equal(t, 0.9, p.DesiredRetention)
	assert.Equal(t, []time.Duration{time.Minute, 10 * time.Minute}, p.LearningSteps)
	assert.Equal(t, []time.Duration{10 * time.Minute}, p.RelearningSteps)
	assert.Equal(t, 36500, p.MaximumInterval)
	assert.True(t, p.EnableFuzz)
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultWeights.Validate())
	require.NoError(t, LowerBounds.Validate())
	require.NoError(t, UpperBounds.Validate())

	w := DefaultWeights
	w[4] = 0.5 // below its lower bound of 1.0
	assert.ErrorIs(t, w.Validate(), ErrWeightsOutOfBounds)

	w = DefaultWeights
	w[20] = 2.0 // above its upper bound of 0.8
	assert.ErrorIs(t, w.Validate(), ErrWeightsOutOfBounds)
}

func TestWeightsClamp(t *testing.T) {
	t.Parallel()

	var w Weights
	for i := range w {
		w[i] = -5
	}
	clamped := w.Clamp()
	require.NoError(t, clamped.Validate())
	assert.Equal(t, LowerBounds, clamped)

	for i := range w {
		w[i] = 1e6
	}
	clamped = w.Clamp()
	require.NoError(t, clamped.Validate())
	assert.Equal(t, UpperBounds, clamped)

	// In-bounds values pass through untouched.
	assert.Equal(t, DefaultWeights, DefaultWeights.Clamp())
}

func TestParametersValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(p *Parameters)
		wantErr error
	}{
		{
			name:    "retention at zero",
			mutate:  func(p *Parameters) { p.DesiredRetention = 0 },
			wantErr: ErrInvalidRetention,
		},
		{
			name:    "retention at one",
			mutate:  func(p *Parameters) { p.DesiredRetention = 1 },
			wantErr: ErrInvalidRetention,
		},
		{
			name:    "maximum interval below one day",
			mutate:  func(p *Parameters) { p.MaximumInterval = 0 },
			wantErr: ErrInvalidMaxInterval,
		},
		{
			name:    "out-of-bounds weight",
			mutate:  func(p *Parameters) { p.Weights[0] = -1 },
			wantErr: ErrWeightsOutOfBounds,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := DefaultParameters()
			tc.mutate(p)
			assert.ErrorIs(t, p.Validate(), tc.wantErr)
		})
	}

	t.Run("non-positive step duration", func(t *testing.T) {
		t.Parallel()

		p := DefaultParameters()
		p.LearningSteps = []time.Duration{time.Minute, 0}
		assert.Error(t, p.Validate())

		p = DefaultParameters()
		p.RelearningSteps = []time.Duration{-time.Minute}
		assert.Error(t, p.Validate())
	})

	t.Run("empty step sequences are allowed", func(t *testing.T) {
		t.Parallel()

		p := DefaultParameters()
		p.LearningSteps = nil
		p.RelearningSteps = nil
		assert.NoError(t, p.Validate())
	})
}

func TestParametersClone(t *testing.T) {
	t.Parallel()

	p := DefaultParameters()
	clone := p.Clone()
	require.Equal(t, p, clone)

	clone.LearningSteps[0] = time.Hour
	clone.Weights[0] = 50

	assert.Equal(t, time.Minute, p.LearningSteps[0])
	assert.Equal(t, DefaultWeights[0], p.Weights[0])
}
