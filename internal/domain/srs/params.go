package srs

import (
	"errors"
	"fmt"
	"time"
)

// WeightCount is the length of the tunable weight vector. It is fixed by the
// model version: indices 0-3 are initial stability per rating, 4-7 shape
// difficulty, 8-11 govern recall stability growth, 12-15 forget-stability,
// 16-19 easy bonus and short-term behavior, and 20 is the decay exponent of
// the forgetting curve.
const WeightCount = 21

// Weights is the ordered vector of tunable model parameters.
type Weights [WeightCount]float64

// ErrWeightsOutOfBounds is returned when a weight falls outside its
// per-index bounds.
var ErrWeightsOutOfBounds = errors.New("srs: weights out of bounds")

// ErrInvalidRetention is returned when the desired retention is outside (0, 1).
var ErrInvalidRetention = errors.New("srs: desired retention out of range")

// ErrInvalidMaxInterval is returned when the maximum interval is not positive.
var ErrInvalidMaxInterval = errors.New("srs: maximum interval must be positive")

// DefaultWeights is the shipped weight vector. The values come from published
// fits over large public review datasets; per-deployment refits via the
// optimizer replace them over time.
var DefaultWeights = Weights{
	0.212, 1.2931, 2.3065, 8.2956,
	6.4133, 0.8334, 3.0194, 0.001,
	1.8722, 0.1666, 0.796, 1.4835,
	0.0614, 0.2629, 1.6483, 0.6014,
	1.8729, 0.5425, 0.0912, 0.0658,
	0.1542,
}

// LowerBounds is the minimum allowed value for each weight. The difficulty
// and stability-growth bounds keep the entity invariants satisfiable:
// stability growth factors are bounded away from zero and difficulty weights
// cannot push difficulty outside [1, 10].
var LowerBounds = Weights{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.001,
	0.0, 0.0, 0.001, 0.001,
	0.001, 0.001, 0.0, 0.0,
	1.0, 0.0, 0.0, 0.0,
	0.1,
}

// UpperBounds is the maximum allowed value for each weight.
var UpperBounds = Weights{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5, 5.0,
	0.25, 0.9, 4.0, 1.0,
	6.0, 2.0, 2.0, 0.8,
	0.8,
}

// Validate checks that every weight is within its per-index bounds.
func (w Weights) Validate() error {
	for i := 0; i < WeightCount; i++ {
		if w[i] < LowerBounds[i] || w[i] > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %g, bounds [%g, %g]",
				ErrWeightsOutOfBounds, i, w[i], LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// Clamp returns a copy of w with every weight forced into its bounds.
// Used by the optimizer after each gradient step; scheduling itself never
// clamps (out-of-bounds input is rejected instead).
func (w Weights) Clamp() Weights {
	for i := 0; i < WeightCount; i++ {
		if w[i] < LowerBounds[i] {
			w[i] = LowerBounds[i]
		}
		if w[i] > UpperBounds[i] {
			w[i] = UpperBounds[i]
		}
	}
	return w
}

// Parameters is the full scheduling configuration: the weight vector plus the
// operational knobs around it. A Parameters value is immutable once handed to
// a Service; publish changes by swapping in a new value.
type Parameters struct {
	Weights          Weights
	DesiredRetention float64         // Target recall probability at the scheduled review.
	LearningSteps    []time.Duration // Step delays for Learning; nil → defaults.
	RelearningSteps  []time.Duration // Step delays for Relearning; nil → defaults.
	MaximumInterval  int             // Upper bound on a scheduled interval, days.
	EnableFuzz       bool            // Randomize Review intervals to spread due dates.
}

// DefaultParameters returns the shipped configuration: two short learning
// steps, one relearning step, 0.9 target retention and fuzzing enabled.
func DefaultParameters() *Parameters {
	return &Parameters{
		Weights:          DefaultWeights,
		DesiredRetention: 0.9,
		LearningSteps:    []time.Duration{time.Minute, 10 * time.Minute},
		RelearningSteps:  []time.Duration{10 * time.Minute},
		MaximumInterval:  36500,
		EnableFuzz:       true,
	}
}

// Validate checks the configuration for internal consistency.
func (p *Parameters) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	if p.DesiredRetention <= 0 || p.DesiredRetention >= 1 {
		return fmt.Errorf("%w: %g", ErrInvalidRetention, p.DesiredRetention)
	}
	if p.MaximumInterval < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxInterval, p.MaximumInterval)
	}
	for _, d := range p.LearningSteps {
		if d <= 0 {
			return fmt.Errorf("srs: learning step must be positive, got %s", d)
		}
	}
	for _, d := range p.RelearningSteps {
		if d <= 0 {
			return fmt.Errorf("srs: relearning step must be positive, got %s", d)
		}
	}
	return nil
}

// Clone returns a deep copy of the parameters.
func (p *Parameters) Clone() *Parameters {
	out := *p
	out.LearningSteps = append([]time.Duration(nil), p.LearningSteps...)
	out.RelearningSteps = append([]time.Duration(nil), p.RelearningSteps...)
	return &out
}
