package srs

import (
	"math"

	"github.com/kioku-srs/kioku/internal/domain"
)

// model holds the weight vector together with constants precomputed from it.
// All methods are pure; a model value is never mutated after construction.
type model struct {
	w      Weights
	decay  float64 // -w[20]
	factor float64 // 0.9^(1/decay) - 1
}

func newModel(w Weights) model {
	decay := -w[20]
	return model{
		w:      w,
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}
}

// retrievability predicts the probability of recall after elapsedDays given
// the card's stability: R(t, S) = (1 + factor*t/S)^decay.
//
// The curve is a power law rather than a pure exponential because empirical
// forgetting curves are heavier-tailed; this makes the interval solver more
// forgiving of long gaps. R(0, S) = 1 for any S, R decreases in t and
// increases in S.
func (m *model) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay)
}

// interval inverts the forgetting curve in closed form: the number of days at
// which retrievability drops to the desired retention. Clamped to [1, maxIvl].
func (m *model) interval(stability, desiredRetention float64, maxIvl int) int {
	ivl := stability / m.factor * (math.Pow(desiredRetention, 1.0/m.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > maxIvl {
		days = maxIvl
	}
	return days
}

// initStability returns the first-review stability S0(G) = w[G-1].
func (m *model) initStability(r domain.Rating) float64 {
	return clampStability(m.w[r-1])
}

// initDifficulty returns the first-review difficulty
// D0(G) = w[4] - e^(w[5]*(G-1)) + 1, clamped to [1, 10] unless raw is
// requested (the mean-reversion target uses the unclamped value).
func (m *model) initDifficulty(r domain.Rating, clamp bool) float64 {
	d := m.w[4] - math.Exp(m.w[5]*float64(r-1)) + 1
	if clamp {
		return clampDifficulty(d)
	}
	return d
}

// nextDifficulty updates difficulty after a review. The rating-dependent
// delta is linearly damped near the ends of the scale, then mean-reverted
// toward the unclamped D0(easy) by fraction w[7], and finally clamped so
// difficulty never leaves [1, 10].
func (m *model) nextDifficulty(difficulty float64, r domain.Rating) float64 {
	deltaD := -m.w[6] * (float64(r) - 3)
	damped := difficulty + (10-difficulty)*deltaD/9
	target := m.initDifficulty(domain.RatingEasy, false)
	reverted := m.w[7]*target + (1-m.w[7])*damped
	return clampDifficulty(reverted)
}

// nextStability dispatches on review outcome: an again rating applies the
// forget-stability penalty, everything else grows stability.
func (m *model) nextStability(difficulty, stability, retr float64, r domain.Rating) float64 {
	if r == domain.RatingAgain {
		return m.forgetStability(difficulty, stability, retr)
	}
	return m.recallStability(difficulty, stability, retr, r)
}

// recallStability grows stability after a successful recall:
//
//	S' = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * hardPenalty * easyBonus)
//
// The (1-R) term is the desirable-difficulty effect: recall when the model
// predicted likely forgetting yields a larger stability gain than recall of
// a still well-retained item.
func (m *model) recallStability(d, s, r float64, rating domain.Rating) float64 {
	hardPenalty := 1.0
	if rating == domain.RatingHard {
		hardPenalty = m.w[15]
	}
	easyBonus := 1.0
	if rating == domain.RatingEasy {
		easyBonus = m.w[16]
	}
	return clampStability(s * (1 + math.Exp(m.w[8])*
		(11-d)*
		math.Pow(s, -m.w[9])*
		(math.Exp((1-r)*m.w[10])-1)*
		hardPenalty*easyBonus))
}

// forgetStability computes the post-lapse stability, always below the
// pre-lapse value: min of the long-term penalty curve and a short-term cap.
func (m *model) forgetStability(d, s, r float64) float64 {
	long := m.w[11] *
		math.Pow(d, -m.w[12]) *
		(math.Pow(s+1, m.w[13]) - 1) *
		math.Exp((1-r)*m.w[14])
	short := s / math.Exp(m.w[17]*m.w[18])
	return clampStability(math.Min(long, short))
}

// shortTermStability blends stability for a same-day review, where no
// meaningful forgetting-curve evidence exists yet:
//
//	SInc = e^(w[17]*(G-3+w[18])) * S^(-w[19]),  floored at 1 for good/easy.
func (m *model) shortTermStability(stability float64, r domain.Rating) float64 {
	sInc := math.Exp(m.w[17]*(float64(r)-3+m.w[18])) * math.Pow(stability, -m.w[19])
	if r == domain.RatingGood || r == domain.RatingEasy {
		sInc = math.Max(sInc, 1.0)
	}
	return clampStability(stability * sInc)
}

// clampStability keeps stability strictly positive.
func clampStability(s float64) float64 {
	return math.Max(s, 0.001)
}

// clampDifficulty keeps difficulty within [1, 10].
func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
