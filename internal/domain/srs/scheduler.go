package srs

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kioku-srs/kioku/internal/domain"
)

// snapshot pairs an immutable Parameters value with the model constants
// precomputed from its weights. Every scheduling call operates on one
// snapshot for its whole duration, so a concurrent parameter swap can never
// expose a half-updated vector.
type snapshot struct {
	params *Parameters
	model  model
}

func newSnapshot(p *Parameters) *snapshot {
	return &snapshot{params: p, model: newModel(p.Weights)}
}

// applyReview grades the card and reschedules it. The input card is not
// mutated; the returned card and review log are freshly allocated.
// rnd supplies the fuzz randomness in [0, 1) and is only consulted when
// withFuzz is set and the card lands in the Review state.
func (sn *snapshot) applyReview(
	card *domain.Card,
	rating domain.Rating,
	now time.Time,
	withFuzz bool,
	rnd func() float64,
) (*domain.Card, *domain.ReviewLog, error) {
	if !rating.IsValid() {
		return nil, nil, fmt.Errorf("%w: %d (item %s)", domain.ErrInvalidRating, int(rating), card.ItemKey)
	}
	if err := sn.validateTransition(card); err != nil {
		return nil, nil, err
	}

	c := card.Clone()

	var elapsedDays float64
	if c.LastReview != nil {
		elapsedDays = now.Sub(*c.LastReview).Hours() / 24.0
		if elapsedDays < 0 {
			elapsedDays = 0
		}
	}

	stateBefore := c.State
	stepBefore := c.Step
	stabilityBefore := c.Stability
	difficultyBefore := c.Difficulty

	sn.updateMemory(c, rating, elapsedDays)

	interval := sn.transition(c, rating)

	if withFuzz && sn.params.EnableFuzz && c.State == domain.StateReview {
		days := int(interval.Hours() / 24.0)
		if days > 0 {
			fuzzed := applyFuzz(days, sn.params.MaximumInterval, rnd())
			interval = time.Duration(fuzzed) * 24 * time.Hour
		}
	}

	scheduledDays := interval.Hours() / 24.0
	reviewedAt := now
	c.Due = now.Add(interval)
	c.LastReview = &reviewedAt
	c.UpdatedAt = now

	log := &domain.ReviewLog{
		ID:               uuid.New(),
		UserID:           c.UserID,
		ItemKey:          c.ItemKey,
		ItemType:         c.ItemType,
		Rating:           rating,
		ReviewedAt:       now,
		ElapsedDays:      elapsedDays,
		ScheduledDays:    scheduledDays,
		StateBefore:      stateBefore,
		StateAfter:       c.State,
		StepBefore:       stepBefore,
		StepAfter:        c.Step,
		StabilityBefore:  stabilityBefore,
		StabilityAfter:   *c.Stability,
		DifficultyBefore: difficultyBefore,
		DifficultyAfter:  *c.Difficulty,
		CreatedAt:        now,
	}

	return c, log, nil
}

// validateTransition rejects state/step combinations outside the transition
// table. Given the entity invariants this should be unreachable; it exists so
// that corrupted input fails the call instead of producing a silent
// mis-schedule.
func (sn *snapshot) validateTransition(c *domain.Card) error {
	if !c.State.IsValid() {
		return fmt.Errorf("%w: state=%d (item %s)", domain.ErrInvalidState, int(c.State), c.ItemKey)
	}
	if c.Step < 0 {
		return fmt.Errorf("%w: state=%s step=%d (item %s)", domain.ErrInvalidState, c.State, c.Step, c.ItemKey)
	}

	switch c.State {
	case domain.StateNew:
		if c.Stability != nil || c.Difficulty != nil || c.LastReview != nil {
			return fmt.Errorf("%w: new card carries memory state (item %s)", domain.ErrInvalidState, c.ItemKey)
		}
	case domain.StateLearning:
		if c.Stability == nil || c.Difficulty == nil {
			return fmt.Errorf("%w: learning card missing memory state (item %s)", domain.ErrInvalidState, c.ItemKey)
		}
		if c.Step > len(sn.params.LearningSteps) {
			return fmt.Errorf("%w: state=%s step=%d exceeds %d configured steps (item %s)",
				domain.ErrInvalidState, c.State, c.Step, len(sn.params.LearningSteps), c.ItemKey)
		}
	case domain.StateRelearning:
		if c.Stability == nil || c.Difficulty == nil {
			return fmt.Errorf("%w: relearning card missing memory state (item %s)", domain.ErrInvalidState, c.ItemKey)
		}
		if c.Step > len(sn.params.RelearningSteps) {
			return fmt.Errorf("%w: state=%s step=%d exceeds %d configured steps (item %s)",
				domain.ErrInvalidState, c.State, c.Step, len(sn.params.RelearningSteps), c.ItemKey)
		}
	case domain.StateReview:
		if c.Stability == nil || c.Difficulty == nil {
			return fmt.Errorf("%w: review card missing memory state (item %s)", domain.ErrInvalidState, c.ItemKey)
		}
	}
	return nil
}

// updateMemory advances the card's stability and difficulty for this review.
// A first review initializes both from the rating alone. Same-day reviews use
// the short-term blend, since elapsed time under a day carries no usable
// forgetting-curve signal; cross-day reviews apply the full model.
func (sn *snapshot) updateMemory(c *domain.Card, rating domain.Rating, elapsedDays float64) {
	m := &sn.model

	if c.Stability == nil {
		c.SetStability(m.initStability(rating))
		c.SetDifficulty(m.initDifficulty(rating, true))
		return
	}

	stability := *c.Stability
	difficulty := *c.Difficulty

	if elapsedDays < 1 {
		c.SetStability(m.shortTermStability(stability, rating))
	} else {
		retr := m.retrievability(elapsedDays, stability)
		c.SetStability(m.nextStability(difficulty, stability, retr, rating))
	}
	c.SetDifficulty(m.nextDifficulty(difficulty, rating))
}

// transition applies the state machine and returns the raw scheduling
// interval (pre-fuzz).
func (sn *snapshot) transition(c *domain.Card, rating domain.Rating) time.Duration {
	switch c.State {
	case domain.StateNew:
		c.State = domain.StateLearning
		c.Step = 0
		return sn.enterLearning(c, rating)
	case domain.StateLearning:
		return sn.stepThrough(c, rating, sn.params.LearningSteps)
	case domain.StateRelearning:
		return sn.stepThrough(c, rating, sn.params.RelearningSteps)
	default:
		return sn.fromReview(c, rating)
	}
}

// enterLearning handles the first review of a New card.
func (sn *snapshot) enterLearning(c *domain.Card, rating domain.Rating) time.Duration {
	steps := sn.params.LearningSteps
	if len(steps) == 0 {
		return sn.graduate(c)
	}

	switch rating {
	case domain.RatingAgain, domain.RatingHard:
		c.Step = 0
		return steps[0]
	case domain.RatingGood:
		if len(steps) < 2 {
			return sn.graduate(c)
		}
		c.Step = 1
		return steps[1]
	default: // easy
		return sn.graduate(c)
	}
}

// stepThrough handles Learning and Relearning reviews: again restarts the
// step sequence, hard repeats the current step, good advances and graduates
// past the last step, easy graduates immediately.
func (sn *snapshot) stepThrough(c *domain.Card, rating domain.Rating, steps []time.Duration) time.Duration {
	step := c.Step

	// No steps configured, or the sequence shrank under the card: graduate.
	if len(steps) == 0 || (step >= len(steps) && rating != domain.RatingAgain) {
		return sn.graduate(c)
	}

	switch rating {
	case domain.RatingAgain:
		c.Step = 0
		return steps[0]

	case domain.RatingHard:
		// Hard on the first step waits slightly longer than the step itself
		// without advancing, so it lands between again and good.
		if step == 0 && len(steps) == 1 {
			return time.Duration(float64(steps[0]) * 1.5)
		}
		if step == 0 && len(steps) >= 2 {
			return (steps[0] + steps[1]) / 2
		}
		return steps[step]

	case domain.RatingGood:
		next := step + 1
		if next >= len(steps) {
			return sn.graduate(c)
		}
		c.Step = next
		return steps[next]

	default: // easy
		return sn.graduate(c)
	}
}

// fromReview handles a card already in the long-term Review cycle. An again
// rating routes to Relearning with the stability penalty already applied by
// updateMemory; anything else stays in Review with an interval solved from
// the updated stability.
func (sn *snapshot) fromReview(c *domain.Card, rating domain.Rating) time.Duration {
	if rating == domain.RatingAgain && len(sn.params.RelearningSteps) > 0 {
		c.State = domain.StateRelearning
		c.Step = 0
		return sn.params.RelearningSteps[0]
	}

	c.Step = 0
	days := sn.model.interval(*c.Stability, sn.params.DesiredRetention, sn.params.MaximumInterval)
	return time.Duration(days) * 24 * time.Hour
}

// graduate moves a card into the Review state and solves its first long-term
// interval.
func (sn *snapshot) graduate(c *domain.Card) time.Duration {
	c.State = domain.StateReview
	c.Step = 0
	days := sn.model.interval(*c.Stability, sn.params.DesiredRetention, sn.params.MaximumInterval)
	return time.Duration(days) * 24 * time.Hour
}
