package optimizer

import (
	"math"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/domain/srs"
)

const bceClamp = 1e-7

// bceLoss computes the binary cross-entropy -[y*ln(p) + (1-y)*ln(1-p)].
// The prediction is clamped to [bceClamp, 1-bceClamp] to avoid log(0).
func bceLoss(predicted, label float64) float64 {
	p := math.Max(bceClamp, math.Min(predicted, 1-bceClamp))
	return -(label*math.Log(p) + (1-label)*math.Log(1-p))
}

// batchLoss computes the average BCE loss of the weights over all cross-day
// observations. It builds a fuzz-free scheduler from the candidate weights
// and replays each card's history through it, scoring the predicted
// retrievability immediately before each review against the actual outcome.
// Cards are replayed in sorted-key order: floating-point accumulation is not
// associative, so a map-order walk would make the loss (and with it the
// numerical gradient and every fitted weight) vary between runs.
//
// Candidate weights a central difference pushed out of bounds cannot build a
// scheduler; such candidates score 0, zeroing their gradient contribution.
func batchLoss(weights srs.Weights, base *srs.Parameters, data dataset) float64 {
	params := base.Clone()
	params.Weights = weights
	params.EnableFuzz = false

	svc, err := srs.NewService(params)
	if err != nil {
		return 0
	}

	var totalLoss float64
	var count int

	for _, k := range data.sortedKeys() {
		obs := data[k]
		card := newReplayCard(k, obs[0].reviewedAt)

		for _, o := range obs {
			predicted := svc.Retrievability(card, o.reviewedAt)

			if card.LastReview != nil && o.elapsedDays >= 1.0 {
				totalLoss += bceLoss(predicted, o.label)
				count++
			}

			next, _, err := svc.ApplyReview(card, o.rating, o.reviewedAt)
			if err != nil {
				return 0
			}
			card = next
		}
	}

	if count == 0 {
		return 0
	}
	return totalLoss / float64(count)
}

// newReplayCard builds a fresh New-state card for replaying a review history.
func newReplayCard(k cardKey, createdAt time.Time) *domain.Card {
	return &domain.Card{
		UserID:    k.userID,
		ItemKey:   k.itemKey,
		ItemType:  domain.ItemTypeVocab,
		State:     domain.StateNew,
		Due:       createdAt,
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

const gradEps = 1e-5

// gradient estimates dL/dw by central differences, evaluating the loss at
// w[i] +/- gradEps for each weight. The 21 columns are independent, so they
// run on a bounded goroutine pool.
func gradient(weights srs.Weights, base *srs.Parameters, data dataset) srs.Weights {
	var grad srs.Weights

	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i := 0; i < srs.WeightCount; i++ {
		i := i
		p.Go(func() {
			plus := weights
			plus[i] += gradEps
			minus := weights
			minus[i] -= gradEps

			lossPlus := batchLoss(plus, base, data)
			lossMinus := batchLoss(minus, base, data)

			grad[i] = (lossPlus - lossMinus) / (2 * gradEps)
		})
	}
	p.Wait()

	return grad
}
