package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/domain/srs"
)

// Sentinel errors. Both are warnings: when returned, the Result still carries
// the previous weights and is safe to use.
var (
	// ErrInsufficientData is returned when the log set holds fewer cross-day
	// reviews than one mini-batch. The previous weights are returned.
	ErrInsufficientData = errors.New("optimizer: insufficient cross-day reviews for fitting")

	// ErrDiverged is returned when fitting failed to improve on the starting
	// weights. The previous weights are returned.
	ErrDiverged = errors.New("optimizer: fit did not improve on previous weights")
)

// shuffleSeed fixes the mini-batch shuffle so two fits over the same log set
// from the same starting point yield identical output.
const shuffleSeed = 42

// Config tunes the fitting process. Zero values select the defaults.
type Config struct {
	Epochs        int     `json:"epochs"`          // default 5
	MiniBatchSize int     `json:"mini_batch_size"` // default 512
	LearningRate  float64 `json:"learning_rate"`   // default 0.04
	MaxSeqLen     int     `json:"max_seq_len"`     // default 64; cap per-card history
}

// Result reports the outcome of a fit.
type Result struct {
	Weights     srs.Weights `json:"weights"`
	ReviewCount int         `json:"review_count"` // Cross-day observations available.
	LogLoss     float64     `json:"log_loss"`     // Average BCE of the returned weights.
	Trained     bool        `json:"trained"`      // False when previous weights were kept.
}

// Optimizer fits scheduling weights from review logs.
type Optimizer struct {
	epochs        int
	miniBatchSize int
	learningRate  float64
	maxSeqLen     int
	base          *srs.Parameters
}

// New creates an Optimizer. base supplies the non-weight scheduling knobs
// (step sequences, retention) used during replay; nil selects the defaults.
func New(cfg Config, base *srs.Parameters) *Optimizer {
	o := &Optimizer{
		epochs:        cfg.Epochs,
		miniBatchSize: cfg.MiniBatchSize,
		learningRate:  cfg.LearningRate,
		maxSeqLen:     cfg.MaxSeqLen,
		base:          base,
	}
	if o.epochs == 0 {
		o.epochs = 5
	}
	if o.miniBatchSize == 0 {
		o.miniBatchSize = 512
	}
	if o.learningRate == 0 {
		o.learningRate = 0.04
	}
	if o.maxSeqLen == 0 {
		o.maxSeqLen = 64
	}
	if o.base == nil {
		o.base = srs.DefaultParameters()
	}
	return o
}

// Fit trains the weight vector on the given review logs, starting from the
// previous weights. It is deterministic for a fixed log set and starting
// point. On insufficient data or a fit that fails to improve, the previous
// weights come back unchanged together with a sentinel warning error; the
// returned weights always satisfy the per-index bounds.
func (o *Optimizer) Fit(
	ctx context.Context,
	logs []domain.ReviewLog,
	previous srs.Weights,
) (Result, error) {
	// A previous vector that drifted out of bounds (e.g. hand-edited
	// storage) is forced back in rather than rejected: fitting is the
	// recovery path for bad parameters.
	previous = previous.Clamp()

	data := buildDataset(logs)
	data.truncate(o.maxSeqLen)

	reviewCount := data.crossDayCount()
	if reviewCount < o.miniBatchSize {
		return Result{Weights: previous, ReviewCount: reviewCount}, ErrInsufficientData
	}

	weights := previous
	tMax := int(math.Ceil(float64(reviewCount)/float64(o.miniBatchSize))) * o.epochs
	opt := newAdam(o.learningRate)
	schedule := newCosineAnnealing(o.learningRate, tMax)
	rng := rand.New(rand.NewSource(shuffleSeed))

	keys := data.sortedKeys()

	startLoss := batchLoss(previous, o.base, data)
	bestWeights := previous
	bestLoss := startLoss

	for epoch := 0; epoch < o.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return Result{Weights: previous, ReviewCount: reviewCount, LogLoss: startLoss}, err
		}

		rng.Shuffle(len(keys), func(i, j int) {
			keys[i], keys[j] = keys[j], keys[i]
		})

		batch := make(dataset)
		crossDay := 0

		step := func() {
			grad := gradient(weights, o.base, batch)
			opt.setLR(schedule.lr())
			weights = opt.update(weights, grad).Clamp()
			schedule.advance()
		}

		for _, k := range keys {
			obs := data[k]
			batch[k] = obs
			for _, ob := range obs {
				if ob.elapsedDays >= 1.0 {
					crossDay++
				}
			}

			if crossDay >= o.miniBatchSize {
				step()
				batch = make(dataset)
				crossDay = 0
			}
		}

		// Flush the remainder at the end of the epoch.
		if crossDay > 0 {
			step()
		}

		epochLoss := batchLoss(weights, o.base, data)
		if epochLoss < bestLoss {
			bestLoss = epochLoss
			bestWeights = weights
		}
	}

	if !(bestLoss < startLoss) || math.IsNaN(bestLoss) || math.IsInf(bestLoss, 0) {
		return Result{Weights: previous, ReviewCount: reviewCount, LogLoss: startLoss}, ErrDiverged
	}

	return Result{
		Weights:     bestWeights,
		ReviewCount: reviewCount,
		LogLoss:     bestLoss,
		Trained:     true,
	}, nil
}

// Loss computes the average BCE loss of the weights over the logs, for
// reporting a fit's quality without running one.
func (o *Optimizer) Loss(weights srs.Weights, logs []domain.ReviewLog) float64 {
	data := buildDataset(logs)
	return batchLoss(weights, o.base, data)
}
