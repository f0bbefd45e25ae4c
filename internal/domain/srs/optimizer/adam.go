package optimizer

import (
	"math"

	"github.com/kioku-srs/kioku/internal/domain/srs"
)

// adam implements the Adam optimizer with bias correction.
//
// Update rule:
//
//	m[i] = b1*m[i] + (1-b1)*g[i]
//	v[i] = b2*v[i] + (1-b2)*g[i]^2
//	w[i] = w[i] - lr * mHat[i] / (sqrt(vHat[i]) + eps)
type adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	m, v         srs.Weights
	step         int
}

// newAdam creates an Adam optimizer with the given learning rate and the
// standard defaults b1=0.9, b2=0.999, eps=1e-8.
func newAdam(lr float64) *adam {
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
	}
}

// update applies one Adam step and returns the updated weights.
func (a *adam) update(w, grad srs.Weights) srs.Weights {
	a.step++

	for i := 0; i < srs.WeightCount; i++ {
		g := grad[i]
		if g == 0 {
			continue
		}

		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g

		mHat := a.m[i] / (1 - math.Pow(a.beta1, float64(a.step)))
		vHat := a.v[i] / (1 - math.Pow(a.beta2, float64(a.step)))

		w[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}

	return w
}

// setLR updates the learning rate (driven by the cosine annealing schedule).
func (a *adam) setLR(lr float64) {
	a.lr = lr
}

// cosineAnnealing implements the cosine annealing learning rate schedule:
//
//	lr_t = 0.5 * lrMax * (1 + cos(pi * t / tMax))
type cosineAnnealing struct {
	lrMax float64
	tMax  int
	t     int
}

func newCosineAnnealing(lrMax float64, tMax int) *cosineAnnealing {
	return &cosineAnnealing{lrMax: lrMax, tMax: tMax}
}

// lr returns the current learning rate.
func (ca *cosineAnnealing) lr() float64 {
	return 0.5 * ca.lrMax * (1 + math.Cos(math.Pi*float64(ca.t)/float64(ca.tMax)))
}

// advance moves the schedule forward one step.
func (ca *cosineAnnealing) advance() {
	ca.t++
}
