package srs

import "math"

// fuzzRange defines a graded fuzz factor over an interval band: longer
// intervals tolerate proportionally less randomization.
type fuzzRange struct {
	start, end float64
	factor     float64
}

var fuzzRanges = []fuzzRange{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// fuzzDelta computes the half-width of the fuzz window for an interval:
// delta = 1.0 + sum(factor * max(min(interval, end) - start, 0)).
func fuzzDelta(interval float64) float64 {
	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(interval, r.end)-r.start, 0)
	}
	return delta
}

// applyFuzz randomizes a Review interval to prevent many cards clustering on
// the same due date. rnd must be uniform in [0, 1). Intervals under 2.5 days
// pass through unchanged, and the result never drops below 2 days or exceeds
// maxIvl, so fuzz can neither violate the 1-day floor nor change state.
func applyFuzz(interval, maxIvl int, rnd float64) int {
	if float64(interval) < 2.5 {
		return interval
	}

	ivl := float64(interval)
	delta := fuzzDelta(ivl)

	minIvl := max(2, int(math.Round(ivl-delta)))
	maxFuzzIvl := min(int(math.Round(ivl+delta)), maxIvl)
	minIvl = min(minIvl, maxFuzzIvl)

	// Truncation keeps rnd in [0, 1) inside [minIvl, maxFuzzIvl]; rounding
	// would let values near 1 land a day past the window.
	fuzzed := minIvl + int(rnd*float64(maxFuzzIvl-minIvl+1))
	return min(fuzzed, maxIvl)
}
