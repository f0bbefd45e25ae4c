// Package optimizer fits the scheduling weight vector to a user's historical
// review logs.
//
// Each log entry is one observation: the retrievability the model predicted
// at the moment of the review versus the observed binary outcome (again is a
// failure, everything else a success). Fitting minimizes the binary
// cross-entropy between the two over all cross-day reviews with mini-batch
// gradient descent: Adam updates, a cosine-annealed learning rate, and
// numerical central-difference gradients. Weights are clamped to their
// per-index bounds after every step, so the output can never violate the
// scheduler's invariants.
//
// Fitting is deterministic for a given log set and starting vector: the
// mini-batch shuffle uses a fixed seed and the epoch count is fixed. When
// the log set is too small or the fit fails to improve on the starting
// vector, Fit returns the previous weights unchanged along with a sentinel
// error the caller should treat as a warning, never as a crash.
package optimizer
