// Package srs implements the spaced-repetition scheduling engine.
//
// The engine models each card's memory with two quantities: stability (the
// number of days until recall probability decays to the target retention) and
// difficulty (an intrinsic hardness scalar in [1, 10]). A power-law forgetting
// curve maps stability and elapsed time to a predicted recall probability,
// and each graded review updates the model and reschedules the card.
//
// All scheduling operations are pure functions of their inputs and a
// parameter snapshot, so a Service is safe for unsynchronized concurrent use.
// The tunable parameter vector is published via an atomic pointer swap; see
// the optimizer subpackage for fitting it against historical review logs.
package srs
