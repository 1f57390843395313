// Package predictor defines the black-box prediction capability and the
// panel of built-in implementations. A predictor must never propagate an
// internal failure: on error it returns its documented degenerate fallback
// set, and the pipeline treats an absent contribution as "no vote", not as
// a hard failure.
package predictor

import (
	"math/rand"

	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/genome"
)

// Predictor produces candidate number sets from history.
type Predictor interface {
	// Name is the stable algorithm tag recorded on tickets and rankings.
	Name() string
	// Predict returns one candidate set of the requested size. It never
	// returns an error; on internal failure it falls back to Degenerate.
	Predict(count int) []int
}

// Member pairs a predictor with its aggregation parameters.
type Member struct {
	Predictor Predictor
	// Tolerance relaxes the morphology gate for this predictor's
	// candidates (>1 widens the veto threshold).
	Tolerance float64
	// VoteBoost multiplies this predictor's consensus votes. Model-backed
	// predictors historically carry more weight than plain heuristics.
	VoteBoost float64
}

// Registry is the injected, ordered panel of active predictors.
type Registry []Member

// DefaultRegistry builds the standard panel for one game from its history.
func DefaultRegistry(spec game.Spec, history [][]int, profile *genome.Profile, rng *rand.Rand) Registry {
	freq := newPositionalFreq(spec, history, rng)
	return Registry{
		{Predictor: freq, Tolerance: 1.0, VoteBoost: 1.0},
		{Predictor: newDNAGaussian(spec, profile, freq, rng), Tolerance: 1.0, VoteBoost: 1.0},
		{Predictor: newDNADelta(spec, history, profile, freq, rng), Tolerance: 1.0, VoteBoost: 1.0},
		{Predictor: newMarkovChain(spec, history, freq, rng), Tolerance: 1.0, VoteBoost: 1.0},
		{Predictor: newOracleCached(spec, history, rng), Tolerance: 2.5, VoteBoost: 8.0},
	}
}

// Degenerate is the documented fallback candidate: the lowest valid set
// for set games, the middle digit repeated for positional games.
func Degenerate(spec game.Spec) []int {
	out := make([]int, spec.Balls)
	for i := range out {
		if spec.Kind == game.KindPositional {
			out[i] = (spec.Min + spec.Max) / 2
		} else {
			out[i] = spec.Min + i
		}
	}
	return out
}
