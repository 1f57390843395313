// Package morph gates candidate number sets on their structural deviation
// from the genome's learned profile.
package morph

import (
	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/genome"
)

// Penalty weights. Sum distance is the strongest signal, so each unit
// outside the ideal range costs more than a unit of any count metric.
const (
	sumPenalty    = 3.0
	metricPenalty = 5.0
)

// Validator scores candidates against a genome snapshot. It is a pure
// function of (candidate, profile); it mutates nothing.
type Validator struct {
	g *genome.Genome
}

// NewValidator wraps a genome snapshot.
func NewValidator(g *genome.Genome) *Validator {
	return &Validator{g: g}
}

// Validate computes the weighted deviation of a candidate against the
// game's profile and accepts it when the deviation stays under the game's
// veto threshold scaled by tolerance. Tolerance > 1 relaxes the gate;
// callers use that to rescue high-confidence candidates.
//
// With no learned profile every candidate passes with zero deviation: a
// newborn genome has no standing to veto anything.
func (v *Validator) Validate(candidate []int, spec game.Spec, tolerance float64) (bool, float64) {
	p := v.g.Profile(spec.ID)
	if p == nil || len(candidate) == 0 {
		return true, 0
	}

	m := spec.Measure(candidate)
	deviation := 0.0

	if p.HasSumRange() {
		switch {
		case m.Sum < p.IdealSumLow:
			deviation += float64(p.IdealSumLow-m.Sum) * sumPenalty
		case m.Sum > p.IdealSumHigh:
			deviation += float64(m.Sum-p.IdealSumHigh) * sumPenalty
		}
	}

	deviation += metricDeviation(float64(m.EvenCount), p.IdealEvenCount)
	deviation += metricDeviation(float64(m.Consecutive), p.IdealConsecutive)
	deviation += metricDeviation(float64(m.PrimeCount), p.IdealPrimeCount)

	if tolerance <= 0 {
		tolerance = 1.0
	}
	return deviation < spec.VetoLimit*tolerance, deviation
}

func metricDeviation(observed, ideal float64) float64 {
	if ideal == genome.Unset {
		return 0
	}
	d := observed - ideal
	if d < 0 {
		d = -d
	}
	return d * metricPenalty
}
