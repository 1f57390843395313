package predictor

import (
	"math/rand"
	"sort"

	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/genome"
)

// positionalFreq samples each position from its historical frequency
// distribution. The other engines use it as their own fallback.
type positionalFreq struct {
	spec game.Spec
	rng  *rand.Rand
	// freq[pos][value] = observed share, add-one smoothed
	freq []map[int]float64
}

func newPositionalFreq(spec game.Spec, history [][]int, rng *rand.Rand) *positionalFreq {
	p := &positionalFreq{spec: spec, rng: rng, freq: make([]map[int]float64, spec.Balls)}
	for pos := 0; pos < spec.Balls; pos++ {
		counts := map[int]float64{}
		for v := spec.Min; v <= spec.Max; v++ {
			counts[v] = 0.001
		}
		for _, draw := range history {
			if pos < len(draw) && draw[pos] >= spec.Min && draw[pos] <= spec.Max {
				counts[draw[pos]]++
			}
		}
		p.freq[pos] = counts
	}
	return p
}

func (p *positionalFreq) Name() string { return "positional_freq" }

func (p *positionalFreq) Predict(count int) []int {
	if count != p.spec.Balls {
		return Degenerate(p.spec)
	}
	out := make([]int, 0, count)
	for pos := 0; pos < count; pos++ {
		chosen := weightedPick(p.freq[pos], p.rng)
		if p.spec.Kind == game.KindSet {
			for attempts := 0; contains(out, chosen) && attempts < 50; attempts++ {
				chosen = weightedPick(p.freq[pos], p.rng)
			}
			if contains(out, chosen) {
				return Degenerate(p.spec)
			}
		}
		out = append(out, chosen)
	}
	if p.spec.Kind == game.KindSet {
		sort.Ints(out)
	}
	return out
}

// dnaGaussian rejection-samples uniform candidates until one respects the
// learned sum range and parity, then returns it.
type dnaGaussian struct {
	spec     game.Spec
	profile  *genome.Profile
	fallback Predictor
	rng      *rand.Rand
}

func newDNAGaussian(spec game.Spec, profile *genome.Profile, fallback Predictor, rng *rand.Rand) *dnaGaussian {
	return &dnaGaussian{spec: spec, profile: profile, fallback: fallback, rng: rng}
}

func (p *dnaGaussian) Name() string { return "dna_gaussian" }

func (p *dnaGaussian) Predict(count int) []int {
	if count != p.spec.Balls || p.profile == nil {
		return p.fallback.Predict(count)
	}
	for attempts := 0; attempts < 5000; attempts++ {
		nums := p.randomSet(count)
		if p.profile.HasSumRange() {
			sum := 0
			for _, n := range nums {
				sum += n
			}
			if sum < p.profile.IdealSumLow || sum > p.profile.IdealSumHigh {
				continue
			}
		}
		if p.profile.IdealEvenCount != genome.Unset {
			evens := 0
			for _, n := range nums {
				if n%2 == 0 {
					evens++
				}
			}
			if diff := float64(evens) - p.profile.IdealEvenCount; diff > 1.5 || diff < -1.5 {
				continue
			}
		}
		return nums
	}
	return p.fallback.Predict(count)
}

func (p *dnaGaussian) randomSet(count int) []int {
	if p.spec.Kind == game.KindPositional {
		out := make([]int, count)
		for i := range out {
			out[i] = p.spec.Min + p.rng.Intn(p.spec.Max-p.spec.Min+1)
		}
		return out
	}
	pool := p.rng.Perm(p.spec.Max - p.spec.Min + 1)[:count]
	out := make([]int, count)
	for i, v := range pool {
		out[i] = v + p.spec.Min
	}
	sort.Ints(out)
	return out
}

// dnaDelta walks upward through the number space using the historically
// observed gaps between sorted neighbors, nudged toward the profile's
// ideal mean gap.
type dnaDelta struct {
	spec     game.Spec
	profile  *genome.Profile
	fallback Predictor
	rng      *rand.Rand
	// deltas[pos] = observed gaps entering position pos
	deltas [][]int
}

func newDNADelta(spec game.Spec, history [][]int, profile *genome.Profile, fallback Predictor, rng *rand.Rand) *dnaDelta {
	p := &dnaDelta{spec: spec, profile: profile, fallback: fallback, rng: rng, deltas: make([][]int, spec.Balls)}
	for _, draw := range history {
		sorted := append([]int(nil), draw...)
		sort.Ints(sorted)
		prev := 0
		for i, n := range sorted {
			if i >= spec.Balls {
				break
			}
			if d := n - prev; d > 0 {
				p.deltas[i] = append(p.deltas[i], d)
			}
			prev = n
		}
	}
	return p
}

func (p *dnaDelta) Name() string { return "dna_delta" }

func (p *dnaDelta) Predict(count int) []int {
	if count != p.spec.Balls || p.spec.Kind == game.KindPositional {
		return p.fallback.Predict(count)
	}
	target := 6.0
	if p.profile != nil && p.profile.IdealAvgGap != genome.Unset {
		target = p.profile.IdealAvgGap
	}
	for attempts := 0; attempts < 200; attempts++ {
		nums := make([]int, 0, count)
		current := p.spec.Min - 1
		for i := 0; i < count; i++ {
			d := int(target)
			if len(p.deltas[i]) > 0 {
				d = p.deltas[i][p.rng.Intn(len(p.deltas[i]))]
			}
			if d < 1 {
				d = 1
			}
			current += d
			nums = append(nums, current)
		}
		if nums[len(nums)-1] > p.spec.Max {
			continue
		}
		return nums
	}
	return p.fallback.Predict(count)
}

// markovChain pools the numbers that historically followed the numbers of
// the most recent draw and picks the most frequent.
type markovChain struct {
	spec     game.Spec
	fallback Predictor
	rng      *rand.Rand
	lastDraw []int
	// transitions[n] = numbers seen in the draw after a draw containing n
	transitions map[int][]int
}

func newMarkovChain(spec game.Spec, history [][]int, fallback Predictor, rng *rand.Rand) *markovChain {
	p := &markovChain{spec: spec, fallback: fallback, rng: rng, transitions: map[int][]int{}}
	for i := 0; i+1 < len(history); i++ {
		for _, n := range history[i] {
			p.transitions[n] = append(p.transitions[n], history[i+1]...)
		}
	}
	if len(history) > 0 {
		p.lastDraw = history[len(history)-1]
	}
	return p
}

func (p *markovChain) Name() string { return "markov_chain" }

func (p *markovChain) Predict(count int) []int {
	if count != p.spec.Balls || len(p.lastDraw) == 0 {
		return p.fallback.Predict(count)
	}
	counts := map[int]int{}
	for _, n := range p.lastDraw {
		for _, next := range p.transitions[n] {
			counts[next]++
		}
	}
	if len(counts) == 0 {
		return p.fallback.Predict(count)
	}

	type pair struct {
		n, c int
	}
	ranked := make([]pair, 0, len(counts))
	for n, c := range counts {
		ranked = append(ranked, pair{n, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].c != ranked[j].c {
			return ranked[i].c > ranked[j].c
		}
		return ranked[i].n < ranked[j].n
	})

	out := make([]int, 0, count)
	for _, pr := range ranked {
		if len(out) == count {
			break
		}
		if p.spec.Kind == game.KindSet && contains(out, pr.n) {
			continue
		}
		out = append(out, pr.n)
	}
	for len(out) < count {
		r := p.spec.Min + p.rng.Intn(p.spec.Max-p.spec.Min+1)
		if p.spec.Kind == game.KindPositional || !contains(out, r) {
			out = append(out, r)
		}
	}
	if p.spec.Kind == game.KindSet {
		sort.Ints(out)
	}
	return out
}

// oracleCached is the stand-in for the model-backed estimator: a cached,
// recency-weighted frequency model sampled stochastically. Its internals
// are deliberately opaque to the pipeline; only the capability contract
// matters here.
type oracleCached struct {
	spec game.Spec
	rng  *rand.Rand
	// weights[value] = recency-decayed appearance weight
	weights map[int]float64
}

func newOracleCached(spec game.Spec, history [][]int, rng *rand.Rand) *oracleCached {
	p := &oracleCached{spec: spec, rng: rng, weights: map[int]float64{}}
	for v := spec.Min; v <= spec.Max; v++ {
		p.weights[v] = 0.01
	}
	decay := 1.0
	for i := len(history) - 1; i >= 0; i-- {
		for _, n := range history[i] {
			if n >= spec.Min && n <= spec.Max {
				p.weights[n] += decay
			}
		}
		decay *= 0.97
	}
	return p
}

func (p *oracleCached) Name() string { return "oracle_cached" }

func (p *oracleCached) Predict(count int) []int {
	if count != p.spec.Balls {
		return Degenerate(p.spec)
	}
	out := make([]int, 0, count)
	for i := 0; i < count; i++ {
		chosen := weightedPick(p.weights, p.rng)
		if p.spec.Kind == game.KindSet {
			for attempts := 0; contains(out, chosen) && attempts < 100; attempts++ {
				chosen = weightedPick(p.weights, p.rng)
			}
			if contains(out, chosen) {
				return Degenerate(p.spec)
			}
		}
		out = append(out, chosen)
	}
	if p.spec.Kind == game.KindSet {
		sort.Ints(out)
	}
	return out
}

// weightedPick samples one key proportionally to its weight. Iteration
// order over the map does not matter for correctness because the draw
// point is uniform over the total mass.
func weightedPick(weights map[int]float64, rng *rand.Rand) int {
	var total float64
	keys := make([]int, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		total += weights[k]
	}
	point := rng.Float64() * total
	for _, k := range keys {
		point -= weights[k]
		if point <= 0 {
			return k
		}
	}
	return keys[len(keys)-1]
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
