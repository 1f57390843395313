// Package consensus combines the predictor panel's weighted votes into the
// cycle's final tickets. Every predictor is curated through the morphology
// gate, its trust converted into vote weight, and the accumulated
// per-number votes reduced to one consensus ticket per game.
package consensus

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/genome"
	"github.com/GaboAzorin/lotus-2026/internal/meta"
	"github.com/GaboAzorin/lotus-2026/internal/morph"
	"github.com/GaboAzorin/lotus-2026/internal/predictor"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

const (
	// curationAttempts bounds the per-predictor elite search.
	curationAttempts = 50
	// consensusSamples is how many validated samples each surviving
	// predictor contributes to the vote pool.
	consensusSamples = 5
	// sampleRetries bounds the attempts to collect those samples.
	sampleRetries = 30
	// stochasticAttempts bounds weighted sampling when the deterministic
	// top-N fails the morphology gate.
	stochasticAttempts = 200
	// dissidentVoteFactor shrinks a dissident elite's vote weight
	// relative to a normally validated one.
	dissidentVoteFactor = 0.625
	// consensusAlgorithm tags the merged ticket.
	consensusAlgorithm = "consensus"
)

// IDSource hands out monotonically-ish increasing ticket ids within a
// process: a millisecond base plus a sequence.
type IDSource struct {
	base int64
	seq  int64
}

// NewIDSource seeds the generator from the wall clock.
func NewIDSource(now time.Time) *IDSource {
	return &IDSource{base: now.UnixMilli()}
}

// Next returns the next id.
func (s *IDSource) Next() int64 {
	s.seq++
	return s.base + s.seq
}

// Aggregator produces the tickets for one game and cycle.
type Aggregator struct {
	cfg       config.Config
	spec      game.Spec
	validator *morph.Validator
	gen       *genome.Genome
	model     *meta.Model
	registry  predictor.Registry
	rng       *rand.Rand
	ids       *IDSource
}

// New wires an aggregator for one game.
func New(cfg config.Config, spec game.Spec, gen *genome.Genome, model *meta.Model,
	registry predictor.Registry, rng *rand.Rand, ids *IDSource) *Aggregator {
	return &Aggregator{
		cfg:       cfg,
		spec:      spec,
		validator: morph.NewValidator(gen),
		gen:       gen,
		model:     model,
		registry:  registry,
		rng:       rng,
		ids:       ids,
	}
}

type elite struct {
	numbers   []int
	deviation float64
	dissident bool
}

// Run executes one full aggregation cycle: curation, voting, selection.
// Returned tickets are the per-predictor elites plus, when any predictor
// survived curation, the consensus ticket. An empty return means no
// predictor produced a morphologically acceptable candidate — a quiet
// cycle, not an error.
func (a *Aggregator) Run(now time.Time, targetDraw int64) []ticket.Ticket {
	hour := now.Hour()
	votes := map[int]float64{}
	var produced []ticket.Ticket

	for _, m := range a.registry {
		algo := m.Predictor.Name()

		best, ok := a.curate(m, hour)
		if !ok {
			log.Warn().Str("game", a.spec.ID).Str("algorithm", algo).
				Msg("no candidate survived the morphology gate this cycle")
			continue
		}

		weight := a.voteWeight(algo, hour, best.deviation)
		boost := m.VoteBoost
		note := ticket.NoteNormal
		if best.dissident {
			boost *= dissidentVoteFactor
			note = ticket.NoteDissident
		}

		produced = append(produced, ticket.Ticket{
			ID:          a.ids.Next(),
			GeneratedAt: now,
			Game:        a.spec.ID,
			Numbers:     best.numbers,
			TargetDraw:  targetDraw,
			Status:      ticket.StatusPending,
			Score:       best.deviation,
			Algorithm:   algo,
			Note:        note,
		})
		log.Info().Str("game", a.spec.ID).Str("algorithm", algo).
			Ints("numbers", best.numbers).Float64("deviation", best.deviation).
			Bool("dissident", best.dissident).Msg("elite candidate selected")

		a.accumulateVotes(m, votes, weight*boost)
	}

	if len(votes) == 0 {
		return produced
	}
	if len(votes) < a.spec.Balls {
		log.Warn().Str("game", a.spec.ID).Int("distinct", len(votes)).
			Msg("vote pool too small for a full consensus ticket, skipping it")
		return produced
	}

	numbers, note := a.selectConsensus(votes)
	confidence := concentration(votes, a.spec.Balls)

	produced = append(produced, ticket.Ticket{
		ID:          a.ids.Next(),
		GeneratedAt: now,
		Game:        a.spec.ID,
		Numbers:     numbers,
		TargetDraw:  targetDraw,
		Status:      ticket.StatusPending,
		Score:       confidence,
		Algorithm:   consensusAlgorithm,
		Note:        note,
	})
	log.Info().Str("game", a.spec.ID).Ints("numbers", numbers).
		Float64("confidence", confidence).Str("note", note).
		Msg("consensus ticket produced")
	return produced
}

// curate runs the predictor repeatedly and keeps the lowest-deviation
// candidate that passes the gate. A candidate failing even the relaxed
// gate can still be admitted as a dissident when the meta model vouches
// for it strongly enough.
func (a *Aggregator) curate(m predictor.Member, hour int) (elite, bool) {
	algo := m.Predictor.Name()
	best := elite{deviation: math.MaxFloat64}
	found := false

	for i := 0; i < curationAttempts; i++ {
		cand := a.safePredict(m.Predictor)
		if len(cand) != a.spec.Balls || !a.spec.InRange(cand) {
			continue
		}
		pass, dev := a.validator.Validate(cand, a.spec, m.Tolerance)
		dissident := false
		if !pass {
			if m.Tolerance <= 1.0 {
				continue
			}
			mult := a.model.Multiplier(a.spec, algo, hour, dev)
			if mult <= a.cfg.Meta.OverrideThreshold {
				continue
			}
			dissident = true
		}
		if dev < best.deviation || !found {
			best = elite{numbers: cand, deviation: dev, dissident: dissident}
			found = true
		}
	}
	return best, found
}

// voteWeight converts genome trust into a vote weight: a log-damped
// ranking floor-limited at 0.5, scaled by the meta-confidence multiplier.
func (a *Aggregator) voteWeight(algo string, hour int, deviation float64) float64 {
	rank := a.gen.HourlyRanking(a.spec.ID, hour, algo)
	w := math.Log(math.Max(1, rank) + 1)
	if w < 0.5 {
		w = 0.5
	}
	return w * a.model.Multiplier(a.spec, algo, hour, deviation)
}

// accumulateVotes re-samples the predictor and credits its weight to every
// number in each validated sample.
func (a *Aggregator) accumulateVotes(m predictor.Member, votes map[int]float64, weight float64) {
	valid := 0
	for retries := 0; valid < consensusSamples && retries < sampleRetries; retries++ {
		sample := a.safePredict(m.Predictor)
		if len(sample) != a.spec.Balls || !a.spec.InRange(sample) {
			continue
		}
		if pass, _ := a.validator.Validate(sample, a.spec, m.Tolerance); !pass {
			continue
		}
		for _, n := range sample {
			votes[n] += weight
		}
		valid++
	}
}

// selectConsensus picks the final number set: deterministic top-N when it
// passes the gate, otherwise stochastic weighted sampling, otherwise the
// top-N flagged as low confidence.
func (a *Aggregator) selectConsensus(votes map[int]float64) ([]int, string) {
	topN := a.topN(votes)
	if pass, _ := a.validator.Validate(topN, a.spec, 1.0); pass {
		return topN, ticket.NoteNormal
	}

	log.Debug().Str("game", a.spec.ID).
		Msg("deterministic consensus rejected by morphology, sampling stochastically")
	for i := 0; i < stochasticAttempts; i++ {
		cand := a.sampleWithoutReplacement(votes)
		if cand == nil {
			break
		}
		if pass, _ := a.validator.Validate(cand, a.spec, 1.0); pass {
			return cand, ticket.NoteNormal
		}
	}

	log.Warn().Str("game", a.spec.ID).
		Msg("no validated consensus found, falling back to top-N")
	return topN, ticket.NoteLowConfidence
}

// topN returns the N highest-weighted numbers, sorted ascending. Ties
// break toward the smaller number for determinism.
func (a *Aggregator) topN(votes map[int]float64) []int {
	type vote struct {
		n int
		w float64
	}
	ranked := make([]vote, 0, len(votes))
	for n, w := range votes {
		ranked = append(ranked, vote{n, w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].w != ranked[j].w {
			return ranked[i].w > ranked[j].w
		}
		return ranked[i].n < ranked[j].n
	})
	count := a.spec.Balls
	if count > len(ranked) {
		count = len(ranked)
	}
	out := make([]int, 0, count)
	for _, v := range ranked[:count] {
		out = append(out, v.n)
	}
	sort.Ints(out)
	return out
}

// sampleWithoutReplacement draws N distinct numbers with probability
// proportional to accumulated vote weight.
func (a *Aggregator) sampleWithoutReplacement(votes map[int]float64) []int {
	if len(votes) < a.spec.Balls {
		return nil
	}
	remaining := make(map[int]float64, len(votes))
	for n, w := range votes {
		remaining[n] = w
	}
	out := make([]int, 0, a.spec.Balls)
	for len(out) < a.spec.Balls {
		n := pickWeighted(remaining, a.rng)
		out = append(out, n)
		delete(remaining, n)
	}
	sort.Ints(out)
	return out
}

// concentration measures consensus strength: the share of total vote mass
// captured by the n strongest numbers, as a percentage. It is a property
// of the vote pool, not of the final set, so a stochastically sampled
// ticket still reports how peaked the voting was.
func concentration(votes map[int]float64, n int) float64 {
	weights := make([]float64, 0, len(votes))
	var total float64
	for _, w := range votes {
		weights = append(weights, w)
		total += w
	}
	if total == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))
	if n > len(weights) {
		n = len(weights)
	}
	var top float64
	for _, w := range weights[:n] {
		top += w
	}
	return math.Round(top/total*10000) / 100
}

// safePredict shields the cycle from a misbehaving predictor: a panic is
// logged and treated as "no contribution".
func (a *Aggregator) safePredict(p predictor.Predictor) (nums []int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("algorithm", p.Name()).Interface("panic", r).
				Msg("predictor panicked, dropping its candidate")
			nums = nil
		}
	}()
	return p.Predict(a.spec.Balls)
}

func pickWeighted(weights map[int]float64, rng *rand.Rand) int {
	keys := make([]int, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var total float64
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
