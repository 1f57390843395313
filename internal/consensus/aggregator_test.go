package consensus

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/genome"
	"github.com/GaboAzorin/lotus-2026/internal/meta"
	"github.com/GaboAzorin/lotus-2026/internal/predictor"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

// fixed always proposes the same numbers.
type fixed struct {
	name string
	nums []int
}

func (f fixed) Name() string           { return f.name }
func (f fixed) Predict(count int) []int { return append([]int(nil), f.nums...) }

// panicky blows up on every call.
type panicky struct{}

func (panicky) Name() string           { return "panicky" }
func (panicky) Predict(count int) []int { panic("model file corrupted") }

// outOfRange proposes numbers no game accepts.
type outOfRange struct{}

func (outOfRange) Name() string           { return "out_of_range" }
func (outOfRange) Predict(count int) []int { return []int{900, 901, 902, 903, 904, 905} }

func testAggregator(t *testing.T, registry predictor.Registry) *Aggregator {
	t.Helper()
	spec, err := game.Lookup("LOTO")
	require.NoError(t, err)
	cfg := config.Default(t.TempDir())
	rng := rand.New(rand.NewSource(1))
	return New(cfg, spec, genome.New(), nil, registry, rng, NewIDSource(time.Now()))
}

func TestRunProducesElitesAndConsensus(t *testing.T) {
	registry := predictor.Registry{
		{Predictor: fixed{"alpha", []int{1, 2, 3, 4, 5, 6}}, Tolerance: 1.0, VoteBoost: 1.0},
		{Predictor: fixed{"beta", []int{4, 5, 6, 7, 8, 9}}, Tolerance: 1.0, VoteBoost: 1.0},
	}
	agg := testAggregator(t, registry)

	now := time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)
	tickets := agg.Run(now, 5000)
	require.Len(t, tickets, 3)

	assert.Equal(t, "alpha", tickets[0].Algorithm)
	assert.Equal(t, "beta", tickets[1].Algorithm)
	final := tickets[2]
	assert.Equal(t, "consensus", final.Algorithm)
	assert.Equal(t, ticket.NoteNormal, final.Note)
	assert.Equal(t, int64(5000), final.TargetDraw)
	assert.Len(t, final.Numbers, 6)

	// The shared numbers carry double weight, so they must all be in.
	assert.Subset(t, final.Numbers, []int{4, 5, 6})

	// Ids are unique and increasing.
	assert.Less(t, tickets[0].ID, tickets[1].ID)
	assert.Less(t, tickets[1].ID, tickets[2].ID)

	// Confidence is the top-6 share of the vote mass: 9 distinct numbers,
	// {4,5,6} voted twice, total mass 12, top six capture at least 9/12.
	assert.InDelta(t, 75.0, final.Score, 0.01)
	assert.Equal(t, ticket.StatusPending, final.Status)
}

func TestRunPanickingPredictorIsQuarantined(t *testing.T) {
	registry := predictor.Registry{
		{Predictor: panicky{}, Tolerance: 1.0, VoteBoost: 1.0},
		{Predictor: fixed{"alpha", []int{1, 2, 3, 4, 5, 6}}, Tolerance: 1.0, VoteBoost: 1.0},
	}
	agg := testAggregator(t, registry)

	tickets := agg.Run(time.Now(), 5000)
	require.Len(t, tickets, 2) // alpha's elite + consensus
	assert.Equal(t, "alpha", tickets[0].Algorithm)
	assert.Equal(t, "consensus", tickets[1].Algorithm)
}

func TestRunNoSurvivorsMeansNoTickets(t *testing.T) {
	registry := predictor.Registry{
		{Predictor: outOfRange{}, Tolerance: 1.0, VoteBoost: 1.0},
		{Predictor: panicky{}, Tolerance: 1.0, VoteBoost: 1.0},
	}
	agg := testAggregator(t, registry)
	assert.Empty(t, agg.Run(time.Now(), 5000))
}

func TestRunLowConfidenceFallback(t *testing.T) {
	spec, err := game.Lookup("LOTO")
	require.NoError(t, err)
	cfg := config.Default(t.TempDir())

	// A profile demanding a sum range no candidate can reach: the elite
	// search fails for strict members, but the consensus step still has to
	// emit something when votes exist. Give the voting member a relaxed
	// tolerance so its samples pass, while the final gate (tolerance 1.0)
	// rejects everything.
	g := genome.New()
	p := genome.NewProfile()
	p.IdealSumLow = 200
	p.IdealSumHigh = 220
	g.Morphology["LOTO"] = p

	// Sum 180: deviation 60, inside 40*3.0 but outside the base limit.
	registry := predictor.Registry{
		{Predictor: fixed{"alpha", []int{20, 25, 30, 32, 35, 38}}, Tolerance: 3.0, VoteBoost: 1.0},
	}
	rng := rand.New(rand.NewSource(1))
	agg := New(cfg, spec, g, nil, registry, rng, NewIDSource(time.Now()))

	tickets := agg.Run(time.Now(), 5000)
	require.Len(t, tickets, 2)
	final := tickets[1]
	assert.Equal(t, "consensus", final.Algorithm)
	assert.Equal(t, ticket.NoteLowConfidence, final.Note)
	assert.Equal(t, []int{20, 25, 30, 32, 35, 38}, final.Numbers)
}

func TestRunDissidentRescueUsesCycleHour(t *testing.T) {
	spec, err := game.Lookup("LOTO")
	require.NoError(t, err)
	cfg := config.Default(t.TempDir())

	// A sum range no candidate reaches: alpha fails even its relaxed gate
	// and survives only as a dissident.
	g := genome.New()
	p := genome.NewProfile()
	p.IdealSumLow = 200
	p.IdealSumHigh = 220
	g.Morphology["LOTO"] = p

	// Expected hits grow with the hour, so the rescue multiplier clears
	// the override threshold at 21h and stays below it at midnight.
	model := &meta.Model{
		Schema:  meta.SchemaVersion,
		Weights: []float64{0, 0, 0, 0.2, 0},
		GameIDs: map[string]float64{"LOTO": 0},
		AlgoIDs: map[string]float64{"alpha": 0},
	}
	registry := predictor.Registry{
		{Predictor: fixed{"alpha", []int{1, 2, 3, 4, 5, 6}}, Tolerance: 3.0, VoteBoost: 1.0},
	}
	agg := New(cfg, spec, g, model, registry, rand.New(rand.NewSource(1)), NewIDSource(time.Now()))

	evening := agg.Run(time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC), 5000)
	require.Len(t, evening, 1)
	assert.Equal(t, ticket.NoteDissident, evening[0].Note)

	midnight := agg.Run(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), 5001)
	assert.Empty(t, midnight)
}

func TestRunSuppressesShortConsensus(t *testing.T) {
	spec, err := game.Lookup("LOTO3")
	require.NoError(t, err)
	cfg := config.Default(t.TempDir())

	// A repeated digit leaves only two distinct numbers in the vote pool,
	// not enough for a full three-digit consensus ticket.
	registry := predictor.Registry{
		{Predictor: fixed{"alpha", []int{4, 4, 7}}, Tolerance: 1.0, VoteBoost: 1.0},
	}
	agg := New(cfg, spec, genome.New(), nil, registry, rand.New(rand.NewSource(1)), NewIDSource(time.Now()))

	tickets := agg.Run(time.Now(), 900)
	require.Len(t, tickets, 1)
	assert.Equal(t, "alpha", tickets[0].Algorithm)
}

func TestTopNDeterministicTieBreak(t *testing.T) {
	spec, err := game.Lookup("LOTO4")
	require.NoError(t, err)
	cfg := config.Default(t.TempDir())
	agg := New(cfg, spec, genome.New(), nil, nil, rand.New(rand.NewSource(1)), NewIDSource(time.Now()))

	votes := map[int]float64{9: 2, 3: 2, 7: 2, 1: 2, 20: 1, 15: 1}
	assert.Equal(t, []int{1, 3, 7, 9}, agg.topN(votes))
}

func TestSampleWithoutReplacement(t *testing.T) {
	spec, err := game.Lookup("LOTO4")
	require.NoError(t, err)
	cfg := config.Default(t.TempDir())
	agg := New(cfg, spec, genome.New(), nil, nil, rand.New(rand.NewSource(7)), NewIDSource(time.Now()))

	votes := map[int]float64{1: 5, 2: 5, 3: 5, 4: 5, 5: 5}
	for i := 0; i < 20; i++ {
		got := agg.sampleWithoutReplacement(votes)
		require.Len(t, got, 4)
		seen := map[int]bool{}
		for _, n := range got {
			assert.False(t, seen[n], "duplicate %d in sample", n)
			seen[n] = true
		}
	}

	// Fewer candidates than balls: nothing to sample.
	assert.Nil(t, agg.sampleWithoutReplacement(map[int]float64{1: 5}))
}

func TestConcentration(t *testing.T) {
	votes := map[int]float64{1: 4, 2: 4, 3: 2}
	assert.InDelta(t, 80.0, concentration(votes, 2), 0.001)
	assert.InDelta(t, 100.0, concentration(votes, 5), 0.001)
	assert.Zero(t, concentration(map[int]float64{}, 1))
}

func TestConcentrationCountsStrongestVotes(t *testing.T) {
	spec, err := game.Lookup("LOTO")
	require.NoError(t, err)
	cfg := config.Default(t.TempDir())

	// Sum range 180..200: the deterministic top six {1,25,28,31,33,35}
	// (sum 153) fail the gate, and so does every other six-of-seven subset
	// containing 1, so sampling must settle on {25,28,31,33,35,38}.
	g := genome.New()
	p := genome.NewProfile()
	p.IdealSumLow = 180
	p.IdealSumHigh = 200
	g.Morphology["LOTO"] = p
	agg := New(cfg, spec, g, nil, nil, rand.New(rand.NewSource(1)), NewIDSource(time.Now()))

	votes := map[int]float64{1: 20, 25: 10, 28: 10, 31: 10, 33: 10, 35: 10, 38: 10}
	numbers, note := agg.selectConsensus(votes)
	assert.Equal(t, ticket.NoteNormal, note)
	assert.Equal(t, []int{25, 28, 31, 33, 35, 38}, numbers)

	// The sampled set excludes the single heaviest number, yet confidence
	// still reports the strongest-six share of the pool: 70/80, not 60/80.
	assert.InDelta(t, 87.5, concentration(votes, spec.Balls), 0.001)
}

func TestIDSourceMonotonic(t *testing.T) {
	ids := NewIDSource(time.Now())
	a, b, c := ids.Next(), ids.Next(), ids.Next()
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}
