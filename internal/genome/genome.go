// Package genome holds the per-game adaptive state: algorithm rankings
// (global and hourly), the learned morphology profile, and the learning
// checkpoint. The genome is mutated only by the Learner; the validator and
// the aggregator read snapshots.
package genome

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/fsio"
	"github.com/GaboAzorin/lotus-2026/internal/game"
)

// Unset marks a morphology metric that has not been learned yet.
const Unset = -1

// Profile is the learned shape of a winning combination for one game.
type Profile struct {
	IdealSumLow      int     `json:"ideal_sum_low"`
	IdealSumHigh     int     `json:"ideal_sum_high"`
	IdealEvenCount   float64 `json:"ideal_even_count"`
	IdealConsecutive float64 `json:"ideal_consecutive"`
	IdealLowCount    float64 `json:"ideal_low_count"`
	IdealEndings     float64 `json:"ideal_endings"`
	IdealPrimeCount  float64 `json:"ideal_prime_count"`
	IdealAvgGap      float64 `json:"ideal_avg_gap"`
}

// NewProfile returns a profile with every metric unset.
func NewProfile() *Profile {
	return &Profile{
		IdealEvenCount:   Unset,
		IdealConsecutive: Unset,
		IdealLowCount:    Unset,
		IdealEndings:     Unset,
		IdealPrimeCount:  Unset,
		IdealAvgGap:      Unset,
	}
}

// HasSumRange reports whether the sum range has been learned.
func (p *Profile) HasSumRange() bool {
	return !(p.IdealSumLow == 0 && p.IdealSumHigh == 0)
}

// Metadata tracks the learning checkpoint.
type Metadata struct {
	LastTrainedID int64     `json:"last_trained_id"`
	TotalStudied  int       `json:"total_studied"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Genome is the full adaptive-state document.
type Genome struct {
	// AlgoRanking: game -> algorithm -> smoothed performance score.
	AlgoRanking map[string]map[string]float64 `json:"algo_ranking"`
	// AlgoRankingHourly: game -> hour-of-day -> algorithm -> score.
	AlgoRankingHourly map[string]map[string]map[string]float64 `json:"algo_ranking_hourly"`
	// Morphology: game -> learned profile.
	Morphology map[string]*Profile `json:"morphology"`
	Metadata   Metadata            `json:"metadata"`
}

// New returns an empty genome.
func New() *Genome {
	return &Genome{
		AlgoRanking:       map[string]map[string]float64{},
		AlgoRankingHourly: map[string]map[string]map[string]float64{},
		Morphology:        map[string]*Profile{},
	}
}

// Load reads the genome from path. Missing or corrupt files yield a fresh
// genome; corruption is logged because it means losing learned state.
func Load(path string) *Genome {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("path", path).Err(err).Msg("genome unreadable, starting fresh")
		}
		return New()
	}
	g := New()
	if err := json.Unmarshal(data, g); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("genome corrupt, starting fresh")
		return New()
	}
	// Maps may be null in hand-edited files.
	if g.AlgoRanking == nil {
		g.AlgoRanking = map[string]map[string]float64{}
	}
	if g.AlgoRankingHourly == nil {
		g.AlgoRankingHourly = map[string]map[string]map[string]float64{}
	}
	if g.Morphology == nil {
		g.Morphology = map[string]*Profile{}
	}
	return g
}

// Save persists the genome atomically.
func (g *Genome) Save(path string) error {
	if err := fsio.WriteJSONAtomic(path, g); err != nil {
		return fmt.Errorf("save genome: %w", err)
	}
	return nil
}

// Ranking returns the global smoothed score for an algorithm, or 1.0 when
// the algorithm has no history yet.
func (g *Genome) Ranking(gameID, algorithm string) float64 {
	if m, ok := g.AlgoRanking[gameID]; ok {
		if v, ok := m[algorithm]; ok {
			return v
		}
	}
	return 1.0
}

// HourlyRanking returns the hour-specific score for an algorithm, falling
// back to the global ranking when no hourly data exists.
func (g *Genome) HourlyRanking(gameID string, hour int, algorithm string) float64 {
	if byHour, ok := g.AlgoRankingHourly[gameID]; ok {
		if m, ok := byHour[strconv.Itoa(hour)]; ok {
			if v, ok := m[algorithm]; ok {
				return v
			}
		}
	}
	return g.Ranking(gameID, algorithm)
}

// Profile returns the morphology profile for a game, or nil when nothing
// has been learned yet.
func (g *Genome) Profile(gameID string) *Profile {
	return g.Morphology[gameID]
}

// ValidateIntegrity clamps every morphology value to the game's physical
// bounds. Violations are corrected in place and logged; they never
// propagate as errors. Returns the number of clamps applied.
func (g *Genome) ValidateIntegrity() int {
	clamps := 0
	for gameID, p := range g.Morphology {
		spec, err := game.Lookup(gameID)
		if err != nil {
			log.Warn().Str("game", gameID).Msg("genome carries profile for unknown game")
			continue
		}
		clamps += p.clamp(spec)
	}
	return clamps
}

func (p *Profile) clamp(spec game.Spec) int {
	clamps := 0
	warn := func(metric string, from, to float64) {
		clamps++
		log.Warn().
			Str("game", spec.ID).Str("metric", metric).
			Float64("from", from).Float64("to", to).
			Msg("morphology value outside physical bounds, clamped")
	}

	if p.HasSumRange() {
		if p.IdealSumLow < spec.MinSum() {
			warn("ideal_sum_low", float64(p.IdealSumLow), float64(spec.MinSum()))
			p.IdealSumLow = spec.MinSum()
		}
		if p.IdealSumHigh > spec.MaxSum() {
			warn("ideal_sum_high", float64(p.IdealSumHigh), float64(spec.MaxSum()))
			p.IdealSumHigh = spec.MaxSum()
		}
		if p.IdealSumLow > p.IdealSumHigh {
			warn("ideal_sum_range", float64(p.IdealSumLow), float64(p.IdealSumHigh))
			p.IdealSumLow, p.IdealSumHigh = p.IdealSumHigh, p.IdealSumLow
		}
	}

	balls := float64(spec.Balls)
	clampCount := func(name string, v *float64, max float64) {
		if *v == Unset {
			return
		}
		if *v < 0 {
			warn(name, *v, 0)
			*v = 0
		} else if *v > max {
			warn(name, *v, max)
			*v = max
		}
	}
	clampCount("ideal_even_count", &p.IdealEvenCount, balls)
	clampCount("ideal_consecutive", &p.IdealConsecutive, balls-1)
	clampCount("ideal_low_count", &p.IdealLowCount, balls)
	clampCount("ideal_endings", &p.IdealEndings, min(balls, 10))
	clampCount("ideal_prime_count", &p.IdealPrimeCount, balls)

	if p.IdealAvgGap != Unset && p.IdealAvgGap < 0 {
		warn("ideal_avg_gap", p.IdealAvgGap, 0)
		p.IdealAvgGap = 0
	}
	return clamps
}
