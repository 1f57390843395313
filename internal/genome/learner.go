package genome

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

// blendFactor is the novelty weight of each morphology update: 90% old
// profile, 10% new batch.
const blendFactor = 0.1

// Learner applies incremental, checkpointed updates to the genome from
// freshly audited tickets.
type Learner struct {
	cfg  config.Config
	path string
}

// NewLearner creates a learner persisting to the configured genome path.
func NewLearner(cfg config.Config) *Learner {
	return &Learner{cfg: cfg, path: cfg.GenomePath()}
}

// Report summarizes one learning pass.
type Report struct {
	Skipped      bool
	Studied      int
	ExcludedIDs  []int64
	Clamps       int
	CheckpointID int64
}

// Learn runs one incremental pass over audited tickets newer than the
// checkpoint. Returns a report; insufficient data is a skip, not an error.
func (l *Learner) Learn(tickets []ticket.Ticket) (Report, error) {
	g := Load(l.path)

	var fresh []ticket.Ticket
	for _, t := range tickets {
		if t.Status == ticket.StatusAudited && t.ID > g.Metadata.LastTrainedID {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) < l.cfg.Learning.MinBatch {
		log.Info().
			Int64("checkpoint", g.Metadata.LastTrainedID).
			Int("fresh", len(fresh)).Int("min", l.cfg.Learning.MinBatch).
			Msg("learning skipped: not enough new audited tickets")
		return Report{Skipped: true}, nil
	}

	kept, excluded := excludeAnomalies(fresh, l.cfg.Learning.AnomalyZ)
	if len(excluded) > 0 {
		ids := ticketIDs(excluded)
		log.Warn().Ints64("ids", ids).Msg("anomalous scores excluded from training")
	}

	byGame := map[string][]ticket.Ticket{}
	for _, t := range kept {
		byGame[t.Game] = append(byGame[t.Game], t)
	}

	for gameID, batch := range byGame {
		spec, err := game.Lookup(gameID)
		if err != nil {
			log.Warn().Str("game", gameID).Msg("audited tickets for unknown game, skipping")
			continue
		}
		l.updateRankings(g, gameID, batch)
		l.updateHourlyRankings(g, gameID, batch)
		l.updateMorphology(g, spec, batch)
	}

	clamps := g.ValidateIntegrity()

	// The checkpoint covers the whole candidate batch, excluded rows
	// included: they were seen, just not trusted.
	maxID := g.Metadata.LastTrainedID
	for _, t := range fresh {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	g.Metadata.LastTrainedID = maxID
	g.Metadata.TotalStudied += len(fresh)
	g.Metadata.UpdatedAt = time.Now()

	if err := g.Save(l.path); err != nil {
		return Report{}, fmt.Errorf("learning pass: %w", err)
	}
	log.Info().
		Int64("checkpoint", maxID).Int("studied", len(fresh)).Int("clamps", clamps).
		Msg("genome updated")

	return Report{
		Studied:      len(fresh),
		ExcludedIDs:  ticketIDs(excluded),
		Clamps:       clamps,
		CheckpointID: maxID,
	}, nil
}

// excludeAnomalies drops rows whose score z-score exceeds the threshold.
func excludeAnomalies(batch []ticket.Ticket, zLimit float64) (kept, excluded []ticket.Ticket) {
	if len(batch) < 2 {
		return batch, nil
	}
	var sum float64
	for _, t := range batch {
		sum += t.Score
	}
	mean := sum / float64(len(batch))
	var sq float64
	for _, t := range batch {
		d := t.Score - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(batch)))
	if std == 0 {
		return batch, nil
	}
	for _, t := range batch {
		if math.Abs((t.Score-mean)/std) > zLimit {
			excluded = append(excluded, t)
		} else {
			kept = append(kept, t)
		}
	}
	return kept, excluded
}

// updateRankings blends each algorithm's batch mean score into its global
// EMA ranking.
func (l *Learner) updateRankings(g *Genome, gameID string, batch []ticket.Ticket) {
	ranking := g.AlgoRanking[gameID]
	if ranking == nil {
		ranking = map[string]float64{}
		g.AlgoRanking[gameID] = ranking
	}
	for algo, mean := range meanScoreByAlgo(batch) {
		alpha := l.cfg.Alpha(algo)
		old, ok := ranking[algo]
		if !ok {
			old = 1.0
		}
		ranking[algo] = round2(old*(1-alpha) + mean*alpha)
	}
}

// updateHourlyRankings applies the same EMA keyed by generation hour.
func (l *Learner) updateHourlyRankings(g *Genome, gameID string, batch []ticket.Ticket) {
	byHour := g.AlgoRankingHourly[gameID]
	if byHour == nil {
		byHour = map[string]map[string]float64{}
		g.AlgoRankingHourly[gameID] = byHour
	}

	grouped := map[string][]ticket.Ticket{}
	for _, t := range batch {
		key := fmt.Sprintf("%d", t.Hour())
		grouped[key] = append(grouped[key], t)
	}
	for hour, hourBatch := range grouped {
		ranking := byHour[hour]
		if ranking == nil {
			ranking = map[string]float64{}
			byHour[hour] = ranking
		}
		for algo, mean := range meanScoreByAlgo(hourBatch) {
			alpha := l.cfg.Alpha(algo)
			old, ok := ranking[algo]
			if !ok {
				old = 1.0
			}
			ranking[algo] = round2(old*(1-alpha) + mean*alpha)
		}
	}
}

// updateMorphology studies the batch's structural metrics, weighting each
// row by 1+hits so better rows shape the profile more. Every row
// participates: learning only from perfect matches starves the profile of
// almost all signal.
func (l *Learner) updateMorphology(g *Genome, spec game.Spec, batch []ticket.Ticket) {
	p := g.Morphology[spec.ID]
	if p == nil {
		p = NewProfile()
		g.Morphology[spec.ID] = p
	}

	var sums, evens, consecs, lows, endings, primesC, gaps []float64
	for _, t := range batch {
		if !spec.InRange(t.Numbers) || len(t.Numbers) != spec.Balls {
			continue
		}
		m := spec.Measure(t.Numbers)
		weight := 1 + t.Hits
		for i := 0; i < weight; i++ {
			sums = append(sums, float64(m.Sum))
			evens = append(evens, float64(m.EvenCount))
			consecs = append(consecs, float64(m.Consecutive))
			lows = append(lows, float64(m.LowCount))
			endings = append(endings, float64(m.EndingDigits))
			primesC = append(primesC, float64(m.PrimeCount))
			gaps = append(gaps, m.AvgGap)
		}
	}
	if len(sums) == 0 {
		return
	}

	p25, p75 := percentile(sums, 25), percentile(sums, 75)
	if p.HasSumRange() {
		p.IdealSumLow = int(float64(p.IdealSumLow)*(1-blendFactor) + p25*blendFactor)
		p.IdealSumHigh = int(float64(p.IdealSumHigh)*(1-blendFactor) + p75*blendFactor)
	} else {
		p.IdealSumLow = int(p25)
		p.IdealSumHigh = int(p75)
	}

	blend(&p.IdealEvenCount, mean(evens))
	blend(&p.IdealConsecutive, mean(consecs))
	blend(&p.IdealLowCount, mean(lows))
	blend(&p.IdealEndings, mean(endings))
	blend(&p.IdealPrimeCount, mean(primesC))
	blend(&p.IdealAvgGap, mean(gaps))
}

// blend applies the 90/10 smoothing, seeding unset metrics directly.
func blend(old *float64, batchMean float64) {
	if *old == Unset {
		*old = round2(batchMean)
		return
	}
	*old = round2(*old*(1-blendFactor) + batchMean*blendFactor)
}

func meanScoreByAlgo(batch []ticket.Ticket) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, t := range batch {
		sums[t.Algorithm] += t.Score
		counts[t.Algorithm]++
	}
	out := map[string]float64{}
	for algo, s := range sums {
		out[algo] = s / float64(counts[algo])
	}
	return out
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// percentile computes the p-th percentile with linear interpolation.
func percentile(xs []float64, p float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func ticketIDs(ts []ticket.Ticket) []int64 {
	ids := make([]int64, 0, len(ts))
	for _, t := range ts {
		ids = append(ids, t.ID)
	}
	return ids
}
