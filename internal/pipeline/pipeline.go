// Package pipeline wires the stages into the runnable cycles: dream
// (generate and enqueue), learn (genome and meta-model updates), and the
// status snapshot. Each cycle is a short-lived batch run; all durable
// state lives under the configured data directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/consensus"
	"github.com/GaboAzorin/lotus-2026/internal/dashboard"
	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/genome"
	"github.com/GaboAzorin/lotus-2026/internal/ledger"
	"github.com/GaboAzorin/lotus-2026/internal/lock"
	"github.com/GaboAzorin/lotus-2026/internal/meta"
	"github.com/GaboAzorin/lotus-2026/internal/metrics"
	"github.com/GaboAzorin/lotus-2026/internal/notify"
	"github.com/GaboAzorin/lotus-2026/internal/predictor"
	"github.com/GaboAzorin/lotus-2026/internal/queue"
	"github.com/GaboAzorin/lotus-2026/internal/results"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

// Pipeline bundles the shared collaborators of every cycle.
type Pipeline struct {
	cfg      config.Config
	met      *metrics.Metrics
	notifier *notify.Notifier
}

// New builds a pipeline over a validated config.
func New(cfg config.Config, met *metrics.Metrics, notifier *notify.Notifier) *Pipeline {
	return &Pipeline{cfg: cfg, met: met, notifier: notifier}
}

// EnsureDirs creates the durable layout under the data directory.
func (p *Pipeline) EnsureDirs() error {
	for _, dir := range []string{p.cfg.DataDir, p.cfg.QueueDir(), p.cfg.ResultsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// DreamReport summarizes one generation cycle.
type DreamReport struct {
	Produced []ticket.Ticket
	ByGame   map[string]int
}

// Dream runs one full generation cycle for the requested games (all games
// when the list is empty): load state, run each game's aggregation, queue
// the resulting tickets, refresh the dashboard cache and notify.
func (p *Pipeline) Dream(ctx context.Context, games []string) (DreamReport, error) {
	if err := p.EnsureDirs(); err != nil {
		return DreamReport{}, err
	}

	store, err := results.LoadDir(p.cfg.ResultsDir())
	if err != nil {
		return DreamReport{}, fmt.Errorf("dream: %w", err)
	}
	g := genome.Load(p.cfg.GenomePath())
	model, err := p.loadModel()
	if err != nil {
		return DreamReport{}, fmt.Errorf("dream: %w", err)
	}

	now := time.Now()
	rng := rand.New(rand.NewSource(now.UnixNano()))
	ids := consensus.NewIDSource(now)
	q := queue.New(p.cfg.QueueDir())

	report := DreamReport{ByGame: map[string]int{}}
	for _, spec := range selectGames(games) {
		targetDraw := projectTargetDraw(spec, store, now)
		registry := predictor.DefaultRegistry(spec, store.History(spec.ID), g.Profile(spec.ID), rng)
		agg := consensus.New(p.cfg, spec, g, model, registry, rng, ids)

		tickets := agg.Run(now, targetDraw)
		for _, t := range tickets {
			if err := q.Enqueue(t); err != nil {
				return report, fmt.Errorf("dream: %w", err)
			}
			p.met.TicketsGenerated.WithLabelValues(spec.ID).Inc()
		}
		report.Produced = append(report.Produced, tickets...)
		report.ByGame[spec.ID] = len(tickets)
		log.Info().Str("game", spec.ID).Int64("target_draw", targetDraw).
			Int("tickets", len(tickets)).Msg("game cycle finished")
	}

	led := ledger.Load(p.cfg.LedgerPath())
	if err := dashboard.Refresh(p.cfg.DashboardPath(), led, q); err != nil {
		log.Warn().Err(err).Msg("dashboard cache not refreshed")
	}
	p.notifier.Send(ctx, notify.CycleSummary(report.Produced))

	log.Info().Int("tickets", len(report.Produced)).Msg("dream cycle finished")
	return report, nil
}

// LearnReport summarizes one learning cycle.
type LearnReport struct {
	Genome      genome.Report
	MetaTrained bool
	MetaRows    int
}

// ErrLockTimeout reports that another stage held the merge lock for the
// whole acquisition window.
var ErrLockTimeout = errors.New("learn: merge lock timeout")

// Learn runs the incremental genome pass and, when enough audited history
// has accumulated, a wholesale meta-model retrain. It serializes against
// consolidation and judging on the same advisory lock: the ledger must not
// shift underneath the checkpoint computation.
func (p *Pipeline) Learn(ctx context.Context) (LearnReport, error) {
	if err := p.EnsureDirs(); err != nil {
		return LearnReport{}, err
	}

	l := lock.New(p.cfg.LockPath(), p.cfg.LockTimeout())
	if err := l.Acquire(); err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			log.Warn().Msg("learning aborted: another process holds the merge lock")
			return LearnReport{}, ErrLockTimeout
		}
		return LearnReport{}, fmt.Errorf("learn: %w", err)
	}
	defer l.Release()

	led := ledger.Load(p.cfg.LedgerPath())
	all := led.All()

	learner := genome.NewLearner(p.cfg)
	genRep, err := learner.Learn(all)
	if err != nil {
		return LearnReport{}, fmt.Errorf("learn: %w", err)
	}
	p.met.AnomaliesExcluded.Add(float64(len(genRep.ExcludedIDs)))
	p.met.MorphologyClamps.Add(float64(genRep.Clamps))

	report := LearnReport{Genome: genRep}
	model, err := meta.Train(all, p.cfg.Meta.MinRows)
	if err != nil {
		return report, fmt.Errorf("learn: %w", err)
	}
	if model != nil {
		if err := model.Save(p.cfg.MetaModelPath()); err != nil {
			return report, fmt.Errorf("learn: %w", err)
		}
		report.MetaTrained = true
		report.MetaRows = model.TrainedRows
	}
	return report, nil
}

// loadModel loads the persisted meta model. A schema mismatch triggers
// exactly one retrain from the ledger; a retrain failure is fatal, while
// insufficient history falls back to neutral multipliers.
func (p *Pipeline) loadModel() (*meta.Model, error) {
	m, err := meta.Load(p.cfg.MetaModelPath())
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, meta.ErrSchemaMismatch) {
		return nil, err
	}

	log.Warn().Msg("persisted meta model has an incompatible schema, retraining from the ledger")
	led := ledger.Load(p.cfg.LedgerPath())
	fresh, terr := meta.Train(led.All(), p.cfg.Meta.MinRows)
	if terr != nil {
		return nil, fmt.Errorf("retrain after schema mismatch: %w", terr)
	}
	if fresh == nil {
		log.Warn().Msg("not enough audited history to retrain, running with neutral multipliers")
		return nil, nil
	}
	if err := fresh.Save(p.cfg.MetaModelPath()); err != nil {
		return nil, err
	}
	return fresh, nil
}

// projectTargetDraw walks the game's schedule from the last known result to
// the first slot after now. Without any result to anchor on the projection
// starts from scratch at id 1.
func projectTargetDraw(spec game.Spec, store *results.Store, now time.Time) int64 {
	if last, ok := store.LastDraw(spec.ID); ok {
		id, _ := spec.NextDraw(last.Draw, last.At, now)
		return id
	}
	id, _ := spec.NextDraw(0, now.Add(-time.Minute), now)
	return id
}

func selectGames(ids []string) []game.Spec {
	if len(ids) == 0 {
		return game.Catalog()
	}
	var out []game.Spec
	for _, id := range ids {
		spec, err := game.Lookup(id)
		if err != nil {
			log.Warn().Str("game", id).Msg("unknown game requested, skipping")
			continue
		}
		out = append(out, spec)
	}
	return out
}
