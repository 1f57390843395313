// Package judge scores pending ledger tickets against observed draw
// results and flips them to AUDITED. Scores never revert: once audited, a
// ticket is settled.
package judge

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/dashboard"
	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/ledger"
	"github.com/GaboAzorin/lotus-2026/internal/lock"
	"github.com/GaboAzorin/lotus-2026/internal/results"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

// ErrLockTimeout mirrors the consolidator's contract: abort cleanly, touch
// nothing.
var ErrLockTimeout = errors.New("judge: merge lock timeout")

// Judge audits the ledger against the draw-result feed.
type Judge struct {
	cfg   config.Config
	store *results.Store
}

// New creates a judge over the loaded result feed.
func New(cfg config.Config, store *results.Store) *Judge {
	return &Judge{cfg: cfg, store: store}
}

// Report summarizes one audit pass.
type Report struct {
	Audited []ticket.Ticket
	// AwaitingResult counts pending tickets whose target draw has no
	// published result yet. Not an error; they stay pending.
	AwaitingResult int
}

// Run audits every pending ticket whose target draw now has a result. The
// ledger rewrite happens under the shared advisory lock, with a backup
// copy taken first.
func (j *Judge) Run() (Report, error) {
	l := lock.New(j.cfg.LockPath(), j.cfg.LockTimeout())
	if err := l.Acquire(); err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			log.Warn().Msg("audit aborted: another process holds the merge lock")
			return Report{}, ErrLockTimeout
		}
		return Report{}, fmt.Errorf("judge: %w", err)
	}
	defer l.Release()

	led := ledger.Load(j.cfg.LedgerPath())
	var report Report

	for _, t := range led.All() {
		if t.Status != ticket.StatusPending {
			continue
		}
		spec, err := game.Lookup(t.Game)
		if err != nil {
			log.Warn().Int64("id", t.ID).Str("game", t.Game).
				Msg("pending ticket for unknown game, leaving untouched")
			continue
		}
		res, ok := j.store.Lookup(t.Game, t.TargetDraw)
		if !ok {
			report.AwaitingResult++
			continue
		}

		t.Hits = Hits(spec, t.Numbers, res.Numbers)
		t.Score = Score(spec, t.Numbers, res)
		t.Status = ticket.StatusAudited
		led.Put(t)
		report.Audited = append(report.Audited, t)

		log.Debug().Int64("id", t.ID).Str("game", t.Game).Int64("draw", t.TargetDraw).
			Int("hits", t.Hits).Float64("score", t.Score).Msg("ticket audited")
	}

	if len(report.Audited) == 0 {
		log.Info().Int("awaiting", report.AwaitingResult).Msg("no tickets ready to audit")
		return report, nil
	}

	if err := led.Backup(); err != nil {
		return Report{}, fmt.Errorf("judge: %w", err)
	}
	if err := led.Save(); err != nil {
		return Report{}, fmt.Errorf("judge: %w", err)
	}
	if err := dashboard.ApplyAudits(j.cfg.DashboardPath(), report.Audited); err != nil {
		// Cache trouble never blocks the audit itself.
		log.Warn().Err(err).Msg("dashboard cache not updated")
	}

	log.Info().Int("audited", len(report.Audited)).Int("awaiting", report.AwaitingResult).
		Msg("audit pass finished")
	return report, nil
}
