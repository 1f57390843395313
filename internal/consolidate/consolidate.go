// Package consolidate merges queued ticket files into the durable ledger
// under the cross-process advisory lock. The merge is idempotent: re-running
// after a crash reprocesses the same files and converges to the same ledger.
package consolidate

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/dashboard"
	"github.com/GaboAzorin/lotus-2026/internal/ledger"
	"github.com/GaboAzorin/lotus-2026/internal/lock"
	"github.com/GaboAzorin/lotus-2026/internal/queue"
)

// ErrLockTimeout is surfaced when another process holds the merge lock for
// the whole acquisition window. Nothing has been touched.
var ErrLockTimeout = errors.New("consolidate: merge lock timeout")

// Consolidator is the lock-protected queue→ledger batch step.
type Consolidator struct {
	cfg config.Config
	q   *queue.Queue
}

// New creates a consolidator over the configured queue and ledger.
func New(cfg config.Config) *Consolidator {
	return &Consolidator{cfg: cfg, q: queue.New(cfg.QueueDir())}
}

// Report summarizes one consolidation run.
type Report struct {
	Merged     int
	Skipped    int
	LedgerSize int
}

// Run performs one consolidation pass. On lock timeout it aborts with
// ErrLockTimeout and zero side effects; queue files are deleted only after
// the merged ledger is durably on disk.
func (c *Consolidator) Run() (Report, error) {
	l := lock.New(c.cfg.LockPath(), c.cfg.LockTimeout())
	if err := l.Acquire(); err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			log.Warn().Dur("timeout", c.cfg.LockTimeout()).
				Msg("consolidation aborted: another process holds the merge lock")
			return Report{}, ErrLockTimeout
		}
		return Report{}, fmt.Errorf("consolidate: %w", err)
	}
	defer l.Release()

	entries, skipped, err := c.q.List()
	if err != nil {
		return Report{}, fmt.Errorf("consolidate: %w", err)
	}
	if len(entries) == 0 {
		log.Info().Msg("queue empty, nothing to consolidate")
		return Report{Skipped: len(skipped)}, nil
	}
	log.Info().Int("tickets", len(entries)).Int("skipped", len(skipped)).
		Msg("consolidating queue")

	led := ledger.Load(c.cfg.LedgerPath())
	consumed := make([]string, 0, len(entries))
	for _, e := range entries {
		// Entries arrive oldest-first, so the last Put for a duplicated
		// id is the most recently written ticket.
		led.Put(e.Ticket)
		consumed = append(consumed, e.Path)
	}

	if err := led.Save(); err != nil {
		// Ledger unchanged on disk; queue files stay for the retry.
		return Report{}, fmt.Errorf("consolidate: %w", err)
	}
	c.q.Remove(consumed)

	if err := dashboard.Refresh(c.cfg.DashboardPath(), led, c.q); err != nil {
		// Cache trouble never blocks the merge itself.
		log.Warn().Err(err).Msg("dashboard cache not refreshed")
	}

	log.Info().Int("merged", len(consumed)).Int("ledger", led.Len()).
		Msg("consolidation finished")
	return Report{Merged: len(consumed), Skipped: len(skipped), LedgerSize: led.Len()}, nil
}
