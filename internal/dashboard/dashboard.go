// Package dashboard maintains the read-optimized JSON cache of ticket
// state: the full ledger plus anything still waiting in the queue. Readers
// get one self-contained file instead of a CSV-and-queue scavenger hunt.
package dashboard

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/fsio"
	"github.com/GaboAzorin/lotus-2026/internal/ledger"
	"github.com/GaboAzorin/lotus-2026/internal/queue"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

// Refresh rebuilds the cache from the ledger and the not-yet-consolidated
// queue. Ledger rows win on id collisions.
func Refresh(path string, led *ledger.Ledger, q *queue.Queue) error {
	seen := map[int64]bool{}
	var all []ticket.Ticket
	for _, t := range led.All() {
		all = append(all, t)
		seen[t.ID] = true
	}

	entries, _, err := q.List()
	if err != nil {
		return fmt.Errorf("dashboard refresh: %w", err)
	}
	for _, e := range entries {
		if !seen[e.Ticket.ID] {
			all = append(all, e.Ticket)
			seen[e.Ticket.ID] = true
		}
	}

	if err := fsio.WriteJSONAtomic(path, all); err != nil {
		return fmt.Errorf("dashboard refresh: %w", err)
	}
	log.Info().Int("tickets", len(all)).Msg("dashboard cache refreshed")
	return nil
}

// ApplyAudits folds freshly audited tickets into an existing cache,
// rewriting the file only when some entry's audited state actually
// changed. A missing or corrupt cache is a no-op: the next Refresh
// rebuilds it from scratch.
func ApplyAudits(path string, audited []ticket.Ticket) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("dashboard read: %w", err)
	}
	var cached []ticket.Ticket
	if err := json.Unmarshal(data, &cached); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("dashboard cache corrupt, leaving for next rebuild")
		return nil
	}

	byID := map[int64]ticket.Ticket{}
	for _, t := range audited {
		byID[t.ID] = t
	}

	changed := 0
	for i, t := range cached {
		u, ok := byID[t.ID]
		if !ok {
			continue
		}
		if t.Status == u.Status && t.Hits == u.Hits && t.Score == u.Score {
			continue
		}
		cached[i] = u
		changed++
	}
	if changed == 0 {
		return nil
	}

	if err := fsio.WriteJSONAtomic(path, cached); err != nil {
		return fmt.Errorf("dashboard update: %w", err)
	}
	log.Info().Int("updated", changed).Msg("dashboard cache entries updated after audit")
	return nil
}
