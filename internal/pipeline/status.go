package pipeline

import (
	"errors"
	"time"

	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/genome"
	"github.com/GaboAzorin/lotus-2026/internal/ledger"
	"github.com/GaboAzorin/lotus-2026/internal/meta"
	"github.com/GaboAzorin/lotus-2026/internal/queue"
	"github.com/GaboAzorin/lotus-2026/internal/results"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

// Status is a read-only snapshot of pipeline state for operators.
type Status struct {
	QueuePending   int
	QueueMalformed int

	LedgerTotal   int
	LedgerPending int
	LedgerAudited int

	GenomeCheckpoint int64
	GenomeStudied    int
	GenomeUpdatedAt  time.Time

	MetaTrainedRows int
	MetaTrainedAt   time.Time
	MetaSchemaStale bool

	NextDraws map[string]NextDraw
}

// NextDraw is the projected upcoming draw for one game.
type NextDraw struct {
	ID int64
	At time.Time
}

// Snapshot reads every durable artifact without taking the merge lock; the
// numbers are advisory and may lag a concurrent writer by one batch.
func (p *Pipeline) Snapshot(now time.Time) (Status, error) {
	var st Status

	entries, skipped, err := queue.New(p.cfg.QueueDir()).List()
	if err != nil {
		return Status{}, err
	}
	st.QueuePending = len(entries)
	st.QueueMalformed = len(skipped)

	led := ledger.Load(p.cfg.LedgerPath())
	for _, t := range led.All() {
		st.LedgerTotal++
		if t.Status == ticket.StatusAudited {
			st.LedgerAudited++
		} else {
			st.LedgerPending++
		}
	}

	g := genome.Load(p.cfg.GenomePath())
	st.GenomeCheckpoint = g.Metadata.LastTrainedID
	st.GenomeStudied = g.Metadata.TotalStudied
	st.GenomeUpdatedAt = g.Metadata.UpdatedAt

	switch model, err := meta.Load(p.cfg.MetaModelPath()); {
	case errors.Is(err, meta.ErrSchemaMismatch):
		st.MetaSchemaStale = true
	case err != nil:
		return Status{}, err
	case model != nil:
		st.MetaTrainedRows = model.TrainedRows
		st.MetaTrainedAt = model.TrainedAt
	}

	store, err := results.LoadDir(p.cfg.ResultsDir())
	if err != nil {
		return Status{}, err
	}
	st.NextDraws = map[string]NextDraw{}
	for _, spec := range game.Catalog() {
		id := projectTargetDraw(spec, store, now)
		var at time.Time
		if last, ok := store.LastDraw(spec.ID); ok {
			_, at = spec.NextDraw(last.Draw, last.At, now)
		} else {
			_, at = spec.NextDraw(0, now.Add(-time.Minute), now)
		}
		st.NextDraws[spec.ID] = NextDraw{ID: id, At: at}
	}
	return st, nil
}
