// Package ledger stores the durable table of all consolidated tickets as a
// CSV file keyed by ticket id. The file is rewritten wholesale through an
// atomic rename; scoring passes take a backup copy first.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/fsio"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

// Ledger is an in-memory snapshot of the ticket table plus its file path.
type Ledger struct {
	path    string
	tickets map[int64]ticket.Ticket
}

// Load reads the ledger from path. A missing or unreadable file yields an
// empty ledger with a warning; individual malformed rows are skipped.
func Load(path string) *Ledger {
	l := &Ledger{path: path, tickets: map[int64]ticket.Ticket{}}

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Str("path", path).Err(err).Msg("ledger unreadable, starting empty")
		}
		return l
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("ledger row unreadable, skipping")
			continue
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == ticket.CSVHeader[0] {
				continue // header
			}
		}
		t, err := ticket.UnmarshalCSV(row)
		if err != nil {
			log.Warn().Err(err).Msg("malformed ledger row, skipping")
			continue
		}
		l.tickets[t.ID] = t
	}
	return l
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Len returns the number of tickets in the snapshot.
func (l *Ledger) Len() int { return len(l.tickets) }

// Get returns the ticket with the given id.
func (l *Ledger) Get(id int64) (ticket.Ticket, bool) {
	t, ok := l.tickets[id]
	return t, ok
}

// Put inserts or replaces a ticket. Later writes win, which is what makes
// re-consolidation of the same id idempotent.
func (l *Ledger) Put(t ticket.Ticket) {
	l.tickets[t.ID] = t
}

// All returns every ticket ordered by id.
func (l *Ledger) All() []ticket.Ticket {
	out := make([]ticket.Ticket, 0, len(l.tickets))
	for _, t := range l.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Save writes the snapshot back to disk atomically.
func (l *Ledger) Save() error {
	return fsio.WriteAtomic(l.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(ticket.CSVHeader); err != nil {
			return err
		}
		for _, t := range l.All() {
			if err := cw.Write(t.MarshalCSV()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// Backup copies the current on-disk ledger to path+".backup". Missing
// ledger files are not an error: there is nothing to protect yet.
func (l *Ledger) Backup() error {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return nil
	}
	if err := fsio.CopyFile(l.path, l.path+".backup"); err != nil {
		return fmt.Errorf("ledger backup: %w", err)
	}
	return nil
}
