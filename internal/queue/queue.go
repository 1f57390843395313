// Package queue implements the durable ticket queue: one JSON file per
// ticket, uniquely named, written atomically. Producers never coordinate;
// only the consolidator (holding the merge lock) consumes files.
package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/fsio"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

const filePrefix = "ticket_"

// Queue is a handle on the queue directory.
type Queue struct {
	dir string
}

// New returns a queue rooted at dir.
func New(dir string) *Queue {
	return &Queue{dir: dir}
}

// Dir returns the queue directory.
func (q *Queue) Dir() string { return q.dir }

// Enqueue writes one ticket to its own file. The random file id guarantees
// concurrent producers never collide.
func (q *Queue) Enqueue(t ticket.Ticket) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	name := fmt.Sprintf("%s%s.json", filePrefix, uuid.NewString())
	path := filepath.Join(q.dir, name)
	return fsio.WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	})
}

// Entry is one parsed queue file.
type Entry struct {
	Path    string
	ModTime time.Time
	Ticket  ticket.Ticket
}

// List parses every queue file, oldest first, so that when the same ticket
// id was queued twice the most recently written file wins the merge.
// Malformed files are skipped with a warning and reported in the second
// return value; they are never deleted here.
func (q *Queue) List() ([]Entry, []string, error) {
	pattern := filepath.Join(q.dir, filePrefix+"*.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("scan queue: %w", err)
	}

	var entries []Entry
	var skipped []string
	for _, p := range paths {
		t, err := readTicketFile(p)
		if err != nil {
			log.Warn().Str("file", filepath.Base(p)).Err(err).Msg("skipping malformed queue ticket")
			skipped = append(skipped, p)
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			log.Warn().Str("file", filepath.Base(p)).Err(err).Msg("queue ticket vanished while scanning")
			continue
		}
		entries = append(entries, Entry{Path: p, ModTime: info.ModTime(), Ticket: t})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].ModTime.Before(entries[j].ModTime)
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, skipped, nil
}

// Remove deletes consumed queue files. Called only after the merged ledger
// has been durably written.
func (q *Queue) Remove(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			log.Warn().Str("file", filepath.Base(p)).Err(err).Msg("could not delete consumed queue file")
		}
	}
}

func readTicketFile(path string) (ticket.Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("read: %w", err)
	}
	var t ticket.Ticket
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return ticket.Ticket{}, fmt.Errorf("decode: %w", err)
	}
	if err := t.Validate(); err != nil {
		return ticket.Ticket{}, err
	}
	return t, nil
}
