// Package results reads the authoritative draw-result feed. Results are
// external facts: this package only parses them into memory, keyed by
// (game, draw id). Acquisition of the files is someone else's job.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/game"
)

// Result is one published draw outcome.
type Result struct {
	Game     string
	Draw     int64
	At       time.Time
	Numbers  []int // ordered for positional games, sorted for set games
	Wildcard *int
}

// Store holds every known result in memory.
type Store struct {
	byGame map[string]map[int64]Result
}

// LoadDir reads one CSV per game from dir (e.g. results/LOTO.csv).
// Missing files mean the game simply has no feed yet. Malformed rows are
// skipped with a warning.
func LoadDir(dir string) (*Store, error) {
	s := &Store{byGame: map[string]map[int64]Result{}}
	for _, spec := range game.Catalog() {
		path := filepath.Join(dir, spec.ID+".csv")
		if err := s.loadFile(spec, path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) loadFile(spec game.Spec, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open results %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	m := map[int64]Result{}
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Str("game", spec.ID).Err(err).Msg("unreadable result row, skipping")
			continue
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == "draw" {
				continue
			}
		}
		res, err := parseRow(spec, row)
		if err != nil {
			log.Warn().Str("game", spec.ID).Err(err).Msg("malformed result row, skipping")
			continue
		}
		m[res.Draw] = res
	}
	s.byGame[spec.ID] = m
	log.Info().Str("game", spec.ID).Int("draws", len(m)).Msg("results loaded")
	return nil
}

// Row layout: draw, date(RFC3339), n1..nN [, wildcard].
func parseRow(spec game.Spec, row []string) (Result, error) {
	want := 2 + spec.Balls
	if spec.Wildcard {
		want++
	}
	if len(row) < want {
		return Result{}, fmt.Errorf("row has %d columns, want %d", len(row), want)
	}
	draw, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Result{}, fmt.Errorf("bad draw id %q: %w", row[0], err)
	}
	at, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return Result{}, fmt.Errorf("bad date %q: %w", row[1], err)
	}
	nums := make([]int, 0, spec.Balls)
	for i := 0; i < spec.Balls; i++ {
		n, err := strconv.Atoi(row[2+i])
		if err != nil {
			return Result{}, fmt.Errorf("bad number %q: %w", row[2+i], err)
		}
		nums = append(nums, n)
	}
	if !spec.InRange(nums) {
		return Result{}, fmt.Errorf("draw %d: numbers out of range", draw)
	}
	res := Result{Game: spec.ID, Draw: draw, At: at, Numbers: nums}
	if spec.Wildcard {
		w, err := strconv.Atoi(row[2+spec.Balls])
		if err != nil {
			return Result{}, fmt.Errorf("bad wildcard %q: %w", row[2+spec.Balls], err)
		}
		res.Wildcard = &w
	}
	if spec.Kind == game.KindSet {
		sort.Ints(res.Numbers)
	}
	return res, nil
}

// Lookup returns the result for (game, draw).
func (s *Store) Lookup(gameID string, draw int64) (Result, bool) {
	m, ok := s.byGame[gameID]
	if !ok {
		return Result{}, false
	}
	r, ok := m[draw]
	return r, ok
}

// History returns every draw's numbers for a game, ordered by draw id.
// Predictors consume this as their training matrix.
func (s *Store) History(gameID string) [][]int {
	m := s.byGame[gameID]
	draws := make([]int64, 0, len(m))
	for d := range m {
		draws = append(draws, d)
	}
	sort.Slice(draws, func(i, j int) bool { return draws[i] < draws[j] })
	out := make([][]int, 0, len(draws))
	for _, d := range draws {
		out = append(out, m[d].Numbers)
	}
	return out
}

// LastDraw returns the most recent known draw for a game, the anchor for
// next-draw projection.
func (s *Store) LastDraw(gameID string) (Result, bool) {
	m := s.byGame[gameID]
	var last Result
	var found bool
	for _, r := range m {
		if !found || r.Draw > last.Draw {
			last = r
			found = true
		}
	}
	return last, found
}
