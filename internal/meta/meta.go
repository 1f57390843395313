// Package meta implements the second-order confidence model: a regression
// over audited history predicting how many hits a (game, algorithm, hour,
// shape-score) combination is worth right now. Its output feeds back into
// consensus voting as a bounded trust multiplier.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GaboAzorin/lotus-2026/internal/fsio"
	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

// SchemaVersion is bumped whenever the feature layout changes. A persisted
// model with a different version is a compatibility mismatch: the caller
// retrains once and retries before treating it as fatal.
const SchemaVersion = 2

// featureCount: game id, algorithm id, generation hour, shape score.
const featureCount = 4

// Multiplier bounds and logistic shape. The transform guarantees output in
// [0.5, 3.0] for any finite model output; the earlier linear formula could
// run away with it.
const (
	multiplierFloor = 0.5
	multiplierSpan  = 2.5
	logisticSteep   = 4.0
	logisticCenter  = 0.3
)

// ErrSchemaMismatch reports a persisted model whose layout this build no
// longer understands.
var ErrSchemaMismatch = errors.New("meta model: schema mismatch")

// Model is the trained regression artifact plus the categorical id maps
// that keep training and inference encodings consistent.
type Model struct {
	Schema      int                `json:"schema"`
	Weights     []float64          `json:"weights"` // bias + one per feature
	GameIDs     map[string]float64 `json:"game_ids"`
	AlgoIDs     map[string]float64 `json:"algo_ids"`
	TrainedRows int                `json:"trained_rows"`
	TrainedAt   time.Time          `json:"trained_at"`
}

// Load reads a model from disk. A missing file returns (nil, nil): no
// model simply means neutral multipliers.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read meta model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode meta model: %w", err)
	}
	if m.Schema != SchemaVersion || len(m.Weights) != featureCount+1 {
		return nil, ErrSchemaMismatch
	}
	return &m, nil
}

// Save persists the model atomically.
func (m *Model) Save(path string) error {
	if err := fsio.WriteJSONAtomic(path, m); err != nil {
		return fmt.Errorf("save meta model: %w", err)
	}
	return nil
}

// Train fits a fresh model on audited tickets. Retraining is wholesale:
// the previous artifact is discarded entirely. Fewer than minRows audited
// rows returns (nil, nil) — not enough history to say anything yet.
func Train(tickets []ticket.Ticket, minRows int) (*Model, error) {
	var audited []ticket.Ticket
	for _, t := range tickets {
		if t.Status == ticket.StatusAudited {
			audited = append(audited, t)
		}
	}
	if len(audited) < minRows {
		log.Info().Int("audited", len(audited)).Int("min", minRows).
			Msg("meta model retrain skipped: not enough audited history")
		return nil, nil
	}

	m := &Model{
		Schema:  SchemaVersion,
		GameIDs: map[string]float64{},
		AlgoIDs: map[string]float64{},
	}
	for _, t := range audited {
		if _, ok := m.GameIDs[t.Game]; !ok {
			m.GameIDs[t.Game] = float64(len(m.GameIDs))
		}
		if _, ok := m.AlgoIDs[t.Algorithm]; !ok {
			m.AlgoIDs[t.Algorithm] = float64(len(m.AlgoIDs))
		}
	}

	rows := make([][]float64, 0, len(audited))
	targets := make([]float64, 0, len(audited))
	for _, t := range audited {
		rows = append(rows, []float64{
			m.GameIDs[t.Game],
			m.AlgoIDs[t.Algorithm],
			float64(t.Hour()),
			t.Score,
		})
		targets = append(targets, float64(t.Hits))
	}

	weights, err := ridgeFit(rows, targets, 1.0)
	if err != nil {
		return nil, fmt.Errorf("meta model fit: %w", err)
	}
	m.Weights = weights
	m.TrainedRows = len(audited)
	m.TrainedAt = time.Now()
	log.Info().Int("rows", m.TrainedRows).Msg("meta model retrained")
	return m, nil
}

// ExpectedHits predicts how many hits the combination is worth. Unknown
// games or algorithms return (0, false): the caller uses a neutral
// multiplier for combinations the model has never seen.
func (m *Model) ExpectedHits(gameID, algorithm string, hour int, shapeScore float64) (float64, bool) {
	gid, ok := m.GameIDs[gameID]
	if !ok {
		return 0, false
	}
	aid, ok := m.AlgoIDs[algorithm]
	if !ok {
		return 0, false
	}
	x := []float64{gid, aid, float64(hour), shapeScore}
	y := m.Weights[0]
	for i, v := range x {
		y += m.Weights[i+1] * v
	}
	return y, true
}

// Multiplier converts a prediction context into the bounded trust factor
// consumed by the aggregator. Always in [0.5, 3.0]; 1.0 when the model is
// nil or the combination is unknown.
func (m *Model) Multiplier(spec game.Spec, algorithm string, hour int, shapeScore float64) float64 {
	if m == nil {
		return 1.0
	}
	expected, ok := m.ExpectedHits(spec.ID, algorithm, hour, shapeScore)
	if !ok || math.IsNaN(expected) || math.IsInf(expected, 0) {
		return 1.0
	}
	normalized := expected / float64(spec.Balls)
	return multiplierFloor + multiplierSpan*sigmoid(logisticSteep*(normalized-logisticCenter))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// ridgeFit solves (XᵀX + λI)w = Xᵀy by Gaussian elimination, with a bias
// column prepended. The damping keeps the tiny system well-conditioned.
func ridgeFit(rows [][]float64, targets []float64, lambda float64) ([]float64, error) {
	n := featureCount + 1
	xtx := make([][]float64, n)
	for i := range xtx {
		xtx[i] = make([]float64, n)
	}
	xty := make([]float64, n)

	for r, row := range rows {
		x := append([]float64{1}, row...)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				xtx[i][j] += x[i] * x[j]
			}
			xty[i] += x[i] * targets[r]
		}
	}
	for i := 1; i < n; i++ { // bias stays undamped
		xtx[i][i] += lambda
	}
	return solve(xtx, xty)
}

func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular system")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	w := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * w[c]
		}
		w[r] = sum / a[r][r]
	}
	return w, nil
}
