package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GaboAzorin/lotus-2026/internal/ledger"
	"github.com/GaboAzorin/lotus-2026/internal/queue"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

func cacheTicket(id int64, status ticket.Status) ticket.Ticket {
	return ticket.Ticket{
		ID:          id,
		GeneratedAt: time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC),
		Game:        "LOTO",
		Numbers:     []int{3, 9, 14, 22, 31, 40},
		TargetDraw:  5000,
		Status:      status,
		Algorithm:   "consensus",
		Note:        ticket.NoteNormal,
	}
}

func readCache(t *testing.T, path string) []ticket.Ticket {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []ticket.Ticket
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRefreshMergesLedgerAndQueue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.json")

	led := ledger.Load(filepath.Join(dir, "ledger.csv"))
	led.Put(cacheTicket(1, ticket.StatusAudited))
	led.Put(cacheTicket(2, ticket.StatusPending))

	q := queue.New(filepath.Join(dir, "queue"))
	require.NoError(t, os.MkdirAll(q.Dir(), 0o755))
	require.NoError(t, q.Enqueue(cacheTicket(3, ticket.StatusPending)))
	// Same id in ledger and queue: the ledger row wins.
	require.NoError(t, q.Enqueue(cacheTicket(2, ticket.StatusAudited)))

	require.NoError(t, Refresh(path, led, q))

	cached := readCache(t, path)
	require.Len(t, cached, 3)
	byID := map[int64]ticket.Ticket{}
	for _, c := range cached {
		byID[c.ID] = c
	}
	assert.Equal(t, ticket.StatusPending, byID[2].Status)
	assert.Contains(t, byID, int64(3))
}

func TestApplyAuditsUpdatesChangedEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.json")

	led := ledger.Load(filepath.Join(dir, "ledger.csv"))
	led.Put(cacheTicket(1, ticket.StatusPending))
	led.Put(cacheTicket(2, ticket.StatusPending))
	q := queue.New(filepath.Join(dir, "queue"))
	require.NoError(t, os.MkdirAll(q.Dir(), 0o755))
	require.NoError(t, Refresh(path, led, q))

	audited := cacheTicket(1, ticket.StatusAudited)
	audited.Hits = 4
	audited.Score = 40
	require.NoError(t, ApplyAudits(path, []ticket.Ticket{audited}))

	cached := readCache(t, path)
	for _, c := range cached {
		if c.ID == 1 {
			assert.Equal(t, ticket.StatusAudited, c.Status)
			assert.Equal(t, 4, c.Hits)
		}
		if c.ID == 2 {
			assert.Equal(t, ticket.StatusPending, c.Status)
		}
	}
}

func TestApplyAuditsMissingCacheIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	require.NoError(t, ApplyAudits(path, []ticket.Ticket{cacheTicket(1, ticket.StatusAudited)}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestApplyAuditsCorruptCacheIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	require.NoError(t, os.WriteFile(path, []byte("][ broken"), 0o644))
	require.NoError(t, ApplyAudits(path, []ticket.Ticket{cacheTicket(1, ticket.StatusAudited)}))

	// Untouched: the next Refresh rebuilds it.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "][ broken", string(data))
}
