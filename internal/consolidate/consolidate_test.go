package consolidate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/ledger"
	"github.com/GaboAzorin/lotus-2026/internal/lock"
	"github.com/GaboAzorin/lotus-2026/internal/queue"
	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	require.NoError(t, os.MkdirAll(cfg.QueueDir(), 0o755))
	return cfg
}

func testTicket(id int64, algorithm string) ticket.Ticket {
	return ticket.Ticket{
		ID:          id,
		GeneratedAt: time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC),
		Game:        "LOTO",
		Numbers:     []int{3, 9, 14, 22, 31, 40},
		TargetDraw:  5000,
		Status:      ticket.StatusPending,
		Algorithm:   algorithm,
		Note:        ticket.NoteNormal,
	}
}

func TestRunMergesQueueIntoLedger(t *testing.T) {
	cfg := testConfig(t)
	q := queue.New(cfg.QueueDir())
	require.NoError(t, q.Enqueue(testTicket(101, "positional_freq")))
	require.NoError(t, q.Enqueue(testTicket(102, "markov_chain")))

	report, err := New(cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 2, report.Merged)
	assert.Equal(t, 2, report.LedgerSize)

	// Consumed files are gone.
	entries, _, err := q.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	led := ledger.Load(cfg.LedgerPath())
	assert.Equal(t, 2, led.Len())
}

func TestRunDuplicateIDLastWriteWins(t *testing.T) {
	cfg := testConfig(t)
	q := queue.New(cfg.QueueDir())

	require.NoError(t, q.Enqueue(testTicket(101, "positional_freq")))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(testTicket(102, "markov_chain")))
	time.Sleep(10 * time.Millisecond)

	// Same id queued again with different content: the later file must win.
	updated := testTicket(101, "dna_gaussian")
	updated.Numbers = []int{1, 5, 12, 19, 27, 35}
	require.NoError(t, q.Enqueue(updated))

	report, err := New(cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 3, report.Merged)
	assert.Equal(t, 2, report.LedgerSize)

	led := ledger.Load(cfg.LedgerPath())
	got, ok := led.Get(101)
	require.True(t, ok)
	assert.Equal(t, "dna_gaussian", got.Algorithm)
	assert.Equal(t, []int{1, 5, 12, 19, 27, 35}, got.Numbers)
}

func TestRunRefreshesDashboardCache(t *testing.T) {
	cfg := testConfig(t)
	q := queue.New(cfg.QueueDir())
	require.NoError(t, q.Enqueue(testTicket(101, "positional_freq")))

	_, err := New(cfg).Run()
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.DashboardPath())
	require.NoError(t, err)

	var cached []ticket.Ticket
	require.NoError(t, json.Unmarshal(data, &cached))
	require.Len(t, cached, 1)
	assert.Equal(t, int64(101), cached[0].ID)
	assert.Equal(t, ticket.StatusPending, cached[0].Status)
}

func TestRunLockTimeoutTouchesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lock.TimeoutSeconds = 1

	q := queue.New(cfg.QueueDir())
	require.NoError(t, q.Enqueue(testTicket(101, "positional_freq")))

	holder := lock.New(cfg.LockPath(), time.Second)
	require.NoError(t, holder.Acquire())
	defer holder.Release()

	_, err := New(cfg).Run()
	assert.ErrorIs(t, err, ErrLockTimeout)

	// No ledger written, queue intact.
	_, statErr := os.Stat(cfg.LedgerPath())
	assert.True(t, os.IsNotExist(statErr))
	entries, _, err := q.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunSkipsMalformedQueueFiles(t *testing.T) {
	cfg := testConfig(t)
	q := queue.New(cfg.QueueDir())
	require.NoError(t, q.Enqueue(testTicket(101, "positional_freq")))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.QueueDir(), "ticket_garbage.json"), []byte("{not json"), 0o644))

	report, err := New(cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 1, report.Skipped)

	// The malformed file stays put for a human to look at.
	_, statErr := os.Stat(filepath.Join(cfg.QueueDir(), "ticket_garbage.json"))
	assert.NoError(t, statErr)
}

func TestRunEmptyQueueIsANoOp(t *testing.T) {
	cfg := testConfig(t)
	report, err := New(cfg).Run()
	require.NoError(t, err)
	assert.Zero(t, report.Merged)
	_, statErr := os.Stat(cfg.LedgerPath())
	assert.True(t, os.IsNotExist(statErr))
}
