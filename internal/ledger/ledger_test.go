package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GaboAzorin/lotus-2026/internal/ticket"
)

func sample(id int64) ticket.Ticket {
	return ticket.Ticket{
		ID:          id,
		GeneratedAt: time.Date(2026, 8, 29, 22, 0, 0, 0, time.UTC),
		Game:        "RACHA",
		Numbers:     []int{1, 3, 5, 7, 9, 11, 13, 15, 17, 19},
		TargetDraw:  880,
		Status:      ticket.StatusPending,
		Algorithm:   "markov_chain",
		Note:        ticket.NoteNormal,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")

	l := Load(path)
	assert.Zero(t, l.Len())
	l.Put(sample(1))
	audited := sample(2)
	audited.Status = ticket.StatusAudited
	audited.Hits = 7
	audited.Score = 50
	l.Put(audited)
	require.NoError(t, l.Save())

	got := Load(path)
	require.Equal(t, 2, got.Len())
	first, ok := got.Get(1)
	require.True(t, ok)
	assert.Equal(t, sample(1), first)
	second, ok := got.Get(2)
	require.True(t, ok)
	assert.Equal(t, ticket.StatusAudited, second.Status)
	assert.Equal(t, 7, second.Hits)
}

func TestPutLaterWins(t *testing.T) {
	l := Load(filepath.Join(t.TempDir(), "ledger.csv"))
	l.Put(sample(5))
	updated := sample(5)
	updated.Algorithm = "consensus"
	l.Put(updated)

	assert.Equal(t, 1, l.Len())
	got, _ := l.Get(5)
	assert.Equal(t, "consensus", got.Algorithm)
}

func TestLoadSkipsCorruptRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l := Load(path)
	l.Put(sample(1))
	require.NoError(t, l.Save())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not,a,ticket\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got := Load(path)
	assert.Equal(t, 1, got.Len())
}

func TestAllSortedByID(t *testing.T) {
	l := Load(filepath.Join(t.TempDir(), "ledger.csv"))
	l.Put(sample(30))
	l.Put(sample(10))
	l.Put(sample(20))

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, int64(10), all[0].ID)
	assert.Equal(t, int64(20), all[1].ID)
	assert.Equal(t, int64(30), all[2].ID)
}

func TestBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l := Load(path)

	// Nothing on disk yet: backup is a no-op, not an error.
	require.NoError(t, l.Backup())

	l.Put(sample(1))
	require.NoError(t, l.Save())
	require.NoError(t, l.Backup())

	backup := Load(path + ".backup")
	assert.Equal(t, 1, backup.Len())
}
