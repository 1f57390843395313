package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, dir, game, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, game+".csv"), []byte(content), 0o644))
}

func TestLoadDirParsesFeeds(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, "LOTO",
		"draw,date,n1,n2,n3,n4,n5,n6,wildcard\n"+
			"5000,2026-08-30T21:00:00Z,40,3,14,22,9,31,7\n")
	writeFeed(t, dir, "LOTO3",
		"901,2026-08-29T14:00:00Z,4,0,7\n")

	s, err := LoadDir(dir)
	require.NoError(t, err)

	loto, ok := s.Lookup("LOTO", 5000)
	require.True(t, ok)
	// Set games come back sorted.
	assert.Equal(t, []int{3, 9, 14, 22, 31, 40}, loto.Numbers)
	require.NotNil(t, loto.Wildcard)
	assert.Equal(t, 7, *loto.Wildcard)

	// Positional games keep draw order.
	loto3, ok := s.Lookup("LOTO3", 901)
	require.True(t, ok)
	assert.Equal(t, []int{4, 0, 7}, loto3.Numbers)
	assert.Nil(t, loto3.Wildcard)

	_, ok = s.Lookup("LOTO", 4999)
	assert.False(t, ok)
	_, ok = s.Lookup("RACHA", 1)
	assert.False(t, ok)
}

func TestLoadDirSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, "LOTO4",
		"3100,2026-08-30T14:00:00Z,2,9,17,23\n"+
			"3101,yesterday,2,9,17,23\n"+ // bad date
			"3102,2026-08-30T21:00:00Z,2,9,17\n"+ // missing column
			"3103,2026-08-30T21:00:00Z,2,9,17,99\n"+ // out of range
			"3104,2026-08-31T14:00:00Z,1,5,11,25\n")

	s, err := LoadDir(dir)
	require.NoError(t, err)

	_, ok := s.Lookup("LOTO4", 3100)
	assert.True(t, ok)
	_, ok = s.Lookup("LOTO4", 3104)
	assert.True(t, ok)
	for _, bad := range []int64{3101, 3102, 3103} {
		_, ok := s.Lookup("LOTO4", bad)
		assert.False(t, ok, "draw %d should have been skipped", bad)
	}
}

func TestLoadDirMissingFilesAreFine(t *testing.T) {
	s, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	_, ok := s.Lookup("LOTO", 1)
	assert.False(t, ok)
}

func TestHistoryOrderedByDraw(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, "LOTO3",
		"903,2026-08-30T21:00:00Z,1,1,1\n"+
			"901,2026-08-29T14:00:00Z,2,2,2\n"+
			"902,2026-08-29T18:00:00Z,3,3,3\n")

	s, err := LoadDir(dir)
	require.NoError(t, err)

	h := s.History("LOTO3")
	require.Len(t, h, 3)
	assert.Equal(t, []int{2, 2, 2}, h[0])
	assert.Equal(t, []int{3, 3, 3}, h[1])
	assert.Equal(t, []int{1, 1, 1}, h[2])
}

func TestLastDraw(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, "RACHA",
		"880,2026-08-30T15:00:00Z,1,2,3,4,5,6,7,8,9,10\n"+
			"881,2026-08-30T22:00:00Z,11,12,13,14,15,16,17,18,19,20\n")

	s, err := LoadDir(dir)
	require.NoError(t, err)

	last, ok := s.LastDraw("RACHA")
	require.True(t, ok)
	assert.Equal(t, int64(881), last.Draw)

	_, ok = s.LastDraw("LOTO")
	assert.False(t, ok)
}
