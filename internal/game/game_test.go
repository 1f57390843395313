package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogAndLookup(t *testing.T) {
	require.Len(t, Catalog(), 4)

	loto, err := Lookup("LOTO")
	require.NoError(t, err)
	assert.Equal(t, KindSet, loto.Kind)
	assert.Equal(t, 6, loto.Balls)
	assert.True(t, loto.Wildcard)

	loto3, err := Lookup("LOTO3")
	require.NoError(t, err)
	assert.Equal(t, KindPositional, loto3.Kind)
	assert.Equal(t, 0, loto3.Min)
	assert.Equal(t, 9, loto3.Max)

	_, err = Lookup("KENO")
	assert.Error(t, err)
}

func TestSumBounds(t *testing.T) {
	loto, _ := Lookup("LOTO")
	assert.Equal(t, 21, loto.MinSum())  // 1+2+3+4+5+6
	assert.Equal(t, 231, loto.MaxSum()) // 36..41

	loto3, _ := Lookup("LOTO3")
	assert.Equal(t, 0, loto3.MinSum()) // digits repeat
	assert.Equal(t, 27, loto3.MaxSum())
}

func TestInRange(t *testing.T) {
	loto4, _ := Lookup("LOTO4")
	assert.True(t, loto4.InRange([]int{1, 12, 20, 25}))
	assert.False(t, loto4.InRange([]int{0, 12, 20, 25}))
	assert.False(t, loto4.InRange([]int{1, 12, 20, 26}))
}

func TestMeasure(t *testing.T) {
	loto, _ := Lookup("LOTO")
	m := loto.Measure([]int{2, 3, 4, 20, 21, 41})

	assert.Equal(t, 91, m.Sum)
	assert.Equal(t, 3, m.EvenCount)   // 2, 4, 20
	assert.Equal(t, 3, m.Consecutive) // 2-3, 3-4, 20-21
	assert.Equal(t, 5, m.LowCount)    // cutoff (1+41)/2 = 21
	assert.Equal(t, 5, m.EndingDigits) // 2,3,4,0,1 (21 and 41 share 1)
	assert.Equal(t, 3, m.PrimeCount)  // 2, 3, 41
	assert.InDelta(t, 7.8, m.AvgGap, 0.001)
}

func TestNextDrawWalksSchedule(t *testing.T) {
	loto, _ := Lookup("LOTO") // Tue/Thu/Sun at 21:00

	// Anchor: draw 5000 on Sunday 2026-08-30 21:00. Asking on Monday noon
	// must project Tuesday's draw, id 5001.
	anchorAt := time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	id, at := loto.NextDraw(5000, anchorAt, now)
	assert.Equal(t, int64(5001), id)
	assert.Equal(t, time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC), at)
	assert.Equal(t, time.Tuesday, at.Weekday())
}

func TestNextDrawSkipsMultipleSlots(t *testing.T) {
	loto3, _ := Lookup("LOTO3") // daily at 14, 18, 21

	// Anchor Friday 14:00; asking Saturday 19:30 skips Fri 18, Fri 21,
	// Sat 14, Sat 18 and lands on Sat 21:00 as the fifth slot.
	anchorAt := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 29, 19, 30, 0, 0, time.UTC)

	id, at := loto3.NextDraw(900, anchorAt, now)
	assert.Equal(t, int64(905), id)
	assert.Equal(t, time.Date(2026, 8, 29, 21, 0, 0, 0, time.UTC), at)
}

func TestNextDrawColdStart(t *testing.T) {
	racha, _ := Lookup("RACHA") // daily at 15, 22
	now := time.Date(2026, 8, 31, 16, 0, 0, 0, time.UTC)

	id, at := racha.NextDraw(0, now.Add(-time.Minute), now)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 22, at.Hour())
	assert.True(t, at.After(now))
}

func TestIsPrime(t *testing.T) {
	assert.True(t, IsPrime(2))
	assert.True(t, IsPrime(41))
	assert.False(t, IsPrime(1))
	assert.False(t, IsPrime(4))
	assert.False(t, IsPrime(0))
}
