// Package game defines the lottery game catalog: ball ranges, draw
// schedules, physical bounds and the structural metrics used by the
// morphology layer.
package game

import (
	"fmt"
	"sort"
	"time"
)

// Kind distinguishes positional games (ordered digits, repetition allowed)
// from set games (unordered, no repetition).
type Kind string

const (
	KindSet        Kind = "SET"
	KindPositional Kind = "POSITIONAL"
)

// Spec describes one game's physical rules.
type Spec struct {
	ID          string
	Kind        Kind
	Balls       int // numbers per ticket
	Min         int // lowest drawable number
	Max         int // highest drawable number
	Wildcard    bool
	VetoLimit   float64 // morphology deviation threshold
	Weekdays    []time.Weekday
	Hours       []int // draw hours, local time
}

// Catalog returns the supported games. The set is fixed: these are the four
// games the pipeline was built around.
func Catalog() []Spec {
	return []Spec{
		{
			ID: "LOTO", Kind: KindSet, Balls: 6, Min: 1, Max: 41,
			Wildcard: true, VetoLimit: 40,
			Weekdays: []time.Weekday{time.Tuesday, time.Thursday, time.Sunday},
			Hours:    []int{21},
		},
		{
			ID: "LOTO3", Kind: KindPositional, Balls: 3, Min: 0, Max: 9,
			VetoLimit: 8,
			Weekdays:  allWeekdays(),
			Hours:     []int{14, 18, 21},
		},
		{
			ID: "LOTO4", Kind: KindSet, Balls: 4, Min: 1, Max: 25,
			VetoLimit: 20,
			Weekdays:  allWeekdays(),
			Hours:     []int{14, 21},
		},
		{
			ID: "RACHA", Kind: KindSet, Balls: 10, Min: 1, Max: 20,
			VetoLimit: 30,
			Weekdays:  allWeekdays(),
			Hours:     []int{15, 22},
		},
	}
}

// Lookup returns the spec for a game id.
func Lookup(id string) (Spec, error) {
	for _, s := range Catalog() {
		if s.ID == id {
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("unknown game %q", id)
}

func allWeekdays() []time.Weekday {
	return []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
}

// MinSum returns the lowest sum a valid ticket can have.
func (s Spec) MinSum() int {
	if s.Kind == KindPositional {
		return s.Balls * s.Min
	}
	// lowest n distinct values
	sum := 0
	for i := 0; i < s.Balls; i++ {
		sum += s.Min + i
	}
	return sum
}

// MaxSum returns the highest sum a valid ticket can have.
func (s Spec) MaxSum() int {
	if s.Kind == KindPositional {
		return s.Balls * s.Max
	}
	sum := 0
	for i := 0; i < s.Balls; i++ {
		sum += s.Max - i
	}
	return sum
}

// LowCutoff is the midpoint used for the low/high split metric.
func (s Spec) LowCutoff() int {
	return (s.Min + s.Max) / 2
}

// InRange reports whether every number is drawable in this game.
func (s Spec) InRange(nums []int) bool {
	for _, n := range nums {
		if n < s.Min || n > s.Max {
			return false
		}
	}
	return true
}

var primes = map[int]bool{
	2: true, 3: true, 5: true, 7: true, 11: true, 13: true, 17: true,
	19: true, 23: true, 29: true, 31: true, 37: true, 41: true,
}

// IsPrime reports whether n is in the drawable prime set.
func IsPrime(n int) bool { return primes[n] }

// Metrics captures the structural shape of one number set. All values are
// computed over the sorted set.
type Metrics struct {
	Sum          int
	EvenCount    int
	Consecutive  int // adjacent pairs differing by exactly 1
	LowCount     int // values at or below the game midpoint
	EndingDigits int // distinct last digits
	PrimeCount   int
	AvgGap       float64 // mean difference between sorted neighbors
}

// Measure computes the morphology metrics of nums under this game's rules.
func (s Spec) Measure(nums []int) Metrics {
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)

	var m Metrics
	endings := map[int]bool{}
	for i, n := range sorted {
		m.Sum += n
		if n%2 == 0 {
			m.EvenCount++
		}
		if n <= s.LowCutoff() {
			m.LowCount++
		}
		if IsPrime(n) {
			m.PrimeCount++
		}
		endings[n%10] = true
		if i > 0 && sorted[i] == sorted[i-1]+1 {
			m.Consecutive++
		}
	}
	m.EndingDigits = len(endings)
	if len(sorted) > 1 {
		m.AvgGap = float64(sorted[len(sorted)-1]-sorted[0]) / float64(len(sorted)-1)
	}
	return m
}

// NextDraw projects the first draw slot strictly after now, walking forward
// from the last known draw (anchor). Returns the projected draw id and time.
// With no usable anchor the caller should pass id 0 and a time shortly in
// the past; the walk then yields the next real slot with id 1.
func (s Spec) NextDraw(anchorID int64, anchorAt, now time.Time) (int64, time.Time) {
	cursorID := anchorID
	cursor := anchorAt

	for steps := 0; cursor.Before(now) || cursor.Equal(now); steps++ {
		if steps > 1000 {
			break
		}
		next, ok := s.nextSlotAfter(cursor)
		if !ok {
			break
		}
		cursor = next
		cursorID++
	}
	return cursorID, cursor
}

// nextSlotAfter finds the first scheduled slot strictly after t, scanning at
// most eight days ahead.
func (s Spec) nextSlotAfter(t time.Time) (time.Time, bool) {
	for extra := 0; extra <= 8; extra++ {
		day := t.AddDate(0, 0, extra)
		if !s.drawsOn(day.Weekday()) {
			continue
		}
		for _, h := range s.Hours {
			slot := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, t.Location())
			if slot.After(t) {
				return slot, true
			}
		}
	}
	return time.Time{}, false
}

func (s Spec) drawsOn(d time.Weekday) bool {
	for _, w := range s.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}
