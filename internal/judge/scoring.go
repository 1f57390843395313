package judge

import (
	"github.com/GaboAzorin/lotus-2026/internal/game"
	"github.com/GaboAzorin/lotus-2026/internal/results"
)

// Hits counts matched numbers. Positional games consume each matched value
// so a repeated digit cannot double-count; set games intersect.
func Hits(spec game.Spec, prediction []int, drawn []int) int {
	if spec.Kind == game.KindPositional {
		remaining := append([]int(nil), drawn...)
		hits := 0
		for _, p := range prediction {
			for i, r := range remaining {
				if p == r {
					hits++
					remaining = append(remaining[:i], remaining[i+1:]...)
					break
				}
			}
		}
		return hits
	}
	drawnSet := map[int]bool{}
	for _, n := range drawn {
		drawnSet[n] = true
	}
	hits := 0
	for _, p := range prediction {
		if drawnSet[p] {
			hits++
			delete(drawnSet, p)
		}
	}
	return hits
}

// Score applies the game-specific affinity rules, 0-100.
func Score(spec game.Spec, prediction []int, res results.Result) float64 {
	switch spec.ID {
	case "LOTO3":
		return scorePositional3(prediction, res.Numbers)
	case "LOTO4":
		return scoreFourNumber(Hits(spec, prediction, res.Numbers))
	case "RACHA":
		return scoreStreak(Hits(spec, prediction, res.Numbers))
	default:
		wildcardHit := false
		if res.Wildcard != nil {
			for _, p := range prediction {
				if p == *res.Wildcard {
					wildcardHit = true
					break
				}
			}
		}
		return scoreSixWildcard(Hits(spec, prediction, res.Numbers), wildcardHit)
	}
}

// scorePositional3 ranks the 3-digit game's prize tiers: exact order beats
// any-order beats partial position beats terminal digit, with a small
// residual floor that never reaches the terminal tier.
func scorePositional3(p, r []int) float64 {
	if len(p) != 3 || len(r) != 3 {
		return 0
	}
	if p[0] == r[0] && p[1] == r[1] && p[2] == r[2] {
		return 100
	}
	if sameMultiset(p, r) {
		return 60
	}
	if (p[0] == r[0] && p[1] == r[1]) || (p[1] == r[1] && p[2] == r[2]) {
		return 40
	}
	if p[2] == r[2] {
		return 15
	}
	positional := 0
	for i := 0; i < 3; i++ {
		if p[i] == r[i] {
			positional++
		}
	}
	overlap := Hits(game.Spec{Kind: game.KindPositional}, p, r)
	residual := float64(positional*3 + overlap)
	if residual > 10 {
		residual = 10
	}
	return residual
}

func sameMultiset(a, b []int) bool {
	counts := map[int]int{}
	for _, n := range a {
		counts[n]++
	}
	for _, n := range b {
		counts[n]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

// scoreSixWildcard maps the 6-from-41 game's official prize categories
// onto the 0-100 affinity scale.
func scoreSixWildcard(hits int, wildcard bool) float64 {
	switch {
	case hits == 6:
		return 100
	case hits == 5 && wildcard:
		return 85
	case hits == 5:
		return 70
	case hits == 4 && wildcard:
		return 55
	case hits == 4:
		return 40
	case hits == 3 && wildcard:
		return 25
	case hits == 3:
		return 15
	case hits == 2 && wildcard:
		return 10
	default:
		return float64(hits) / 6 * 5
	}
}

func scoreFourNumber(hits int) float64 {
	switch hits {
	case 4:
		return 100
	case 3:
		return 50
	case 2:
		return 20
	default:
		return 0
	}
}

// scoreStreak is strictly monotonic in hit count. An earlier curve scored
// near-zero hits as if they were near-perfect; a prediction that misses
// everything earns nothing.
func scoreStreak(hits int) float64 {
	switch hits {
	case 10:
		return 100
	case 9:
		return 90
	case 8:
		return 75
	case 7:
		return 50
	case 6:
		return 30
	case 5:
		return 15
	case 4:
		return 5
	default:
		return 0
	}
}
