// Package division searches nearby period-division configurations for
// fairer play-time splits. Candidates are ranked analytically from bench
// slot divisibility before any solver runs; the engine trial-solves the
// survivors to confirm real gaps.
package division

import "math"

// Evaluation is the theoretical play-percentage band for one division
// vector, derived purely from bench-slot divisibility.
type Evaluation struct {
	MaxPlayPercent   float64
	MinPlayPercent   float64
	Gap              float64
	ExtraPlayerCount int
}

// GenerateBalancedCandidates enumerates division vectors reachable from
// current by incrementing one unlocked period at a time, keeping the spread
// across all periods at most 1 and each value at most maxPerPeriod. Locked
// periods never change. Output is ordered by total rotations ascending.
func GenerateBalancedCandidates(periods int, current []int, maxPerPeriod int, locked map[int]bool) [][]int {
	working := make([]int, periods)
	for i := 0; i < periods; i++ {
		if i < len(current) {
			working[i] = current[i]
		} else {
			working[i] = 1
		}
	}

	var candidates [][]int
	for {
		minValue := math.MaxInt
		for i := 0; i < periods; i++ {
			if !locked[i] && working[i] < minValue {
				minValue = working[i]
			}
		}
		if minValue == math.MaxInt || minValue >= maxPerPeriod {
			break
		}

		incremented := false
		for i := 0; i < periods; i++ {
			if !locked[i] && working[i] == minValue {
				working[i] = minValue + 1
				incremented = true
				break
			}
		}
		if !incremented {
			break
		}

		maxVal, minVal := working[0], working[0]
		for _, v := range working[1:] {
			if v > maxVal {
				maxVal = v
			}
			if v < minVal {
				minVal = v
			}
		}
		if maxVal-minVal > 1 {
			break
		}

		candidate := make([]int, periods)
		copy(candidate, working)
		candidates = append(candidates, candidate)
	}
	return candidates
}

// EvaluateCandidate computes the min/max play-percentage band implied by
// distributing the total bench slots as evenly as possible: every player
// benches floor(total/players) rotations and `remainder` players bench one
// extra.
func EvaluateCandidate(candidate []int, playerCount, fieldSize int) Evaluation {
	benchSlotsPerRotation := playerCount - fieldSize
	if benchSlotsPerRotation <= 0 {
		return Evaluation{MaxPlayPercent: 100, MinPlayPercent: 100}
	}

	totalRotations := 0
	for _, d := range candidate {
		if d < 1 {
			d = 1
		}
		totalRotations += d
	}
	totalBenchSlots := totalRotations * benchSlotsPerRotation

	perPlayer := totalBenchSlots / playerCount
	remainder := totalBenchSlots % playerCount

	minBenchCount := perPlayer
	maxBenchCount := perPlayer
	if remainder > 0 {
		maxBenchCount++
	}

	maxPlayPercent := roundTenth((1 - float64(minBenchCount)/float64(totalRotations)) * 100)
	minPlayPercent := roundTenth((1 - float64(maxBenchCount)/float64(totalRotations)) * 100)

	extra := 0
	if remainder > 0 {
		extra = playerCount - remainder
	}
	return Evaluation{
		MaxPlayPercent:   maxPlayPercent,
		MinPlayPercent:   minPlayPercent,
		Gap:              roundTenth(maxPlayPercent - minPlayPercent),
		ExtraPlayerCount: extra,
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
