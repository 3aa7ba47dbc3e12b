package solver

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// BenchPattern is the sorted set of rotation indices at which one player
// sits out.
type BenchPattern []int

// patternValid reports whether a sorted pattern respects the consecutive
// bench limit. Each adjacent pair of indices inside the same period earns
// one unit of slack, so splitting a period into sub-rotations never
// tightens the rest rule.
func patternValid(sorted BenchPattern, totalRotations, maxConsecutive int, rotationPeriods []int) bool {
	if maxConsecutive >= totalRotations {
		return true
	}
	run := 1
	slack := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1]+1 {
			run++
			if rotationPeriods != nil && rotationPeriods[sorted[i]] == rotationPeriods[sorted[i-1]] {
				slack++
			}
			if run > maxConsecutive+slack {
				return false
			}
		} else {
			run = 1
			slack = 0
		}
	}
	return true
}

// GenerateBenchPatterns enumerates every rotation-index subset of size
// benchCount that avoids cannotBench, contains all of mustBench, and passes
// the consecutive-bench check.
func GenerateBenchPatterns(
	totalRotations, benchCount int,
	cannotBench, mustBench map[int]bool,
	maxConsecutive int,
	rotationPeriods []int,
) []BenchPattern {
	if len(mustBench) > benchCount {
		return nil
	}
	for idx := range mustBench {
		if cannotBench[idx] {
			return nil
		}
	}

	var available []int
	for i := 0; i < totalRotations; i++ {
		if !cannotBench[i] && !mustBench[i] {
			available = append(available, i)
		}
	}

	remaining := benchCount - len(mustBench)
	if remaining < 0 || remaining > len(available) {
		return nil
	}

	mustSorted := make([]int, 0, len(mustBench))
	for idx := range mustBench {
		mustSorted = append(mustSorted, idx)
	}
	sort.Ints(mustSorted)

	var results []BenchPattern
	chosen := make([]int, 0, remaining)

	var choose func(start int)
	choose = func(start int) {
		if len(chosen) == remaining {
			full := make(BenchPattern, 0, benchCount)
			full = append(full, mustSorted...)
			full = append(full, chosen...)
			sort.Ints(full)
			if patternValid(full, totalRotations, maxConsecutive, rotationPeriods) {
				results = append(results, full)
			}
			return
		}
		needed := remaining - len(chosen)
		for i := start; i <= len(available)-needed; i++ {
			chosen = append(chosen, available[i])
			choose(i + 1)
			chosen = chosen[:len(chosen)-1]
		}
	}
	choose(0)
	return results
}

// calculateBenchCounts derives each player's target bench count. Without
// skill balance the total bench budget splits evenly (remainder to weaker
// players); with skill balance, counts are weighted by inverse skill so
// weaker players bench more, then adjusted until the total matches the
// budget exactly.
func calculateBenchCounts(
	players []types.Player,
	totalRotations, benchSlotsPerRotation int,
	config types.GameConfig,
) map[string]int {
	totalBenchSlots := totalRotations * benchSlotsPerRotation
	counts := make(map[string]int, len(players))

	if !config.SkillBalance {
		perPlayer := totalBenchSlots / len(players)
		remainder := totalBenchSlots - perPlayer*len(players)
		sorted := make([]types.Player, len(players))
		copy(sorted, players)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].SkillRanking < sorted[j].SkillRanking
		})
		for i, p := range sorted {
			counts[p.ID] = perPlayer
			if i < remainder {
				counts[p.ID]++
			}
		}
		return counts
	}

	const maxRank = 5
	type weighted struct {
		player types.Player
		weight int
	}
	entries := make([]weighted, len(players))
	totalWeight := 0
	for i, p := range players {
		w := maxRank + 1 - p.SkillRanking
		entries[i] = weighted{player: p, weight: w}
		totalWeight += w
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].weight > entries[j].weight
	})

	ceiling := totalRotations
	if config.EnforceMinPlayTime {
		ceiling = int(math.Floor(float64(totalRotations) * (1 - config.MinPlayPercentage/100)))
	}

	assigned := 0
	for _, e := range entries {
		benchCount := int(math.Round(float64(e.weight) / float64(totalWeight) * float64(totalBenchSlots)))
		if benchCount > ceiling {
			benchCount = ceiling
		}
		if benchCount < 0 {
			benchCount = 0
		}
		counts[e.player.ID] = benchCount
		assigned += benchCount
	}

	diff := totalBenchSlots - assigned
	adjustOrder := make([]weighted, len(entries))
	copy(adjustOrder, entries)
	if diff < 0 {
		sort.SliceStable(adjustOrder, func(i, j int) bool {
			return adjustOrder[i].weight < adjustOrder[j].weight
		})
	}
	for idx := 0; diff != 0 && idx <= len(adjustOrder)*totalRotations; idx++ {
		e := adjustOrder[idx%len(adjustOrder)]
		current := counts[e.player.ID]
		if diff > 0 && current < ceiling {
			counts[e.player.ID] = current + 1
			diff--
		} else if diff < 0 && current > 0 {
			counts[e.player.ID] = current - 1
			diff++
		}
	}
	return counts
}

// playerConstraints pairs a player with their bench-set bounds for search.
type playerConstraints struct {
	player      types.Player
	cannotBench map[int]bool
	mustBench   map[int]bool
}

func oneBasedRotations(indices []int) string {
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, idx := range sorted {
		parts[i] = fmt.Sprintf("R%d", idx+1)
	}
	return strings.Join(parts, ", ")
}

func setToSlice(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// describePatternFailure explains why no bench pattern exists for a player,
// from most to least specific cause.
func describePatternFailure(
	pc playerConstraints,
	targetBenchCount, totalRotations, maxConsecutive int,
	rotationPeriods []int,
) string {
	var overlap []int
	for idx := range pc.mustBench {
		if pc.cannotBench[idx] {
			overlap = append(overlap, idx)
		}
	}
	if len(overlap) > 0 {
		return fmt.Sprintf("%s: conflict on %s (must bench and cannot bench)", pc.player.Name, oneBasedRotations(overlap))
	}

	availableSlots := totalRotations - len(pc.cannotBench)
	if targetBenchCount > availableSlots {
		return fmt.Sprintf("%s: needs %d bench rotations but can only bench in %d", pc.player.Name, targetBenchCount, availableSlots)
	}

	atMustOnly := GenerateBenchPatterns(totalRotations, len(pc.mustBench), pc.cannotBench, pc.mustBench, maxConsecutive, rotationPeriods)
	if len(atMustOnly) == 0 {
		return fmt.Sprintf("%s: required bench rotations (%s) violate current constraints", pc.player.Name, oneBasedRotations(setToSlice(pc.mustBench)))
	}

	return fmt.Sprintf("%s: no valid bench pattern fits the current constraints", pc.player.Name)
}

// findRotationCapacityConflicts reports rotations whose forced benches
// exceed the budget or whose benchable pool falls short of it.
func findRotationCapacityConflicts(
	constraints []playerConstraints,
	totalRotations, benchSlotsPerRotation int,
) []string {
	var conflicts []string
	for rot := 0; rot < totalRotations; rot++ {
		forcedCount := 0
		canBenchCount := 0
		var forcedNames []string
		for _, pc := range constraints {
			if pc.mustBench[rot] {
				forcedCount++
				forcedNames = append(forcedNames, pc.player.Name)
			}
			if !pc.cannotBench[rot] {
				canBenchCount++
			}
		}
		if forcedCount > benchSlotsPerRotation {
			conflicts = append(conflicts, fmt.Sprintf("R%d: %d players are forced to bench (max allowed %d), forced: %s",
				rot+1, forcedCount, benchSlotsPerRotation, strings.Join(forcedNames, ", ")))
		} else if canBenchCount < benchSlotsPerRotation {
			conflicts = append(conflicts, fmt.Sprintf("R%d: only %d players can bench, but %d bench slots are required",
				rot+1, canBenchCount, benchSlotsPerRotation))
		}
	}
	return conflicts
}
