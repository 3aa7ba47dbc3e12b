package solver

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fieldtime-dev/rotation-engine/internal/layout"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// ExactSolver finds a feasible, strength-balanced schedule by enumerating
// bench patterns per player and backtracking over their combinations. No
// external solver is involved; intended for small rosters and as a
// verification path for the MIP strategy.
type ExactSolver struct{}

type playerPatternPool struct {
	player   types.Player
	patterns []BenchPattern
}

func searchingMessage(combinations int) string {
	return fmt.Sprintf("searching: %d combinations evaluated", combinations)
}

// Solve implements the Solver interface.
func (ExactSolver) Solve(ctx *Context) (*types.RotationSchedule, error) {
	prepared, err := PrepareConstraints(ctx)
	if err != nil {
		return nil, err
	}

	config := ctx.Config
	totalRotations := ctx.TotalRotations
	benchSlotsPerRotation := ctx.BenchSlotsPerRotation
	rotationPeriods := layout.RotationPeriods(prepared.PeriodDivisions)

	maxConsecutive := totalRotations
	if config.NoConsecutiveBench {
		maxConsecutive = config.MaxConsecutiveBench
	}

	ctx.progress(10, "generating bench patterns")

	benchCounts := calculateBenchCounts(ctx.Players, totalRotations, benchSlotsPerRotation, config)

	constraintsPerPlayer := make([]playerConstraints, len(ctx.Players))
	for i, p := range ctx.Players {
		constraintsPerPlayer[i] = playerConstraints{
			player:      p,
			cannotBench: prepared.CannotBench[p.ID],
			mustBench:   prepared.MustBench[p.ID],
		}
	}

	// Forced bench rotations (goalie rest, hard bench locks) may exceed a
	// player's target; absorb the increase by reducing the most-benched
	// other players first.
	for _, pc := range constraintsPerPlayer {
		required := len(pc.mustBench)
		current := benchCounts[pc.player.ID]
		if required <= current {
			continue
		}
		increase := required - current
		benchCounts[pc.player.ID] = required

		type idCount struct {
			id    string
			count int
		}
		var others []idCount
		for id, count := range benchCounts {
			if id != pc.player.ID {
				others = append(others, idCount{id, count})
			}
		}
		sort.SliceStable(others, func(i, j int) bool { return others[i].count > others[j].count })

		remaining := increase
		for _, other := range others {
			if remaining <= 0 {
				break
			}
			minBench := 0
			for _, oc := range constraintsPerPlayer {
				if oc.player.ID == other.id {
					minBench = len(oc.mustBench)
					break
				}
			}
			reducible := other.count - minBench
			if reducible > 0 {
				reduction := remaining
				if reducible < reduction {
					reduction = reducible
				}
				benchCounts[other.id] = other.count - reduction
				remaining -= reduction
			}
		}
	}

	// First pass: enumerate patterns at the target count, decrementing down
	// to the forced minimum when the target is too tight.
	pools := make([]playerPatternPool, 0, len(constraintsPerPlayer))
	for i, pc := range constraintsPerPlayer {
		target := benchCounts[pc.player.ID]
		if avail := totalRotations - len(pc.cannotBench); target > avail {
			target = avail
		}
		if target < len(pc.mustBench) {
			target = len(pc.mustBench)
		}

		patterns := GenerateBenchPatterns(totalRotations, target, pc.cannotBench, pc.mustBench, maxConsecutive, rotationPeriods)
		for len(patterns) == 0 && target > len(pc.mustBench) {
			target--
			patterns = GenerateBenchPatterns(totalRotations, target, pc.cannotBench, pc.mustBench, maxConsecutive, rotationPeriods)
		}
		if len(patterns) == 0 {
			return nil, infeasiblef("%s", describePatternFailure(pc, target, totalRotations, maxConsecutive, rotationPeriods))
		}
		benchCounts[pc.player.ID] = target
		pools = append(pools, playerPatternPool{player: pc.player, patterns: patterns})

		progress := 10 + (i+1)*9/len(constraintsPerPlayer)
		if progress > 19 {
			progress = 19
		}
		ctx.progress(progress, "generating bench patterns")
	}

	// Redistribute any deficit between the targets and the exact bench-slot
	// budget, weaker players first.
	totalBenchSlots := totalRotations * benchSlotsPerRotation
	currentTotal := 0
	for _, c := range benchCounts {
		currentTotal += c
	}
	deficit := totalBenchSlots - currentTotal

	if deficit > 0 {
		bySkill := make([]playerConstraints, len(constraintsPerPlayer))
		copy(bySkill, constraintsPerPlayer)
		sort.SliceStable(bySkill, func(i, j int) bool {
			return bySkill[i].player.SkillRanking < bySkill[j].player.SkillRanking
		})

		for safety := 0; deficit > 0 && safety < len(ctx.Players)*totalRotations; safety++ {
			progressed := false
			for _, pc := range bySkill {
				if deficit <= 0 {
					break
				}
				current := benchCounts[pc.player.ID]
				if current >= totalRotations-len(pc.cannotBench) {
					continue
				}
				patterns := GenerateBenchPatterns(totalRotations, current+1, pc.cannotBench, pc.mustBench, maxConsecutive, rotationPeriods)
				if len(patterns) == 0 {
					continue
				}
				benchCounts[pc.player.ID] = current + 1
				for pi := range pools {
					if pools[pi].player.ID == pc.player.ID {
						pools[pi].patterns = patterns
						break
					}
				}
				deficit--
				progressed = true
			}
			if !progressed {
				break
			}
		}
	}

	totalCombinations := 1.0
	for _, pool := range pools {
		totalCombinations *= float64(len(pool.patterns))
	}
	ctx.progress(20, fmt.Sprintf("searching %.0f pattern combinations", totalCombinations))

	// Tightest-constrained players first for maximum pruning.
	sort.SliceStable(pools, func(i, j int) bool {
		return len(pools[i].patterns) < len(pools[j].patterns)
	})

	best, err := searchBestBenchSets(ctx, pools, totalRotations, benchSlotsPerRotation)
	if err != nil {
		return nil, err
	}

	if best == nil {
		fallbackPlayers, fallbackSets, err := findFallbackFeasibleBenchSets(ctx, constraintsPerPlayer, totalRotations, benchSlotsPerRotation, maxConsecutive, rotationPeriods)
		if err != nil {
			return nil, err
		}
		if fallbackSets != nil {
			ctx.progress(95, "building schedule")
			return BuildSchedule(fallbackPlayers, fallbackSets, prepared, ctx), nil
		}

		conflicts := findRotationCapacityConflicts(constraintsPerPlayer, totalRotations, benchSlotsPerRotation)
		if len(conflicts) > 0 {
			return nil, infeasiblef("%s", strings.Join(conflicts, "; "))
		}
		return nil, infeasiblef("constraint combination is infeasible; check no-consecutive-bench, minimum play time, and goalie rest settings")
	}

	ctx.progress(95, "building schedule")

	orderedPlayers := make([]types.Player, len(pools))
	for i, pool := range pools {
		orderedPlayers[i] = pool.player
	}
	return BuildSchedule(orderedPlayers, best, prepared, ctx), nil
}

// searchBestBenchSets runs the depth-first backtracking over pattern pools,
// scoring complete assignments by team-strength variance. Returns nil with
// no error when the search space holds no feasible combination.
func searchBestBenchSets(
	ctx *Context,
	pools []playerPatternPool,
	totalRotations, benchSlotsPerRotation int,
) ([]BenchPattern, error) {
	var bestBenchSets []BenchPattern
	bestScore := math.Inf(1)
	combinations := 0
	nodesVisited := 0

	current := make([]BenchPattern, len(pools))
	benchCountPerRotation := make([]int, totalRotations)

	start := time.Now()
	timeout := ctx.searchTimeout(DefaultSearchTimeout)
	lastProgressAt := start
	lastReported := 20

	var search func(depth int) error
	search = func(depth int) error {
		if ctx.cancelled() {
			return ErrCancelled
		}
		if time.Since(start) > timeout && bestBenchSets != nil {
			return nil
		}
		nodesVisited++

		if now := time.Now(); now.Sub(lastProgressAt) >= 300*time.Millisecond {
			elapsed := now.Sub(start)
			timeProgress := 20 + int(elapsed/(300*time.Millisecond))
			nodeProgress := 20 + int(math.Log10(float64(nodesVisited+1))*8)
			progress := lastReported
			if timeProgress > progress {
				progress = timeProgress
			}
			if nodeProgress > progress {
				progress = nodeProgress
			}
			if progress > 88 {
				progress = 88
			}
			lastReported = progress
			ctx.progress(lastReported, searchingMessage(combinations))
			lastProgressAt = now
		}

		if depth == len(pools) {
			for r := 0; r < totalRotations; r++ {
				if benchCountPerRotation[r] != benchSlotsPerRotation {
					return nil
				}
			}
			combinations++
			score := scoreBenchSets(pools, current, totalRotations)
			if score < bestScore {
				bestScore = score
				bestBenchSets = make([]BenchPattern, len(current))
				for i, pattern := range current {
					bestBenchSets[i] = append(BenchPattern(nil), pattern...)
				}
			}
			return nil
		}

		for _, pattern := range pools[depth].patterns {
			valid := true
			for _, rotIndex := range pattern {
				if benchCountPerRotation[rotIndex]+1 > benchSlotsPerRotation {
					valid = false
					break
				}
			}
			if !valid {
				continue
			}

			current[depth] = pattern
			for _, rotIndex := range pattern {
				benchCountPerRotation[rotIndex]++
			}
			err := search(depth + 1)
			for _, rotIndex := range pattern {
				benchCountPerRotation[rotIndex]--
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := search(0); err != nil {
		return nil, err
	}
	return bestBenchSets, nil
}

// scoreBenchSets is the population variance of per-rotation team strength
// implied by the bench sets; lower is more balanced.
func scoreBenchSets(pools []playerPatternPool, benchSets []BenchPattern, totalRotations int) float64 {
	lookups := make([]map[int]bool, len(benchSets))
	for i, pattern := range benchSets {
		set := make(map[int]bool, len(pattern))
		for _, idx := range pattern {
			set[idx] = true
		}
		lookups[i] = set
	}

	strengths := make([]float64, totalRotations)
	var sum float64
	for r := 0; r < totalRotations; r++ {
		var strength float64
		for p := range pools {
			if !lookups[p][r] {
				strength += float64(pools[p].player.SkillRanking)
			}
		}
		strengths[r] = strength
		sum += strength
	}

	avg := sum / float64(totalRotations)
	var variance float64
	for _, s := range strengths {
		variance += (s - avg) * (s - avg)
	}
	return variance / float64(totalRotations)
}

// findFallbackFeasibleBenchSets widens each player's pattern pool to every
// legal bench count and stops at the first feasible combination, ignoring
// balance entirely. Used when the scored search times out with nothing.
func findFallbackFeasibleBenchSets(
	ctx *Context,
	constraints []playerConstraints,
	totalRotations, benchSlotsPerRotation, maxConsecutive int,
	rotationPeriods []int,
) ([]types.Player, []BenchPattern, error) {
	pools := make([]playerPatternPool, len(constraints))
	for i, pc := range constraints {
		pools[i] = playerPatternPool{
			player:   pc.player,
			patterns: patternPoolForPlayer(pc, totalRotations, maxConsecutive, rotationPeriods, ctx.Config),
		}
	}
	sort.SliceStable(pools, func(i, j int) bool {
		return len(pools[i].patterns) < len(pools[j].patterns)
	})
	for _, pool := range pools {
		if len(pool.patterns) == 0 {
			return nil, nil, nil
		}
	}

	benchCountPerRotation := make([]int, totalRotations)
	chosen := make([]BenchPattern, len(pools))
	found := false

	ctx.progress(30, searchingMessage(0))

	var search func(depth int) error
	search = func(depth int) error {
		if found {
			return nil
		}
		if ctx.cancelled() {
			return ErrCancelled
		}

		remainingPlayers := len(pools) - depth
		for r := 0; r < totalRotations; r++ {
			if benchCountPerRotation[r] > benchSlotsPerRotation {
				return nil
			}
			if benchCountPerRotation[r]+remainingPlayers < benchSlotsPerRotation {
				return nil
			}
		}

		if depth == len(pools) {
			for r := 0; r < totalRotations; r++ {
				if benchCountPerRotation[r] != benchSlotsPerRotation {
					return nil
				}
			}
			found = true
			return nil
		}

		for _, pattern := range pools[depth].patterns {
			valid := true
			for _, rotIndex := range pattern {
				if benchCountPerRotation[rotIndex]+1 > benchSlotsPerRotation {
					valid = false
					break
				}
			}
			if !valid {
				continue
			}

			chosen[depth] = pattern
			for _, rotIndex := range pattern {
				benchCountPerRotation[rotIndex]++
			}
			err := search(depth + 1)
			for _, rotIndex := range pattern {
				benchCountPerRotation[rotIndex]--
			}
			if err != nil || found {
				return err
			}
		}
		return nil
	}

	if err := search(0); err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, nil
	}

	players := make([]types.Player, len(pools))
	sets := make([]BenchPattern, len(pools))
	for i, pool := range pools {
		players[i] = pool.player
		sets[i] = append(BenchPattern(nil), chosen[i]...)
	}
	return players, sets, nil
}

// patternPoolForPlayer enumerates patterns at every bench count from the
// forced minimum up to the min-play ceiling.
func patternPoolForPlayer(
	pc playerConstraints,
	totalRotations, maxConsecutive int,
	rotationPeriods []int,
	config types.GameConfig,
) []BenchPattern {
	minBench := len(pc.mustBench)
	maxBench := totalRotations - len(pc.cannotBench)
	if config.EnforceMinPlayTime {
		ceiling := int(math.Floor(float64(totalRotations) * (1 - config.MinPlayPercentage/100)))
		if ceiling < maxBench {
			maxBench = ceiling
		}
	}
	if maxBench < minBench {
		return nil
	}

	var patterns []BenchPattern
	for benchCount := minBench; benchCount <= maxBench; benchCount++ {
		patterns = append(patterns, GenerateBenchPatterns(totalRotations, benchCount, pc.cannotBench, pc.mustBench, maxConsecutive, rotationPeriods)...)
	}
	return patterns
}
