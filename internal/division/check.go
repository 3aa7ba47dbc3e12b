package division

import (
	"github.com/fieldtime-dev/rotation-engine/internal/layout"
	"github.com/fieldtime-dev/rotation-engine/internal/solver"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

const (
	// MinGapImprovementPP is the smallest play-percentage gap reduction
	// worth suggesting to a coach.
	MinGapImprovementPP = 5.0

	maxPerPeriod = 2
)

// Option is one candidate division vector with its expected outcome. The
// expected fields start as analytic estimates and are replaced with solved
// values after a trial solve.
type Option struct {
	PeriodDivisions       []int
	ExpectedGap           float64
	ExpectedMaxPercent    float64
	ExpectedMinPercent    float64
	ExpectedExtraCount    int
	ExpectedStrengthRange float64
	GapImprovement        float64
}

// Suggestion reports that finer period divisions can meaningfully shrink
// the play-time gap, with candidate options ordered fewest-extra-rotations
// first.
type Suggestion struct {
	CurrentGap        float64
	CurrentMaxPercent float64
	CurrentMinPercent float64
	CurrentExtraCount int
	Options           []Option
}

// CheckInput carries the post-solve state the check runs against.
type CheckInput struct {
	CurrentDivisions  []int
	Players           []types.Player
	Config            types.GameConfig
	GoalieAssignments []types.GoalieAssignment
	PlayerStats       map[string]types.PlayerStats

	// CurrentRotationIndex > 0 marks a live game; periods at or before it
	// are locked and never redivided.
	CurrentRotationIndex int
}

// Check decides whether increasing period divisions can reduce the play-time
// gap by at least MinGapImprovementPP. Runs after a successful solve. A nil
// return means no worthwhile improvement exists.
func Check(in CheckInput) *Suggestion {
	benchSlotsPerRotation := len(in.Players) - in.Config.FieldSize
	if benchSlotsPerRotation <= 0 || len(in.PlayerStats) == 0 {
		return nil
	}

	currentMax, currentMin := playPercentBounds(in.PlayerStats)
	currentGap := currentMax - currentMin
	if currentGap < MinGapImprovementPP {
		return nil
	}

	currentExtraCount := 0
	for _, s := range in.PlayerStats {
		if float64(s.PlayPercentage) == currentMax {
			currentExtraCount++
		}
	}

	var locked map[int]bool
	if in.CurrentRotationIndex > 0 {
		locked = make(map[int]bool)
		offsets := layout.PeriodOffsets(in.CurrentDivisions)
		for p := 0; p < in.Config.Periods; p++ {
			if p < len(offsets) && offsets[p] < in.CurrentRotationIndex {
				locked[p] = true
			}
		}
		locked[layout.PeriodForRotation(in.CurrentDivisions, in.CurrentRotationIndex)] = true
	}

	candidates := GenerateBalancedCandidates(in.Config.Periods, in.CurrentDivisions, maxPerPeriod, locked)
	if len(candidates) == 0 {
		return nil
	}

	var options []Option
	for _, candidate := range candidates {
		eval := EvaluateCandidate(candidate, len(in.Players), in.Config.FieldSize)
		if currentGap-eval.Gap < MinGapImprovementPP {
			continue
		}
		if !feasible(candidate, in.Players, in.Config, in.GoalieAssignments) {
			continue
		}
		options = append(options, Option{
			PeriodDivisions:    candidate,
			ExpectedGap:        eval.Gap,
			ExpectedMaxPercent: eval.MaxPlayPercent,
			ExpectedMinPercent: eval.MinPlayPercent,
			ExpectedExtraCount: eval.ExtraPlayerCount,
			GapImprovement:     roundTenth(currentGap - eval.Gap),
		})
	}
	if len(options) == 0 {
		return nil
	}

	return &Suggestion{
		CurrentGap:        currentGap,
		CurrentMaxPercent: currentMax,
		CurrentMinPercent: currentMin,
		CurrentExtraCount: currentExtraCount,
		Options:           options,
	}
}

func playPercentBounds(stats map[string]types.PlayerStats) (max, min float64) {
	first := true
	for _, s := range stats {
		pct := float64(s.PlayPercentage)
		if first {
			max, min = pct, pct
			first = false
			continue
		}
		if pct > max {
			max = pct
		}
		if pct < min {
			min = pct
		}
	}
	return max, min
}

// feasible runs the cheap capacity check: with the candidate divisions, do
// goalie resolution and per-player bench-pattern bounds leave a bench-count
// distribution that sums to the exact budget?
func feasible(
	candidate []int,
	players []types.Player,
	config types.GameConfig,
	goalieAssignments []types.GoalieAssignment,
) bool {
	totalRotations := layout.TotalRotations(candidate)
	benchSlotsPerRotation := len(players) - config.FieldSize
	if benchSlotsPerRotation <= 0 {
		return true
	}

	offsets := layout.PeriodOffsets(candidate)
	rotationPeriods := layout.RotationPeriods(candidate)
	maxConsecutive := totalRotations
	if config.NoConsecutiveBench {
		maxConsecutive = config.MaxConsecutiveBench
	}

	var goaliePerPeriod []string
	if config.UseGoalie {
		var err error
		goaliePerPeriod, err = solver.ResolveGoalies(players, config.Periods, goalieAssignments, nil)
		if err != nil {
			return false
		}
		if config.GoalieRestAfterPeriod {
			for period := 0; period < config.Periods-1; period++ {
				if goaliePerPeriod[period] == goaliePerPeriod[period+1] {
					return false
				}
			}
		}
	}

	goalieMap := make(map[int]string)
	if config.UseGoalie {
		for period := 0; period < config.Periods; period++ {
			for rot := 0; rot < candidate[period]; rot++ {
				if config.GoaliePlayFullPeriod || rot == 0 {
					goalieMap[offsets[period]+rot] = goaliePerPeriod[period]
				}
			}
		}
	}

	forcedBench := make(map[string]map[int]bool)
	if config.UseGoalie && config.GoalieRestAfterPeriod {
		for period := 0; period < config.Periods; period++ {
			nextFirst := offsets[period] + candidate[period]
			if nextFirst < totalRotations {
				goalieID := goaliePerPeriod[period]
				if forcedBench[goalieID] == nil {
					forcedBench[goalieID] = make(map[int]bool)
				}
				forcedBench[goalieID][nextFirst] = true
			}
		}
	}

	// A distribution exists iff sum(min) <= totalBenchSlots <= sum(max),
	// where min is each player's forced benches and max is the largest
	// bench count with at least one valid pattern.
	totalBenchSlots := totalRotations * benchSlotsPerRotation
	sumMinRequired := 0
	sumMaxFeasible := 0

	for _, player := range players {
		cannotBench := make(map[int]bool)
		for rotIndex, goalieID := range goalieMap {
			if goalieID == player.ID {
				cannotBench[rotIndex] = true
			}
		}
		mustBench := forcedBench[player.ID]
		if mustBench == nil {
			mustBench = map[int]bool{}
		}

		minRequired := len(mustBench)
		sumMinRequired += minRequired

		upperBound := totalRotations - len(cannotBench)
		maxFeasible := -1
		for count := upperBound; count >= minRequired; count-- {
			patterns := solver.GenerateBenchPatterns(totalRotations, count, cannotBench, mustBench, maxConsecutive, rotationPeriods)
			if len(patterns) > 0 {
				maxFeasible = count
				break
			}
		}
		if maxFeasible < minRequired {
			return false
		}
		sumMaxFeasible += maxFeasible
	}

	return sumMinRequired <= totalBenchSlots && totalBenchSlots <= sumMaxFeasible
}
