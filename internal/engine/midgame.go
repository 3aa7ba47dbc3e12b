package engine

import (
	"math"

	"github.com/fieldtime-dev/rotation-engine/internal/layout"
	"github.com/fieldtime-dev/rotation-engine/internal/stats"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// MergeSchedules splices already-played rotations with a freshly solved
// remainder. Rotations before startFromRotation are kept as the original
// objects; player and aggregate stats are always recomputed over the full
// merged set, never reused from either input.
func MergeSchedules(
	existingRotations []*types.Rotation,
	newSchedule *types.RotationSchedule,
	startFromRotation int,
	players []types.Player,
) *types.RotationSchedule {
	played := existingRotations[:startFromRotation]

	future := newSchedule.Rotations
	// A window solve returns future-only rotations already carrying global
	// indices; a full re-solve carries the whole game and needs slicing.
	futureOnly := startFromRotation > 0 && len(future) > 0 && future[0].Index >= startFromRotation
	if !futureOnly && startFromRotation < len(future) {
		future = future[startFromRotation:]
	} else if !futureOnly {
		future = nil
	}

	merged := make([]*types.Rotation, 0, len(played)+len(future))
	merged = append(merged, played...)
	merged = append(merged, future...)

	strengths := make([]int, len(merged))
	for i, r := range merged {
		strengths[i] = r.TeamStrength
	}
	agg := stats.ComputeStrengthStats(strengths)

	return &types.RotationSchedule{
		Rotations:   merged,
		PlayerStats: stats.CalculatePlayerStats(merged, players),
		OverallStats: types.OverallStats{
			StrengthVariance: agg.Variance,
			MinStrength:      agg.Min,
			MaxStrength:      agg.Max,
			AvgStrength:      math.Round(agg.Avg*10) / 10,
			Violations:       []string{},
			IsValid:          true,
		},
		GeneratedAt: newSchedule.GeneratedAt,
	}
}

// MidGameWindow narrows a solve to the unplayed remainder of a live game.
// Rotation and period indices inside the window are local (zero-based at
// the window start).
type MidGameWindow struct {
	Config                        types.GameConfig
	PeriodDivisions               []int
	GoalieAssignments             []types.GoalieAssignment
	ManualOverrides               []types.ManualOverride
	PositionContinuityPreferences []types.PositionContinuityPreference
	StartFromRotation             int
	StartPeriodIndex              int
}

// MidGameParams is the full-game input a window is carved out of.
type MidGameParams struct {
	Config                        types.GameConfig
	PeriodDivisions               []int
	GoalieAssignments             []types.GoalieAssignment
	ManualOverrides               []types.ManualOverride
	PositionContinuityPreferences []types.PositionContinuityPreference
	StartFromRotation             int
	ExistingRotations             []*types.Rotation
	Players                       []types.Player
}

func trailingBenchStreak(existingRotations []*types.Rotation, playerID string, fromIndex int) int {
	streak := 0
	for i := fromIndex; i >= 0 && i < len(existingRotations); i-- {
		if existingRotations[i].Assignments[playerID] == types.AssignmentBench {
			streak++
			continue
		}
		break
	}
	return streak
}

func goalieForPeriod(existingRotations []*types.Rotation, periodDivisions []int, periodIndex int) string {
	start, end, ok := layout.PeriodRange(periodDivisions, periodIndex)
	if !ok {
		return ""
	}
	for i := start; i < end && i < len(existingRotations); i++ {
		for playerID, assignment := range existingRotations[i].Assignments {
			if assignment == types.AssignmentGoalie {
				return playerID
			}
		}
	}
	return ""
}

// BuildMidGameWindow narrows the full-game inputs to the unplayed remainder:
// the started period keeps only its remaining sub-rotations, goalie
// assignments and overrides are re-indexed into window coordinates, the
// started period's live goalie is carried over, and two continuity rules
// become hard locks at window rotation 0 — a player whose trailing bench
// streak already hit the limit is locked on field, and a resting goalie is
// locked on bench. Returns nil when there is nothing left to solve.
func BuildMidGameWindow(p MidGameParams) *MidGameWindow {
	safeStart := p.StartFromRotation
	if safeStart < 0 {
		safeStart = 0
	}
	totalRotations := layout.TotalRotations(p.PeriodDivisions)
	if safeStart <= 0 || safeStart >= totalRotations {
		return nil
	}

	startPeriodIndex := layout.PeriodForRotation(p.PeriodDivisions, safeStart)
	startRangeStart, startRangeEnd, ok := layout.PeriodRange(p.PeriodDivisions, startPeriodIndex)
	if !ok {
		return nil
	}
	firstPeriodRemaining := startRangeEnd - safeStart
	if firstPeriodRemaining <= 0 {
		return nil
	}

	remainingDivisions := append([]int{firstPeriodRemaining}, p.PeriodDivisions[startPeriodIndex+1:]...)
	periodEndExclusive := startPeriodIndex + len(remainingDivisions)

	var windowGoalies []types.GoalieAssignment
	for _, a := range p.GoalieAssignments {
		if a.PeriodIndex >= startPeriodIndex && a.PeriodIndex < periodEndExclusive {
			windowGoalies = append(windowGoalies, types.GoalieAssignment{
				PeriodIndex: a.PeriodIndex - startPeriodIndex,
				PlayerID:    a.PlayerID,
			})
		}
	}

	if p.Config.UseGoalie {
		hasExplicitStart := false
		for _, a := range windowGoalies {
			if a.PeriodIndex == 0 && a.PlayerID != types.AutoGoalie {
				hasExplicitStart = true
				break
			}
		}
		if !hasExplicitStart {
			if liveGoalie := goalieForPeriod(p.ExistingRotations, p.PeriodDivisions, startPeriodIndex); liveGoalie != "" {
				kept := windowGoalies[:0]
				for _, a := range windowGoalies {
					if a.PeriodIndex != 0 {
						kept = append(kept, a)
					}
				}
				windowGoalies = append([]types.GoalieAssignment{{PeriodIndex: 0, PlayerID: liveGoalie}}, kept...)
			}
		}
	}

	var windowOverrides []types.ManualOverride
	for _, o := range p.ManualOverrides {
		if o.RotationIndex >= safeStart {
			shifted := o
			shifted.RotationIndex -= safeStart
			windowOverrides = append(windowOverrides, shifted)
		}
	}
	var windowPrefs []types.PositionContinuityPreference
	for _, pref := range p.PositionContinuityPreferences {
		if pref.RotationIndex >= safeStart {
			shifted := pref
			shifted.RotationIndex -= safeStart
			windowPrefs = append(windowPrefs, shifted)
		}
	}

	if p.Config.NoConsecutiveBench && p.Config.MaxConsecutiveBench > 0 {
		for _, player := range p.Players {
			if trailingBenchStreak(p.ExistingRotations, player.ID, safeStart-1) >= p.Config.MaxConsecutiveBench {
				windowOverrides = append(windowOverrides, types.ManualOverride{
					PlayerID:      player.ID,
					RotationIndex: 0,
					Assignment:    types.AssignmentField,
					LockMode:      types.LockHard,
				})
			}
		}
	}

	if p.Config.UseGoalie && p.Config.GoalieRestAfterPeriod && safeStart == startRangeStart && startPeriodIndex > 0 {
		if prevGoalie := goalieForPeriod(p.ExistingRotations, p.PeriodDivisions, startPeriodIndex-1); prevGoalie != "" {
			windowOverrides = append(windowOverrides, types.ManualOverride{
				PlayerID:      prevGoalie,
				RotationIndex: 0,
				Assignment:    types.AssignmentBench,
				LockMode:      types.LockHard,
			})
		}
	}

	// Later continuity locks win over user overrides on the same key.
	type overrideKey struct {
		playerID string
		rotation int
	}
	byKey := make(map[overrideKey]types.ManualOverride)
	var keyOrder []overrideKey
	for _, o := range windowOverrides {
		k := overrideKey{o.PlayerID, o.RotationIndex}
		if _, seen := byKey[k]; !seen {
			keyOrder = append(keyOrder, k)
		}
		byKey[k] = o
	}
	deduped := make([]types.ManualOverride, 0, len(keyOrder))
	for _, k := range keyOrder {
		deduped = append(deduped, byKey[k])
	}

	windowConfig := p.Config
	windowConfig.Periods = len(remainingDivisions)

	return &MidGameWindow{
		Config:                        windowConfig,
		PeriodDivisions:               remainingDivisions,
		GoalieAssignments:             windowGoalies,
		ManualOverrides:               deduped,
		PositionContinuityPreferences: windowPrefs,
		StartFromRotation:             safeStart,
		StartPeriodIndex:              startPeriodIndex,
	}
}

// BuildMidGameMinPlayInputs derives the window's rotation weights and each
// player's remaining bench-weight budget: the full-game ceiling minus the
// bench weight already spent in played rotations.
func BuildMidGameMinPlayInputs(
	config types.GameConfig,
	players []types.Player,
	periodDivisions []int,
	startFromRotation int,
	existingRotations []*types.Rotation,
) (rotationWeights []float64, maxBenchWeightByPlayer map[string]float64) {
	fullWeights := layout.Weights(periodDivisions)
	safeStart := startFromRotation
	if safeStart < 0 {
		safeStart = 0
	}
	if safeStart > len(fullWeights) {
		safeStart = len(fullWeights)
	}

	var fullTotal float64
	for _, w := range fullWeights {
		fullTotal += w
	}
	fullMaxBenchWeight := fullTotal * (1 - config.MinPlayPercentage/100)

	maxBenchWeightByPlayer = make(map[string]float64, len(players))
	for _, player := range players {
		var used float64
		for i := 0; i < safeStart && i < len(existingRotations); i++ {
			if existingRotations[i].Assignments[player.ID] == types.AssignmentBench {
				used += fullWeights[i]
			}
		}
		remaining := fullMaxBenchWeight - used
		if remaining < 0 {
			remaining = 0
		}
		maxBenchWeightByPlayer[player.ID] = remaining
	}

	return fullWeights[safeStart:], maxBenchWeightByPlayer
}

// remapWindowSchedule shifts a window-local schedule into global rotation
// and period indices.
func remapWindowSchedule(schedule *types.RotationSchedule, startFromRotation, startPeriodIndex int) *types.RotationSchedule {
	for localIndex, rotation := range schedule.Rotations {
		rotation.Index = startFromRotation + localIndex
		rotation.PeriodIndex = startPeriodIndex + rotation.PeriodIndex
	}
	return schedule
}
