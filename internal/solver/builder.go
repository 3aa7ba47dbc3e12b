package solver

import (
	"github.com/fieldtime-dev/rotation-engine/internal/layout"
	"github.com/fieldtime-dev/rotation-engine/internal/positions"
	"github.com/fieldtime-dev/rotation-engine/internal/stats"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// BuildSchedule turns a solved bench-set decision into a full schedule.
// benchSets[i] holds orderedPlayers[i]'s bench rotations. Role priority per
// rotation is goalie > bench > field; field sub-positions are auto-assigned
// when the config carries a formation.
func BuildSchedule(
	orderedPlayers []types.Player,
	benchSets []BenchPattern,
	prepared *PreparedConstraints,
	ctx *Context,
) *types.RotationSchedule {
	config := ctx.Config
	rotationPeriods := layout.RotationPeriods(prepared.PeriodDivisions)

	benchLookups := make([]map[int]bool, len(benchSets))
	for i, pattern := range benchSets {
		set := make(map[int]bool, len(pattern))
		for _, idx := range pattern {
			set[idx] = true
		}
		benchLookups[i] = set
	}

	usePositions := config.UsePositions && len(config.Formation) > 0
	var playerByID map[string]types.Player
	var history positions.History
	var continuityPrefs map[int]map[string]types.SubPosition
	if usePositions {
		playerByID = make(map[string]types.Player, len(ctx.Players))
		for _, p := range ctx.Players {
			playerByID[p.ID] = p
		}
		history = make(positions.History)
		continuityPrefs = make(map[int]map[string]types.SubPosition)
		for _, pref := range ctx.PositionContinuityPreferences {
			if continuityPrefs[pref.RotationIndex] == nil {
				continuityPrefs[pref.RotationIndex] = make(map[string]types.SubPosition)
			}
			continuityPrefs[pref.RotationIndex][pref.PlayerID] = pref.FieldPosition
		}
	}

	rotations := make([]*types.Rotation, 0, ctx.TotalRotations)
	for r := 0; r < ctx.TotalRotations; r++ {
		assignments := make(map[string]types.Assignment, len(orderedPlayers))
		for i, p := range orderedPlayers {
			switch {
			case prepared.GoalieMap[r] == p.ID:
				assignments[p.ID] = types.AssignmentGoalie
			case benchLookups[i][r]:
				assignments[p.ID] = types.AssignmentBench
			default:
				assignments[p.ID] = types.AssignmentField
			}
		}

		rotation := &types.Rotation{
			Index:       r,
			PeriodIndex: rotationPeriods[r],
			Assignments: assignments,
			Violations:  []string{},
		}

		if usePositions {
			var fieldPlayerIDs []string
			for _, p := range orderedPlayers {
				if assignments[p.ID] == types.AssignmentField {
					fieldPlayerIDs = append(fieldPlayerIDs, p.ID)
				}
			}
			prefs := prepared.SoftPositionPrefs[r]
			if extra := continuityPrefs[r]; len(extra) > 0 {
				merged := make(map[string]types.SubPosition, len(prefs)+len(extra))
				for id, pos := range extra {
					merged[id] = pos
				}
				for id, pos := range prefs {
					merged[id] = pos
				}
				prefs = merged
			}
			rotation.FieldPositions = positions.AutoAssign(
				fieldPlayerIDs,
				config.Formation,
				playerByID,
				history,
				prepared.HardPositionLocks[r],
				prefs,
			)
			for playerID, subPos := range rotation.FieldPositions {
				history.Record(playerID, subPos)
			}
		}

		rotations = append(rotations, rotation)
	}

	// Second pass improves positional diversity across the whole schedule
	// without touching hard-locked players.
	if usePositions {
		positions.OptimizeAssignments(rotations, playerByID, positions.PlannerOptions{
			Locked: prepared.HardPositionLocks,
		})
	}

	return stats.AssembleSchedule(rotations, ctx.Players)
}
