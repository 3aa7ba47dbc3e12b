package positions

import (
	"sort"
	"time"

	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

const (
	penaltyPreferredGroupMismatch = 8
	penaltyConsecutiveSameGroup   = 3
	penaltyNoPreferenceRepeat     = 2
	penaltyRepeatedSubPosition    = 1
)

// PlannerOptions bounds the diversity pass.
type PlannerOptions struct {
	Timeout time.Duration
	// Locked positions per rotation index; players appearing here are never
	// moved by the planner.
	Locked map[int]map[string]types.SubPosition
}

func preferredGroups(player types.Player) map[types.Position]bool {
	preferred := make(map[types.Position]bool)
	if player.PrimaryPosition != "" && player.PrimaryPosition != types.PositionGK {
		preferred[player.PrimaryPosition] = true
	}
	for _, secondary := range player.SecondaryPositions {
		if secondary != types.PositionGK {
			preferred[secondary] = true
		}
	}
	return preferred
}

type planEntry struct {
	group  types.Position
	subPos types.SubPosition
}

func scorePlan(rotations []*types.Rotation, plan []map[string]types.SubPosition, playerByID map[string]types.Player) int {
	timeline := make(map[string][]planEntry)
	for r, positions := range plan {
		if positions == nil {
			continue
		}
		for playerID, assignment := range rotations[r].Assignments {
			if assignment != types.AssignmentField {
				continue
			}
			subPos, ok := positions[playerID]
			if !ok {
				continue
			}
			timeline[playerID] = append(timeline[playerID], planEntry{group: Group[subPos], subPos: subPos})
		}
	}

	score := 0
	for playerID, entries := range timeline {
		preferred := preferredGroups(playerByID[playerID])
		hasPreferences := len(preferred) > 0
		groupCounts := make(map[types.Position]int)
		subPosCounts := make(map[types.SubPosition]int)

		var prevGroup types.Position
		first := true
		for _, entry := range entries {
			if hasPreferences && !preferred[entry.group] {
				score += penaltyPreferredGroupMismatch
			}
			if !first && prevGroup == entry.group {
				score += penaltyConsecutiveSameGroup
			}
			groupCounts[entry.group]++
			subPosCounts[entry.subPos]++
			prevGroup = entry.group
			first = false
		}

		if !hasPreferences {
			for _, count := range groupCounts {
				score += count * (count - 1) * penaltyNoPreferenceRepeat
			}
		}
		for _, count := range subPosCounts {
			score += count * (count - 1) * penaltyRepeatedSubPosition
		}
	}
	return score
}

func clonePlan(rotations []*types.Rotation) []map[string]types.SubPosition {
	plan := make([]map[string]types.SubPosition, len(rotations))
	for i, rotation := range rotations {
		if rotation.FieldPositions == nil {
			continue
		}
		plan[i] = make(map[string]types.SubPosition, len(rotation.FieldPositions))
		for id, pos := range rotation.FieldPositions {
			plan[i][id] = pos
		}
	}
	return plan
}

// OptimizeAssignments improves sub-position diversity across a schedule by
// applying improving swaps between field players within each rotation until
// no swap helps or the deadline passes. Slot usage per rotation and locked
// positions are preserved.
func OptimizeAssignments(rotations []*types.Rotation, playerByID map[string]types.Player, opts PlannerOptions) {
	if len(rotations) == 0 {
		return
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	plan := clonePlan(rotations)

	bestScore := scorePlan(rotations, plan, playerByID)
	improved := true
	for improved && time.Now().Before(deadline) {
		improved = false
		for r := range plan {
			positions := plan[r]
			if positions == nil {
				continue
			}
			playerIDs := make([]string, 0, len(positions))
			for id := range positions {
				if _, isLocked := opts.Locked[r][id]; isLocked {
					continue
				}
				playerIDs = append(playerIDs, id)
			}
			if len(playerIDs) < 2 {
				continue
			}
			// Map iteration order would make equal-score plans vary run to
			// run; swap candidates are tried in a stable order instead.
			sort.Strings(playerIDs)
			for i := 0; i < len(playerIDs)-1 && !improved; i++ {
				for j := i + 1; j < len(playerIDs); j++ {
					if time.Now().After(deadline) {
						break
					}
					a, b := playerIDs[i], playerIDs[j]
					posA, posB := positions[a], positions[b]
					if posA == posB {
						continue
					}
					positions[a], positions[b] = posB, posA
					if next := scorePlan(rotations, plan, playerByID); next < bestScore {
						bestScore = next
						improved = true
						break
					}
					positions[a], positions[b] = posA, posB
				}
			}
			if improved {
				break
			}
		}
	}

	for r := range rotations {
		if plan[r] != nil {
			rotations[r].FieldPositions = plan[r]
		}
	}
}
