package division

import (
	"fmt"
	"sort"

	"github.com/fieldtime-dev/rotation-engine/internal/stats"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// RedivideResult is the outcome of re-dividing one period of an existing
// schedule without re-solving.
type RedivideResult struct {
	Schedule        *types.RotationSchedule
	PeriodDivisions []int
}

// RedividePeriod changes the division count of one period in place: splitting
// duplicates the nearest source rotation, merging collapses groups whose
// rotations are equivalent. Merging fails when the rotations to collapse
// differ, since that would silently drop coaching decisions.
func RedividePeriod(
	schedule *types.RotationSchedule,
	players []types.Player,
	periodDivisions []int,
	periodIndex, nextDivision int,
) (*RedivideResult, error) {
	if periodIndex < 0 || periodIndex >= len(periodDivisions) {
		return nil, fmt.Errorf("invalid period selected")
	}
	if nextDivision < 1 {
		nextDivision = 1
	}

	byPeriod := rotationsByPeriod(schedule, len(periodDivisions))
	current := byPeriod[periodIndex]
	currentDivision := len(current)
	if currentDivision == 0 {
		return nil, fmt.Errorf("period %d has no rotations", periodIndex+1)
	}

	if nextDivision == currentDivision {
		out := make([]int, len(periodDivisions))
		copy(out, periodDivisions)
		return &RedivideResult{Schedule: schedule, PeriodDivisions: out}, nil
	}

	var nextRotations []*types.Rotation
	if nextDivision > currentDivision {
		for newIdx := 0; newIdx < nextDivision; newIdx++ {
			sourceIdx := newIdx * currentDivision / nextDivision
			nextRotations = append(nextRotations, cloneRotation(current[sourceIdx]))
		}
	} else {
		groups := make([][]*types.Rotation, nextDivision)
		for i := 0; i < currentDivision; i++ {
			groupIndex := i * nextDivision / currentDivision
			groups[groupIndex] = append(groups[groupIndex], current[i])
		}
		for _, group := range groups {
			for i := 1; i < len(group); i++ {
				if !rotationsEquivalent(group[0], group[i]) {
					return nil, fmt.Errorf("cannot merge period %d: R%d and R%d differ",
						periodIndex+1, group[0].Index+1, group[i].Index+1)
				}
			}
		}
		for _, group := range groups {
			nextRotations = append(nextRotations, cloneRotation(group[0]))
		}
	}

	var rebuilt []*types.Rotation
	for p := range byPeriod {
		source := byPeriod[p]
		if p == periodIndex {
			source = nextRotations
		}
		for _, rotation := range source {
			clone := cloneRotation(rotation)
			clone.Index = len(rebuilt)
			clone.PeriodIndex = p
			rebuilt = append(rebuilt, clone)
		}
	}

	out := make([]int, len(periodDivisions))
	copy(out, periodDivisions)
	out[periodIndex] = nextDivision

	return &RedivideResult{
		Schedule:        stats.AssembleSchedule(rebuilt, players),
		PeriodDivisions: out,
	}, nil
}

func rotationsByPeriod(schedule *types.RotationSchedule, periodCount int) [][]*types.Rotation {
	byPeriod := make([][]*types.Rotation, periodCount)
	for _, rotation := range schedule.Rotations {
		if rotation.PeriodIndex >= 0 && rotation.PeriodIndex < periodCount {
			byPeriod[rotation.PeriodIndex] = append(byPeriod[rotation.PeriodIndex], rotation)
		}
	}
	for _, rotations := range byPeriod {
		sort.SliceStable(rotations, func(i, j int) bool { return rotations[i].Index < rotations[j].Index })
	}
	return byPeriod
}

func cloneRotation(r *types.Rotation) *types.Rotation {
	out := &types.Rotation{
		Index:        r.Index,
		PeriodIndex:  r.PeriodIndex,
		Assignments:  make(map[string]types.Assignment, len(r.Assignments)),
		TeamStrength: r.TeamStrength,
		Violations:   append([]string(nil), r.Violations...),
	}
	for id, a := range r.Assignments {
		out.Assignments[id] = a
	}
	if r.FieldPositions != nil {
		out.FieldPositions = make(map[string]types.SubPosition, len(r.FieldPositions))
		for id, pos := range r.FieldPositions {
			out.FieldPositions[id] = pos
		}
	}
	return out
}

func rotationsEquivalent(a, b *types.Rotation) bool {
	if len(a.Assignments) != len(b.Assignments) {
		return false
	}
	for id, assignment := range a.Assignments {
		if b.Assignments[id] != assignment {
			return false
		}
	}
	if len(a.FieldPositions) != len(b.FieldPositions) {
		return false
	}
	for id, pos := range a.FieldPositions {
		if b.FieldPositions[id] != pos {
			return false
		}
	}
	return true
}
