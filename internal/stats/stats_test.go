package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

func rosterOf(skills ...int) []types.Player {
	players := make([]types.Player, len(skills))
	for i, s := range skills {
		players[i] = types.Player{ID: string(rune('a' + i)), Name: string(rune('A' + i)), SkillRanking: s}
	}
	return players
}

func TestRotationStrengthCountsFieldAndGoalie(t *testing.T) {
	players := rosterOf(3, 4, 5)
	rotation := &types.Rotation{Assignments: map[string]types.Assignment{
		"a": types.AssignmentField,
		"b": types.AssignmentGoalie,
		"c": types.AssignmentBench,
	}}
	assert.Equal(t, 7, RotationStrength(rotation, players))
}

func TestComputeStrengthStats(t *testing.T) {
	s := ComputeStrengthStats([]int{10, 12, 14})
	assert.Equal(t, 10, s.Min)
	assert.Equal(t, 14, s.Max)
	assert.InDelta(t, 12.0, s.Avg, 1e-9)
	assert.InDelta(t, 8.0/3.0, s.Variance, 1e-9)

	assert.Equal(t, StrengthStats{}, ComputeStrengthStats(nil))
}

func TestCalculatePlayerStatsWeightsSplitPeriods(t *testing.T) {
	players := rosterOf(3)
	// Period 0 split in two (weight 0.5 each), period 1 whole (weight 1).
	rotations := []*types.Rotation{
		{Index: 0, PeriodIndex: 0, Assignments: map[string]types.Assignment{"a": types.AssignmentBench}},
		{Index: 1, PeriodIndex: 0, Assignments: map[string]types.Assignment{"a": types.AssignmentField}},
		{Index: 2, PeriodIndex: 1, Assignments: map[string]types.Assignment{"a": types.AssignmentField}},
	}
	st := CalculatePlayerStats(rotations, players)["a"]
	assert.Equal(t, 2, st.RotationsPlayed)
	assert.Equal(t, 1, st.RotationsBenched)
	// played weight 1.5 of total 2 -> 75%
	assert.Equal(t, 75, st.PlayPercentage)
	assert.Equal(t, 1, st.MaxConsecutiveBench)
}

func TestCalculatePlayerStatsBenchStreak(t *testing.T) {
	players := rosterOf(3)
	assignments := []types.Assignment{
		types.AssignmentBench, types.AssignmentBench, types.AssignmentField, types.AssignmentBench,
	}
	rotations := make([]*types.Rotation, len(assignments))
	for i, a := range assignments {
		rotations[i] = &types.Rotation{Index: i, PeriodIndex: i, Assignments: map[string]types.Assignment{"a": a}}
	}
	st := CalculatePlayerStats(rotations, players)["a"]
	assert.Equal(t, 2, st.MaxConsecutiveBench)
	assert.Equal(t, 3, st.RotationsBenched)
}

func TestAssembleScheduleRecomputesStrength(t *testing.T) {
	players := rosterOf(2, 5)
	rotations := []*types.Rotation{
		{Index: 0, PeriodIndex: 0, Assignments: map[string]types.Assignment{
			"a": types.AssignmentField, "b": types.AssignmentBench,
		}},
		{Index: 1, PeriodIndex: 1, Assignments: map[string]types.Assignment{
			"a": types.AssignmentBench, "b": types.AssignmentField,
		}},
	}
	schedule := AssembleSchedule(rotations, players)
	require.Len(t, schedule.Rotations, 2)
	assert.Equal(t, 2, schedule.Rotations[0].TeamStrength)
	assert.Equal(t, 5, schedule.Rotations[1].TeamStrength)
	assert.Equal(t, 2, schedule.OverallStats.MinStrength)
	assert.Equal(t, 5, schedule.OverallStats.MaxStrength)
	assert.InDelta(t, 3.5, schedule.OverallStats.AvgStrength, 1e-9)
	assert.True(t, schedule.OverallStats.IsValid)
}

func TestPreviewSwapExchangesRolesAndPositions(t *testing.T) {
	players := rosterOf(2, 5)
	rotations := []*types.Rotation{
		{Index: 0, PeriodIndex: 0,
			Assignments: map[string]types.Assignment{
				"a": types.AssignmentField, "b": types.AssignmentBench,
			},
			FieldPositions: map[string]types.SubPosition{"a": "CM"},
		},
	}
	schedule := AssembleSchedule(rotations, players)

	swapped := PreviewSwap(schedule, 0, "a", "b", players)
	assert.Equal(t, types.AssignmentBench, swapped.Rotations[0].Assignments["a"])
	assert.Equal(t, types.AssignmentField, swapped.Rotations[0].Assignments["b"])
	assert.Equal(t, types.SubPosition("CM"), swapped.Rotations[0].FieldPositions["b"])
	_, stillHasA := swapped.Rotations[0].FieldPositions["a"]
	assert.False(t, stillHasA)

	// Original untouched.
	assert.Equal(t, types.AssignmentField, schedule.Rotations[0].Assignments["a"])
}

func TestPreviewSwapRangeOnlyAffectsSuffix(t *testing.T) {
	players := rosterOf(2, 5)
	rotations := []*types.Rotation{
		{Index: 0, PeriodIndex: 0, Assignments: map[string]types.Assignment{
			"a": types.AssignmentField, "b": types.AssignmentBench,
		}},
		{Index: 1, PeriodIndex: 1, Assignments: map[string]types.Assignment{
			"a": types.AssignmentField, "b": types.AssignmentBench,
		}},
	}
	schedule := AssembleSchedule(rotations, players)

	swapped := PreviewSwapRange(schedule, 1, "a", "b", players)
	assert.Equal(t, types.AssignmentField, swapped.Rotations[0].Assignments["a"])
	assert.Equal(t, types.AssignmentBench, swapped.Rotations[1].Assignments["a"])
}
