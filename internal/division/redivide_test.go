package division

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtime-dev/rotation-engine/internal/stats"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

func redivideFixture() ([]types.Player, *types.RotationSchedule) {
	players := []types.Player{
		{ID: "a", Name: "Ana", SkillRanking: 3},
		{ID: "b", Name: "Ben", SkillRanking: 4},
		{ID: "c", Name: "Cam", SkillRanking: 2},
	}
	rotations := []*types.Rotation{
		{Index: 0, PeriodIndex: 0, Assignments: map[string]types.Assignment{
			"a": types.AssignmentField, "b": types.AssignmentField, "c": types.AssignmentBench,
		}},
		{Index: 1, PeriodIndex: 1, Assignments: map[string]types.Assignment{
			"a": types.AssignmentBench, "b": types.AssignmentField, "c": types.AssignmentField,
		}},
	}
	return players, stats.AssembleSchedule(rotations, players)
}

func TestRedividePeriodSplitDuplicatesRotations(t *testing.T) {
	players, schedule := redivideFixture()

	result, err := RedividePeriod(schedule, players, []int{1, 1}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, result.PeriodDivisions)
	require.Len(t, result.Schedule.Rotations, 3)

	first, second := result.Schedule.Rotations[0], result.Schedule.Rotations[1]
	assert.Equal(t, 0, first.PeriodIndex)
	assert.Equal(t, 0, second.PeriodIndex)
	assert.Equal(t, first.Assignments, second.Assignments)
	assert.NotSame(t, first, second)

	// Indices are contiguous after the rebuild.
	for i, rotation := range result.Schedule.Rotations {
		assert.Equal(t, i, rotation.Index)
	}

	// Play percentage is weight-based, so splitting a period changes nothing.
	assert.Equal(t, schedule.PlayerStats["c"].PlayPercentage, result.Schedule.PlayerStats["c"].PlayPercentage)
}

func TestRedividePeriodMergeEquivalentRotations(t *testing.T) {
	players, schedule := redivideFixture()

	split, err := RedividePeriod(schedule, players, []int{1, 1}, 0, 2)
	require.NoError(t, err)

	merged, err := RedividePeriod(split.Schedule, players, split.PeriodDivisions, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, merged.PeriodDivisions)
	require.Len(t, merged.Schedule.Rotations, 2)
	assert.Equal(t, schedule.Rotations[0].Assignments, merged.Schedule.Rotations[0].Assignments)
}

func TestRedividePeriodMergeDivergedRotationsFails(t *testing.T) {
	players, schedule := redivideFixture()

	split, err := RedividePeriod(schedule, players, []int{1, 1}, 0, 2)
	require.NoError(t, err)

	// A coach edit makes the two halves differ; merging would lose it.
	split.Schedule.Rotations[1].Assignments["a"] = types.AssignmentBench
	split.Schedule.Rotations[1].Assignments["c"] = types.AssignmentField

	_, err = RedividePeriod(split.Schedule, players, split.PeriodDivisions, 0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "differ")
}

func TestRedividePeriodSameDivisionIsNoop(t *testing.T) {
	players, schedule := redivideFixture()

	result, err := RedividePeriod(schedule, players, []int{1, 1}, 1, 1)
	require.NoError(t, err)
	assert.Same(t, schedule, result.Schedule)
	assert.Equal(t, []int{1, 1}, result.PeriodDivisions)
}

func TestRedividePeriodInvalidPeriodFails(t *testing.T) {
	players, schedule := redivideFixture()
	_, err := RedividePeriod(schedule, players, []int{1, 1}, 5, 2)
	assert.Error(t, err)
}
