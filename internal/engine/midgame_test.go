package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtime-dev/rotation-engine/internal/stats"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

func midGameRoster() []types.Player {
	return []types.Player{
		{ID: "a", Name: "Ana", SkillRanking: 3, CanPlayGoalie: true},
		{ID: "b", Name: "Ben", SkillRanking: 4, CanPlayGoalie: true},
		{ID: "c", Name: "Cam", SkillRanking: 2},
		{ID: "d", Name: "Dee", SkillRanking: 5},
		{ID: "e", Name: "Eli", SkillRanking: 1},
	}
}

// rotationWith builds one rotation benching the named player, fielding the
// rest of the five-player roster.
func rotationWith(index, period int, benched string) *types.Rotation {
	assignments := make(map[string]types.Assignment)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if id == benched {
			assignments[id] = types.AssignmentBench
		} else {
			assignments[id] = types.AssignmentField
		}
	}
	return &types.Rotation{Index: index, PeriodIndex: period, Assignments: assignments, Violations: []string{}}
}

func TestMergeSchedulesKeepsPlayedRotations(t *testing.T) {
	players := midGameRoster()
	existing := []*types.Rotation{
		rotationWith(0, 0, "a"),
		rotationWith(1, 1, "b"),
		rotationWith(2, 2, "c"),
		rotationWith(3, 3, "d"),
		rotationWith(4, 4, "e"),
	}
	stats.AssembleSchedule(existing, players)

	windowRotations := []*types.Rotation{
		rotationWith(3, 3, "e"),
		rotationWith(4, 4, "e"),
	}
	newSchedule := stats.AssembleSchedule(windowRotations, players)

	merged := MergeSchedules(existing, newSchedule, 3, players)
	require.Len(t, merged.Rotations, 5)

	// Played rotations survive as the same objects.
	for i := 0; i < 3; i++ {
		assert.Same(t, existing[i], merged.Rotations[i])
	}
	assert.Same(t, windowRotations[0], merged.Rotations[3])
	assert.Same(t, windowRotations[1], merged.Rotations[4])

	// Statistics cover the merged whole, not either input.
	assert.Equal(t, 2, merged.PlayerStats["e"].RotationsBenched)
	assert.Equal(t, 1, merged.PlayerStats["a"].RotationsBenched)
	assert.Equal(t, 5, merged.PlayerStats["a"].TotalRotations)
	assert.True(t, merged.OverallStats.IsValid)
}

func TestMergeSchedulesSlicesFullResolve(t *testing.T) {
	players := midGameRoster()
	existing := []*types.Rotation{
		rotationWith(0, 0, "a"),
		rotationWith(1, 1, "b"),
	}
	// A full re-solve carries all rotations from index 0 and needs slicing.
	full := stats.AssembleSchedule([]*types.Rotation{
		rotationWith(0, 0, "c"),
		rotationWith(1, 1, "d"),
	}, players)

	merged := MergeSchedules(existing, full, 1, players)
	require.Len(t, merged.Rotations, 2)
	assert.Same(t, existing[0], merged.Rotations[0])
	assert.Equal(t, types.AssignmentBench, merged.Rotations[1].Assignments["d"])
}

func TestMergeSchedulesIdempotent(t *testing.T) {
	players := midGameRoster()
	existing := []*types.Rotation{
		rotationWith(0, 0, "a"),
		rotationWith(1, 1, "b"),
		rotationWith(2, 2, "c"),
	}
	window := stats.AssembleSchedule([]*types.Rotation{rotationWith(2, 2, "d")}, players)

	first := MergeSchedules(existing, window, 2, players)
	second := MergeSchedules(first.Rotations, window, 2, players)

	require.Len(t, second.Rotations, 3)
	for i := range first.Rotations {
		assert.Same(t, first.Rotations[i], second.Rotations[i])
	}
	assert.Equal(t, first.PlayerStats, second.PlayerStats)
}

func TestBuildMidGameWindowNarrowsToRemainder(t *testing.T) {
	config := types.GameConfig{
		FieldSize:          4,
		Periods:            3,
		RotationsPerPeriod: 2,
	}
	params := MidGameParams{
		Config:          config,
		PeriodDivisions: []int{2, 2, 2},
		ManualOverrides: []types.ManualOverride{
			{PlayerID: "a", RotationIndex: 1, Assignment: types.AssignmentBench, LockMode: types.LockHard},
			{PlayerID: "b", RotationIndex: 4, Assignment: types.AssignmentField, LockMode: types.LockHard},
		},
		StartFromRotation: 3,
		ExistingRotations: []*types.Rotation{
			rotationWith(0, 0, "a"),
			rotationWith(1, 0, "b"),
			rotationWith(2, 1, "c"),
		},
		Players: midGameRoster(),
	}

	window := BuildMidGameWindow(params)
	require.NotNil(t, window)

	// Started period 1 keeps its one remaining sub-rotation.
	assert.Equal(t, []int{1, 2}, window.PeriodDivisions)
	assert.Equal(t, 2, window.Config.Periods)
	assert.Equal(t, 3, window.StartFromRotation)
	assert.Equal(t, 1, window.StartPeriodIndex)

	// The pre-window override is dropped, the future one re-indexed.
	require.Len(t, window.ManualOverrides, 1)
	assert.Equal(t, "b", window.ManualOverrides[0].PlayerID)
	assert.Equal(t, 1, window.ManualOverrides[0].RotationIndex)
}

func TestBuildMidGameWindowNilOutsideLiveRange(t *testing.T) {
	params := MidGameParams{
		Config:          types.GameConfig{Periods: 2, RotationsPerPeriod: 1},
		PeriodDivisions: []int{1, 1},
	}

	params.StartFromRotation = 0
	assert.Nil(t, BuildMidGameWindow(params))

	params.StartFromRotation = 2
	assert.Nil(t, BuildMidGameWindow(params))
}

func TestBuildMidGameWindowCarriesLiveGoalie(t *testing.T) {
	existing := []*types.Rotation{
		rotationWith(0, 0, "c"),
		rotationWith(1, 0, "d"),
	}
	existing[0].Assignments["a"] = types.AssignmentGoalie
	existing[1].Assignments["a"] = types.AssignmentGoalie

	params := MidGameParams{
		Config: types.GameConfig{
			FieldSize:            4,
			Periods:              2,
			RotationsPerPeriod:   2,
			UseGoalie:            true,
			GoaliePlayFullPeriod: true,
		},
		PeriodDivisions:   []int{2, 2},
		StartFromRotation: 1,
		ExistingRotations: existing,
		Players:           midGameRoster(),
	}

	window := BuildMidGameWindow(params)
	require.NotNil(t, window)
	require.NotEmpty(t, window.GoalieAssignments)
	assert.Equal(t, 0, window.GoalieAssignments[0].PeriodIndex)
	assert.Equal(t, "a", window.GoalieAssignments[0].PlayerID)
}

func TestBuildMidGameWindowLocksExhaustedBenchStreak(t *testing.T) {
	existing := []*types.Rotation{
		rotationWith(0, 0, "e"),
		rotationWith(1, 1, "e"),
	}
	params := MidGameParams{
		Config: types.GameConfig{
			FieldSize:           4,
			Periods:             4,
			RotationsPerPeriod:  1,
			NoConsecutiveBench:  true,
			MaxConsecutiveBench: 2,
		},
		PeriodDivisions:   []int{1, 1, 1, 1},
		StartFromRotation: 2,
		ExistingRotations: existing,
		Players:           midGameRoster(),
	}

	window := BuildMidGameWindow(params)
	require.NotNil(t, window)

	var lock *types.ManualOverride
	for i := range window.ManualOverrides {
		if window.ManualOverrides[i].PlayerID == "e" {
			lock = &window.ManualOverrides[i]
		}
	}
	require.NotNil(t, lock, "player at the bench limit must be locked on field")
	assert.Equal(t, 0, lock.RotationIndex)
	assert.Equal(t, types.AssignmentField, lock.Assignment)
	assert.Equal(t, types.LockHard, lock.LockMode)
}

func TestBuildMidGameWindowLocksRestingGoalie(t *testing.T) {
	existing := []*types.Rotation{
		rotationWith(0, 0, "c"),
	}
	existing[0].Assignments["b"] = types.AssignmentGoalie

	params := MidGameParams{
		Config: types.GameConfig{
			FieldSize:             4,
			Periods:               2,
			RotationsPerPeriod:    1,
			UseGoalie:             true,
			GoalieRestAfterPeriod: true,
		},
		PeriodDivisions:   []int{1, 1},
		StartFromRotation: 1,
		ExistingRotations: existing,
		Players:           midGameRoster(),
	}

	window := BuildMidGameWindow(params)
	require.NotNil(t, window)

	var benchLock *types.ManualOverride
	for i := range window.ManualOverrides {
		o := &window.ManualOverrides[i]
		if o.PlayerID == "b" && o.Assignment == types.AssignmentBench {
			benchLock = o
		}
	}
	require.NotNil(t, benchLock, "previous period's goalie must rest")
	assert.Equal(t, 0, benchLock.RotationIndex)
	assert.Equal(t, types.LockHard, benchLock.LockMode)
}

func TestBuildMidGameMinPlayInputs(t *testing.T) {
	config := types.GameConfig{MinPlayPercentage: 50}
	players := midGameRoster()
	divisions := []int{2, 2}
	existing := []*types.Rotation{
		rotationWith(0, 0, "e"),
		rotationWith(1, 0, "e"),
	}

	weights, ceilings := BuildMidGameMinPlayInputs(config, players, divisions, 2, existing)

	// Window covers period 1's two half-rotations.
	require.Len(t, weights, 2)
	assert.InDelta(t, 0.5, weights[0], 1e-9)
	assert.InDelta(t, 0.5, weights[1], 1e-9)

	// Full budget is 2 * 0.5 = 1.0 bench weight. "e" already spent both
	// period-0 halves; everyone else has the full budget left.
	assert.InDelta(t, 0.0, ceilings["e"], 1e-9)
	assert.InDelta(t, 1.0, ceilings["a"], 1e-9)
}

func TestRemapWindowScheduleShiftsIndices(t *testing.T) {
	schedule := stats.AssembleSchedule([]*types.Rotation{
		rotationWith(0, 0, "a"),
		rotationWith(1, 1, "b"),
	}, midGameRoster())

	remapped := remapWindowSchedule(schedule, 3, 2)
	assert.Equal(t, 3, remapped.Rotations[0].Index)
	assert.Equal(t, 2, remapped.Rotations[0].PeriodIndex)
	assert.Equal(t, 4, remapped.Rotations[1].Index)
	assert.Equal(t, 3, remapped.Rotations[1].PeriodIndex)
}
