package solver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

func TestMIPSolverBasicSolve(t *testing.T) {
	players := rosterN(6)
	config := types.GameConfig{
		FieldSize:          4,
		Periods:            3,
		RotationsPerPeriod: 1,
	}
	ctx := testContext(players, config, nil)

	schedule, err := NewMIPSolver(nil).Solve(ctx)
	require.NoError(t, err)
	require.Len(t, schedule.Rotations, 3)

	for _, rotation := range schedule.Rotations {
		field, bench, goalie := countAssignments(rotation)
		assert.Equal(t, 4, field)
		assert.Equal(t, 2, bench)
		assert.Equal(t, 0, goalie)
	}
}

func TestMIPSolverHonorsPinsAndRestRule(t *testing.T) {
	players := rosterN(5)
	config := types.GameConfig{
		FieldSize:           4,
		Periods:             4,
		RotationsPerPeriod:  1,
		NoConsecutiveBench:  true,
		MaxConsecutiveBench: 1,
	}
	ctx := testContext(players, config, nil)
	ctx.ManualOverrides = []types.ManualOverride{
		{PlayerID: "a", RotationIndex: 2, Assignment: types.AssignmentBench, LockMode: types.LockHard},
		{PlayerID: "b", RotationIndex: 0, Assignment: types.AssignmentField, LockMode: types.LockHard},
	}

	schedule, err := NewMIPSolver(nil).Solve(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.AssignmentBench, schedule.Rotations[2].Assignments["a"])
	assert.Equal(t, types.AssignmentField, schedule.Rotations[0].Assignments["b"])
	for id, st := range schedule.PlayerStats {
		assert.LessOrEqual(t, st.MaxConsecutiveBench, 1, "player %s", id)
	}
}

func TestMIPSolverMinPlayCeiling(t *testing.T) {
	players := rosterN(6)
	config := types.GameConfig{
		FieldSize:          4,
		Periods:            3,
		RotationsPerPeriod: 1,
		EnforceMinPlayTime: true,
		MinPlayPercentage:  50,
	}
	ctx := testContext(players, config, nil)

	schedule, err := NewMIPSolver(nil).Solve(ctx)
	require.NoError(t, err)
	for id, st := range schedule.PlayerStats {
		assert.GreaterOrEqual(t, st.PlayPercentage, 50, "player %s", id)
	}
}

func TestMIPSolverInfeasibleReportsConflict(t *testing.T) {
	players := rosterN(5)
	config := types.GameConfig{
		FieldSize:          4,
		Periods:            2,
		RotationsPerPeriod: 1,
	}
	ctx := testContext(players, config, nil)
	ctx.ManualOverrides = []types.ManualOverride{
		{PlayerID: "a", RotationIndex: 0, Assignment: types.AssignmentBench, LockMode: types.LockHard},
		{PlayerID: "b", RotationIndex: 0, Assignment: types.AssignmentBench, LockMode: types.LockHard},
	}

	_, err := NewMIPSolver(nil).Solve(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInfeasible))
	assert.Contains(t, err.Error(), "forced to bench")
}

func TestMIPSolverCancelledBeforeStart(t *testing.T) {
	ctx := testContext(rosterN(6), types.GameConfig{FieldSize: 4, Periods: 2, RotationsPerPeriod: 1}, nil)
	ctx.Cancellation = NewCancellation()
	ctx.Cancellation.Cancel()

	_, err := NewMIPSolver(nil).Solve(ctx)
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestMIPSolverFeasibilityOnly(t *testing.T) {
	players := rosterN(6)
	config := types.GameConfig{
		FieldSize:          4,
		Periods:            3,
		RotationsPerPeriod: 1,
	}
	ctx := testContext(players, config, nil)
	ctx.FeasibilityOnly = true

	schedule, err := NewMIPSolver(nil).Solve(ctx)
	require.NoError(t, err)
	for _, rotation := range schedule.Rotations {
		_, bench, _ := countAssignments(rotation)
		assert.Equal(t, 2, bench)
	}
}

func TestWeightScaling(t *testing.T) {
	// Whole periods scale to unit weights.
	scale := weightScale([]float64{1, 1, 1})
	assert.Equal(t, 1, scale)

	// Halves and thirds share a scale of 6.
	scale = weightScale([]float64{0.5, 0.5, 1.0 / 3, 1.0 / 3, 1.0 / 3})
	assert.Equal(t, 6, scale)
	assert.InDelta(t, 3, scaleValue(0.5, 6), 1e-9)
	assert.InDelta(t, 2, scaleValue(1.0/3, 6), 1e-9)
}
