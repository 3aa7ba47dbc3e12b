package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

func TestChoosePrefersExactSearchForSmallInstances(t *testing.T) {
	small := testContext(rosterN(9), types.GameConfig{FieldSize: 6, Periods: 3, RotationsPerPeriod: 1}, nil)
	_, isExact := Choose(nil, small).(ExactSolver)
	assert.True(t, isExact)

	large := testContext(rosterN(13), types.GameConfig{FieldSize: 7, Periods: 4, RotationsPerPeriod: 1}, nil)
	_, isMIP := Choose(nil, large).(*MIPSolver)
	assert.True(t, isMIP)
}

func TestChooseRoutesWeightedBudgetsToMIP(t *testing.T) {
	ctx := testContext(rosterN(9), types.GameConfig{FieldSize: 6, Periods: 3, RotationsPerPeriod: 1}, nil)
	ctx.MaxBenchWeightByPlayer = map[string]float64{"a": 1.0}
	_, isMIP := Choose(nil, ctx).(*MIPSolver)
	assert.True(t, isMIP, "per-player bench budgets need the weighted MIP model")
}

func TestValidateGoalieAssignments(t *testing.T) {
	players := []types.Player{
		{ID: "g1", Name: "Ana", CanPlayGoalie: true},
		{ID: "f1", Name: "Ben"},
	}
	config := types.GameConfig{
		UseGoalie:             true,
		Periods:               3,
		GoalieRestAfterPeriod: true,
	}

	warnings := ValidateGoalieAssignments(players, config, []types.GoalieAssignment{
		{PeriodIndex: 0, PlayerID: "missing"},
		{PeriodIndex: 1, PlayerID: "f1"},
		{PeriodIndex: 2, PlayerID: types.AutoGoalie},
	})
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "missing or absent")
	assert.Contains(t, warnings[1], "not goalie-eligible")
}

func TestValidateGoalieAssignmentsConsecutiveUnderRest(t *testing.T) {
	players := []types.Player{{ID: "g1", Name: "Ana", CanPlayGoalie: true}}
	config := types.GameConfig{
		UseGoalie:             true,
		Periods:               2,
		GoalieRestAfterPeriod: true,
	}

	warnings := ValidateGoalieAssignments(players, config, []types.GoalieAssignment{
		{PeriodIndex: 0, PlayerID: "g1"},
		{PeriodIndex: 1, PlayerID: "g1"},
	})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "goalie rest")
}

func TestValidateGoalieAssignmentsDisabled(t *testing.T) {
	warnings := ValidateGoalieAssignments(nil, types.GameConfig{}, []types.GoalieAssignment{
		{PeriodIndex: 0, PlayerID: "anyone"},
	})
	assert.Nil(t, warnings)
}
