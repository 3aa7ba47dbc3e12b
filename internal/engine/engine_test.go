package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtime-dev/rotation-engine/internal/solver"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

func engineRoster(n int) []types.Player {
	players := make([]types.Player, n)
	for i := 0; i < n; i++ {
		players[i] = types.Player{
			ID:           fmt.Sprintf("p%d", i),
			Name:         fmt.Sprintf("Player %d", i),
			SkillRanking: i%5 + 1,
		}
	}
	return players
}

func newTestEngine(onProgress ProgressFunc) *Engine {
	return New(nil, nil, onProgress)
}

func TestEngineSolveBasic(t *testing.T) {
	var progress []int
	e := newTestEngine(func(requestID string, percentage int, message string) {
		assert.Equal(t, "req-1", requestID)
		progress = append(progress, percentage)
	})

	result, err := e.Solve(SolveRequest{
		RequestID: "req-1",
		Players:   engineRoster(9),
		Config: types.GameConfig{
			FieldSize:          6,
			Periods:            3,
			RotationsPerPeriod: 1,
		},
		SkipOptimizationCheck: true,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Schedule)
	require.Len(t, result.Schedule.Rotations, 3)

	for _, rotation := range result.Schedule.Rotations {
		benched := 0
		for _, a := range rotation.Assignments {
			if a == types.AssignmentBench {
				benched++
			}
		}
		assert.Equal(t, 3, benched)
	}
	for id, st := range result.Schedule.PlayerStats {
		assert.Equal(t, 67, st.PlayPercentage, "player %s", id)
	}

	require.NotEmpty(t, progress)
	assert.Equal(t, 1, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.Nil(t, result.Suggestion)
}

func TestEngineSolveNotEnoughPlayers(t *testing.T) {
	e := newTestEngine(nil)
	_, err := e.Solve(SolveRequest{
		RequestID: "req-short",
		Players:   engineRoster(4),
		Config:    types.GameConfig{FieldSize: 6, Periods: 2, RotationsPerPeriod: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enough players: 4 available, 6 needed on field")
}

func TestEngineSolveFiltersAbsentPlayers(t *testing.T) {
	players := engineRoster(10)
	e := newTestEngine(nil)

	result, err := e.Solve(SolveRequest{
		RequestID: "req-absent",
		Players:   players,
		Config: types.GameConfig{
			FieldSize:          6,
			Periods:            2,
			RotationsPerPeriod: 1,
		},
		AbsentPlayerIDs:       []string{"p9"},
		SkipOptimizationCheck: true,
	})
	require.NoError(t, err)

	_, tracked := result.Schedule.PlayerStats["p9"]
	assert.False(t, tracked, "absent player must not appear in stats")
	for _, rotation := range result.Schedule.Rotations {
		_, assigned := rotation.Assignments["p9"]
		assert.False(t, assigned)
		assert.Len(t, rotation.Assignments, 9)
	}
}

func TestEngineSolveMidGameMergesPlayedPrefix(t *testing.T) {
	players := midGameRoster()
	played := rotationWith(0, 0, "e")

	e := newTestEngine(nil)
	result, err := e.Solve(SolveRequest{
		RequestID: "req-mid",
		Players:   players,
		Config: types.GameConfig{
			FieldSize:          4,
			Periods:            3,
			RotationsPerPeriod: 1,
			EnforceMinPlayTime: true,
			MinPlayPercentage:  60,
		},
		StartFromRotation:     1,
		ExistingRotations:     []*types.Rotation{played},
		SkipOptimizationCheck: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Schedule.Rotations, 3)

	assert.Same(t, played, result.Schedule.Rotations[0])
	assert.Equal(t, 1, result.Schedule.Rotations[1].Index)
	assert.Equal(t, 2, result.Schedule.Rotations[2].Index)
	assert.Equal(t, 1, result.Schedule.Rotations[1].PeriodIndex)
	assert.Equal(t, 2, result.Schedule.Rotations[2].PeriodIndex)

	// "e" already sat once; the solved remainder should even things out so
	// everyone ends within one bench of each other.
	for id, st := range result.Schedule.PlayerStats {
		assert.LessOrEqual(t, st.RotationsBenched, 1, "player %s", id)
	}
}

func TestEngineSolveRelaxesConstraints(t *testing.T) {
	players := engineRoster(4)
	e := newTestEngine(nil)

	// Two forced benches in a row break the consecutive-bench limit, so
	// the strict pass is infeasible and the relaxed pass must take over.
	req := SolveRequest{
		RequestID: "req-relax",
		Players:   players,
		Config: types.GameConfig{
			FieldSize:           3,
			Periods:             4,
			RotationsPerPeriod:  1,
			NoConsecutiveBench:  true,
			MaxConsecutiveBench: 1,
		},
		ManualOverrides: []types.ManualOverride{
			{PlayerID: "p0", RotationIndex: 0, Assignment: types.AssignmentBench, LockMode: types.LockHard},
			{PlayerID: "p0", RotationIndex: 1, Assignment: types.AssignmentBench, LockMode: types.LockHard},
		},
		SkipOptimizationCheck: true,
	}

	_, err := e.Solve(req)
	require.Error(t, err, "strict constraints alone cannot satisfy the locks")

	req.AllowConstraintRelaxation = true
	result, err := e.Solve(req)
	require.NoError(t, err)
	assert.Equal(t, types.AssignmentBench, result.Schedule.Rotations[0].Assignments["p0"])
	assert.Equal(t, types.AssignmentBench, result.Schedule.Rotations[1].Assignments["p0"])
}

func TestEngineSolveKeepsExistingScheduleOnRelaxedFailure(t *testing.T) {
	players := midGameRoster()
	existing := []*types.Rotation{rotationWith(0, 0, "e")}

	e := newTestEngine(nil)
	result, err := e.Solve(SolveRequest{
		RequestID: "req-keep",
		Players:   players,
		Config: types.GameConfig{
			FieldSize:          4,
			Periods:            3,
			RotationsPerPeriod: 1,
		},
		// Only one bench slot per rotation, so two hard bench locks at the
		// same rotation are infeasible no matter what gets relaxed.
		ManualOverrides: []types.ManualOverride{
			{PlayerID: "a", RotationIndex: 1, Assignment: types.AssignmentBench, LockMode: types.LockHard},
			{PlayerID: "b", RotationIndex: 1, Assignment: types.AssignmentBench, LockMode: types.LockHard},
		},
		StartFromRotation:         1,
		ExistingRotations:         existing,
		AllowConstraintRelaxation: true,
		SkipOptimizationCheck:     true,
	})
	require.NoError(t, err)
	require.Len(t, result.Schedule.Rotations, 1)
	assert.Same(t, existing[0], result.Schedule.Rotations[0])
}

func TestEngineSolveRejectsConcurrentRequests(t *testing.T) {
	e := newTestEngine(nil)
	e.inFlightID = "busy"

	_, err := e.Solve(SolveRequest{
		RequestID: "req-second",
		Players:   engineRoster(9),
		Config:    types.GameConfig{FieldSize: 6, Periods: 2, RotationsPerPeriod: 1},
	})
	assert.ErrorIs(t, err, ErrSolveInFlight)
}

func TestEngineCancel(t *testing.T) {
	e := newTestEngine(nil)

	// Unknown id is a no-op.
	e.Cancel("nobody")

	e.inFlightID = "req-live"
	e.cancellation = solver.NewCancellation()
	e.Cancel("other")
	assert.False(t, e.cancellation.Cancelled())

	e.Cancel("req-live")
	assert.True(t, e.cancellation.Cancelled())
}

func TestEngineSolveInfeasibleWithoutRelaxation(t *testing.T) {
	e := newTestEngine(nil)
	_, err := e.Solve(SolveRequest{
		RequestID: "req-inf",
		Players:   engineRoster(4),
		Config: types.GameConfig{
			FieldSize:          3,
			Periods:            2,
			RotationsPerPeriod: 1,
		},
		ManualOverrides: []types.ManualOverride{
			{PlayerID: "p0", RotationIndex: 0, Assignment: types.AssignmentBench, LockMode: types.LockHard},
			{PlayerID: "p1", RotationIndex: 0, Assignment: types.AssignmentBench, LockMode: types.LockHard},
		},
		SkipOptimizationCheck: true,
	})
	assert.ErrorIs(t, err, solver.ErrInfeasible)
}
