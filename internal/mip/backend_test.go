package mip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Knapsack: maximize 3x+4y+5z with x+y+z <= 2 (binaries), i.e. minimize the
// negated objective. Optimum picks y and z.
func TestSolveBinaryKnapsack(t *testing.T) {
	m := NewModel()
	x := m.AddBinaryVar("x")
	y := m.AddBinaryVar("y")
	z := m.AddBinaryVar("z")
	m.AddConstr([]Term{{1, x}, {1, y}, {1, z}}, LessEq, 2)
	m.SetObjective([]Term{{-3, x}, {-4, y}, {-5, z}})

	be := NewBackend()
	require.NoError(t, be.Init())
	sol, err := be.Solve(m, SolveOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, -9, sol.Objective, 1e-6)
	assert.InDelta(t, 0, sol.Values[x], 1e-6)
	assert.InDelta(t, 1, sol.Values[y], 1e-6)
	assert.InDelta(t, 1, sol.Values[z], 1e-6)
}

func TestSolveEqualityPinning(t *testing.T) {
	m := NewModel()
	x := m.AddBinaryVar("x")
	y := m.AddBinaryVar("y")
	m.AddConstr([]Term{{1, x}, {1, y}}, Equal, 1)
	m.AddConstr([]Term{{1, x}}, Equal, 1)
	m.SetObjective([]Term{{1, x}, {1, y}})

	be := NewBackend()
	sol, err := be.Solve(m, SolveOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 1, sol.Values[x], 1e-6)
	assert.InDelta(t, 0, sol.Values[y], 1e-6)
}

func TestSolveInfeasible(t *testing.T) {
	m := NewModel()
	x := m.AddBinaryVar("x")
	m.AddConstr([]Term{{1, x}}, GreaterEq, 2)
	m.SetObjective([]Term{{1, x}})

	be := NewBackend()
	sol, err := be.Solve(m, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.False(t, sol.HasIncumbent)
}

func TestSolveContinuousWithBinary(t *testing.T) {
	// min g subject to g >= 2 - x, x binary: picking x=1 gives g=1.
	m := NewModel()
	x := m.AddBinaryVar("x")
	g := m.AddVar("g", 0, 10)
	m.AddConstr([]Term{{1, g}, {1, x}}, GreaterEq, 2)
	m.SetObjective([]Term{{1, g}})

	be := NewBackend()
	sol, err := be.Solve(m, SolveOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 1, sol.Objective, 1e-6)
	assert.InDelta(t, 1, sol.Values[x], 1e-6)
}

func TestFeasibilityOnlyStopsAtIncumbent(t *testing.T) {
	m := NewModel()
	x := m.AddBinaryVar("x")
	y := m.AddBinaryVar("y")
	m.AddConstr([]Term{{1, x}, {1, y}}, Equal, 1)
	m.SetObjective([]Term{{1, x}, {2, y}})

	be := NewBackend()
	sol, err := be.Solve(m, SolveOptions{FeasibilityOnly: true})
	require.NoError(t, err)
	assert.True(t, sol.HasIncumbent)
	// Any integer-feasible assignment is acceptable in this mode.
	assert.InDelta(t, 1, sol.Values[x]+sol.Values[y], 1e-6)
}

func TestCancelledSolveReturnsNoIncumbent(t *testing.T) {
	m := NewModel()
	x := m.AddBinaryVar("x")
	m.SetObjective([]Term{{1, x}})

	be := NewBackend()
	sol, err := be.Solve(m, SolveOptions{Cancelled: func() bool { return true }})
	require.NoError(t, err)
	assert.False(t, sol.HasIncumbent)
}

func TestTimeLimitReturnsTimeLimitStatus(t *testing.T) {
	m := NewModel()
	vars := make([]int, 12)
	for i := range vars {
		vars[i] = m.AddBinaryVar("x")
	}
	terms := make([]Term, len(vars))
	for i, v := range vars {
		terms[i] = Term{1, v}
	}
	m.AddConstr(terms, Equal, 6)
	m.SetObjective(terms)

	be := NewBackend()
	sol, err := be.Solve(m, SolveOptions{TimeLimit: time.Nanosecond})
	require.NoError(t, err)
	assert.Equal(t, StatusTimeLimit, sol.Status)
}

func TestBackendLifecycle(t *testing.T) {
	be := NewBackend()
	assert.False(t, be.Ready())
	require.NoError(t, be.Init())
	assert.True(t, be.Ready())
	be.Reset()
	assert.False(t, be.Ready())

	// Solve lazily re-initializes.
	m := NewModel()
	x := m.AddBinaryVar("x")
	m.SetObjective([]Term{{1, x}})
	_, err := be.Solve(m, SolveOptions{})
	require.NoError(t, err)
	assert.True(t, be.Ready())
}
