package solver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fieldtime-dev/rotation-engine/internal/mip"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// MIPSolver delegates the NP-hard search to the integer-programming backend.
// This is the default strategy; ExactSolver covers small rosters and
// verification. The backend handle is stateful and shared across solves;
// after a crash it resets itself so the next solve starts from a fresh
// instance.
type MIPSolver struct {
	backend *mip.Backend
}

// NewMIPSolver wraps an existing backend handle. The handle may be shared
// across sequential solves but never across concurrent ones.
func NewMIPSolver(backend *mip.Backend) *MIPSolver {
	if backend == nil {
		backend = mip.NewBackend()
	}
	return &MIPSolver{backend: backend}
}

// Solve implements the Solver interface.
func (s *MIPSolver) Solve(ctx *Context) (*types.RotationSchedule, error) {
	if ctx.cancelled() {
		return nil, ErrCancelled
	}
	ctx.progress(2, "initializing")

	prepared, err := PrepareConstraints(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.cancelled() {
		return nil, ErrCancelled
	}

	ctx.progress(8, "formulating program")
	built := buildMIPModel(ctx, prepared)

	ctx.log().WithFields(logrus.Fields{
		"players":    len(ctx.Players),
		"rotations":  ctx.TotalRotations,
		"variables":  built.model.NumVars(),
		"constrs":    built.model.NumConstrs(),
		"feasOnly":   ctx.FeasibilityOnly,
	}).Debug("Solving rotation MIP")

	ctx.progress(12, searchingMessage(0))

	sol, err := s.backend.Solve(built.model, mip.SolveOptions{
		TimeLimit:       ctx.searchTimeout(DefaultMIPTimeout),
		FeasibilityOnly: ctx.FeasibilityOnly,
		Cancelled:       ctx.Cancellation.Cancelled,
	})
	if err != nil {
		if errors.Is(err, mip.ErrBackendCrash) {
			return nil, fmt.Errorf("no valid rotation schedule found, solver crashed: %w", err)
		}
		return nil, err
	}
	if ctx.cancelled() {
		return nil, ErrCancelled
	}

	if !sol.HasIncumbent {
		return nil, s.mapFailure(sol, ctx, prepared)
	}

	ctx.progress(47, "building schedule")

	benchSets := extractBenchSets(sol, built, ctx.TotalRotations)
	return BuildSchedule(built.players, benchSets, prepared, ctx), nil
}

// mapFailure translates a non-usable backend status into a domain error,
// running post-hoc conflict detection for infeasible models.
func (s *MIPSolver) mapFailure(sol *mip.Solution, ctx *Context, prepared *PreparedConstraints) error {
	switch sol.Status {
	case mip.StatusInfeasible:
		conflicts := detectConflicts(ctx.Players, prepared, ctx.TotalRotations, ctx.BenchSlotsPerRotation)
		if len(conflicts) > 0 {
			return infeasiblef("%s", strings.Join(conflicts, "; "))
		}
		return infeasiblef("constraint combination is infeasible; check no-consecutive-bench, minimum play time, and goalie rest settings")
	case mip.StatusTimeLimit:
		return fmt.Errorf("no valid rotation schedule found within search limit; add hard locks or relax constraints and try again")
	default:
		return fmt.Errorf("solver error: %s", sol.Status)
	}
}

// extractBenchSets reads the bench binaries out of a solution. Values are
// near-integral after rounding in the backend; 0.5 is a safe threshold.
func extractBenchSets(sol *mip.Solution, built *builtModel, totalRotations int) []BenchPattern {
	benchSets := make([]BenchPattern, len(built.benchVars))
	for i, row := range built.benchVars {
		var pattern BenchPattern
		for r := 0; r < totalRotations; r++ {
			if sol.Values[row[r]] > 0.5 {
				pattern = append(pattern, r)
			}
		}
		benchSets[i] = pattern
	}
	return benchSets
}

// detectConflicts looks for the specific cause of infeasibility: per-player
// must/cannot overlap, then per-rotation forced-bench overflow or a
// benchable pool smaller than the budget.
func detectConflicts(
	players []types.Player,
	prepared *PreparedConstraints,
	totalRotations, benchSlotsPerRotation int,
) []string {
	var conflicts []string

	for _, p := range players {
		var overlap []int
		for r := range prepared.MustBench[p.ID] {
			if prepared.CannotBench[p.ID][r] {
				overlap = append(overlap, r)
			}
		}
		if len(overlap) > 0 {
			conflicts = append(conflicts, fmt.Sprintf("%s: conflict on %s (must bench and cannot bench)",
				p.Name, oneBasedRotations(overlap)))
		}
	}

	constraints := make([]playerConstraints, len(players))
	for i, p := range players {
		constraints[i] = playerConstraints{
			player:      p,
			cannotBench: prepared.CannotBench[p.ID],
			mustBench:   prepared.MustBench[p.ID],
		}
	}
	conflicts = append(conflicts, findRotationCapacityConflicts(constraints, totalRotations, benchSlotsPerRotation)...)

	return conflicts
}
