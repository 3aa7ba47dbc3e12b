package solver

import (
	"fmt"

	"github.com/fieldtime-dev/rotation-engine/internal/mip"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// exactSearchMaxCells bounds the players x rotations grid for which the
// backtracking strategy stays responsive. Above this the MIP formulation
// wins comfortably.
const exactSearchMaxCells = 48

// Choose selects a strategy for the given context. The MIP path is the
// default; tiny instances go to the exact search, which also serves as a
// verification path in tests. Per-player bench-weight budgets (mid-game
// min-play windows) always go to the MIP, which is the only strategy
// modeling weighted ceilings.
func Choose(backend *mip.Backend, ctx *Context) Solver {
	if len(ctx.MaxBenchWeightByPlayer) > 0 {
		return NewMIPSolver(backend)
	}
	if len(ctx.Players)*ctx.TotalRotations <= exactSearchMaxCells {
		return ExactSolver{}
	}
	return NewMIPSolver(backend)
}

// ValidateGoalieAssignments reports every invalid explicit goalie
// assignment: missing or ineligible players, and same-goalie consecutive
// periods when goalie rest is on. Auto slots are always valid.
func ValidateGoalieAssignments(
	players []types.Player,
	config types.GameConfig,
	assignments []types.GoalieAssignment,
) []string {
	if !config.UseGoalie {
		return nil
	}

	playerByID := make(map[string]types.Player, len(players))
	for _, p := range players {
		playerByID[p.ID] = p
	}

	var errors []string
	periodToGoalie := make(map[int]string)

	for _, a := range assignments {
		if a.PlayerID == types.AutoGoalie {
			continue
		}
		if a.PeriodIndex < 0 || a.PeriodIndex >= config.Periods {
			continue
		}
		player, ok := playerByID[a.PlayerID]
		if !ok {
			errors = append(errors, fmt.Sprintf("goalie assignment for period %d references a missing or absent player", a.PeriodIndex+1))
			continue
		}
		if !player.CanPlayGoalie {
			errors = append(errors, fmt.Sprintf("%s is assigned as goalie in period %d but is not goalie-eligible", player.Name, a.PeriodIndex+1))
		}
		periodToGoalie[a.PeriodIndex] = a.PlayerID
	}

	if config.GoalieRestAfterPeriod {
		for period := 0; period < config.Periods-1; period++ {
			this, okThis := periodToGoalie[period]
			next, okNext := periodToGoalie[period+1]
			if okThis && okNext && this == next {
				errors = append(errors, fmt.Sprintf("%s is assigned goalie in periods %d and %d; goalie rest requires them to bench first rotation of period %d",
					playerByID[this].Name, period+1, period+2, period+2))
			}
		}
	}

	return errors
}
