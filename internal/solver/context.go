// Package solver produces rotation schedules from a roster, game config, and
// coaching constraints. Two interchangeable strategies are provided: an exact
// backtracking search and a mixed-integer-programming formulation; both share
// the same constraint preparation and schedule assembly.
package solver

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// ErrCancelled reports cooperative cancellation. It is not a failure;
// callers suppress it rather than surfacing it to users.
var ErrCancelled = errors.New("solve cancelled")

// ErrInfeasible marks errors where no schedule can satisfy the prepared
// constraints. Infeasibility details are wrapped around this sentinel so
// callers can trigger relaxation cascades with errors.Is.
var ErrInfeasible = errors.New("no valid rotation schedule")

func infeasiblef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInfeasible, fmt.Sprintf(format, args...))
}

// ProgressFunc receives periodic progress updates: a 0-100 percentage and a
// human-readable stage description.
type ProgressFunc func(percentage int, message string)

// Cancellation is a cooperative cancellation flag checked at fine
// granularity inside search recursion and at MIP call boundaries.
type Cancellation struct {
	flag atomic.Bool
}

// NewCancellation returns an unset cancellation token.
func NewCancellation() *Cancellation {
	return &Cancellation{}
}

// Cancel sets the flag. Safe to call from any goroutine.
func (c *Cancellation) Cancel() {
	c.flag.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (c *Cancellation) Cancelled() bool {
	return c != nil && c.flag.Load()
}

// DefaultSearchTimeout bounds the exact search's wall clock. The value is a
// responsiveness heuristic, not a correctness parameter; override it via
// Context.SearchTimeout.
const DefaultSearchTimeout = 10 * time.Second

// DefaultMIPTimeout bounds a single MIP backend call.
const DefaultMIPTimeout = 12 * time.Second

// Context is the full input bundle for one solve. Constructed per request
// and discarded after the schedule (or error) is returned.
type Context struct {
	Players           []types.Player
	Config            types.GameConfig
	GoalieAssignments []types.GoalieAssignment
	ManualOverrides   []types.ManualOverride

	// PositionContinuityPreferences are soft sub-position hints carried
	// over from a live schedule during mid-game regeneration.
	PositionContinuityPreferences []types.PositionContinuityPreference

	// PeriodDivisions states how many rotations each period is split into.
	// Nil falls back to Config.RotationsPerPeriod per period.
	PeriodDivisions []int

	// RotationWeights and MaxBenchWeightByPlayer are optional precomputed
	// inputs supplied by mid-game logic; when nil they are derived from the
	// period divisions and Config.MinPlayPercentage.
	RotationWeights        []float64
	MaxBenchWeightByPlayer map[string]float64

	TotalRotations        int
	BenchSlotsPerRotation int

	// FeasibilityOnly accepts any feasible integer solution, used for fast
	// trial solves during division optimization.
	FeasibilityOnly bool
	SearchTimeout   time.Duration

	OnProgress   ProgressFunc
	Cancellation *Cancellation
	Logger       *logrus.Entry
}

func (c *Context) progress(percentage int, message string) {
	if c.OnProgress != nil {
		c.OnProgress(percentage, message)
	}
}

func (c *Context) cancelled() bool {
	return c.Cancellation.Cancelled()
}

func (c *Context) log() *logrus.Entry {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (c *Context) searchTimeout(fallback time.Duration) time.Duration {
	if c.SearchTimeout > 0 {
		return c.SearchTimeout
	}
	return fallback
}

// Solver is one scheduling strategy. Implementations share PrepareConstraints
// input semantics and BuildSchedule output semantics.
type Solver interface {
	Solve(ctx *Context) (*types.RotationSchedule, error)
}
