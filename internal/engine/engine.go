// Package engine orchestrates rotation solves: one in-flight request at a
// time, cooperative cancellation by request id, progress callbacks, the
// constraint relaxation cascade, mid-game windowing, and the post-solve
// division optimization check.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldtime-dev/rotation-engine/internal/division"
	"github.com/fieldtime-dev/rotation-engine/internal/layout"
	"github.com/fieldtime-dev/rotation-engine/internal/mip"
	"github.com/fieldtime-dev/rotation-engine/internal/solver"
	"github.com/fieldtime-dev/rotation-engine/internal/stats"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// ErrSolveInFlight is returned when a second solve is requested while one
// is still running. Callers needing concurrency must use separate engines.
var ErrSolveInFlight = errors.New("another solve is already in flight")

// ErrCancelled re-exports the solver sentinel so callers can suppress
// cancellations without importing the solver package.
var ErrCancelled = solver.ErrCancelled

const (
	trialSolveLimit   = 12
	trialPhaseBudget  = 10 * time.Second
	trialSolveTimeout = 3 * time.Second
)

// SolveRequest is the inbound message for one solve.
type SolveRequest struct {
	RequestID                     string
	Players                       []types.Player
	Config                        types.GameConfig
	AbsentPlayerIDs               []string
	GoalieAssignments             []types.GoalieAssignment
	ManualOverrides               []types.ManualOverride
	PositionContinuityPreferences []types.PositionContinuityPreference
	PeriodDivisions               []int

	// StartFromRotation > 0 with ExistingRotations marks a mid-game
	// regeneration: rotations before it are preserved and merged back.
	StartFromRotation int
	ExistingRotations []*types.Rotation

	AllowConstraintRelaxation bool
	SkipOptimizationCheck     bool

	// FeasibilityOnly and SearchTimeout tune the MIP call; zero values use
	// the defaults.
	FeasibilityOnly bool
	SearchTimeout   time.Duration
}

// SolveResult is the terminal success payload.
type SolveResult struct {
	Schedule   *types.RotationSchedule
	Suggestion *division.Suggestion
}

// ProgressFunc receives progress for the in-flight request.
type ProgressFunc func(requestID string, percentage int, message string)

// Engine owns the MIP backend handle and admits one solve at a time.
type Engine struct {
	mu           sync.Mutex
	inFlightID   string
	cancellation *solver.Cancellation

	backend      *mip.Backend
	log          *logrus.Entry
	onProgress   ProgressFunc
	trialTimeout time.Duration
}

// New creates an engine around a backend handle. onProgress may be nil.
func New(backend *mip.Backend, log *logrus.Entry, onProgress ProgressFunc) *Engine {
	if backend == nil {
		backend = mip.NewBackend()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{backend: backend, log: log, onProgress: onProgress}
}

// SetTrialTimeout overrides the per-candidate time limit for optimization
// check trial solves. Zero or negative keeps the default.
func (e *Engine) SetTrialTimeout(d time.Duration) {
	e.trialTimeout = d
}

// Cancel flags the in-flight solve matching requestID for cooperative
// cancellation. Unknown ids are ignored.
func (e *Engine) Cancel(requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlightID == requestID && e.cancellation != nil {
		e.cancellation.Cancel()
		e.log.WithField("requestId", requestID).Info("Solve cancellation requested")
	}
}

func (e *Engine) begin(requestID string) (*solver.Cancellation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlightID != "" {
		return nil, ErrSolveInFlight
	}
	e.inFlightID = requestID
	e.cancellation = solver.NewCancellation()
	return e.cancellation, nil
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.inFlightID = ""
	e.cancellation = nil
	e.mu.Unlock()
}

// Solve runs the full pipeline synchronously and returns exactly one
// terminal result or error. ErrCancelled is a no-op for callers, not a
// failure.
func (e *Engine) Solve(req SolveRequest) (*SolveResult, error) {
	cancellation, err := e.begin(req.RequestID)
	if err != nil {
		return nil, err
	}
	defer e.finish()

	log := e.log.WithField("requestId", req.RequestID)
	progress := func(percentage int, message string) {
		if e.onProgress != nil {
			e.onProgress(req.RequestID, percentage, message)
		}
	}

	progress(1, "initializing")

	absent := make(map[string]bool, len(req.AbsentPlayerIDs))
	for _, id := range req.AbsentPlayerIDs {
		absent[id] = true
	}
	var activePlayers []types.Player
	for _, p := range req.Players {
		if !absent[p.ID] {
			activePlayers = append(activePlayers, p)
		}
	}

	baseDivisions := layout.Normalize(req.PeriodDivisions, req.Config.Periods, req.Config.RotationsPerPeriod)
	benchSlotsPerRotation := len(activePlayers) - req.Config.FieldSize
	if benchSlotsPerRotation < 0 {
		return nil, fmt.Errorf("not enough players: %d available, %d needed on field", len(activePlayers), req.Config.FieldSize)
	}

	startFrom := req.StartFromRotation
	if startFrom < 0 {
		startFrom = 0
	}
	canMergeMidGame := startFrom > 0 && len(req.ExistingRotations) > 0

	run := runner{
		engine:                  e,
		req:                     req,
		cancellation:            cancellation,
		log:                     log,
		progress:                progress,
		activePlayers:           activePlayers,
		baseDivisions:           baseDivisions,
		benchSlotsPerRotation:   benchSlotsPerRotation,
		requestedStartFrom:      startFrom,
		canMergeMidGame:         canMergeMidGame,
	}

	attempts := []types.GameConfig{req.Config}
	if req.AllowConstraintRelaxation {
		if req.Config.NoConsecutiveBench {
			relaxed := req.Config
			relaxed.NoConsecutiveBench = false
			attempts = append(attempts, relaxed)
		}
		if req.Config.SkillBalance {
			relaxed := req.Config
			relaxed.SkillBalance = false
			attempts = append(attempts, relaxed)
		}
		if req.Config.NoConsecutiveBench && req.Config.SkillBalance {
			relaxed := req.Config
			relaxed.NoConsecutiveBench = false
			relaxed.SkillBalance = false
			attempts = append(attempts, relaxed)
		}
	}

	var schedule *types.RotationSchedule
	var lastErr error
	for i, attempt := range attempts {
		schedule, lastErr = run.solveForConfig(attempt)
		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, solver.ErrCancelled) {
			return nil, lastErr
		}
		if i > 0 || len(attempts) > 1 {
			log.WithError(lastErr).WithField("attempt", i+1).Warn("Solve attempt failed, trying relaxed constraints")
			continue
		}
		if !errors.Is(lastErr, solver.ErrInfeasible) {
			return nil, lastErr
		}
	}

	if schedule == nil {
		if req.AllowConstraintRelaxation && len(req.ExistingRotations) > 0 {
			// Keep the live schedule rather than failing a running game.
			schedule = stats.AssembleSchedule(req.ExistingRotations, activePlayers)
		} else if lastErr != nil {
			return nil, lastErr
		} else {
			return nil, solver.ErrInfeasible
		}
	}

	var suggestion *division.Suggestion
	if !req.SkipOptimizationCheck && len(schedule.PlayerStats) > 0 {
		suggestion = run.checkOptimization(schedule)
	}

	progress(100, "complete")
	return &SolveResult{Schedule: schedule, Suggestion: suggestion}, nil
}

// runner carries the per-request state shared between the main solve and
// the optimization trial solves.
type runner struct {
	engine                *Engine
	req                   SolveRequest
	cancellation          *solver.Cancellation
	log                   *logrus.Entry
	progress              func(int, string)
	activePlayers         []types.Player
	baseDivisions         []int
	benchSlotsPerRotation int
	requestedStartFrom    int
	canMergeMidGame       bool
}

// solveForConfig runs one pipeline pass for a (possibly relaxed) config,
// windowing to the unplayed remainder for mid-game requests and merging the
// played prefix back in.
func (r *runner) solveForConfig(attemptConfig types.GameConfig) (*types.RotationSchedule, error) {
	var window *MidGameWindow
	if r.canMergeMidGame {
		window = BuildMidGameWindow(MidGameParams{
			Config:                        attemptConfig,
			PeriodDivisions:               r.baseDivisions,
			GoalieAssignments:             r.req.GoalieAssignments,
			ManualOverrides:               r.req.ManualOverrides,
			PositionContinuityPreferences: r.req.PositionContinuityPreferences,
			StartFromRotation:             r.requestedStartFrom,
			ExistingRotations:             r.req.ExistingRotations,
			Players:                       r.activePlayers,
		})
	}

	solveConfig := attemptConfig
	solveDivisions := r.baseDivisions
	solveGoalies := r.req.GoalieAssignments
	solveOverrides := r.req.ManualOverrides
	solvePrefs := r.req.PositionContinuityPreferences
	mergeStartFrom := r.requestedStartFrom
	if window != nil {
		solveConfig = window.Config
		solveDivisions = window.PeriodDivisions
		solveGoalies = window.GoalieAssignments
		solveOverrides = window.ManualOverrides
		solvePrefs = window.PositionContinuityPreferences
		mergeStartFrom = window.StartFromRotation
	}
	solveTotalRotations := layout.TotalRotations(solveDivisions)

	var rotationWeights []float64
	var maxBenchWeightByPlayer map[string]float64
	if window != nil && attemptConfig.EnforceMinPlayTime {
		rotationWeights, maxBenchWeightByPlayer = BuildMidGameMinPlayInputs(
			attemptConfig, r.activePlayers, r.baseDivisions, window.StartFromRotation, r.req.ExistingRotations)
		if len(rotationWeights) != solveTotalRotations {
			return nil, fmt.Errorf("period divisions do not match total rotations")
		}
	}

	if errs := solver.ValidateGoalieAssignments(r.activePlayers, solveConfig, solveGoalies); len(errs) > 0 {
		return nil, errors.New(errs[0])
	}

	ctx := &solver.Context{
		Players:                       r.activePlayers,
		Config:                        solveConfig,
		GoalieAssignments:             solveGoalies,
		ManualOverrides:               solveOverrides,
		PositionContinuityPreferences: solvePrefs,
		PeriodDivisions:               solveDivisions,
		RotationWeights:               rotationWeights,
		MaxBenchWeightByPlayer:        maxBenchWeightByPlayer,
		TotalRotations:                solveTotalRotations,
		BenchSlotsPerRotation:         r.benchSlotsPerRotation,
		FeasibilityOnly:               r.req.FeasibilityOnly,
		SearchTimeout:                 r.req.SearchTimeout,
		OnProgress:                    r.progress,
		Cancellation:                  r.cancellation,
		Logger:                        r.log,
	}

	schedule, err := solver.Choose(r.engine.backend, ctx).Solve(ctx)
	if err != nil {
		return nil, err
	}

	if !r.canMergeMidGame {
		return schedule, nil
	}
	if window != nil {
		schedule = remapWindowSchedule(schedule, window.StartFromRotation, window.StartPeriodIndex)
	}
	start := mergeStartFrom
	if start > len(r.req.ExistingRotations) {
		start = len(r.req.ExistingRotations)
	}
	return MergeSchedules(r.req.ExistingRotations, schedule, start, r.activePlayers), nil
}

// checkOptimization runs the analytic division check and trial-solves the
// surviving candidates with relaxed constraints in feasibility-only mode,
// replacing the analytic estimates with solved gaps. Failures here never
// block the success response.
func (r *runner) checkOptimization(schedule *types.RotationSchedule) *division.Suggestion {
	currentRotationIndex := 0
	if r.requestedStartFrom > 0 {
		currentRotationIndex = r.requestedStartFrom
	}

	suggestion := division.Check(division.CheckInput{
		CurrentDivisions:     r.baseDivisions,
		Players:              r.activePlayers,
		Config:               r.req.Config,
		GoalieAssignments:    r.req.GoalieAssignments,
		PlayerStats:          schedule.PlayerStats,
		CurrentRotationIndex: currentRotationIndex,
	})
	if suggestion == nil {
		return nil
	}

	candidates := suggestion.Options
	if len(candidates) > trialSolveLimit {
		candidates = candidates[:trialSolveLimit]
	}
	phaseStart := time.Now()

	var validOptions []division.Option
	for i, option := range candidates {
		if r.cancellation.Cancelled() {
			break
		}
		if time.Since(phaseStart) > trialPhaseBudget {
			break
		}
		r.progress(50+i*49/len(candidates), "checking division optimizations")

		trialSchedule, err := r.trialSolve(option.PeriodDivisions)
		if err != nil {
			if errors.Is(err, solver.ErrCancelled) {
				break
			}
			if errors.Is(err, mip.ErrBackendCrash) {
				// Further trials in this pass would also fail.
				r.log.WithError(err).Warn("Trial solve crashed, stopping optimization check")
				break
			}
			continue
		}

		if trialStats := trialSchedule.PlayerStats; len(trialStats) > 0 {
			actualMax, actualMin := playPercentBounds(trialStats)
			actualGap := math.Round((actualMax-actualMin)*10) / 10
			improvement := math.Round((suggestion.CurrentGap-actualGap)*10) / 10
			if improvement < 1 {
				continue
			}
			extraCount := 0
			for _, s := range trialStats {
				if float64(s.PlayPercentage) == actualMax {
					extraCount++
				}
			}
			strengthRange := float64(trialSchedule.OverallStats.MaxStrength - trialSchedule.OverallStats.MinStrength)
			if strengthRange < 0 {
				strengthRange = 0
			}
			option.ExpectedGap = actualGap
			option.ExpectedMaxPercent = actualMax
			option.ExpectedMinPercent = actualMin
			option.ExpectedExtraCount = extraCount
			option.ExpectedStrengthRange = strengthRange
			option.GapImprovement = improvement
		}
		validOptions = append(validOptions, option)
	}

	if len(validOptions) == 0 {
		return nil
	}
	suggestion.Options = validOptions
	return suggestion
}

// trialSolve confirms a division candidate with a short, feasibility-only
// solve under relaxed fairness constraints. Overrides are dropped since the
// candidate changes rotation indexing.
func (r *runner) trialSolve(candidateDivisions []int) (*types.RotationSchedule, error) {
	trialConfig := r.req.Config
	trialConfig.NoConsecutiveBench = false
	trialConfig.SkillBalance = false

	trialDivisions := layout.Normalize(candidateDivisions, r.req.Config.Periods, r.req.Config.RotationsPerPeriod)

	var window *MidGameWindow
	if r.canMergeMidGame {
		window = BuildMidGameWindow(MidGameParams{
			Config:            trialConfig,
			PeriodDivisions:   trialDivisions,
			GoalieAssignments: r.req.GoalieAssignments,
			StartFromRotation: r.requestedStartFrom,
			ExistingRotations: r.req.ExistingRotations,
			Players:           r.activePlayers,
		})
	}

	solveConfig := trialConfig
	solveDivisions := trialDivisions
	solveGoalies := r.req.GoalieAssignments
	var solveOverrides []types.ManualOverride
	if window != nil {
		solveConfig = window.Config
		solveDivisions = window.PeriodDivisions
		solveGoalies = window.GoalieAssignments
		solveOverrides = window.ManualOverrides
	}
	solveTotalRotations := layout.TotalRotations(solveDivisions)

	var rotationWeights []float64
	var maxBenchWeightByPlayer map[string]float64
	if window != nil && trialConfig.EnforceMinPlayTime {
		rotationWeights, maxBenchWeightByPlayer = BuildMidGameMinPlayInputs(
			trialConfig, r.activePlayers, trialDivisions, window.StartFromRotation, r.req.ExistingRotations)
	}

	ctx := &solver.Context{
		Players:                r.activePlayers,
		Config:                 solveConfig,
		GoalieAssignments:      solveGoalies,
		ManualOverrides:        solveOverrides,
		PeriodDivisions:        solveDivisions,
		RotationWeights:        rotationWeights,
		MaxBenchWeightByPlayer: maxBenchWeightByPlayer,
		TotalRotations:         solveTotalRotations,
		BenchSlotsPerRotation:  r.benchSlotsPerRotation,
		FeasibilityOnly:        true,
		SearchTimeout:          r.trialTimeout(),
		Cancellation:           r.cancellation,
		Logger:                 r.log,
	}

	schedule, err := solver.NewMIPSolver(r.engine.backend).Solve(ctx)
	if err != nil {
		return nil, err
	}

	if !r.canMergeMidGame {
		return schedule, nil
	}
	if window != nil {
		schedule = remapWindowSchedule(schedule, window.StartFromRotation, window.StartPeriodIndex)
	}
	start := r.requestedStartFrom
	if window != nil {
		start = window.StartFromRotation
	}
	if start > len(r.req.ExistingRotations) {
		start = len(r.req.ExistingRotations)
	}
	return MergeSchedules(r.req.ExistingRotations, schedule, start, r.activePlayers), nil
}

func (r *runner) trialTimeout() time.Duration {
	if r.engine.trialTimeout > 0 {
		return r.engine.trialTimeout
	}
	return trialSolveTimeout
}

func playPercentBounds(playerStats map[string]types.PlayerStats) (max, min float64) {
	first := true
	for _, s := range playerStats {
		pct := float64(s.PlayPercentage)
		if first {
			max, min = pct, pct
			first = false
			continue
		}
		if pct > max {
			max = pct
		}
		if pct < min {
			min = pct
		}
	}
	return max, min
}
