package mip

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Status classifies the outcome of a Solve call.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusTimeLimit
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusInfeasible:
		return "Infeasible"
	case StatusTimeLimit:
		return "TimeLimit"
	case StatusUnbounded:
		return "Unbounded"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ErrBackendCrash reports an internal solver failure (panic in the numeric
// core). The backend resets itself and must be re-initialized before reuse;
// Solve does this lazily.
var ErrBackendCrash = errors.New("mip backend crashed")

// ErrNotInitialized is returned when Solve is called on a closed backend.
var ErrNotInitialized = errors.New("mip backend not initialized")

// Solution is the result of a Solve call. Values is only populated when
// HasIncumbent is true.
type Solution struct {
	Status       Status
	Objective    float64
	Values       []float64
	HasIncumbent bool
	NodesVisited int
}

// SolveOptions tunes a single Solve call.
type SolveOptions struct {
	// TimeLimit bounds wall-clock search time. Zero means no limit.
	TimeLimit time.Duration
	// FeasibilityOnly stops at the first integer-feasible solution instead
	// of searching for the optimum.
	FeasibilityOnly bool
	// Cancelled is polled between branch-and-bound nodes.
	Cancelled func() bool
}

const (
	intTol   = 1e-6
	boundTol = 1e-9
)

// Backend is a reusable solver handle. It is a stateful resource: Init once,
// reuse across solves, and Reset after any ErrBackendCrash (Solve also
// re-initializes lazily). Safe for use by one solve at a time; the internal
// mutex serializes accidental concurrent callers.
type Backend struct {
	mu    sync.Mutex
	ready bool
}

// NewBackend returns an uninitialized backend handle.
func NewBackend() *Backend {
	return &Backend{}
}

// Init prepares the backend for solving. Calling Init on a ready backend is
// a no-op.
func (be *Backend) Init() error {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.ready = true
	return nil
}

// Reset discards backend state so the next Solve starts from a fresh
// instance.
func (be *Backend) Reset() {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.ready = false
}

// Ready reports whether the backend has been initialized.
func (be *Backend) Ready() bool {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.ready
}

// Solve minimizes the model's objective by branch and bound over LP
// relaxations. A panic in the numeric core is recovered, the backend is
// reset, and ErrBackendCrash is returned wrapped with the panic value.
func (be *Backend) Solve(model *Model, opts SolveOptions) (sol *Solution, err error) {
	be.mu.Lock()
	defer be.mu.Unlock()
	if !be.ready {
		be.ready = true
	}

	defer func() {
		if r := recover(); r != nil {
			be.ready = false
			sol = nil
			err = fmt.Errorf("%w: %v", ErrBackendCrash, r)
		}
	}()

	return be.branchAndBound(model, opts)
}

type bbNode struct {
	lb []float64
	ub []float64
}

func (be *Backend) branchAndBound(model *Model, opts SolveOptions) (*Solution, error) {
	var deadline time.Time
	if opts.TimeLimit > 0 {
		deadline = time.Now().Add(opts.TimeLimit)
	}

	rootLb, rootUb := model.initialBounds()
	stack := []bbNode{{lb: rootLb, ub: rootUb}}
	binaries := model.binaryVars()

	best := &Solution{Status: StatusInfeasible, Objective: math.Inf(1)}
	nodes := 0

	for len(stack) > 0 {
		if opts.Cancelled != nil && opts.Cancelled() {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			best.Status = StatusTimeLimit
			best.NodesVisited = nodes
			return best, nil
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		x, obj, lpStatus := solveRelaxation(model, node.lb, node.ub)
		switch lpStatus {
		case StatusInfeasible:
			continue
		case StatusUnbounded:
			return &Solution{Status: StatusUnbounded, NodesVisited: nodes}, nil
		}

		// Bound: this subtree cannot beat the incumbent.
		if best.HasIncumbent && obj >= best.Objective-boundTol {
			continue
		}

		branchVar := mostFractional(x, binaries)
		if branchVar < 0 {
			// Integer feasible.
			incumbent := append([]float64(nil), x...)
			roundBinaries(incumbent, binaries)
			best = &Solution{
				Status:       StatusOptimal,
				Objective:    obj,
				Values:       incumbent,
				HasIncumbent: true,
				NodesVisited: nodes,
			}
			if opts.FeasibilityOnly {
				return best, nil
			}
			continue
		}

		// Branch: explore the rounded-up side first.
		down := bbNode{lb: append([]float64(nil), node.lb...), ub: append([]float64(nil), node.ub...)}
		up := bbNode{lb: append([]float64(nil), node.lb...), ub: append([]float64(nil), node.ub...)}
		down.ub[branchVar] = 0
		up.lb[branchVar] = 1
		stack = append(stack, down, up)
	}

	best.NodesVisited = nodes
	return best, nil
}

func mostFractional(x []float64, binaries []int) int {
	branchVar := -1
	bestDist := intTol
	for _, i := range binaries {
		frac := math.Abs(x[i] - math.Round(x[i]))
		if frac > bestDist {
			bestDist = frac
			branchVar = i
		}
	}
	return branchVar
}

func roundBinaries(x []float64, binaries []int) {
	for _, i := range binaries {
		x[i] = math.Round(x[i])
	}
}

// solveRelaxation solves the LP relaxation with the node's variable bounds
// folded in as inequality rows, via gonum's general-form conversion and
// simplex.
func solveRelaxation(model *Model, lb, ub []float64) (x []float64, obj float64, status Status) {
	n := len(model.vars)
	c := make([]float64, n)
	for _, t := range model.objective {
		c[t.Var] += t.Coeff
	}

	var gRows [][]float64
	var h []float64
	var aRows [][]float64
	var bEq []float64

	addRow := func(dst *[][]float64, rhsDst *[]float64, terms []Term, scale, rhs float64) {
		row := make([]float64, n)
		for _, t := range terms {
			row[t.Var] += scale * t.Coeff
		}
		*dst = append(*dst, row)
		*rhsDst = append(*rhsDst, scale*rhs)
	}

	for _, con := range model.constraints {
		switch con.Sense {
		case LessEq:
			addRow(&gRows, &h, con.Terms, 1, con.RHS)
		case GreaterEq:
			addRow(&gRows, &h, con.Terms, -1, con.RHS)
		case Equal:
			addRow(&aRows, &bEq, con.Terms, 1, con.RHS)
		}
	}

	unit := func(i int) []Term { return []Term{{Coeff: 1, Var: i}} }
	for i := 0; i < n; i++ {
		if lb[i] > ub[i]+boundTol {
			return nil, 0, StatusInfeasible
		}
		if lb[i] == ub[i] {
			addRow(&aRows, &bEq, unit(i), 1, lb[i])
			continue
		}
		if !math.IsInf(ub[i], 1) {
			addRow(&gRows, &h, unit(i), 1, ub[i])
		}
		if !math.IsInf(lb[i], -1) {
			addRow(&gRows, &h, unit(i), -1, lb[i])
		}
	}

	// lp.Convert compares its matrix arguments against untyped nil, so a nil
	// *mat.Dense must not be wrapped in a non-nil mat.Matrix interface.
	var g, aEq mat.Matrix
	if m := denseFromRows(gRows, n); m != nil {
		g = m
	}
	if m := denseFromRows(aRows, n); m != nil {
		aEq = m
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, aEq, bEq)
	_, xStd, err := lp.Simplex(cStd, aStd, bStd, 1e-10, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, 0, StatusInfeasible
		case errors.Is(err, lp.ErrUnbounded):
			return nil, 0, StatusUnbounded
		default:
			// Numerical trouble in the simplex core surfaces as a crash so
			// callers reset the backend.
			panic(err)
		}
	}

	// Convert splits each free variable into a positive and negative part.
	x = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = xStd[i] - xStd[n+i]
	}
	obj = 0
	for i := 0; i < n; i++ {
		obj += c[i] * x[i]
	}
	return x, obj, StatusOptimal
}

func denseFromRows(rows [][]float64, cols int) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	out := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		out.SetRow(i, row)
	}
	return out
}
