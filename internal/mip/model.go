// Package mip provides a small mixed-integer-programming backend built on
// gonum's simplex solver. Models are linear minimization problems over
// continuous and binary variables; integrality is enforced by branch and
// bound over LP relaxations.
package mip

import "math"

// VarType distinguishes continuous from binary decision variables.
type VarType int

const (
	Continuous VarType = iota
	Binary
)

// Sense is a linear constraint's comparison operator.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

// Term is one coefficient·variable product in a linear expression.
type Term struct {
	Coeff float64
	Var   int
}

// Variable is a model decision variable. Binary variables ignore the given
// bounds and use [0,1].
type Variable struct {
	Name string
	Type VarType
	Lb   float64
	Ub   float64
}

// Constraint is a linear constraint Σ terms (sense) RHS.
type Constraint struct {
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a linear minimization problem.
type Model struct {
	vars        []Variable
	constraints []Constraint
	objective   []Term
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// AddVar appends a continuous variable with the given bounds and returns its
// index. Use math.Inf for unbounded sides.
func (m *Model) AddVar(name string, lb, ub float64) int {
	m.vars = append(m.vars, Variable{Name: name, Type: Continuous, Lb: lb, Ub: ub})
	return len(m.vars) - 1
}

// AddBinaryVar appends a binary variable and returns its index.
func (m *Model) AddBinaryVar(name string) int {
	m.vars = append(m.vars, Variable{Name: name, Type: Binary, Lb: 0, Ub: 1})
	return len(m.vars) - 1
}

// AddConstr appends a linear constraint.
func (m *Model) AddConstr(terms []Term, sense Sense, rhs float64) {
	m.constraints = append(m.constraints, Constraint{Terms: terms, Sense: sense, RHS: rhs})
}

// SetObjective replaces the minimization objective.
func (m *Model) SetObjective(terms []Term) {
	m.objective = append(m.objective[:0], terms...)
}

// NumVars returns the number of decision variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstrs returns the number of constraints.
func (m *Model) NumConstrs() int { return len(m.constraints) }

func (m *Model) binaryVars() []int {
	var out []int
	for i, v := range m.vars {
		if v.Type == Binary {
			out = append(out, i)
		}
	}
	return out
}

func (m *Model) initialBounds() (lb, ub []float64) {
	lb = make([]float64, len(m.vars))
	ub = make([]float64, len(m.vars))
	for i, v := range m.vars {
		if v.Type == Binary {
			lb[i], ub[i] = 0, 1
			continue
		}
		lb[i], ub[i] = v.Lb, v.Ub
		if math.IsNaN(lb[i]) {
			lb[i] = math.Inf(-1)
		}
		if math.IsNaN(ub[i]) {
			ub[i] = math.Inf(1)
		}
	}
	return lb, ub
}
