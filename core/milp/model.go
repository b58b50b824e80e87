// Package milp describes mixed-integer linear programs and the port through
// which they are solved. It holds no solving logic itself; backends live in
// infra/solver.
package milp

import (
	"fmt"
	"math"
)

// Kind is the domain of a variable.
type Kind int

const (
	Continuous Kind = iota
	Binary
)

// Var references a variable of a Model by index.
type Var int

// Variable is the definition of one decision variable.
type Variable struct {
	Name  string
	Lower float64
	Upper float64 // math.Inf(1) when unbounded
	Kind  Kind
}

// Sense is the relation of a constraint.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	default:
		return "="
	}
}

// Constraint is Expr <sense> RHS. Any constant in Expr is moved to the right
// hand side when the constraint is added.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Model is a MILP under construction. It is not safe for concurrent mutation.
type Model struct {
	Name        string
	vars        []Variable
	constraints []Constraint
	objective   Expr
	maximize    bool
	start       []float64
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVar adds a variable with bounds [lower, upper]. Binary variables are
// always bounded to [0,1].
func (m *Model) AddVar(name string, lower, upper float64, kind Kind) Var {
	if kind == Binary {
		lower, upper = 0, 1
	}
	m.vars = append(m.vars, Variable{Name: name, Lower: lower, Upper: upper, Kind: kind})
	return Var(len(m.vars) - 1)
}

// AddContinuous adds a continuous variable in [lower, upper].
func (m *Model) AddContinuous(name string, lower, upper float64) Var {
	return m.AddVar(name, lower, upper, Continuous)
}

// AddBinary adds a {0,1} variable.
func (m *Model) AddBinary(name string) Var {
	return m.AddVar(name, 0, 1, Binary)
}

// AddConstraint adds lhs <sense> rhs. Duplicate terms are merged and zero
// coefficients dropped.
func (m *Model) AddConstraint(name string, lhs Expr, sense Sense, rhs float64) {
	e := lhs.Compact()
	rhs -= e.Const
	e.Const = 0
	m.constraints = append(m.constraints, Constraint{Name: name, Expr: e, Sense: sense, RHS: rhs})
}

// Maximize sets the objective to be maximized.
func (m *Model) Maximize(e Expr) {
	m.objective = e.Compact()
	m.maximize = true
}

// Minimize sets the objective to be minimized.
func (m *Model) Minimize(e Expr) {
	m.objective = e.Compact()
	m.maximize = false
}

// SetStart records a known point, typically a heuristic plan, that solvers
// may adopt as their first incumbent once it passes Check. Nil clears it.
func (m *Model) SetStart(values []float64) { m.start = values }

// Start returns the point recorded by SetStart, or nil.
func (m *Model) Start() []float64 { return m.start }

// Vars returns the variable definitions. The slice must not be modified.
func (m *Model) Vars() []Variable { return m.vars }

// Constraints returns the constraints. The slice must not be modified.
func (m *Model) Constraints() []Constraint { return m.constraints }

// Objective returns the objective expression and whether it is maximized.
func (m *Model) Objective() (Expr, bool) { return m.objective, m.maximize }

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// NumBinary returns the number of binary variables.
func (m *Model) NumBinary() int {
	n := 0
	for _, v := range m.vars {
		if v.Kind == Binary {
			n++
		}
	}
	return n
}

// ConstraintsNamed returns the number of constraints whose name starts with prefix.
func (m *Model) ConstraintsNamed(prefix string) int {
	n := 0
	for _, c := range m.constraints {
		if len(c.Name) >= len(prefix) && c.Name[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Check verifies that values satisfy bounds, integrality and constraints
// within tol. It is used by solvers to validate incumbents and by tests.
func (m *Model) Check(values []float64, tol float64) error {
	if len(values) != len(m.vars) {
		return fmt.Errorf("expected %d values, got %d", len(m.vars), len(values))
	}
	for i, v := range m.vars {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			return fmt.Errorf("variable %s=%v outside [%v,%v]", v.Name, x, v.Lower, v.Upper)
		}
		if v.Kind == Binary && math.Abs(x-math.Round(x)) > tol {
			return fmt.Errorf("variable %s=%v is not integral", v.Name, x)
		}
	}
	for _, c := range m.constraints {
		lhs := c.Expr.Eval(values)
		scale := tol * math.Max(1, math.Abs(c.RHS))
		switch c.Sense {
		case LessEq:
			if lhs > c.RHS+scale {
				return fmt.Errorf("constraint %s violated: %v > %v", c.Name, lhs, c.RHS)
			}
		case GreaterEq:
			if lhs < c.RHS-scale {
				return fmt.Errorf("constraint %s violated: %v < %v", c.Name, lhs, c.RHS)
			}
		case Equal:
			if math.Abs(lhs-c.RHS) > scale {
				return fmt.Errorf("constraint %s violated: %v != %v", c.Name, lhs, c.RHS)
			}
		}
	}
	return nil
}
