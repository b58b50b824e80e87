package milp

import (
	"context"
	"errors"
	"time"
)

// ErrModelTooLarge is returned by backends that refuse a model beyond their
// capacity without having any solution for it.
var ErrModelTooLarge = errors.New("model too large for solver")

// Status reports the outcome of a solve.
type Status int

const (
	// NotSolved means the solver stopped without any feasible solution, for
	// example because the time limit expired first.
	NotSolved Status = iota
	Optimal
	// Feasible means a solution was found but optimality was not proven
	// before the time or node limit.
	Feasible
	Infeasible
	Unbounded
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	default:
		return "not_solved"
	}
}

// HasSolution reports whether values of this status may be read.
func (s Status) HasSolution() bool { return s == Optimal || s == Feasible }

// Solution is what a Solver returns. Values and Objective are only
// meaningful when Status.HasSolution is true.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
	// Bound is the best proven bound on the objective.
	Bound    float64
	Nodes    int
	Duration time.Duration
}

// Solver is the port to a MILP backend.
type Solver interface {
	Solve(ctx context.Context, m *Model) (Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, m *Model) (Solution, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, m *Model) (Solution, error) { return f(ctx, m) }
