package solver

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/optimize/convex/lp"
)

// simplex points to the gonum routine. It can be overridden in tests to
// simulate solver failures.
var simplex = lp.Simplex

// solveGonum solves the relaxation with gonum's simplex. gonum requires a
// full row rank matrix and more columns than rows; any failure other than a
// definite infeasible verdict falls back to the tableau engine, and so does
// an unbounded verdict, which gonum also reports on degenerate bounded
// problems.
func solveGonum(ctx context.Context, r *relaxation) (lpResult, error) {
	if r.rows == 0 {
		return solveTrivial(r), nil
	}
	if r.rows >= r.cols {
		return solveTableau(ctx, r)
	}
	x, err := callSimplex(ctx, r)
	switch {
	case err == nil:
		for j := range x {
			if x[j] < 0 {
				x[j] = 0
			}
		}
		return lpResult{status: lpOptimal, y: x}, nil
	case ctx.Err() != nil:
		return lpResult{}, ctx.Err()
	case errors.Is(err, lp.ErrInfeasible):
		return lpResult{status: lpInfeasible}, nil
	default:
		return solveTableau(ctx, r)
	}
}

type simplexResult struct {
	x   []float64
	err error
}

// callSimplex runs gonum in its own goroutine because lp.Simplex cannot be
// interrupted. When ctx ends first the call is abandoned; it keeps running
// until it returns on its own and its result is dropped.
func callSimplex(ctx context.Context, r *relaxation) ([]float64, error) {
	run := simplex
	done := make(chan simplexResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- simplexResult{err: fmt.Errorf("gonum simplex: %v", p)}
			}
		}()
		_, x, err := run(r.c, r.a, r.b, 1e-10, nil)
		done <- simplexResult{x: x, err: err}
	}()
	select {
	case res := <-done:
		return res.x, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
