package solver

import (
	"context"
	"errors"
	"math"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/chpdispatch/core/milp"
)

func TestStartPointIsFirstIncumbent(t *testing.T) {
	m := fractionalModel()
	m.SetStart([]float64{0.9999999999, 0})

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	sol, err := NewBranchAndBound(Config{}, nil).Solve(ctx, m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != milp.Feasible || sol.Objective != 1 {
		t.Fatalf("got %v objective %v, want feasible 1", sol.Status, sol.Objective)
	}
	if sol.Values[0] != 1 || sol.Values[1] != 0 {
		t.Fatalf("values = %v", sol.Values)
	}
	if sol.Bound < sol.Objective {
		t.Fatalf("bound %v below objective %v", sol.Bound, sol.Objective)
	}

	sol, err = NewBranchAndBound(Config{NodeLimit: 1}, nil).Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != milp.Feasible || sol.Nodes != 1 {
		t.Fatalf("got %v after %d nodes, want feasible", sol.Status, sol.Nodes)
	}
	if math.Abs(sol.Bound-1.5) > 1e-9 {
		t.Fatalf("bound = %v, want the root relaxation 1.5", sol.Bound)
	}
}

func TestInvalidStartPointIgnored(t *testing.T) {
	for name, start := range map[string][]float64{
		"infeasible": {1, 1},
		"short":      {1},
	} {
		t.Run(name, func(t *testing.T) {
			m := fractionalModel()
			m.SetStart(start)
			sol, err := NewBranchAndBound(Config{NodeLimit: 1}, nil).Solve(context.Background(), m)
			if err != nil {
				t.Fatalf("solve: %v", err)
			}
			if sol.Status != milp.NotSolved {
				t.Fatalf("status = %v, want not_solved", sol.Status)
			}
		})
	}
}

func TestModelTooLargeReturnsStartPoint(t *testing.T) {
	m := fractionalModel()
	m.SetStart([]float64{0, 1})
	sol, err := NewBranchAndBound(Config{MaxTableauCells: 4}, nil).Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != milp.Feasible || sol.Objective != 1 || sol.Nodes != 0 {
		t.Fatalf("got %v objective %v nodes %d", sol.Status, sol.Objective, sol.Nodes)
	}
	if !math.IsInf(sol.Bound, 1) {
		t.Fatalf("bound = %v, want +Inf for an unproven maximum", sol.Bound)
	}
}

func lpModel() *milp.Model {
	m := milp.NewModel("lp")
	x := m.AddContinuous("x", 0, 3)
	y := m.AddContinuous("y", 0, math.Inf(1))
	m.AddConstraint("a", expr(0, x, 1.0, y, 1.0), milp.LessEq, 4)
	m.AddConstraint("b", expr(0, x, 1.0, y, 3.0), milp.LessEq, 6)
	m.Maximize(expr(0, x, 3.0, y, 2.0))
	return m
}

func TestGonumHonoursDeadline(t *testing.T) {
	orig := simplex
	defer func() { simplex = orig }()
	release := make(chan struct{})
	defer close(release)
	simplex = func(c []float64, A mat.Matrix, b []float64, tol float64, initialBasic []int) (float64, []float64, error) {
		<-release
		return 0, nil, errors.New("released")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	begin := time.Now()
	sol, err := NewBranchAndBound(Config{Relaxation: RelaxationGonum}, nil).Solve(ctx, lpModel())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 5*time.Second {
		t.Fatalf("solve returned after %s, past its deadline", elapsed)
	}
	if sol.Status != milp.NotSolved {
		t.Fatalf("status = %v, want not_solved", sol.Status)
	}
}

func TestGonumUnboundedVerdictRechecked(t *testing.T) {
	orig := simplex
	defer func() { simplex = orig }()
	simplex = func(c []float64, A mat.Matrix, b []float64, tol float64, initialBasic []int) (float64, []float64, error) {
		return 0, nil, lp.ErrUnbounded
	}
	sol, err := NewBranchAndBound(Config{Relaxation: RelaxationGonum}, nil).Solve(context.Background(), lpModel())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != milp.Optimal || math.Abs(sol.Objective-11) > 1e-7 {
		t.Fatalf("got %v objective %v, want optimal 11", sol.Status, sol.Objective)
	}
}

// itemsModel is a knapsack with a linked continuous variable and an equality
// row, large enough for several levels of branching.
func itemsModel() (*milp.Model, func(mask int) float64) {
	values := []float64{7, 5, 9, 4, 6, 3, 8, 2}
	weights := []float64{5, 4, 6, 3, 5, 2, 7, 1}
	const capacity = 17

	m := milp.NewModel("items")
	b := make([]milp.Var, len(values))
	for i := range b {
		b[i] = m.AddBinary(fmt.Sprintf("b%d", i))
	}
	x := m.AddContinuous("x", 0, 4)
	y := m.AddContinuous("y", 0, math.Inf(1))
	w := milp.NewExpr(0)
	obj := milp.NewExpr(0).Add(x, 1.5)
	for i := range b {
		w = w.Add(b[i], weights[i])
		obj = obj.Add(b[i], values[i])
	}
	m.AddConstraint("weight", w, milp.LessEq, capacity)
	m.AddConstraint("link", expr(0, x, 1.0, b[0], -2.0, b[1], -2.0), milp.LessEq, 0)
	m.AddConstraint("mirror", expr(0, y, 1.0, x, -1.0, b[2], -1.0), milp.Equal, 0)
	m.Maximize(obj)

	best := func(mask int) float64 {
		total, weight := 0.0, 0.0
		for i := range values {
			if mask&(1<<i) != 0 {
				total += values[i]
				weight += weights[i]
			}
		}
		if weight > capacity {
			return math.Inf(-1)
		}
		return total + 1.5*math.Min(4, 2*float64(mask&1)+2*float64(mask>>1&1))
	}
	return m, best
}

func TestWarmStartMatchesColdSolve(t *testing.T) {
	m, value := itemsModel()
	want := math.Inf(-1)
	for mask := 0; mask < 1<<8; mask++ {
		want = math.Max(want, value(mask))
	}

	warm := NewBranchAndBound(Config{}, nil)
	cold := NewBranchAndBound(Config{}, nil)
	cold.warm = false
	for name, s := range map[string]*BranchAndBound{"warm": warm, "cold": cold} {
		t.Run(name, func(t *testing.T) {
			sol, err := s.Solve(context.Background(), m)
			if err != nil {
				t.Fatalf("solve: %v", err)
			}
			if sol.Status != milp.Optimal || math.Abs(sol.Objective-want) > 1e-7 {
				t.Fatalf("got %v objective %v, want optimal %v", sol.Status, sol.Objective, want)
			}
			if err := m.Check(sol.Values, 1e-7); err != nil {
				t.Fatalf("solution infeasible: %v", err)
			}
			if sol.Nodes < 2 {
				t.Fatalf("expected branching, got %d nodes", sol.Nodes)
			}
		})
	}
}

func TestCBCStoppedFallsBackToStartPoint(t *testing.T) {
	orig := runCommand
	defer func() { runCommand = orig }()
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		sol := "Stopped on time (no integer solution - continuous used) - objective value 12\n0 x0 2.5 0\n"
		return nil, os.WriteFile(args[len(args)-1], []byte(sol), 0o600)
	}

	m := cbcModel()
	m.SetStart([]float64{3, 3, 1})
	sol, err := NewCBC(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, milp.Feasible, sol.Status)
	assert.Equal(t, []float64{3, 3, 1}, sol.Values)
	assert.InDelta(t, 2+15-1.5, sol.Objective, 1e-12)

	// a better cbc incumbent is kept
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		sol := "Stopped on time - objective value 15.5\n0 x0 3 0\n1 x1 3 0\n2 x2 1 0\n"
		return nil, os.WriteFile(args[len(args)-1], []byte(sol), 0o600)
	}
	m.SetStart([]float64{0, 0, 0})
	sol, err = NewCBC(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, milp.Feasible, sol.Status)
	assert.InDelta(t, 15.5, sol.Objective, 1e-12)
}
