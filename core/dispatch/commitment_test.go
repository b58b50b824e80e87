package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/kilianp07/chpdispatch/core/milp"
	"github.com/kilianp07/chpdispatch/core/model"
	"github.com/kilianp07/chpdispatch/infra/logger"
	"github.com/kilianp07/chpdispatch/infra/solver"
)

func mixedSeries() model.Series {
	return series(
		[]float64{40, 60, 150, 170, 90, 30, 20, 200, 180, 70, 50, 45},
		[]float64{0.5, 0.8, 0, 0, 1.0, 1.2, 0.3, 0, 0.6, 0.9, 0.4, 0.2},
	)
}

// daily builds a horizon with a daily price and demand cycle.
func daily(hours int) model.Series {
	electricity := make([]float64, hours)
	demand := make([]float64, hours)
	for i := range demand {
		phase := 2 * math.Pi * float64(i%24) / 24
		electricity[i] = 90 + 70*math.Sin(phase)
		demand[i] = 0.6 + 0.4*math.Cos(phase)
	}
	return series(electricity, demand)
}

func TestSeedMatchesOptimum(t *testing.T) {
	params := scenarioParams()
	params.MinUpHours = 3
	params.MinDownHours = 2
	f := Build(mixedSeries(), model.MustProfile(params))

	x := f.Seed()
	if x == nil {
		t.Fatal("no seed for a coverable horizon")
	}
	if err := f.Model.Check(x, 1e-7); err != nil {
		t.Fatalf("seed violates the model: %v", err)
	}

	sol, err := solver.NewBranchAndBound(solver.Config{}, logger.NopLogger{}).Solve(context.Background(), f.Model)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != milp.Optimal {
		t.Fatalf("status = %v", sol.Status)
	}
	if got := f.objective(x); math.Abs(got-sol.Objective) > 1e-5*math.Max(1, math.Abs(sol.Objective)) {
		t.Fatalf("seed objective %v, optimum %v", got, sol.Objective)
	}
}

func TestSeedNilWithoutCoverage(t *testing.T) {
	f := Build(series([]float64{80, 80}, []float64{10, 10}), model.MustProfile(scenarioParams()))
	if x := f.Seed(); x != nil {
		t.Fatalf("expected no seed, got %v", x)
	}
}

func TestOptimizeLongHorizons(t *testing.T) {
	params := scenarioParams()
	params.MinUpHours = 3
	params.MinDownHours = 3
	p := model.MustProfile(params)
	o := NewOptimizer(p, solver.NewBranchAndBound(solver.Config{}, logger.NopLogger{}), Config{TimeLimitSeconds: 10}, logger.NopLogger{})

	for _, hours := range []int{24, 72, 168} {
		t.Run(fmt.Sprintf("%dh", hours), func(t *testing.T) {
			s := daily(hours)
			plan, err := o.Optimize(context.Background(), s)
			if err != nil {
				t.Fatalf("optimize: %v", err)
			}
			if plan.Status != milp.Optimal.String() && plan.Status != milp.Feasible.String() {
				t.Fatalf("status = %s", plan.Status)
			}
			checkPlan(t, s, p, plan)
		})
	}
}

func TestOptimizeGonumHonoursTimeLimit(t *testing.T) {
	params := scenarioParams()
	params.MinUpHours = 3
	params.MinDownHours = 3
	p := model.MustProfile(params)
	slv := solver.NewBranchAndBound(solver.Config{Relaxation: solver.RelaxationGonum, MaxTableauCells: 1 << 30}, logger.NopLogger{})
	o := NewOptimizer(p, slv, Config{TimeLimitSeconds: 1}, logger.NopLogger{})

	s := daily(48)
	begin := time.Now()
	plan, err := o.Optimize(context.Background(), s)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 5*time.Second {
		t.Fatalf("optimize took %s with a 1s limit", elapsed)
	}
	if plan.Status != milp.Optimal.String() && plan.Status != milp.Feasible.String() {
		t.Fatalf("status = %s", plan.Status)
	}
	checkPlan(t, s, p, plan)
}

func TestOptimizeModelTooLarge(t *testing.T) {
	p := model.MustProfile(scenarioParams())
	s := series([]float64{80, 80}, []float64{1, 1})

	tooLarge := milp.SolverFunc(func(ctx context.Context, m *milp.Model) (milp.Solution, error) {
		return milp.Solution{}, fmt.Errorf("%w: 10 cells > 4", milp.ErrModelTooLarge)
	})
	o := NewOptimizer(p, tooLarge, Config{}, logger.NopLogger{})
	plan, err := o.Optimize(context.Background(), s)
	if !errors.Is(err, ErrNoSolution) || !errors.Is(err, milp.ErrModelTooLarge) || plan != nil {
		t.Fatalf("expected ErrNoSolution wrapping ErrModelTooLarge, got %v %v", plan, err)
	}

	// the built-in solver answers an oversized model with the seed
	o = NewOptimizer(p, solver.NewBranchAndBound(solver.Config{MaxTableauCells: 4}, logger.NopLogger{}), Config{}, logger.NopLogger{})
	plan, err = o.Optimize(context.Background(), s)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if plan.Status != milp.Feasible.String() || plan.Nodes != 0 {
		t.Fatalf("unexpected plan status %s after %d nodes", plan.Status, plan.Nodes)
	}
	checkPlan(t, s, p, plan)
}
