package scenarios

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/chpdispatch/core/dispatch"
	coremetrics "github.com/kilianp07/chpdispatch/core/metrics"
	"github.com/kilianp07/chpdispatch/core/model"
	"github.com/kilianp07/chpdispatch/infra/logger"
	"github.com/kilianp07/chpdispatch/infra/metrics"
	"github.com/kilianp07/chpdispatch/infra/solver"
)

const tol = 1e-6

// Outcome is the result of running a scenario.
type Outcome struct {
	Status string
	Plan   *dispatch.Plan
	Err    error
}

// Run solves the scenario with the in-process solver.
func Run(ctx context.Context, sc *Scenario) (Outcome, error) {
	site, err := sc.SiteConfig()
	if err != nil {
		return Outcome{}, err
	}
	p, err := site.Profile()
	if err != nil {
		return Outcome{}, err
	}
	cfg := dispatch.Config{TimeLimitSeconds: 60, ShortHorizon: sc.ShortHorizon}
	opt := dispatch.NewOptimizer(p, solver.NewBranchAndBound(solver.Config{}, logger.NopLogger{}), cfg, logger.NopLogger{})
	plan, err := opt.Optimize(ctx, sc.Series(site))
	switch {
	case err == nil:
		return Outcome{Status: plan.Status, Plan: plan}, nil
	case errors.Is(err, dispatch.ErrNoSolution):
		return Outcome{Status: metrics.ReasonNoSolution, Err: err}, nil
	case errors.Is(err, dispatch.ErrHorizonTooShort):
		return Outcome{Status: metrics.ReasonShort, Err: err}, nil
	default:
		return Outcome{}, err
	}
}

// Check returns every expectation and plan invariant the outcome violates.
//
//nolint:gocyclo
func Check(sc *Scenario, out Outcome) []string {
	var v []string
	fail := func(format string, args ...any) { v = append(v, fmt.Sprintf(format, args...)) }
	exp := sc.Expected
	if exp.Status != "" && out.Status != exp.Status {
		fail("status %s, want %s", out.Status, exp.Status)
	}
	plan := out.Plan
	if plan == nil {
		return v
	}
	site, _ := sc.SiteConfig()
	p := model.MustProfile(site.Params)
	s := plan.Summary

	if exp.CHPHours != nil && s.CHPHours != *exp.CHPHours {
		fail("chp hours %d, want %d", s.CHPHours, *exp.CHPHours)
	}
	if exp.CHPStarts != nil && s.CHPStarts != *exp.CHPStarts {
		fail("chp starts %d, want %d", s.CHPStarts, *exp.CHPStarts)
	}
	if exp.MinObjective != nil && plan.Objective < *exp.MinObjective-tol {
		fail("objective %.4f below %.4f", plan.Objective, *exp.MinObjective)
	}
	if exp.MaxObjective != nil && plan.Objective > *exp.MaxObjective+tol {
		fail("objective %.4f above %.4f", plan.Objective, *exp.MaxObjective)
	}

	prev := p.InitialOn()
	sum := 0.0
	for i, r := range plan.Results {
		if exp.BestSource != "" && r.BestSource.Code() != exp.BestSource {
			fail("hour %d: best source %s, want %s", i, r.BestSource.Code(), exp.BestSource)
		}
		if exp.BypassOnly && r.CHPHeat > tol {
			fail("hour %d: %.4f CHP heat delivered, want bypass only", i, r.CHPHeat)
		}
		if sc.Demand[i] > 0 {
			if got := r.CHPGrossHeat() + r.BoilerHeat + r.EBoilerHeat; got < p.HeatCoverage()*sc.Demand[i]-tol {
				fail("hour %d: coverage %.4f below %.4f", i, got, p.HeatCoverage()*sc.Demand[i])
			}
		} else if r.BoilerHeat > tol || r.EBoilerHeat > tol {
			fail("hour %d: boilers run without demand", i)
		}
		if r.CHPOn && r.CHPLoadPct < 100*p.CHPMinLoad()-tol {
			fail("hour %d: CHP below minimum load", i)
		}
		if r.CHPStart && r.CHPStop {
			fail("hour %d: start and stop together", i)
		}
		if b2i(r.CHPOn)-b2i(prev) != b2i(r.CHPStart)-b2i(r.CHPStop) {
			fail("hour %d: transition does not match on/off change", i)
		}
		prev = r.CHPOn
		sum += r.Profit
	}
	if math.Abs(sum-plan.Objective) > tol*math.Max(1, math.Abs(plan.Objective)) {
		fail("hourly profit sums to %.6f, objective %.6f", sum, plan.Objective)
	}
	return v
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RunScenario runs sc, checks it and records the plan on a private
// Prometheus registry.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	out, err := Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}
	for _, msg := range Check(sc, out) {
		t.Errorf("scenario %s: %s", sc.Name, msg)
	}
	if out.Plan == nil {
		return
	}
	ev := coremetrics.PlanEvent{
		RunID:     out.Plan.RunID,
		Site:      sc.Name,
		Status:    out.Plan.Status,
		Objective: out.Plan.Objective,
		Nodes:     out.Plan.Nodes,
		Duration:  out.Plan.Duration,
		Results:   out.Plan.Results,
		Time:      time.Now(),
	}
	if err := sink.RecordPlan(ev); err != nil {
		t.Fatalf("record plan: %v", err)
	}
	if n, err := testutil.GatherAndCount(reg, "chp_plan_runs_total"); err != nil || n != 1 {
		t.Errorf("scenario %s: expected one run series, got %d (%v)", sc.Name, n, err)
	}
}
