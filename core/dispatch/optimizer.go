// Package dispatch builds and solves the CHP/boiler unit-commitment problem
// and turns solutions into the hourly ledger.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/chpdispatch/core/logger"
	"github.com/kilianp07/chpdispatch/core/milp"
	"github.com/kilianp07/chpdispatch/core/model"
)

var (
	// ErrNoSolution means the solver reached neither an optimal nor a
	// time-limited feasible solution. No plan is available.
	ErrNoSolution = errors.New("no solution")
	// ErrEmptySeries is returned for a horizon without hours.
	ErrEmptySeries = errors.New("empty series")
	// ErrHorizonTooShort is returned under the reject policy when the horizon
	// is shorter than the minimum up or down time.
	ErrHorizonTooShort = errors.New("horizon shorter than minimum up/down time")
)

// Plan is a solved dispatch.
type Plan struct {
	RunID     string               `json:"run_id"`
	Site      string               `json:"site,omitempty"`
	Status    string               `json:"status"`
	Objective float64              `json:"objective"`
	Nodes     int                  `json:"nodes"`
	Duration  time.Duration        `json:"duration"`
	Results   []model.HourlyResult `json:"results"`
	Summary   Summary              `json:"summary"`
	Monthly   []MonthSummary       `json:"monthly"`
}

// Optimizer runs one blocking solve per call. It holds no per-call state and
// is safe for concurrent use.
type Optimizer struct {
	profile model.Profile
	solver  milp.Solver
	cfg     Config
	log     logger.Logger
}

// NewOptimizer returns an optimizer for one plant profile.
func NewOptimizer(p model.Profile, s milp.Solver, cfg Config, log logger.Logger) *Optimizer {
	cfg.SetDefaults()
	return &Optimizer{profile: p, solver: s, cfg: cfg, log: log}
}

// Profile returns the plant profile.
func (o *Optimizer) Profile() model.Profile { return o.profile }

// Optimize solves the horizon. It returns ErrNoSolution (wrapped with the
// solver status) and a nil plan when no usable solution exists.
func (o *Optimizer) Optimize(ctx context.Context, series model.Series) (*Plan, error) {
	T := len(series)
	if T == 0 {
		return nil, ErrEmptySeries
	}
	U, N := o.profile.MinUpHours(), o.profile.MinDownHours()
	if T < U || T < N {
		if o.cfg.ShortHorizon == ShortHorizonReject {
			return nil, fmt.Errorf("%w: %d hours, min up %d, min down %d", ErrHorizonTooShort, T, U, N)
		}
		o.log.Warnf("dispatch: horizon of %d hours is shorter than min up %d / min down %d; those constraints are omitted", T, U, N)
	}

	f := Build(series, o.profile)
	m := f.Model
	if x0 := f.Seed(); x0 != nil {
		m.SetStart(x0)
		o.log.Debugw("dispatch seed plan", map[string]any{"objective": f.objective(x0)})
	}
	modelSize.WithLabelValues("variables").Set(float64(m.NumVars()))
	modelSize.WithLabelValues("binaries").Set(float64(m.NumBinary()))
	modelSize.WithLabelValues("constraints").Set(float64(m.NumConstraints()))
	o.log.Debugw("dispatch model built", map[string]any{
		"hours":       T,
		"variables":   m.NumVars(),
		"binaries":    m.NumBinary(),
		"constraints": m.NumConstraints(),
	})

	if limit := o.cfg.TimeLimit(); limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}
	start := time.Now()
	sol, err := o.solver.Solve(ctx, m)
	elapsed := time.Since(start)
	if errors.Is(err, milp.ErrModelTooLarge) {
		solvesTotal.WithLabelValues(milp.NotSolved.String()).Inc()
		o.log.Warnf("dispatch: no solution for %d hours: %v", T, err)
		return nil, fmt.Errorf("%w: %w", ErrNoSolution, err)
	}
	if err != nil {
		solvesTotal.WithLabelValues("error").Inc()
		o.log.Errorf("dispatch: solver failed after %s: %v", elapsed, err)
		return nil, fmt.Errorf("solve: %w", err)
	}
	status := sol.Status.String()
	solvesTotal.WithLabelValues(status).Inc()
	solveDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	solveNodes.Observe(float64(sol.Nodes))

	if !sol.Status.HasSolution() {
		o.log.Warnf("dispatch: no solution for %d hours: status %s after %s", T, status, elapsed)
		return nil, fmt.Errorf("%w: solver status %s", ErrNoSolution, status)
	}
	o.log.Infof("dispatch: solved %d hours status=%s objective=%.2f nodes=%d in %s", T, status, sol.Objective, sol.Nodes, elapsed)

	results := f.Project(sol.Values, o.cfg.Tolerances())
	return &Plan{
		RunID:     uuid.NewString(),
		Status:    status,
		Objective: sol.Objective,
		Nodes:     sol.Nodes,
		Duration:  elapsed,
		Results:   results,
		Summary:   Summarize(results, o.profile),
		Monthly:   Monthly(results),
	}, nil
}
