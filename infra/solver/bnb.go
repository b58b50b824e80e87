package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/chpdispatch/core/logger"
	"github.com/kilianp07/chpdispatch/core/milp"
	infralogger "github.com/kilianp07/chpdispatch/infra/logger"
)

// ErrModelTooLarge is returned when the dense relaxation of a model would
// exceed the configured number of tableau cells and the model carries no
// usable start point.
var ErrModelTooLarge = milp.ErrModelTooLarge

const (
	intTol = 1e-6
	// warm start failures after which every node is solved from scratch
	maxWarmFailures = 3
)

// BranchAndBound is an in-process MILP solver. It explores the tree depth
// first, diving towards the rounded relaxation value, and branches on the
// most fractional binary. A valid model start point is the first incumbent.
// With the tableau relaxation every node is warm started from the tableau of
// the node solved before it. The time limit is taken from the context
// deadline; when it expires the best incumbent is returned as Feasible.
type BranchAndBound struct {
	cfg   Config
	log   logger.Logger
	relax lpEngine
	warm  bool
}

// NewBranchAndBound returns a solver using the configured LP relaxation.
func NewBranchAndBound(cfg Config, log logger.Logger) *BranchAndBound {
	cfg.SetDefaults()
	if log == nil {
		log = infralogger.NopLogger{}
	}
	s := &BranchAndBound{cfg: cfg, log: log, relax: solveTableau, warm: true}
	if cfg.Relaxation == RelaxationGonum {
		s.relax = solveGonum
		s.warm = false
	}
	return s
}

type node struct {
	lo, up []float64
	// bound is the parent relaxation value in minimization sense.
	bound float64
}

type nodeResult struct {
	status lpStatus
	x      []float64
	// val is the relaxation value in minimization sense.
	val float64
}

// Solve implements milp.Solver.
func (s *BranchAndBound) Solve(ctx context.Context, m *milp.Model) (milp.Solution, error) {
	start := time.Now()
	obj, maximize := m.Objective()
	sense := 1.0
	if maximize {
		sense = -1
	}

	var (
		incumbent = startPoint(m, s.log)
		best      = math.Inf(1)
	)
	if incumbent != nil {
		best = sense * obj.Eval(incumbent)
		s.log.Debugw("solver start point", map[string]any{"model": m.Name, "objective": sense * best})
	}

	if s.cfg.MaxTableauCells > 0 {
		if cells := estimateCells(m); cells > s.cfg.MaxTableauCells {
			if incumbent == nil {
				return milp.Solution{}, fmt.Errorf("%w: %d cells > %d", ErrModelTooLarge, cells, s.cfg.MaxTableauCells)
			}
			s.log.Warnf("solver: %s needs %d tableau cells (limit %d); returning its start point unproven", m.Name, cells, s.cfg.MaxTableauCells)
			return milp.Solution{
				Status:    milp.Feasible,
				Values:    incumbent,
				Objective: sense * best,
				Bound:     sense * math.Inf(-1),
				Duration:  time.Since(start),
			}, nil
		}
	}

	vars := m.Vars()
	n := len(vars)
	root := node{lo: make([]float64, n), up: make([]float64, n), bound: math.Inf(-1)}
	for j, v := range vars {
		root.lo[j], root.up[j] = v.Lower, v.Upper
	}
	var ws *warmStart
	if s.warm {
		ws = &warmStart{rootLo: root.lo, rootUp: root.up, log: s.log}
	}

	var (
		nodes     int
		complete  = true
		unbounded bool
		// lost is the lowest bound among nodes given up without being
		// explored, in minimization sense.
		lost = math.Inf(1)
	)
	stack := []node{root}
	for len(stack) > 0 {
		if ctx.Err() != nil || (s.cfg.NodeLimit > 0 && nodes >= s.cfg.NodeLimit) {
			complete = false
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound >= best-s.absGap(best) {
			continue
		}
		nodes++

		res, err := s.solveNode(ctx, m, nd, ws, sense)
		if err != nil {
			complete = false
			if ctx.Err() != nil {
				lost = math.Min(lost, nd.bound)
				break
			}
			s.log.Warnf("solver: node %d relaxation failed, subtree dropped: %v", nodes, err)
			lost = math.Inf(-1)
			continue
		}
		switch res.status {
		case lpInfeasible:
			continue
		case lpUnbounded:
			if nodes == 1 {
				unbounded = true
			} else {
				s.log.Warnf("solver: node %d relaxation unbounded, subtree dropped", nodes)
			}
			lost = math.Inf(-1)
			complete = false
			continue
		}
		if res.val >= best-s.absGap(best) {
			continue
		}

		x := res.x
		j := mostFractional(vars, x)
		if j < 0 {
			for k, v := range vars {
				if v.Kind == milp.Binary {
					x[k] = math.Round(x[k])
				}
			}
			if err := m.Check(x, intTol); err != nil {
				s.log.Warnf("solver: rejected incumbent at node %d: %v", nodes, err)
				lost = math.Min(lost, res.val)
				complete = false
				continue
			}
			if v := sense * obj.Eval(x); v < best {
				incumbent = x
				best = v
				s.log.Debugw("solver incumbent", map[string]any{
					"model":     m.Name,
					"node":      nodes,
					"objective": sense * best,
					"depth":     len(stack),
				})
			}
			continue
		}

		down := node{lo: nd.lo, up: append([]float64(nil), nd.up...), bound: res.val}
		down.up[j] = 0
		up := node{lo: append([]float64(nil), nd.lo...), up: nd.up, bound: res.val}
		up.lo[j] = 1
		if x[j] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	sol := milp.Solution{Nodes: nodes, Duration: time.Since(start)}
	switch {
	case incumbent != nil:
		sol.Status = milp.Optimal
		if !complete || len(stack) > 0 {
			sol.Status = milp.Feasible
		}
		sol.Values = incumbent
		sol.Objective = sense * best
		bound := math.Min(best, lost)
		for _, nd := range stack {
			bound = math.Min(bound, nd.bound)
		}
		sol.Bound = sense * bound
	case unbounded:
		sol.Status = milp.Unbounded
	case complete:
		sol.Status = milp.Infeasible
	default:
		sol.Status = milp.NotSolved
	}
	return sol, nil
}

// solveNode solves the relaxation of nd, warm started when possible. An
// unbounded verdict from the warm tableau is checked on a fresh relaxation
// before it is believed.
func (s *BranchAndBound) solveNode(ctx context.Context, m *milp.Model, nd node, ws *warmStart, sense float64) (nodeResult, error) {
	if ws != nil && !ws.disabled() {
		res, ok, err := ws.solve(ctx, m, nd, sense)
		if err != nil {
			return nodeResult{}, err
		}
		if ok {
			return res, nil
		}
	}
	return s.solveCold(ctx, m, nd, sense)
}

func (s *BranchAndBound) solveCold(ctx context.Context, m *milp.Model, nd node, sense float64) (nodeResult, error) {
	r, err := buildRelaxation(m, nd.lo, nd.up)
	switch {
	case errors.Is(err, errBoundsInfeasible):
		return nodeResult{status: lpInfeasible}, nil
	case errors.Is(err, errRelaxUnbounded):
		return nodeResult{status: lpUnbounded}, nil
	case err != nil:
		return nodeResult{}, err
	}
	res, err := s.relax(ctx, r)
	if err != nil {
		return nodeResult{}, err
	}
	if res.status != lpOptimal {
		return nodeResult{status: res.status}, nil
	}
	x := r.values(res.y)
	obj, _ := m.Objective()
	return nodeResult{status: lpOptimal, x: x, val: sense * obj.Eval(x)}, nil
}

func (s *BranchAndBound) absGap(best float64) float64 {
	if math.IsInf(best, 1) {
		return 0
	}
	return math.Max(1e-9, s.cfg.Gap*math.Max(1, math.Abs(best)))
}

// mostFractional returns the binary variable whose value is closest to 0.5,
// or -1 when all binaries are integral.
func mostFractional(vars []milp.Variable, x []float64) int {
	j := -1
	best := intTol
	for k, v := range vars {
		if v.Kind != milp.Binary {
			continue
		}
		if f := math.Abs(x[k] - math.Round(x[k])); f > best {
			best = f
			j = k
		}
	}
	return j
}
