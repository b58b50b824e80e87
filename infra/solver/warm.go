package solver

import (
	"context"

	"github.com/kilianp07/chpdispatch/core/logger"
	"github.com/kilianp07/chpdispatch/core/milp"
)

// warmStart keeps one tableau laid out for the root bounds across the whole
// tree. Nodes differ from it only in variable bounds, which move the right
// hand side and leave the last optimal basis dual feasible, so each node
// needs a few dual simplex pivots instead of a solve from scratch.
type warmStart struct {
	rootLo, rootUp []float64
	log            logger.Logger

	r      *relaxation
	tb     *tableau
	lo, up []float64
	// shift holds the current offset of every model variable.
	shift []float64

	failures int
	off      bool
}

func (w *warmStart) disabled() bool { return w.off || w.failures >= maxWarmFailures }

// fail drops the tableau after a numerical failure; the next node rebuilds
// it from the root.
func (w *warmStart) fail(m *milp.Model, reason string) {
	w.failures++
	w.tb = nil
	if w.disabled() {
		w.log.Warnf("solver: warm start for %s disabled after %d failures, last: %s", m.Name, w.failures, reason)
		return
	}
	w.log.Debugw("solver warm start reset", map[string]any{"model": m.Name, "reason": reason})
}

// init solves the root relaxation and keeps its tableau. It reports false
// when the root is not a plain optimal LP; the cold path handles those.
func (w *warmStart) init(ctx context.Context, m *milp.Model) (bool, error) {
	r, err := buildRelaxation(m, w.rootLo, w.rootUp)
	if err != nil || r.rows == 0 {
		w.off = true
		return false, nil
	}
	tb := newTableau(r)
	res, err := tb.solve(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		w.fail(m, err.Error())
		return false, nil
	}
	if res.status != lpOptimal {
		w.off = true
		return false, nil
	}
	w.r, w.tb = r, tb
	w.lo = append([]float64(nil), w.rootLo...)
	w.up = append([]float64(nil), w.rootUp...)
	w.shift = append([]float64(nil), r.shift...)
	return true, nil
}

// solve returns the relaxation of nd. ok is false when the node has to be
// solved cold, including when the warm tableau claims it is unbounded.
func (w *warmStart) solve(ctx context.Context, m *milp.Model, nd node, sense float64) (nodeResult, bool, error) {
	if w.tb == nil {
		if ok, err := w.init(ctx, m); !ok {
			return nodeResult{}, false, err
		}
	}
	r, tb := w.r, w.tb

	var changed []int
	for j := range nd.lo {
		if nd.lo[j] == w.lo[j] && nd.up[j] == w.up[j] {
			continue
		}
		k := r.ubRow[j]
		if r.col[j] < 0 || k < 0 || r.unit[k] < 0 || r.sign[j] != 1 || r.neg[j] >= 0 || nd.lo[j] > nd.up[j] {
			return nodeResult{}, false, nil
		}
		changed = append(changed, j)
	}

	// With x = shift + y, row i reads A_i y = b_i - A_i shift and the upper
	// bound row reads y + s = up - shift. In tableau terms the right hand
	// side moves by -dl times column col and by du times the slack column.
	for _, j := range changed {
		c, slack := r.col[j], r.unit[r.ubRow[j]]
		dl, du := nd.lo[j]-w.lo[j], nd.up[j]-w.up[j]
		for i := 0; i < tb.m; i++ {
			ri := tb.row(i)
			ri[tb.n] += du*ri[slack] - dl*ri[c]
		}
		w.shift[j] += dl
		w.lo[j], w.up[j] = nd.lo[j], nd.up[j]
	}

	feasible, err := tb.dual(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nodeResult{}, false, err
		}
		w.fail(m, err.Error())
		return nodeResult{}, false, nil
	}
	if !feasible {
		return nodeResult{status: lpInfeasible}, true, nil
	}
	unbounded, err := tb.iterate(ctx, tb.cols)
	switch {
	case err != nil && ctx.Err() != nil:
		return nodeResult{}, false, err
	case err != nil:
		w.fail(m, err.Error())
		return nodeResult{}, false, nil
	case unbounded:
		w.fail(m, "relaxation reported unbounded")
		return nodeResult{}, false, nil
	}

	x := r.valuesAt(w.shift, tb.point())
	obj, _ := m.Objective()
	return nodeResult{status: lpOptimal, x: x, val: sense * obj.Eval(x)}, true, nil
}
