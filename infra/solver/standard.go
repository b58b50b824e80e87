package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/chpdispatch/core/milp"
)

var (
	errBoundsInfeasible = errors.New("bounds infeasible")
	errRelaxUnbounded   = errors.New("relaxation unbounded")
)

// relaxation is the LP relaxation of a model restricted to a box of
// variable bounds, rewritten in standard form:
//
//	minimize c·y  subject to  A y = b, y >= 0, b >= 0
//
// Fixed variables and variables that appear in no constraint are resolved
// while building and do not get a column.
type relaxation struct {
	rows, cols int
	a          *mat.Dense
	b          []float64
	c          []float64
	// unit[i] is a column holding +1 in row i and zero elsewhere, or -1.
	unit []int
	// ubRow[j] is the row bounding model variable j from above, or -1.
	ubRow []int

	shift    []float64
	sign     []float64
	col      []int
	neg      []int
	objConst float64
}

type sparseRow struct {
	idx []int
	val []float64
	rhs float64
}

func (r *sparseRow) add(col int, v float64) {
	for k, c := range r.idx {
		if c == col {
			r.val[k] += v
			return
		}
	}
	r.idx = append(r.idx, col)
	r.val = append(r.val, v)
}

func (r *sparseRow) empty() bool {
	for _, v := range r.val {
		if v != 0 {
			return false
		}
	}
	return true
}

// buildRelaxation rewrites m with bounds lo/up into standard form.
// It returns errBoundsInfeasible when the box or a constant constraint is
// infeasible and errRelaxUnbounded when a free-standing variable can improve
// the objective without limit.
func buildRelaxation(m *milp.Model, lo, up []float64) (*relaxation, error) {
	n := m.NumVars()
	obj, maximize := m.Objective()
	sense := 1.0
	if maximize {
		sense = -1
	}
	cost := make([]float64, n)
	for _, t := range obj.Terms {
		cost[t.Var] += sense * t.Coef
	}
	used := make([]bool, n)
	for _, c := range m.Constraints() {
		for _, t := range c.Expr.Terms {
			if t.Coef != 0 {
				used[t.Var] = true
			}
		}
	}

	r := &relaxation{
		shift:    make([]float64, n),
		sign:     make([]float64, n),
		col:      make([]int, n),
		neg:      make([]int, n),
		ubRow:    make([]int, n),
		objConst: sense * obj.Const,
	}
	var upperRows []int
	cols := 0
	for j := 0; j < n; j++ {
		l, u := lo[j], up[j]
		r.col[j], r.neg[j], r.sign[j], r.ubRow[j] = -1, -1, 1, -1
		if l > u+1e-9 {
			return nil, errBoundsInfeasible
		}
		switch {
		case math.Abs(u-l) <= 1e-12:
			r.shift[j] = l
		case !used[j]:
			v, err := isolatedValue(cost[j], l, u)
			if err != nil {
				return nil, err
			}
			r.shift[j] = v
		case !math.IsInf(l, -1):
			r.shift[j] = l
			r.col[j] = cols
			cols++
			if !math.IsInf(u, 1) {
				upperRows = append(upperRows, j)
			}
		case !math.IsInf(u, 1):
			r.shift[j] = u
			r.sign[j] = -1
			r.col[j] = cols
			cols++
		default:
			r.col[j] = cols
			r.neg[j] = cols + 1
			cols += 2
		}
		r.objConst += cost[j] * r.shift[j]
	}

	var rows []sparseRow
	var slackSign []float64
	for _, c := range m.Constraints() {
		row := sparseRow{rhs: c.RHS}
		for _, t := range c.Expr.Terms {
			j := int(t.Var)
			row.rhs -= t.Coef * r.shift[j]
			if r.col[j] >= 0 {
				row.add(r.col[j], t.Coef*r.sign[j])
			}
			if r.neg[j] >= 0 {
				row.add(r.neg[j], -t.Coef)
			}
		}
		if row.empty() {
			if !constantHolds(c.Sense, row.rhs) {
				return nil, errBoundsInfeasible
			}
			continue
		}
		s := 0.0
		switch c.Sense {
		case milp.LessEq:
			s = 1
		case milp.GreaterEq:
			s = -1
		}
		rows = append(rows, row)
		slackSign = append(slackSign, s)
	}
	for _, j := range upperRows {
		r.ubRow[j] = len(rows)
		rows = append(rows, sparseRow{idx: []int{r.col[j]}, val: []float64{1}, rhs: up[j] - lo[j]})
		slackSign = append(slackSign, 1)
	}

	slacks := 0
	for _, s := range slackSign {
		if s != 0 {
			slacks++
		}
	}
	r.rows = len(rows)
	r.cols = cols + slacks
	r.b = make([]float64, r.rows)
	r.c = make([]float64, r.cols)
	r.unit = make([]int, r.rows)
	for j := 0; j < n; j++ {
		if r.col[j] >= 0 {
			r.c[r.col[j]] += cost[j] * r.sign[j]
		}
		if r.neg[j] >= 0 {
			r.c[r.neg[j]] -= cost[j]
		}
	}
	if r.rows == 0 {
		return r, nil
	}
	r.a = mat.NewDense(r.rows, r.cols, nil)
	next := cols
	for i, row := range rows {
		flip := 1.0
		if row.rhs < 0 {
			flip = -1
		}
		for k, c := range row.idx {
			r.a.Set(i, c, flip*row.val[k])
		}
		r.b[i] = flip * row.rhs
		r.unit[i] = -1
		if slackSign[i] != 0 {
			r.a.Set(i, next, flip*slackSign[i])
			if flip*slackSign[i] > 0 {
				r.unit[i] = next
			}
			next++
		}
	}
	return r, nil
}

// isolatedValue picks the best value of a variable that no constraint
// mentions, minimizing cost*x over [l,u].
func isolatedValue(cost, l, u float64) (float64, error) {
	switch {
	case cost < 0:
		if math.IsInf(u, 1) {
			return 0, errRelaxUnbounded
		}
		return u, nil
	case cost > 0:
		if math.IsInf(l, -1) {
			return 0, errRelaxUnbounded
		}
		return l, nil
	case !math.IsInf(l, -1):
		return l, nil
	case !math.IsInf(u, 1):
		return u, nil
	default:
		return 0, nil
	}
}

func constantHolds(s milp.Sense, rhs float64) bool {
	tol := 1e-9 * math.Max(1, math.Abs(rhs))
	switch s {
	case milp.LessEq:
		return 0 <= rhs+tol
	case milp.GreaterEq:
		return 0 >= rhs-tol
	default:
		return math.Abs(rhs) <= tol
	}
}

// values maps a standard-form point back to model variables.
func (r *relaxation) values(y []float64) []float64 { return r.valuesAt(r.shift, y) }

// valuesAt is values with the variable offsets replaced by shift.
func (r *relaxation) valuesAt(shift, y []float64) []float64 {
	x := make([]float64, len(shift))
	for j := range x {
		x[j] = shift[j]
		if r.col[j] >= 0 {
			x[j] += r.sign[j] * y[r.col[j]]
		}
		if r.neg[j] >= 0 {
			x[j] -= y[r.neg[j]]
		}
	}
	return x
}

// cells is the size of the dense tableau needed for this relaxation in the
// worst case of one artificial column per row.
func (r *relaxation) cells() int {
	return (r.rows + 1) * (r.cols + r.rows + 1)
}

// estimateCells bounds the tableau size of m before anything is allocated.
func estimateCells(m *milp.Model) int {
	rows := m.NumConstraints()
	cols := 0
	for _, v := range m.Vars() {
		cols++
		if !math.IsInf(v.Upper, 1) {
			rows++
		}
	}
	cols += rows
	return (rows + 1) * (cols + rows + 1)
}
