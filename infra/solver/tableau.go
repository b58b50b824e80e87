package solver

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrIterationLimit is returned when the simplex does not converge within its
// iteration budget.
var ErrIterationLimit = errors.New("simplex iteration limit reached")

const (
	pivotTol = 1e-9
	feasTol  = 1e-7
	// degenerate pivots in a row before switching to Bland's rule
	blandAfter = 50
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

func (s lpStatus) String() string {
	switch s {
	case lpOptimal:
		return "optimal"
	case lpInfeasible:
		return "infeasible"
	default:
		return "unbounded"
	}
}

type lpResult struct {
	status lpStatus
	y      []float64
}

// lpEngine solves a relaxation to optimality.
type lpEngine func(ctx context.Context, r *relaxation) (lpResult, error)

// solveTrivial handles relaxations without rows, which neither engine needs
// to see.
func solveTrivial(r *relaxation) lpResult {
	for _, c := range r.c {
		if c < -pivotTol {
			return lpResult{status: lpUnbounded}
		}
	}
	return lpResult{status: lpOptimal, y: make([]float64, r.cols)}
}

type tableau struct {
	t      *mat.Dense
	m      int // constraint rows; row m holds reduced costs
	n      int // structural plus artificial columns; column n holds the rhs
	cols   int // structural columns, the only ones allowed to enter
	basis  []int
	active []bool
}

func (tb *tableau) row(i int) []float64 { return tb.t.RawRowView(i) }

func (tb *tableau) pivot(r, c int) {
	pr := tb.row(r)
	floats.Scale(1/pr[c], pr)
	pr[c] = 1
	for i := 0; i <= tb.m; i++ {
		if i == r {
			continue
		}
		ri := tb.row(i)
		f := ri[c]
		if f == 0 {
			continue
		}
		floats.AddScaled(ri, -f, pr)
		ri[c] = 0
		if v := ri[tb.n]; v < 0 && v > -1e-11 && i < tb.m {
			ri[tb.n] = 0
		}
	}
	tb.basis[r] = c
}

func (tb *tableau) maxIter() int { return 20*(tb.m+tb.n) + 1000 }

// iterate runs primal simplex pivots with entering columns restricted to
// [0,limit). It reports whether the problem is unbounded in the current
// objective.
func (tb *tableau) iterate(ctx context.Context, limit int) (bool, error) {
	obj := tb.row(tb.m)
	degenerate := 0
	maxIter := tb.maxIter()
	for iter := 0; ; iter++ {
		if iter >= maxIter {
			return false, ErrIterationLimit
		}
		if iter&63 == 63 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		bland := degenerate > blandAfter
		enter := -1
		best := -pivotTol
		for j := 0; j < limit; j++ {
			if obj[j] < best {
				enter = j
				if bland {
					break
				}
				best = obj[j]
			}
		}
		if enter < 0 {
			return false, nil
		}

		leave := -1
		ratio := math.Inf(1)
		for i := 0; i < tb.m; i++ {
			if !tb.active[i] {
				continue
			}
			ri := tb.row(i)
			a := ri[enter]
			if a <= pivotTol {
				continue
			}
			q := math.Max(ri[tb.n], 0) / a
			if q < ratio-1e-12 || (q <= ratio+1e-12 && leave >= 0 && tb.basis[i] < tb.basis[leave]) {
				ratio = q
				leave = i
			}
		}
		if leave < 0 {
			return true, nil
		}
		if ratio < 1e-12 {
			degenerate++
		} else {
			degenerate = 0
		}
		tb.pivot(leave, enter)
	}
}

// dual runs dual simplex pivots until every active row has a non-negative
// right hand side. The tableau must be dual feasible, which holds after any
// optimal solve followed by right hand side changes. It reports false when
// a row proves the problem infeasible.
func (tb *tableau) dual(ctx context.Context) (bool, error) {
	obj := tb.row(tb.m)
	maxIter := tb.maxIter()
	for iter := 0; ; iter++ {
		if iter >= maxIter {
			return false, ErrIterationLimit
		}
		if iter&63 == 63 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		leave := -1
		worst := -feasTol
		for i := 0; i < tb.m; i++ {
			if tb.active[i] {
				if v := tb.row(i)[tb.n]; v < worst {
					worst = v
					leave = i
				}
			}
		}
		if leave < 0 {
			for i := 0; i < tb.m; i++ {
				if ri := tb.row(i); ri[tb.n] < 0 {
					ri[tb.n] = 0
				}
			}
			return true, nil
		}

		rl := tb.row(leave)
		enter := -1
		ratio := math.Inf(1)
		for j := 0; j < tb.cols; j++ {
			a := rl[j]
			if a >= -pivotTol {
				continue
			}
			q := math.Max(obj[j], 0) / -a
			if q < ratio-1e-12 || (q <= ratio+1e-12 && enter >= 0 && a < rl[enter]) {
				ratio = q
				enter = j
			}
		}
		if enter < 0 {
			return false, nil
		}
		tb.pivot(leave, enter)
	}
}

// newTableau lays out r with one artificial column for every row that has
// no slack able to start in the basis.
func newTableau(r *relaxation) *tableau {
	m := r.rows
	arts := 0
	for _, u := range r.unit {
		if u < 0 {
			arts++
		}
	}
	n := r.cols + arts
	tb := &tableau{
		t:      mat.NewDense(m+1, n+1, nil),
		m:      m,
		n:      n,
		cols:   r.cols,
		basis:  make([]int, m),
		active: make([]bool, m),
	}
	next := r.cols
	obj := tb.row(m)
	for i := 0; i < m; i++ {
		ri := tb.row(i)
		copy(ri, r.a.RawRowView(i))
		ri[n] = r.b[i]
		tb.active[i] = true
		if r.unit[i] >= 0 {
			tb.basis[i] = r.unit[i]
			continue
		}
		ri[next] = 1
		tb.basis[i] = next
		next++
		floats.AddScaled(obj[:r.cols], -1, ri[:r.cols])
		obj[n] -= ri[n]
	}
	return tb
}

// phaseOne drives the artificial columns out of the basis. Rows whose
// artificial cannot leave are linear combinations of others and are
// deactivated.
func (tb *tableau) phaseOne(ctx context.Context, r *relaxation) (bool, error) {
	if tb.n == tb.cols {
		return true, nil
	}
	if _, err := tb.iterate(ctx, tb.n); err != nil {
		return false, err
	}
	obj := tb.row(tb.m)
	if -obj[tb.n] > feasTol*math.Max(1, floats.Max(r.b)) {
		return false, nil
	}
	for i := 0; i < tb.m; i++ {
		if tb.basis[i] < tb.cols {
			continue
		}
		ri := tb.row(i)
		// The artificial sits at zero; clear its residue so that pivoting on
		// a negative entry cannot push another basic value below zero.
		ri[tb.n] = 0
		j := -1
		big := pivotTol
		for k := 0; k < tb.cols; k++ {
			if a := math.Abs(ri[k]); a > big {
				big = a
				j = k
			}
		}
		if j < 0 {
			tb.active[i] = false
			continue
		}
		tb.pivot(i, j)
	}
	for i := 0; i < tb.m; i++ {
		if ri := tb.row(i); ri[tb.n] < 0 && ri[tb.n] > -feasTol {
			ri[tb.n] = 0
		}
	}
	return true, nil
}

// setCosts loads the phase two reduced costs for the current basis.
func (tb *tableau) setCosts(c []float64) {
	obj := tb.row(tb.m)
	for j := range obj {
		obj[j] = 0
	}
	copy(obj, c)
	for i := 0; i < tb.m; i++ {
		if !tb.active[i] {
			continue
		}
		if cb := c[tb.basis[i]]; cb != 0 {
			floats.AddScaled(obj, -cb, tb.row(i))
		}
	}
	for i := 0; i < tb.m; i++ {
		if tb.active[i] {
			obj[tb.basis[i]] = 0
		}
	}
}

// point reads the structural values of the current basis.
func (tb *tableau) point() []float64 {
	y := make([]float64, tb.cols)
	for i := 0; i < tb.m; i++ {
		if tb.active[i] && tb.basis[i] < tb.cols {
			y[tb.basis[i]] = math.Max(tb.row(i)[tb.n], 0)
		}
	}
	return y
}

// solve runs both phases from the initial layout.
func (tb *tableau) solve(ctx context.Context, r *relaxation) (lpResult, error) {
	feasible, err := tb.phaseOne(ctx, r)
	if err != nil {
		return lpResult{}, err
	}
	if !feasible {
		return lpResult{status: lpInfeasible}, nil
	}
	cost := make([]float64, tb.n)
	copy(cost, r.c)
	tb.setCosts(cost)
	unbounded, err := tb.iterate(ctx, tb.cols)
	if err != nil {
		return lpResult{}, err
	}
	if unbounded {
		return lpResult{status: lpUnbounded}, nil
	}
	return lpResult{status: lpOptimal, y: tb.point()}, nil
}

// solveTableau is a two-phase dense tableau simplex.
func solveTableau(ctx context.Context, r *relaxation) (lpResult, error) {
	if r.rows == 0 {
		return solveTrivial(r), nil
	}
	return newTableau(r).solve(ctx, r)
}
