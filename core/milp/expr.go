package milp

import (
	"math"
	"sort"
)

// Term is Coef * Var.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is an affine expression: sum of terms plus a constant.
type Expr struct {
	Terms []Term
	Const float64
}

// NewExpr returns an expression holding the given constant.
func NewExpr(c float64) Expr { return Expr{Const: c} }

// Add returns e + coef*v.
func (e Expr) Add(v Var, coef float64) Expr {
	terms := make([]Term, len(e.Terms), len(e.Terms)+1)
	copy(terms, e.Terms)
	return Expr{Terms: append(terms, Term{Var: v, Coef: coef}), Const: e.Const}
}

// AddConst returns e + c.
func (e Expr) AddConst(c float64) Expr {
	return Expr{Terms: e.Terms, Const: e.Const + c}
}

// Plus returns e + o.
func (e Expr) Plus(o Expr) Expr {
	terms := make([]Term, 0, len(e.Terms)+len(o.Terms))
	terms = append(terms, e.Terms...)
	terms = append(terms, o.Terms...)
	return Expr{Terms: terms, Const: e.Const + o.Const}
}

// Scale returns k*e.
func (e Expr) Scale(k float64) Expr {
	terms := make([]Term, len(e.Terms))
	for i, t := range e.Terms {
		terms[i] = Term{Var: t.Var, Coef: k * t.Coef}
	}
	return Expr{Terms: terms, Const: k * e.Const}
}

// Sum adds a list of expressions.
func Sum(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		out = out.Plus(e)
	}
	return out
}

// Eval evaluates e at values. Missing or NaN values count as zero.
func (e Expr) Eval(values []float64) float64 {
	s := e.Const
	for _, t := range e.Terms {
		if int(t.Var) >= len(values) {
			continue
		}
		x := values[t.Var]
		if math.IsNaN(x) {
			continue
		}
		s += t.Coef * x
	}
	return s
}

// Compact merges duplicate variables, drops zero coefficients and sorts terms
// by variable index.
func (e Expr) Compact() Expr {
	acc := make(map[Var]float64, len(e.Terms))
	for _, t := range e.Terms {
		acc[t.Var] += t.Coef
	}
	terms := make([]Term, 0, len(acc))
	for v, c := range acc {
		if c != 0 {
			terms = append(terms, Term{Var: v, Coef: c})
		}
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Var < terms[j].Var })
	return Expr{Terms: terms, Const: e.Const}
}
