package milp

import (
	"math"
	"testing"
)

func TestExprCompactAndEval(t *testing.T) {
	m := NewModel("t")
	x := m.AddContinuous("x", 0, 10)
	y := m.AddContinuous("y", 0, 10)

	e := NewExpr(1).Add(y, 2).Add(x, 3).Add(y, -2).Add(x, 1)
	c := e.Compact()
	if len(c.Terms) != 1 || c.Terms[0].Var != x || c.Terms[0].Coef != 4 {
		t.Fatalf("unexpected compact form: %+v", c)
	}
	if got := e.Eval([]float64{2, 5}); got != 9 {
		t.Fatalf("eval = %v, want 9", got)
	}
	if got := e.Eval([]float64{math.NaN()}); got != 1 {
		t.Fatalf("NaN and missing values should count as zero, got %v", got)
	}
	if got := Sum(e, NewExpr(2)).Scale(-1).Eval([]float64{1, 1}); got != -7 {
		t.Fatalf("scaled sum = %v, want -7", got)
	}
}

func TestAddConstraintMovesConstant(t *testing.T) {
	m := NewModel("t")
	x := m.AddContinuous("x", 0, math.Inf(1))
	m.AddConstraint("c", NewExpr(3).Add(x, 1), LessEq, 5)
	c := m.Constraints()[0]
	if c.RHS != 2 || c.Expr.Const != 0 {
		t.Fatalf("constant not moved: %+v", c)
	}
}

func TestBinaryBoundsForced(t *testing.T) {
	m := NewModel("t")
	b := m.AddVar("b", -3, 7, Binary)
	v := m.Vars()[b]
	if v.Lower != 0 || v.Upper != 1 {
		t.Fatalf("binary bounds not forced: %+v", v)
	}
	if m.NumBinary() != 1 {
		t.Fatalf("NumBinary = %d", m.NumBinary())
	}
}

func TestCheck(t *testing.T) {
	m := NewModel("t")
	x := m.AddContinuous("x", 0, 4)
	b := m.AddBinary("b")
	m.AddConstraint("link", NewExpr(0).Add(x, 1).Add(b, -4), LessEq, 0)
	m.AddConstraint("floor", NewExpr(0).Add(x, 1), GreaterEq, 1)

	if err := m.Check([]float64{2, 1}, 1e-9); err != nil {
		t.Fatalf("feasible point rejected: %v", err)
	}
	if err := m.Check([]float64{2, 0}, 1e-9); err == nil {
		t.Fatal("link violation not detected")
	}
	if err := m.Check([]float64{2, 0.5}, 1e-9); err == nil {
		t.Fatal("fractional binary not detected")
	}
	if err := m.Check([]float64{5, 1}, 1e-9); err == nil {
		t.Fatal("bound violation not detected")
	}
	if err := m.Check([]float64{1}, 1e-9); err == nil {
		t.Fatal("length mismatch not detected")
	}
	if m.ConstraintsNamed("li") != 1 {
		t.Fatalf("ConstraintsNamed = %d", m.ConstraintsNamed("li"))
	}
}

func TestStatus(t *testing.T) {
	if !Optimal.HasSolution() || !Feasible.HasSolution() {
		t.Fatal("optimal and feasible carry solutions")
	}
	if Infeasible.HasSolution() || NotSolved.HasSolution() || Unbounded.HasSolution() {
		t.Fatal("unexpected solution status")
	}
	if NotSolved.String() != "not_solved" || Infeasible.String() != "infeasible" {
		t.Fatal("unexpected status strings")
	}
}
