package dispatch

import (
	"fmt"
	"math"

	"github.com/kilianp07/chpdispatch/core/milp"
	"github.com/kilianp07/chpdispatch/core/model"
)

// hourVars holds one variable per hour for each decision quantity.
type hourVars struct {
	qCHP, qBoiler, qEBoiler      []milp.Var
	eeCHP, eeSpot, eeInt, eeGrid []milp.Var
	on, start, stop, deficit     []milp.Var
}

// Formulation is the unit-commitment MILP for one series and profile, with
// the per-hour objective terms kept apart so the ledger can report them.
type Formulation struct {
	Model    *milp.Model
	series   model.Series
	profile  model.Profile
	vars     hourVars
	required []float64
	profit   []milp.Expr
}

var inf = math.Inf(1)

func newVars(n int) []milp.Var { return make([]milp.Var, n) }

// Build constructs the MILP over t = 0..T-1. Minimum up/down constraints are
// only generated for start hours t <= T-U (t <= T-N), so horizons shorter than
// U or N get none.
func Build(series model.Series, p model.Profile) *Formulation {
	T := len(series)
	f := &Formulation{
		Model:    milp.NewModel(fmt.Sprintf("chp-dispatch-%dh", T)),
		series:   series,
		profile:  p,
		required: make([]float64, T),
		profit:   make([]milp.Expr, T),
		vars: hourVars{
			qCHP: newVars(T), qBoiler: newVars(T), qEBoiler: newVars(T),
			eeCHP: newVars(T), eeSpot: newVars(T), eeInt: newVars(T), eeGrid: newVars(T),
			on: newVars(T), start: newVars(T), stop: newVars(T), deficit: newVars(T),
		},
	}
	m := f.Model
	v := &f.vars
	hChp := p.CHPHeatOutput()
	for t := 0; t < T; t++ {
		v.qCHP[t] = m.AddContinuous(fmt.Sprintf("q_chp_%d", t), 0, hChp)
		v.qBoiler[t] = m.AddContinuous(fmt.Sprintf("q_boiler_%d", t), 0, p.BoilerMaxHeat())
		v.qEBoiler[t] = m.AddContinuous(fmt.Sprintf("q_eboiler_%d", t), 0, p.EBoilerMaxHeat())
		v.eeCHP[t] = m.AddContinuous(fmt.Sprintf("ee_chp_%d", t), 0, inf)
		v.eeSpot[t] = m.AddContinuous(fmt.Sprintf("ee_spot_%d", t), 0, inf)
		v.eeInt[t] = m.AddContinuous(fmt.Sprintf("ee_int_%d", t), 0, inf)
		v.eeGrid[t] = m.AddContinuous(fmt.Sprintf("ee_grid_%d", t), 0, inf)
		v.on[t] = m.AddBinary(fmt.Sprintf("on_%d", t))
		v.start[t] = m.AddBinary(fmt.Sprintf("start_%d", t))
		v.stop[t] = m.AddBinary(fmt.Sprintf("stop_%d", t))
		v.deficit[t] = m.AddContinuous(fmt.Sprintf("deficit_%d", t), 0, inf)
	}

	for t, h := range series {
		req := p.HeatCoverage() * h.HeatDemand
		f.required[t] = req
		q := milp.NewExpr(0).Add(v.qCHP[t], 1)

		m.AddConstraint(fmt.Sprintf("chp_max_%d", t), q.Add(v.on[t], -hChp), milp.LessEq, 0)
		m.AddConstraint(fmt.Sprintf("chp_min_%d", t), q.Add(v.on[t], -p.CHPMinLoad()*hChp), milp.GreaterEq, 0)

		if h.HeatDemand > 0 {
			m.AddConstraint(fmt.Sprintf("cover_%d", t),
				q.Add(v.qBoiler[t], 1).Add(v.qEBoiler[t], 1), milp.GreaterEq, req)
		} else {
			m.AddConstraint(fmt.Sprintf("boiler_off_%d", t), milp.NewExpr(0).Add(v.qBoiler[t], 1), milp.Equal, 0)
			m.AddConstraint(fmt.Sprintf("eboiler_off_%d", t), milp.NewExpr(0).Add(v.qEBoiler[t], 1), milp.Equal, 0)
		}

		m.AddConstraint(fmt.Sprintf("deficit_%d", t),
			milp.NewExpr(0).Add(v.deficit[t], 1).Add(v.qCHP[t], 1), milp.GreaterEq, req)
		m.AddConstraint(fmt.Sprintf("backup_%d", t),
			milp.NewExpr(0).Add(v.qBoiler[t], 1).Add(v.qEBoiler[t], 1).Add(v.deficit[t], -1), milp.LessEq, 0)

		m.AddConstraint(fmt.Sprintf("chp_power_%d", t),
			milp.NewExpr(0).Add(v.eeCHP[t], 1).Add(v.qCHP[t], -p.ElectricityPerHeat()), milp.Equal, 0)
		m.AddConstraint(fmt.Sprintf("power_split_%d", t),
			milp.NewExpr(0).Add(v.eeSpot[t], 1).Add(v.eeInt[t], 1).Add(v.eeCHP[t], -1), milp.Equal, 0)
		m.AddConstraint(fmt.Sprintf("eboiler_power_%d", t),
			milp.NewExpr(0).Add(v.qEBoiler[t], 1).Add(v.eeInt[t], -p.EBoilerEfficiency()).Add(v.eeGrid[t], -p.EBoilerEfficiency()),
			milp.Equal, 0)

		trans := milp.NewExpr(0).Add(v.on[t], 1).Add(v.start[t], -1).Add(v.stop[t], 1)
		if t == 0 {
			m.AddConstraint("transition_0", trans, milp.Equal, p.InitialState())
		} else {
			m.AddConstraint(fmt.Sprintf("transition_%d", t), trans.Add(v.on[t-1], -1), milp.Equal, 0)
		}
		m.AddConstraint(fmt.Sprintf("start_stop_%d", t),
			milp.NewExpr(0).Add(v.start[t], 1).Add(v.stop[t], 1), milp.LessEq, 1)

		f.profit[t] = milp.NewExpr(h.HeatPrice*req).
			Add(v.eeSpot[t], h.ElectricityPrice).
			Add(v.qCHP[t], -h.GasPrice*p.GasPerHeat()).
			Add(v.qBoiler[t], -h.GasPrice/p.BoilerEfficiency()).
			Add(v.eeGrid[t], -(h.ElectricityPrice + p.DistributionCost())).
			Add(v.on[t], -p.CHPServiceCost())
	}

	if U := p.MinUpHours(); U > 0 {
		for t := 0; t <= T-U; t++ {
			e := milp.NewExpr(0).Add(v.start[t], -float64(U))
			for i := 0; i < U; i++ {
				e = e.Add(v.on[t+i], 1)
			}
			m.AddConstraint(fmt.Sprintf("min_up_%d", t), e, milp.GreaterEq, 0)
		}
	}
	if N := p.MinDownHours(); N > 0 {
		for t := 0; t <= T-N; t++ {
			e := milp.NewExpr(float64(N)).Add(v.stop[t], -float64(N))
			for i := 0; i < N; i++ {
				e = e.Add(v.on[t+i], -1)
			}
			m.AddConstraint(fmt.Sprintf("min_down_%d", t), e, milp.GreaterEq, 0)
		}
	}

	m.Maximize(milp.Sum(f.profit...))
	return f
}

// HourProfit is the objective term of hour t evaluated at values.
func (f *Formulation) HourProfit(t int, values []float64) float64 {
	return f.profit[t].Eval(values)
}

func (f *Formulation) objective(values []float64) float64 {
	obj, _ := f.Model.Objective()
	return obj.Eval(values)
}
