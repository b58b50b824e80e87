package dispatch

import (
	"math"

	"github.com/kilianp07/chpdispatch/core/margins"
	"github.com/kilianp07/chpdispatch/core/milp"
	"github.com/kilianp07/chpdispatch/core/model"
)

// Tolerances control clipping of solver noise in the ledger.
type Tolerances struct {
	// Value clips any reported variable with |v| below it to zero.
	Value float64
	// Bypass clips bypass heat below it to zero.
	Bypass float64
}

// DefaultTolerances matches Config defaults.
func DefaultTolerances() Tolerances { return Tolerances{Value: 1e-9, Bypass: 0.001} }

// Project maps solved values of the model built by Build(series, p) to the
// hourly ledger.
func Project(series model.Series, p model.Profile, values []float64, tol Tolerances) []model.HourlyResult {
	return Build(series, p).Project(values, tol)
}

func (f *Formulation) value(v milp.Var, values []float64, tol float64) float64 {
	if int(v) >= len(values) {
		return 0
	}
	x := values[v]
	if math.IsNaN(x) || math.Abs(x) < tol {
		return 0
	}
	return x
}

// Project maps solved values to one HourlyResult per input hour. Missing or
// NaN values read as zero.
func (f *Formulation) Project(values []float64, tol Tolerances) []model.HourlyResult {
	p := f.profile
	v := f.vars
	out := make([]model.HourlyResult, len(f.series))
	cumulative := 0.0
	for t, h := range f.series {
		val := func(x milp.Var) float64 { return f.value(x, values, tol.Value) }
		qCHP := val(v.qCHP[t])
		qB := val(v.qBoiler[t])
		qE := val(v.qEBoiler[t])

		bypass := math.Max(qCHP-f.required[t], 0)
		if bypass < tol.Bypass {
			bypass = 0
		}
		profit := f.profit[t].Eval(values)
		cumulative += profit
		ms := margins.Compute(h.ElectricityPrice, h.GasPrice, h.HeatPrice, p)

		out[t] = model.HourlyResult{
			Time:                h.Time,
			ElectricityPrice:    h.ElectricityPrice,
			GasPrice:            h.GasPrice,
			HeatPrice:           h.HeatPrice,
			HeatDemand:          h.HeatDemand,
			BypassHeat:          bypass,
			CHPHeat:             qCHP - bypass,
			CHPLoadPct:          100 * qCHP / p.CHPHeatOutput(),
			CHPOn:               math.Round(val(v.on[t])) == 1,
			CHPStart:            math.Round(val(v.start[t])) == 1,
			CHPStop:             math.Round(val(v.stop[t])) == 1,
			BoilerHeat:          qB,
			BoilerLoadPct:       100 * qB / p.BoilerMaxHeat(),
			EBoilerHeat:         qE,
			EBoilerLoadPct:      100 * qE / p.EBoilerMaxHeat(),
			CHPElectricity:      val(v.eeCHP[t]),
			ElectricitySold:     val(v.eeSpot[t]),
			ElectricityInternal: val(v.eeInt[t]),
			ElectricityGrid:     val(v.eeGrid[t]),
			Profit:              profit,
			CumulativeProfit:    cumulative,
			Margins:             ms,
			BestSource:          margins.BestSource(ms.Margins),
		}
	}
	return out
}
