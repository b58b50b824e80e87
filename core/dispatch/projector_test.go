package dispatch

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chpdispatch/core/model"
)

func TestBuildConstraintCounts(t *testing.T) {
	p := model.MustProfile(scenarioParams())
	s := series([]float64{50, 60, 70, 80, 90, 100}, []float64{1, 0, 1, 1, 0, 1})
	f := Build(s, p)
	m := f.Model

	assert.Equal(t, 6*11, m.NumVars())
	assert.Equal(t, 6*3, m.NumBinary())
	assert.Equal(t, 4, m.ConstraintsNamed("cover_"))
	assert.Equal(t, 2, m.ConstraintsNamed("boiler_off_"))
	assert.Equal(t, 2, m.ConstraintsNamed("eboiler_off_"))
	assert.Equal(t, 6, m.ConstraintsNamed("transition_"))
	assert.Equal(t, 6, m.ConstraintsNamed("start_stop_"))
	// t = 0..T-U inclusive
	assert.Equal(t, 3, m.ConstraintsNamed("min_up_"))
	assert.Equal(t, 3, m.ConstraintsNamed("min_down_"))
}

func TestProjectMissingValuesReadAsZero(t *testing.T) {
	p := model.MustProfile(scenarioParams())
	s := series([]float64{80, 80}, []float64{1, 0})
	res := Project(s, p, nil, DefaultTolerances())
	require.Len(t, res, 2)

	for i, r := range res {
		assert.False(t, r.CHPOn)
		assert.Zero(t, r.CHPHeat)
		assert.Zero(t, r.BypassHeat)
		// only the constant heat revenue remains
		assert.InDelta(t, 40*0.99*s[i].HeatDemand, r.Profit, 1e-12)
	}
	assert.InDelta(t, 40*0.99, res[1].CumulativeProfit, 1e-12)
}

func TestProjectBypassAndNoise(t *testing.T) {
	p := model.MustProfile(scenarioParams())
	s := series([]float64{80, 80, 80}, []float64{1, 1, 0.5})
	f := Build(s, p)
	values := make([]float64, f.Model.NumVars())
	v := f.vars

	// hour 0: CHP just above the requirement, below the bypass tolerance
	values[v.on[0]] = 1
	values[v.qCHP[0]] = 0.99 + 0.0005
	// hour 1: CHP at full output, real bypass
	values[v.on[1]] = 1
	values[v.qCHP[1]] = 1.09
	// hour 2: solver noise and NaN
	values[v.qBoiler[2]] = 1e-12
	values[v.qEBoiler[2]] = math.NaN()
	values[v.qCHP[2]] = 0.495
	values[v.on[2]] = 0.9999999

	res := f.Project(values, DefaultTolerances())
	assert.Zero(t, res[0].BypassHeat)
	assert.InDelta(t, 0.9905, res[0].CHPHeat, 1e-12)
	assert.InDelta(t, 100*0.9905/1.09, res[0].CHPLoadPct, 1e-9)

	assert.InDelta(t, 1.09-0.99, res[1].BypassHeat, 1e-12)
	assert.InDelta(t, 0.99, res[1].CHPHeat, 1e-12)
	assert.InDelta(t, 100, res[1].CHPLoadPct, 1e-9)

	assert.Zero(t, res[2].BoilerHeat)
	assert.Zero(t, res[2].EBoilerHeat)
	assert.True(t, res[2].CHPOn)

	for i := range res {
		assert.InDelta(t, f.HourProfit(i, values), res[i].Profit, 1e-12)
	}
}

func TestProjectReportsSolvedStartStop(t *testing.T) {
	p := model.MustProfile(scenarioParams())
	s := series([]float64{80}, []float64{1})
	f := Build(s, p)
	assert.Equal(t, 1, f.Model.ConstraintsNamed("start_stop_"))

	values := make([]float64, f.Model.NumVars())
	values[f.vars.start[0]] = 1
	values[f.vars.stop[0]] = 1
	r := f.Project(values, DefaultTolerances())[0]
	assert.True(t, r.CHPStart)
	assert.True(t, r.CHPStop)
	// the model itself never allows both
	assert.Error(t, f.Model.Check(values, 1e-9))
}

func TestSummarizeAndMonthly(t *testing.T) {
	p := model.MustProfile(scenarioParams())
	jan := time.Date(2025, 1, 31, 22, 0, 0, 0, time.UTC)
	results := []model.HourlyResult{
		{Time: jan, HeatPrice: 40, GasPrice: 35, ElectricityPrice: 80, HeatDemand: 1,
			CHPOn: true, CHPStart: true, CHPHeat: 0.99, CHPLoadPct: 90.8, CHPElectricity: 0.907, ElectricitySold: 0.907, Profit: 10},
		{Time: jan.Add(time.Hour), HeatPrice: 40, GasPrice: 35, ElectricityPrice: 80, HeatDemand: 1,
			BoilerHeat: 0.99, Profit: 3},
		{Time: jan.Add(2 * time.Hour), HeatPrice: 40, GasPrice: 35, ElectricityPrice: 120, HeatDemand: 2,
			EBoilerHeat: 0.5, BoilerHeat: 1.48, ElectricityGrid: 0.51, Profit: -2},
	}
	s := Summarize(results, p)
	assert.Equal(t, 3, s.Hours)
	assert.InDelta(t, 11, s.TotalProfit, 1e-12)
	assert.Equal(t, 1, s.CHPHours)
	assert.Equal(t, 1, s.CHPStarts)
	assert.InDelta(t, 90.8, s.AvgCHPLoadPct, 1e-12)
	assert.InDelta(t, 40*0.99*4, s.HeatRevenue, 1e-9)
	assert.InDelta(t, 80*0.907, s.ElectricityRevenue, 1e-9)
	assert.InDelta(t, (120+33)*0.51, s.GridCost, 1e-9)
	assert.InDelta(t, 12, s.ServiceCost, 1e-12)
	assert.InDelta(t, 0.99+1.48, s.BoilerHeat, 1e-12)

	months := Monthly(results)
	require.Len(t, months, 2)
	assert.Equal(t, "2025-01", months[0].Month)
	assert.Equal(t, 2, months[0].Hours)
	assert.InDelta(t, 13, months[0].Profit, 1e-12)
	assert.Equal(t, "2025-02", months[1].Month)
	assert.InDelta(t, 11, months[1].CumulativeProfit, 1e-12)
	assert.Equal(t, 1, months[0].CHPHours)
}
