package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/chpdispatch/core/metrics"
	"github.com/kilianp07/chpdispatch/core/model"
)

func samplePlan() coremetrics.PlanEvent {
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	return coremetrics.PlanEvent{
		RunID:     "r1",
		Site:      "behounkova",
		Status:    "optimal",
		Objective: 123.4567,
		Nodes:     3,
		Duration:  250 * time.Millisecond,
		Time:      t0.Add(24 * time.Hour),
		Results: []model.HourlyResult{
			{Time: t0, ElectricityPrice: 120, HeatDemand: 1, CHPOn: true, CHPStart: true, CHPHeat: 0.99, BypassHeat: 0.1, ElectricitySold: 0.999, Profit: 60, BestSource: model.StrategyCHPSpot},
			{Time: t0.Add(time.Hour), ElectricityPrice: 40, HeatDemand: 1, BoilerHeat: 0.99, Profit: 3, BestSource: model.StrategyBoiler},
		},
	}
}

func TestPromSink_RecordPlan(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordPlan(samplePlan()))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("behounkova", "optimal")))
	assert.InDelta(t, 123.4567, testutil.ToFloat64(sink.objective.WithLabelValues("behounkova")), 1e-12)
	assert.InDelta(t, 0.99, testutil.ToFloat64(sink.heat.WithLabelValues("behounkova", "chp")), 1e-12)
	assert.InDelta(t, 0.99, testutil.ToFloat64(sink.heat.WithLabelValues("behounkova", "boiler")), 1e-12)
	assert.InDelta(t, 0.1, testutil.ToFloat64(sink.heat.WithLabelValues("behounkova", "bypass")), 1e-12)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.chpHours.WithLabelValues("behounkova")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.chpStarts.WithLabelValues("behounkova")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.solve))
}

func TestPromSink_FailuresAndMargins(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordRunFailure(coremetrics.RunFailureEvent{Site: "rabasova", Reason: ReasonNoSolution}))
	require.NoError(t, sink.RecordRunFailure(coremetrics.RunFailureEvent{Site: "rabasova", Reason: ReasonNoSolution}))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.runs.WithLabelValues("rabasova", ReasonNoSolution)))

	ms := model.MarginSet{Margins: [4]float64{3, 10, -5, 1}}
	require.NoError(t, sink.RecordMargins(coremetrics.MarginEvent{Site: "rabasova", Margins: ms, Best: model.StrategyCHPSpot}))
	assert.Equal(t, 10.0, testutil.ToFloat64(sink.margin.WithLabelValues("rabasova", "chp_spot")))
	assert.Equal(t, -5.0, testutil.ToFloat64(sink.margin.WithLabelValues("rabasova", "eboiler_grid")))
	assert.Equal(t, float64(model.StrategyCHPSpot), testutil.ToFloat64(sink.best.WithLabelValues("rabasova")))
}

// A second sink on the same registry shares the collectors.
func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, b.RecordPlan(samplePlan()))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.runs.WithLabelValues("behounkova", "optimal")))
}
