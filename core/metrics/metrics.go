package metrics

import (
	"time"

	"github.com/kilianp07/chpdispatch/core/model"
)

// PlanEvent is a solved dispatch plan to be recorded.
type PlanEvent struct {
	RunID     string
	Site      string
	Status    string
	Objective float64
	Nodes     int
	Duration  time.Duration
	Results   []model.HourlyResult
	Time      time.Time
}

// MetricsSink records dispatch plans for observability purposes.
type MetricsSink interface {
	RecordPlan(ev PlanEvent) error
}

// RunFailureEvent describes a run that produced no plan.
type RunFailureEvent struct {
	Site   string
	Reason string
	Hours  int
	Error  string
	Time   time.Time
}

// RunFailureRecorder records failed runs.
type RunFailureRecorder interface {
	RecordRunFailure(ev RunFailureEvent) error
}

// MarginEvent is a marginal cost snapshot for one site and price triple.
type MarginEvent struct {
	Site             string
	ElectricityPrice float64
	GasPrice         float64
	HeatPrice        float64
	Margins          model.MarginSet
	Best             model.Strategy
	Time             time.Time
}

// MarginRecorder records margin snapshots.
type MarginRecorder interface {
	RecordMargins(ev MarginEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanEvent) error             { return nil }
func (NopSink) RecordRunFailure(RunFailureEvent) error { return nil }
func (NopSink) RecordMargins(MarginEvent) error        { return nil }

// PlanTotals aggregates the ledger of a plan for sinks that export one value
// per run.
type PlanTotals struct {
	Hours           int
	CHPHours        int
	CHPStarts       int
	CHPHeat         float64
	BoilerHeat      float64
	EBoilerHeat     float64
	BypassHeat      float64
	ElectricitySold float64
	ElectricityGrid float64
}

// Totals sums the ledger of ev.
func (ev PlanEvent) Totals() PlanTotals {
	t := PlanTotals{Hours: len(ev.Results)}
	for _, r := range ev.Results {
		if r.CHPOn {
			t.CHPHours++
		}
		if r.CHPStart {
			t.CHPStarts++
		}
		t.CHPHeat += r.CHPHeat
		t.BoilerHeat += r.BoilerHeat
		t.EBoilerHeat += r.EBoilerHeat
		t.BypassHeat += r.BypassHeat
		t.ElectricitySold += r.ElectricitySold
		t.ElectricityGrid += r.ElectricityGrid
	}
	return t
}
