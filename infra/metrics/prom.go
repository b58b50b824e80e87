package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/chpdispatch/core/metrics"
	"github.com/kilianp07/chpdispatch/core/model"
)

// PromSink records dispatch plans in Prometheus metrics, one series per site.
type PromSink struct {
	runs        *prometheus.CounterVec
	objective   *prometheus.GaugeVec
	solve       *prometheus.HistogramVec
	heat        *prometheus.GaugeVec
	electricity *prometheus.GaugeVec
	chpHours    *prometheus.GaugeVec
	chpStarts   *prometheus.GaugeVec
	margin      *prometheus.GaugeVec
	best        *prometheus.GaugeVec
}

// NewPromSink registers plan metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chp_plan_runs_total",
			Help: "Optimization runs by site and outcome",
		}, []string{"site", "status"}),
		objective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chp_plan_objective_eur",
			Help: "Profit of the latest plan",
		}, []string{"site"}),
		solve: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chp_plan_solve_seconds",
			Help:    "Wall-clock time to produce a plan",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"site"}),
		heat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chp_plan_heat_mwh",
			Help: "Heat planned per source over the latest horizon",
		}, []string{"site", "source"}),
		electricity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chp_plan_electricity_mwh",
			Help: "Electricity sold to the spot market or bought from the grid over the latest horizon",
		}, []string{"site", "flow"}),
		chpHours: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chp_plan_chp_hours",
			Help: "Hours the CHP runs in the latest plan",
		}, []string{"site"}),
		chpStarts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chp_plan_chp_starts",
			Help: "CHP starts in the latest plan",
		}, []string{"site"}),
		margin: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chp_margin_eur_per_mwh",
			Help: "Heat margin per strategy at the latest evaluated prices",
		}, []string{"site", "strategy"}),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chp_best_source",
			Help: "Index of the most profitable strategy, 0 when none is profitable",
		}, []string{"site"}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.solve, err = register(reg, s.solve); err != nil {
		return nil, err
	}
	for _, g := range []**prometheus.GaugeVec{&s.objective, &s.heat, &s.electricity, &s.chpHours, &s.chpStarts, &s.margin, &s.best} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

// RecordPlan updates the per-site gauges from the plan ledger.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	tot := ev.Totals()
	s.runs.WithLabelValues(ev.Site, ev.Status).Inc()
	s.objective.WithLabelValues(ev.Site).Set(ev.Objective)
	s.solve.WithLabelValues(ev.Site).Observe(ev.Duration.Seconds())
	s.heat.WithLabelValues(ev.Site, "chp").Set(tot.CHPHeat)
	s.heat.WithLabelValues(ev.Site, "boiler").Set(tot.BoilerHeat)
	s.heat.WithLabelValues(ev.Site, "eboiler").Set(tot.EBoilerHeat)
	s.heat.WithLabelValues(ev.Site, "bypass").Set(tot.BypassHeat)
	s.electricity.WithLabelValues(ev.Site, "sold").Set(tot.ElectricitySold)
	s.electricity.WithLabelValues(ev.Site, "grid").Set(tot.ElectricityGrid)
	s.chpHours.WithLabelValues(ev.Site).Set(float64(tot.CHPHours))
	s.chpStarts.WithLabelValues(ev.Site).Set(float64(tot.CHPStarts))
	return nil
}

// RecordRunFailure counts the failed run under its reason.
func (s *PromSink) RecordRunFailure(ev coremetrics.RunFailureEvent) error {
	s.runs.WithLabelValues(ev.Site, ev.Reason).Inc()
	return nil
}

// RecordMargins sets the margin gauges and the best source index.
func (s *PromSink) RecordMargins(ev coremetrics.MarginEvent) error {
	for i, st := range model.Strategies {
		s.margin.WithLabelValues(ev.Site, st.Code()).Set(ev.Margins.Margins[i])
	}
	s.best.WithLabelValues(ev.Site).Set(float64(ev.Best))
	return nil
}
