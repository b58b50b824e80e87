package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/chpdispatch/core/metrics"
	"github.com/kilianp07/chpdispatch/core/model"
	"github.com/kilianp07/chpdispatch/infra/logger"
)

// InfluxConfig configures an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Hourly also writes one point per planned hour besides the run point.
	Hourly bool `json:"hourly"`
}

// InfluxSink writes dispatch plans to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	hourly   bool
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		hourly:   cfg.Hourly,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordPlan writes the run point and, when enabled, the hourly ledger in a
// single request.
func (s *InfluxSink) RecordPlan(ev coremetrics.PlanEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var points []*write.Point
	if s.hourly {
		points = make([]*write.Point, 0, len(ev.Results)+1)
		for _, r := range ev.Results {
			points = append(points, hourPoint(ev, r))
		}
	}
	tot := ev.Totals()
	run := write.NewPointWithMeasurement("chp_dispatch_run").
		AddTag("site", ev.Site).
		AddTag("status", ev.Status).
		AddTag("run_id", ev.RunID).
		AddField("objective", round3(ev.Objective)).
		AddField("nodes", ev.Nodes).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		AddField("hours", tot.Hours).
		AddField("chp_hours", tot.CHPHours).
		AddField("chp_starts", tot.CHPStarts).
		AddField("electricity_sold", round3(tot.ElectricitySold)).
		SetTime(ev.Time)
	points = append(points, run)
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write plan %s: %w", ev.RunID, err)
	}
	return nil
}

func hourPoint(ev coremetrics.PlanEvent, r model.HourlyResult) *write.Point {
	return write.NewPointWithMeasurement("chp_dispatch_hour").
		AddTag("site", ev.Site).
		AddTag("run_id", ev.RunID).
		AddTag("best_source", r.BestSource.Code()).
		AddField("electricity_price", round3(r.ElectricityPrice)).
		AddField("heat_demand", round3(r.HeatDemand)).
		AddField("chp_on", r.CHPOn).
		AddField("chp_heat", round3(r.CHPHeat)).
		AddField("bypass_heat", round3(r.BypassHeat)).
		AddField("boiler_heat", round3(r.BoilerHeat)).
		AddField("eboiler_heat", round3(r.EBoilerHeat)).
		AddField("electricity_sold", round3(r.ElectricitySold)).
		AddField("electricity_grid", round3(r.ElectricityGrid)).
		AddField("profit", round3(r.Profit)).
		SetTime(r.Time)
}

// RecordRunFailure writes a failed run.
func (s *InfluxSink) RecordRunFailure(ev coremetrics.RunFailureEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("chp_dispatch_failure").
		AddTag("site", ev.Site).
		AddTag("reason", ev.Reason).
		AddField("hours", ev.Hours).
		AddField("error", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMargins writes a margin snapshot.
func (s *InfluxSink) RecordMargins(ev coremetrics.MarginEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("chp_margins").
		AddTag("site", ev.Site).
		AddTag("best_source", ev.Best.Code()).
		AddField("electricity_price", round3(ev.ElectricityPrice)).
		AddField("gas_price", round3(ev.GasPrice)).
		AddField("heat_price", round3(ev.HeatPrice))
	for i, st := range model.Strategies {
		p = p.AddField("cost_"+st.Code(), round3(ev.Margins.Costs[i])).
			AddField("margin_"+st.Code(), round3(ev.Margins.Margins[i]))
	}
	p = p.AddField("trigger_electricity_only", round3(ev.Margins.TriggerElectricityOnly)).
		AddField("trigger_full", round3(ev.Margins.TriggerFull)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
