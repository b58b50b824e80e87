package metrics

import (
	"context"
	"errors"

	"github.com/kilianp07/chpdispatch/core/dispatch"
	"github.com/kilianp07/chpdispatch/core/events"
	coremetrics "github.com/kilianp07/chpdispatch/core/metrics"
	"github.com/kilianp07/chpdispatch/internal/eventbus"
)

// Failure reasons recorded for runs without a plan.
const (
	ReasonNoSolution = "no_solution"
	ReasonShort      = "horizon_too_short"
	ReasonEmpty      = "empty_series"
	ReasonError      = "error"
)

// FailureReason classifies an Optimize error.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrNoSolution):
		return ReasonNoSolution
	case errors.Is(err, dispatch.ErrHorizonTooShort):
		return ReasonShort
	case errors.Is(err, dispatch.ErrEmptySeries):
		return ReasonEmpty
	default:
		return ReasonError
	}
}

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed; the returned
// channel is closed once it has stopped. done, when not nil, is called after
// each handled event.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, done func(error)) <-chan struct{} {
	stopped := make(chan struct{})
	if bus == nil || sink == nil {
		close(stopped)
		return stopped
	}
	sub := bus.Subscribe()
	go func() {
		defer close(stopped)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				err := record(sink, ev)
				if done != nil {
					done(err)
				}
			}
		}
	}()
	return stopped
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.RunEvent:
		if !e.Failed() {
			p := e.Plan
			return sink.RecordPlan(coremetrics.PlanEvent{
				RunID:     p.RunID,
				Site:      e.Site,
				Status:    p.Status,
				Objective: p.Objective,
				Nodes:     p.Nodes,
				Duration:  p.Duration,
				Results:   p.Results,
				Time:      e.Time,
			})
		}
		if r, ok := sink.(coremetrics.RunFailureRecorder); ok {
			msg := ""
			if e.Err != nil {
				msg = e.Err.Error()
			}
			return r.RecordRunFailure(coremetrics.RunFailureEvent{
				Site:   e.Site,
				Reason: FailureReason(e.Err),
				Hours:  e.Hours,
				Error:  msg,
				Time:   e.Time,
			})
		}
	case events.MarginEvent:
		if r, ok := sink.(coremetrics.MarginRecorder); ok {
			return r.RecordMargins(coremetrics.MarginEvent{
				Site:             e.Site,
				ElectricityPrice: e.ElectricityPrice,
				GasPrice:         e.GasPrice,
				HeatPrice:        e.HeatPrice,
				Margins:          e.Margins,
				Best:             e.Best,
				Time:             e.Time,
			})
		}
	}
	return nil
}
