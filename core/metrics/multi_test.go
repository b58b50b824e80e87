package metrics

import (
	"errors"
	"testing"

	"github.com/kilianp07/chpdispatch/core/model"
)

type recordSink struct {
	count int
}

func (r *recordSink) RecordPlan(PlanEvent) error {
	r.count++
	return nil
}

func (r *recordSink) RecordRunFailure(RunFailureEvent) error {
	r.count++
	return nil
}

type planOnly struct{ err error }

func (p planOnly) RecordPlan(PlanEvent) error { return p.err }

// TestMultiSink ensures events are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2, planOnly{})
	if err := m.RecordPlan(PlanEvent{}); err != nil {
		t.Fatalf("record plan: %v", err)
	}
	if err := m.RecordRunFailure(RunFailureEvent{}); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := m.RecordMargins(MarginEvent{}); err != nil {
		t.Fatalf("record margins: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("events not forwarded")
	}
}

func TestMultiSinkFirstError(t *testing.T) {
	boom := errors.New("boom")
	after := &recordSink{}
	m := NewMultiSink(planOnly{err: boom}, after)
	if err := m.RecordPlan(PlanEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if after.count != 0 {
		t.Fatalf("sink after failing one should not be called")
	}
}

func TestPlanTotals(t *testing.T) {
	ev := PlanEvent{Results: []model.HourlyResult{
		{CHPOn: true, CHPStart: true, CHPHeat: 0.99, BypassHeat: 0.1, ElectricitySold: 0.999},
		{CHPOn: true, CHPHeat: 0.99, ElectricitySold: 0.9},
		{BoilerHeat: 1.2, EBoilerHeat: 0.3, ElectricityGrid: 0.31},
	}}
	tot := ev.Totals()
	if tot.Hours != 3 || tot.CHPHours != 2 || tot.CHPStarts != 1 {
		t.Fatalf("unexpected counts %+v", tot)
	}
	if tot.CHPHeat != 1.98 || tot.BoilerHeat != 1.2 || tot.EBoilerHeat != 0.3 {
		t.Fatalf("unexpected heat %+v", tot)
	}
}
