package metrics

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the plan to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlan(ev PlanEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRunFailure forwards failures when supported by the sink.
func (m *MultiSink) RecordRunFailure(ev RunFailureEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RunFailureRecorder); ok {
			if err := rec.RecordRunFailure(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordMargins forwards margin snapshots when supported by the sink.
func (m *MultiSink) RecordMargins(ev MarginEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(MarginRecorder); ok {
			if err := rec.RecordMargins(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
