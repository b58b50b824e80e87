// Package metrics defines the sinks that record optimization runs for
// observability. Sinks like PromSink and InfluxSink record plans, failed runs
// and margin snapshots and can be combined with NewMultiSink. The factory
// helpers return a MultiSink automatically when multiple sinks are
// configured.
package metrics
