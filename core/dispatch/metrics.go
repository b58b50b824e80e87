package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveDuration *prometheus.HistogramVec
	solvesTotal   *prometheus.CounterVec
	solveNodes    prometheus.Histogram
	modelSize     *prometheus.GaugeVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Histogram, *prometheus.GaugeVec) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chp_dispatch_solve_duration_seconds",
			Help:    "Wall-clock duration of unit-commitment solves",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 9),
		},
		[]string{"status"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chp_dispatch_solves_total",
			Help: "Number of unit-commitment solves by solver status",
		},
		[]string{"status"},
	)
	nodes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chp_dispatch_solve_nodes",
			Help:    "Branch and bound nodes explored per solve",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
	size := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chp_dispatch_model_size",
			Help: "Size of the last built model",
		},
		[]string{"kind"},
	)
	return dur, total, nodes, size
}

func init() {
	solveDuration, solvesTotal, solveNodes, modelSize = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers optimizer metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveDuration, solvesTotal, solveNodes, modelSize)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveDuration, solvesTotal, solveNodes, modelSize = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
