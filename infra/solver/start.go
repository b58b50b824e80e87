package solver

import (
	"math"

	"github.com/kilianp07/chpdispatch/core/logger"
	"github.com/kilianp07/chpdispatch/core/milp"
)

// startPoint returns a copy of the model start point with binaries rounded,
// or nil when the model has none or it violates the model.
func startPoint(m *milp.Model, log logger.Logger) []float64 {
	s := m.Start()
	if s == nil {
		return nil
	}
	if len(s) != m.NumVars() {
		log.Warnf("solver: start point of %s has %d values for %d variables, ignored", m.Name, len(s), m.NumVars())
		return nil
	}
	x := append([]float64(nil), s...)
	for j, v := range m.Vars() {
		if v.Kind == milp.Binary {
			x[j] = math.Round(x[j])
		}
	}
	if err := m.Check(x, intTol); err != nil {
		log.Warnf("solver: start point of %s ignored: %v", m.Name, err)
		return nil
	}
	return x
}
