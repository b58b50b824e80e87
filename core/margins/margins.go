// Package margins computes the single-point marginal cost of each heat
// production strategy. It has no time coupling and no optimization: given one
// instant's prices it tells which source would be cheapest on its own.
package margins

import (
	"errors"

	"github.com/kilianp07/chpdispatch/core/model"
)

// Compute returns marginal costs, margins and CHP trigger prices for the given
// prices. Profiles are validated at construction so no division here can be
// by zero.
func Compute(electricity, gas, heat float64, p model.Profile) model.MarginSet {
	hChp := p.CHPHeatOutput()
	eChp := p.CHPElectricOutput()
	gasInput := p.CHPGasInput()
	service := p.CHPServiceCost()
	hE := p.EBoilerMaxHeat()

	var ms model.MarginSet
	ms.Costs[0] = gas / p.BoilerEfficiency()
	ms.Costs[1] = gas*p.GasPerHeat() + service/hChp - electricity*p.ElectricityPerHeat()
	ms.Costs[2] = (electricity + p.DistributionCost()) / p.EBoilerEfficiency()

	// Negative surplus means the electric boiler draws more than the CHP
	// produces and the difference is bought.
	surplus := eChp - hE/p.EBoilerEfficiency()
	ms.Costs[3] = (gas*gasInput + service - electricity*surplus) / (hChp + hE)

	for i, c := range ms.Costs {
		ms.Margins[i] = heat - c
	}
	ms.TriggerElectricityOnly = (gas*gasInput + service) / eChp
	ms.TriggerFull = (gas*gasInput + service - heat*hChp) / eChp
	ms.CHPElectricityMargin = electricity - ms.TriggerElectricityOnly
	return ms
}

// BestSource picks the strategy with the largest strictly positive margin.
// Exact ties resolve to the lowest strategy index. NoSource is returned when
// no margin is positive.
func BestSource(m [4]float64) model.Strategy {
	best := model.NoSource
	bestMargin := 0.0
	for i, v := range m {
		if v > bestMargin {
			best = model.Strategies[i]
			bestMargin = v
		}
	}
	return best
}

// ErrInvalidSweep is returned for an empty or inverted sweep range.
var ErrInvalidSweep = errors.New("invalid sweep range")

// SweepPoint is the margin picture at one electricity price.
type SweepPoint struct {
	ElectricityPrice float64         `json:"electricity_price" yaml:"electricity_price"`
	Margins          model.MarginSet `json:"margins" yaml:"margins"`
	Best             model.Strategy  `json:"best_source" yaml:"best_source"`
}

// Sweep evaluates the margins for electricity prices from..to (inclusive) in
// the given step with gas and heat prices held constant.
func Sweep(from, to, step, gas, heat float64, p model.Profile) ([]SweepPoint, error) {
	if step <= 0 || to < from {
		return nil, ErrInvalidSweep
	}
	n := int((to-from)/step+1e-9) + 1
	out := make([]SweepPoint, 0, n)
	for i := 0; i < n; i++ {
		ee := from + float64(i)*step
		ms := Compute(ee, gas, heat, p)
		out = append(out, SweepPoint{ElectricityPrice: ee, Margins: ms, Best: BestSource(ms.Margins)})
	}
	return out, nil
}
