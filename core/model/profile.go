package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidProfile is returned when a profile would lead to degenerate
// arithmetic (zero capacity, zero or out of range efficiency).
var ErrInvalidProfile = errors.New("invalid technical profile")

// Params are the raw physical and economic parameters of one site.
// All energy quantities are MWh per hour, prices and costs EUR.
type Params struct {
	CHPHeatOutput      float64 `json:"chp_heat_output" yaml:"chp_heat_output"`
	CHPElectricOutput  float64 `json:"chp_electric_output" yaml:"chp_electric_output"`
	CHPHeatEfficiency  float64 `json:"chp_heat_efficiency" yaml:"chp_heat_efficiency"`
	CHPMinLoad         float64 `json:"chp_min_load" yaml:"chp_min_load"`
	CHPServiceCost     float64 `json:"chp_service_cost" yaml:"chp_service_cost"`
	BoilerEfficiency   float64 `json:"boiler_efficiency" yaml:"boiler_efficiency"`
	BoilerMaxHeat      float64 `json:"boiler_max_heat" yaml:"boiler_max_heat"`
	EBoilerEfficiency  float64 `json:"eboiler_efficiency" yaml:"eboiler_efficiency"`
	EBoilerMaxElectric float64 `json:"eboiler_max_electric_input" yaml:"eboiler_max_electric_input"`
	DistributionCost   float64 `json:"distribution_cost" yaml:"distribution_cost"`
	HeatCoverage       float64 `json:"heat_coverage" yaml:"heat_coverage"`
	MinUpHours         int     `json:"min_up_hours" yaml:"min_up_hours"`
	MinDownHours       int     `json:"min_down_hours" yaml:"min_down_hours"`
	InitialOn          bool    `json:"initial_on" yaml:"initial_on"`
}

// DefaultParams returns the reference site used when nothing else is configured.
func DefaultParams() Params {
	return Params{
		CHPHeatOutput:      1.09,
		CHPElectricOutput:  0.999,
		CHPHeatEfficiency:  0.46,
		CHPMinLoad:         0.55,
		CHPServiceCost:     12.0,
		BoilerEfficiency:   0.95,
		BoilerMaxHeat:      3.91,
		EBoilerEfficiency:  0.98,
		EBoilerMaxElectric: 0.60564 / 0.98,
		DistributionCost:   33.0,
		HeatCoverage:       0.99,
		MinUpHours:         4,
		MinDownHours:       4,
	}
}

// Profile is a validated, immutable set of site parameters together with
// the ratios derived from them. Build it with NewProfile.
type Profile struct {
	p Params
}

// NewProfile validates params and returns the corresponding Profile.
//
//nolint:gocyclo
func NewProfile(p Params) (Profile, error) {
	positive := []struct {
		name string
		v    float64
	}{
		{"chp_heat_output", p.CHPHeatOutput},
		{"chp_electric_output", p.CHPElectricOutput},
		{"chp_heat_efficiency", p.CHPHeatEfficiency},
		{"chp_min_load", p.CHPMinLoad},
		{"boiler_efficiency", p.BoilerEfficiency},
		{"boiler_max_heat", p.BoilerMaxHeat},
		{"eboiler_efficiency", p.EBoilerEfficiency},
		{"eboiler_max_electric_input", p.EBoilerMaxElectric},
		{"heat_coverage", p.HeatCoverage},
	}
	for _, f := range positive {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return Profile{}, fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidProfile, f.name, f.v)
		}
	}
	unit := []struct {
		name string
		v    float64
	}{
		{"chp_heat_efficiency", p.CHPHeatEfficiency},
		{"chp_min_load", p.CHPMinLoad},
		{"boiler_efficiency", p.BoilerEfficiency},
		{"eboiler_efficiency", p.EBoilerEfficiency},
		{"heat_coverage", p.HeatCoverage},
	}
	for _, f := range unit {
		if f.v > 1 {
			return Profile{}, fmt.Errorf("%w: %s must be in (0,1], got %v", ErrInvalidProfile, f.name, f.v)
		}
	}
	if p.CHPServiceCost < 0 || math.IsNaN(p.CHPServiceCost) {
		return Profile{}, fmt.Errorf("%w: chp_service_cost must not be negative", ErrInvalidProfile)
	}
	if math.IsNaN(p.DistributionCost) || math.IsInf(p.DistributionCost, 0) {
		return Profile{}, fmt.Errorf("%w: distribution_cost must be finite", ErrInvalidProfile)
	}
	if p.MinUpHours < 0 || p.MinDownHours < 0 {
		return Profile{}, fmt.Errorf("%w: minimum up/down hours must not be negative", ErrInvalidProfile)
	}
	return Profile{p: p}, nil
}

// MustProfile is like NewProfile but panics on invalid params. Intended for
// tests and package level defaults.
func MustProfile(p Params) Profile {
	pr, err := NewProfile(p)
	if err != nil {
		panic(err)
	}
	return pr
}

// Params returns a copy of the raw parameters.
func (p Profile) Params() Params { return p.p }

func (p Profile) CHPHeatOutput() float64     { return p.p.CHPHeatOutput }
func (p Profile) CHPElectricOutput() float64 { return p.p.CHPElectricOutput }
func (p Profile) CHPHeatEfficiency() float64 { return p.p.CHPHeatEfficiency }
func (p Profile) CHPMinLoad() float64        { return p.p.CHPMinLoad }
func (p Profile) CHPServiceCost() float64    { return p.p.CHPServiceCost }
func (p Profile) BoilerEfficiency() float64  { return p.p.BoilerEfficiency }
func (p Profile) BoilerMaxHeat() float64     { return p.p.BoilerMaxHeat }
func (p Profile) EBoilerEfficiency() float64 { return p.p.EBoilerEfficiency }
func (p Profile) DistributionCost() float64  { return p.p.DistributionCost }
func (p Profile) HeatCoverage() float64      { return p.p.HeatCoverage }
func (p Profile) MinUpHours() int            { return p.p.MinUpHours }
func (p Profile) MinDownHours() int          { return p.p.MinDownHours }
func (p Profile) InitialOn() bool            { return p.p.InitialOn }

// EBoilerMaxHeat is the heat output of the electric boiler at full electrical input.
func (p Profile) EBoilerMaxHeat() float64 {
	return p.p.EBoilerMaxElectric * p.p.EBoilerEfficiency
}

// CHPGasInput is the gas consumed by the CHP per hour at rated output.
func (p Profile) CHPGasInput() float64 {
	return p.p.CHPHeatOutput / p.p.CHPHeatEfficiency
}

// GasPerHeat is the gas consumed per MWh of CHP heat.
func (p Profile) GasPerHeat() float64 {
	return p.CHPGasInput() / p.p.CHPHeatOutput
}

// ElectricityPerHeat is the CHP electricity produced per MWh of CHP heat.
func (p Profile) ElectricityPerHeat() float64 {
	return p.p.CHPElectricOutput / p.p.CHPHeatOutput
}

// InitialState returns s0 as 0 or 1.
func (p Profile) InitialState() float64 {
	if p.p.InitialOn {
		return 1
	}
	return 0
}
