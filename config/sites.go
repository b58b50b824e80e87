package config

import (
	"sort"

	"github.com/kilianp07/chpdispatch/core/model"
	"github.com/kilianp07/chpdispatch/pkg/timeseries"
)

// SiteConfig describes one plant. Zero-valued parameters inherit from the
// built-in preset of the same name, or from model.DefaultParams.
type SiteConfig struct {
	Params model.Params `json:"params"`
	// GasPrice and HeatPrice fill input rows that carry no price columns.
	GasPrice  float64 `json:"gas_price"`
	HeatPrice float64 `json:"heat_price"`
}

// Profile validates the parameters.
func (s SiteConfig) Profile() (model.Profile, error) {
	return model.NewProfile(s.Params)
}

// Defaults returns the CSV loader fallbacks for the site.
func (s SiteConfig) Defaults() timeseries.Defaults {
	return timeseries.Defaults{GasPrice: s.GasPrice, HeatPrice: s.HeatPrice}
}

func (s SiteConfig) Validate() error {
	_, err := s.Profile()
	return err
}

// BuiltinSites returns the plants known without configuration.
func BuiltinSites() map[string]SiteConfig {
	rabasova := model.Params{
		CHPHeatOutput:      0.592,
		CHPElectricOutput:  0.45,
		CHPHeatEfficiency:  0.592 / 1.139,
		CHPMinLoad:         0.55,
		CHPServiceCost:     7.0,
		BoilerEfficiency:   0.95,
		BoilerMaxHeat:      0.4,
		EBoilerEfficiency:  0.98,
		EBoilerMaxElectric: 0.414,
		DistributionCost:   33.0,
		HeatCoverage:       0.99,
		MinUpHours:         4,
		MinDownHours:       4,
	}
	return map[string]SiteConfig{
		"behounkova": {Params: model.DefaultParams(), GasPrice: 35, HeatPrice: 40},
		"rabasova":   {Params: rabasova, GasPrice: 35, HeatPrice: 40},
	}
}

func withBuiltinSites(sites map[string]SiteConfig) map[string]SiteConfig {
	builtin := BuiltinSites()
	out := make(map[string]SiteConfig, len(sites)+len(builtin))
	for name, s := range builtin {
		out[name] = s
	}
	for name, s := range sites {
		base, ok := builtin[name]
		if !ok {
			base = SiteConfig{Params: model.DefaultParams(), GasPrice: 35, HeatPrice: 40}
		}
		out[name] = merge(base, s)
	}
	return out
}

func merge(base, s SiteConfig) SiteConfig {
	f := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	p := base.Params
	f(&p.CHPHeatOutput, s.Params.CHPHeatOutput)
	f(&p.CHPElectricOutput, s.Params.CHPElectricOutput)
	f(&p.CHPHeatEfficiency, s.Params.CHPHeatEfficiency)
	f(&p.CHPMinLoad, s.Params.CHPMinLoad)
	f(&p.CHPServiceCost, s.Params.CHPServiceCost)
	f(&p.BoilerEfficiency, s.Params.BoilerEfficiency)
	f(&p.BoilerMaxHeat, s.Params.BoilerMaxHeat)
	f(&p.EBoilerEfficiency, s.Params.EBoilerEfficiency)
	f(&p.EBoilerMaxElectric, s.Params.EBoilerMaxElectric)
	f(&p.DistributionCost, s.Params.DistributionCost)
	f(&p.HeatCoverage, s.Params.HeatCoverage)
	if s.Params.MinUpHours != 0 {
		p.MinUpHours = s.Params.MinUpHours
	}
	if s.Params.MinDownHours != 0 {
		p.MinDownHours = s.Params.MinDownHours
	}
	p.InitialOn = p.InitialOn || s.Params.InitialOn
	out := SiteConfig{Params: p, GasPrice: base.GasPrice, HeatPrice: base.HeatPrice}
	f(&out.GasPrice, s.GasPrice)
	f(&out.HeatPrice, s.HeatPrice)
	return out
}

// SiteNames returns the configured site names in sorted order.
func (c *Config) SiteNames() []string {
	names := make([]string, 0, len(c.Sites))
	for n := range c.Sites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
