// Package scenarios runs dispatch scenarios described in YAML and checks the
// resulting plans.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/chpdispatch/config"
	"github.com/kilianp07/chpdispatch/core/model"
)

// Overrides adjust the site parameters for one scenario.
type Overrides struct {
	MinUpHours   *int  `yaml:"min_up_hours,omitempty"`
	MinDownHours *int  `yaml:"min_down_hours,omitempty"`
	InitialOn    *bool `yaml:"initial_on,omitempty"`
}

// Expected describes the outcome a scenario must produce. Unset fields are
// not checked.
type Expected struct {
	// Status is a solver status, "no_solution" or "horizon_too_short".
	Status       string   `yaml:"status"`
	CHPHours     *int     `yaml:"chp_hours,omitempty"`
	CHPStarts    *int     `yaml:"chp_starts,omitempty"`
	BestSource   string   `yaml:"best_source,omitempty"`
	MinObjective *float64 `yaml:"min_objective,omitempty"`
	MaxObjective *float64 `yaml:"max_objective,omitempty"`
	// BypassOnly requires all CHP heat to be bypassed.
	BypassOnly bool `yaml:"bypass_only,omitempty"`
}

type Scenario struct {
	Name         string    `yaml:"name"`
	Description  string    `yaml:"description,omitempty"`
	Site         string    `yaml:"site,omitempty"`
	Overrides    Overrides `yaml:"overrides,omitempty"`
	ShortHorizon string    `yaml:"short_horizon,omitempty"`
	Start        time.Time `yaml:"start,omitempty"`
	GasPrice     *float64  `yaml:"gas_price,omitempty"`
	HeatPrice    *float64  `yaml:"heat_price,omitempty"`
	Electricity  []float64 `yaml:"electricity"`
	Demand       []float64 `yaml:"demand"`
	Expected     Expected  `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if len(sc.Electricity) != len(sc.Demand) {
		return nil, fmt.Errorf("%s: %d electricity prices for %d demand values", path, len(sc.Electricity), len(sc.Demand))
	}
	return &sc, nil
}

// SiteConfig resolves the built-in site and applies the overrides.
func (sc *Scenario) SiteConfig() (config.SiteConfig, error) {
	name := sc.Site
	if name == "" {
		name = "behounkova"
	}
	site, ok := config.BuiltinSites()[name]
	if !ok {
		return config.SiteConfig{}, fmt.Errorf("%w %q", config.ErrUnknownSite, name)
	}
	o := sc.Overrides
	if o.MinUpHours != nil {
		site.Params.MinUpHours = *o.MinUpHours
	}
	if o.MinDownHours != nil {
		site.Params.MinDownHours = *o.MinDownHours
	}
	if o.InitialOn != nil {
		site.Params.InitialOn = *o.InitialOn
	}
	if sc.GasPrice != nil {
		site.GasPrice = *sc.GasPrice
	}
	if sc.HeatPrice != nil {
		site.HeatPrice = *sc.HeatPrice
	}
	return site, nil
}

// Series builds the hourly input.
func (sc *Scenario) Series(site config.SiteConfig) model.Series {
	start := sc.Start
	if start.IsZero() {
		start = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	}
	s := make(model.Series, len(sc.Demand))
	for i := range sc.Demand {
		s[i] = model.HourRecord{
			Time:             start.Add(time.Duration(i) * time.Hour),
			ElectricityPrice: sc.Electricity[i],
			GasPrice:         site.GasPrice,
			HeatPrice:        site.HeatPrice,
			HeatDemand:       sc.Demand[i],
		}
	}
	return s
}
