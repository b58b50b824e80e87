package dispatch

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/chpdispatch/core/model"
)

// Summary aggregates a ledger into the figures of the plan overview.
// TotalProfit = HeatRevenue + ElectricityRevenue - GasCost - GridCost - ServiceCost
// up to the clipping tolerances.
type Summary struct {
	Hours              int     `json:"hours" yaml:"hours"`
	TotalProfit        float64 `json:"total_profit" yaml:"total_profit"`
	HeatRevenue        float64 `json:"heat_revenue" yaml:"heat_revenue"`
	ElectricityRevenue float64 `json:"electricity_revenue" yaml:"electricity_revenue"`
	GasCost            float64 `json:"gas_cost" yaml:"gas_cost"`
	GridCost           float64 `json:"grid_cost" yaml:"grid_cost"`
	ServiceCost        float64 `json:"service_cost" yaml:"service_cost"`

	CHPHours      int     `json:"chp_hours" yaml:"chp_hours"`
	CHPStarts     int     `json:"chp_starts" yaml:"chp_starts"`
	AvgCHPLoadPct float64 `json:"avg_chp_load_pct" yaml:"avg_chp_load_pct"`

	ElectricityProduced float64 `json:"electricity_produced" yaml:"electricity_produced"`
	ElectricitySold     float64 `json:"electricity_sold" yaml:"electricity_sold"`
	ElectricityInternal float64 `json:"electricity_internal" yaml:"electricity_internal"`
	ElectricityGrid     float64 `json:"electricity_grid" yaml:"electricity_grid"`

	HeatDemand  float64 `json:"heat_demand" yaml:"heat_demand"`
	CHPHeat     float64 `json:"chp_heat" yaml:"chp_heat"`
	BoilerHeat  float64 `json:"boiler_heat" yaml:"boiler_heat"`
	EBoilerHeat float64 `json:"eboiler_heat" yaml:"eboiler_heat"`
	BypassHeat  float64 `json:"bypass_heat" yaml:"bypass_heat"`
}

// Summarize aggregates results produced for profile p.
func Summarize(results []model.HourlyResult, p model.Profile) Summary {
	s := Summary{Hours: len(results)}
	profits := make([]float64, len(results))
	var loads []float64
	for i, r := range results {
		profits[i] = r.Profit
		s.HeatRevenue += r.HeatPrice * p.HeatCoverage() * r.HeatDemand
		s.ElectricityRevenue += r.ElectricityPrice * r.ElectricitySold
		s.GasCost += r.GasPrice * (r.CHPGrossHeat()*p.GasPerHeat() + r.BoilerHeat/p.BoilerEfficiency())
		s.GridCost += (r.ElectricityPrice + p.DistributionCost()) * r.ElectricityGrid
		if r.CHPOn {
			s.CHPHours++
			s.ServiceCost += p.CHPServiceCost()
			loads = append(loads, r.CHPLoadPct)
		}
		if r.CHPStart {
			s.CHPStarts++
		}
		s.ElectricityProduced += r.CHPElectricity
		s.ElectricitySold += r.ElectricitySold
		s.ElectricityInternal += r.ElectricityInternal
		s.ElectricityGrid += r.ElectricityGrid
		s.HeatDemand += r.HeatDemand
		s.CHPHeat += r.CHPHeat
		s.BoilerHeat += r.BoilerHeat
		s.EBoilerHeat += r.EBoilerHeat
		s.BypassHeat += r.BypassHeat
	}
	s.TotalProfit = floats.Sum(profits)
	if len(loads) > 0 {
		s.AvgCHPLoadPct = floats.Sum(loads) / float64(len(loads))
	}
	return s
}

// MonthSummary aggregates one calendar month (UTC).
type MonthSummary struct {
	Month            string  `json:"month" yaml:"month"`
	Hours            int     `json:"hours" yaml:"hours"`
	Profit           float64 `json:"profit" yaml:"profit"`
	CumulativeProfit float64 `json:"cumulative_profit" yaml:"cumulative_profit"`
	ElectricitySold  float64 `json:"electricity_sold" yaml:"electricity_sold"`
	CHPHeat          float64 `json:"chp_heat" yaml:"chp_heat"`
	BoilerHeat       float64 `json:"boiler_heat" yaml:"boiler_heat"`
	EBoilerHeat      float64 `json:"eboiler_heat" yaml:"eboiler_heat"`
	CHPHours         int     `json:"chp_hours" yaml:"chp_hours"`
}

// Monthly groups results by calendar month in input order.
func Monthly(results []model.HourlyResult) []MonthSummary {
	var out []MonthSummary
	cumulative := 0.0
	for _, r := range results {
		key := r.Time.In(time.UTC).Format("2006-01")
		if len(out) == 0 || out[len(out)-1].Month != key {
			out = append(out, MonthSummary{Month: key})
		}
		ms := &out[len(out)-1]
		ms.Hours++
		ms.Profit += r.Profit
		cumulative += r.Profit
		ms.CumulativeProfit = cumulative
		ms.ElectricitySold += r.ElectricitySold
		ms.CHPHeat += r.CHPHeat
		ms.BoilerHeat += r.BoilerHeat
		ms.EBoilerHeat += r.EBoilerHeat
		if r.CHPOn {
			ms.CHPHours++
		}
	}
	return out
}
