package model

import (
	"fmt"
	"time"
)

// Strategy identifies one of the four ways of producing heat.
type Strategy int

const (
	// NoSource means no strategy has a positive margin.
	NoSource Strategy = iota
	StrategyBoiler
	StrategyCHPSpot
	StrategyEBoilerGrid
	StrategyCHPEBoiler
)

// Strategies lists the dispatch strategies in index order.
var Strategies = [4]Strategy{StrategyBoiler, StrategyCHPSpot, StrategyEBoilerGrid, StrategyCHPEBoiler}

// String returns a human-readable name.
func (s Strategy) String() string {
	switch s {
	case StrategyBoiler:
		return "gas boiler"
	case StrategyCHPSpot:
		return "CHP + spot sale"
	case StrategyEBoilerGrid:
		return "electric boiler (grid)"
	case StrategyCHPEBoiler:
		return "CHP + electric boiler"
	default:
		return "no source"
	}
}

// Code returns a short stable identifier used in exports.
func (s Strategy) Code() string {
	switch s {
	case StrategyBoiler:
		return "boiler"
	case StrategyCHPSpot:
		return "chp_spot"
	case StrategyEBoilerGrid:
		return "eboiler_grid"
	case StrategyCHPEBoiler:
		return "chp_eboiler"
	default:
		return "none"
	}
}

// MarshalText encodes the strategy as its code.
func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.Code()), nil }

// UnmarshalText parses a strategy code.
func (s *Strategy) UnmarshalText(b []byte) error {
	code := string(b)
	for _, st := range append([]Strategy{NoSource}, Strategies[:]...) {
		if st.Code() == code {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown strategy %q", code)
}

// MarginSet holds the marginal cost of each strategy (EUR per MWh heat), the
// corresponding margins against the heat price and the CHP trigger prices.
// Index i of Costs and Margins corresponds to Strategies[i].
type MarginSet struct {
	Costs                  [4]float64 `json:"costs"`
	Margins                [4]float64 `json:"margins"`
	TriggerElectricityOnly float64    `json:"trigger_electricity_only"`
	TriggerFull            float64    `json:"trigger_full"`
	CHPElectricityMargin   float64    `json:"chp_electricity_margin"`
}

// HourlyResult is one row of the dispatch ledger.
type HourlyResult struct {
	Time             time.Time `json:"datetime"`
	ElectricityPrice float64   `json:"electricity_price"`
	GasPrice         float64   `json:"gas_price"`
	HeatPrice        float64   `json:"heat_price"`
	HeatDemand       float64   `json:"heat_demand"`

	BypassHeat float64 `json:"bypass_heat"`
	CHPHeat    float64 `json:"chp_heat"` // delivered to demand, bypass excluded
	CHPLoadPct float64 `json:"chp_load_pct"`
	CHPOn      bool    `json:"chp_on"`
	CHPStart   bool    `json:"chp_start"`
	CHPStop    bool    `json:"chp_stop"`

	BoilerHeat     float64 `json:"boiler_heat"`
	BoilerLoadPct  float64 `json:"boiler_load_pct"`
	EBoilerHeat    float64 `json:"eboiler_heat"`
	EBoilerLoadPct float64 `json:"eboiler_load_pct"`

	CHPElectricity      float64 `json:"chp_electricity"`
	ElectricitySold     float64 `json:"electricity_sold"`
	ElectricityInternal float64 `json:"electricity_internal"`
	ElectricityGrid     float64 `json:"electricity_grid"`

	Profit           float64 `json:"profit"`
	CumulativeProfit float64 `json:"cumulative_profit"`

	Margins    MarginSet `json:"margins"`
	BestSource Strategy  `json:"best_source"`
}

// CHPGrossHeat is the total heat produced by the CHP including bypass.
func (r HourlyResult) CHPGrossHeat() float64 { return r.CHPHeat + r.BypassHeat }
