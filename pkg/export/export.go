// Package export writes dispatch ledgers, summaries and sensitivity sweeps.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/chpdispatch/core/dispatch"
	"github.com/kilianp07/chpdispatch/core/margins"
	"github.com/kilianp07/chpdispatch/core/model"
)

// LedgerHeader is the column order of the ledger CSV.
var LedgerHeader = []string{
	"datetime", "electricity_price", "gas_price", "heat_price", "heat_demand",
	"bypass_heat", "chp_heat", "chp_load_pct", "chp_on", "chp_start", "chp_stop",
	"boiler_heat", "boiler_load_pct", "eboiler_heat", "eboiler_load_pct",
	"chp_electricity", "electricity_sold", "electricity_internal", "electricity_grid",
	"profit", "cumulative_profit",
	"cost_boiler", "cost_chp_spot", "cost_eboiler_grid", "cost_chp_eboiler",
	"margin_boiler", "margin_chp_spot", "margin_eboiler_grid", "margin_chp_eboiler",
	"trigger_electricity_only", "trigger_full", "chp_electricity_margin", "best_source",
}

// WriteJSON writes the plan to w in JSON format.
func WriteJSON(w io.Writer, plan *dispatch.Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

// WriteCSV writes the hourly ledger to w. Floats use four decimals.
func WriteCSV(w io.Writer, results []model.HourlyResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LedgerHeader); err != nil {
		return err
	}
	for _, r := range results {
		ms := r.Margins
		rec := []string{
			r.Time.Format(time.RFC3339),
			f4(r.ElectricityPrice), f4(r.GasPrice), f4(r.HeatPrice), f4(r.HeatDemand),
			f4(r.BypassHeat), f4(r.CHPHeat), f4(r.CHPLoadPct),
			strconv.FormatBool(r.CHPOn), strconv.FormatBool(r.CHPStart), strconv.FormatBool(r.CHPStop),
			f4(r.BoilerHeat), f4(r.BoilerLoadPct), f4(r.EBoilerHeat), f4(r.EBoilerLoadPct),
			f4(r.CHPElectricity), f4(r.ElectricitySold), f4(r.ElectricityInternal), f4(r.ElectricityGrid),
			f4(r.Profit), f4(r.CumulativeProfit),
		}
		for _, c := range ms.Costs {
			rec = append(rec, f4(c))
		}
		for _, m := range ms.Margins {
			rec = append(rec, f4(m))
		}
		rec = append(rec, f4(ms.TriggerElectricityOnly), f4(ms.TriggerFull), f4(ms.CHPElectricityMargin), r.BestSource.Code())
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Report is the YAML summary document.
type Report struct {
	Site      string                  `yaml:"site,omitempty"`
	RunID     string                  `yaml:"run_id"`
	Status    string                  `yaml:"status"`
	Objective float64                 `yaml:"objective"`
	Summary   dispatch.Summary        `yaml:"summary"`
	Monthly   []dispatch.MonthSummary `yaml:"monthly"`
}

// WriteSummaryYAML writes the plan summary and monthly breakdown to w.
func WriteSummaryYAML(w io.Writer, plan *dispatch.Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Report{
		Site:      plan.Site,
		RunID:     plan.RunID,
		Status:    plan.Status,
		Objective: plan.Objective,
		Summary:   plan.Summary,
		Monthly:   plan.Monthly,
	}); err != nil {
		return err
	}
	return enc.Close()
}

// WriteSweepCSV writes a margin sensitivity sweep to w.
func WriteSweepCSV(w io.Writer, points []margins.SweepPoint) error {
	cw := csv.NewWriter(w)
	header := []string{"electricity_price"}
	for _, st := range model.Strategies {
		header = append(header, "margin_"+st.Code())
	}
	header = append(header, "trigger_electricity_only", "trigger_full", "best_source")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{f4(p.ElectricityPrice)}
		for _, m := range p.Margins.Margins {
			rec = append(rec, f4(m))
		}
		rec = append(rec, f4(p.Margins.TriggerElectricityOnly), f4(p.Margins.TriggerFull), p.Best.Code())
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f4(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
