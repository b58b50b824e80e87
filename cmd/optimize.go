package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/chpdispatch/app"
	"github.com/kilianp07/chpdispatch/config"
	"github.com/kilianp07/chpdispatch/pkg/export"
	"github.com/kilianp07/chpdispatch/pkg/timeseries"
)

var optimizeOpts struct {
	site    string
	input   string
	output  string
	summary string
	json    string
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize the dispatch of a site over an hourly price and demand table",
	RunE:  runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVar(&optimizeOpts.site, "site", "behounkova", "site name")
	f.StringVarP(&optimizeOpts.input, "input", "i", "", "input CSV (datetime, electricity_price, heat_demand[, gas_price, heat_price])")
	f.StringVarP(&optimizeOpts.output, "output", "o", "-", "ledger CSV, - for stdout")
	f.StringVar(&optimizeOpts.summary, "summary", "", "write the summary and monthly breakdown as YAML")
	f.StringVar(&optimizeOpts.json, "json", "", "write the plan as JSON")
	_ = optimizeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, _ *config.Config, svc *app.Service) error {
		d, err := svc.Defaults(optimizeOpts.site)
		if err != nil {
			return err
		}
		in, err := os.Open(optimizeOpts.input)
		if err != nil {
			return err
		}
		defer in.Close()
		series, err := timeseries.ReadCSV(in, d)
		if err != nil {
			return fmt.Errorf("%s: %w", optimizeOpts.input, err)
		}

		plan, err := svc.Optimize(ctx, optimizeOpts.site, series)
		if err != nil {
			return err
		}

		if err := writeTo(cmd, optimizeOpts.output, func(w io.Writer) error { return export.WriteCSV(w, plan.Results) }); err != nil {
			return fmt.Errorf("write ledger: %w", err)
		}
		if optimizeOpts.summary != "" {
			if err := writeTo(cmd, optimizeOpts.summary, func(w io.Writer) error { return export.WriteSummaryYAML(w, plan) }); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
		}
		if optimizeOpts.json != "" {
			if err := writeTo(cmd, optimizeOpts.json, func(w io.Writer) error { return export.WriteJSON(w, plan) }); err != nil {
				return fmt.Errorf("write json: %w", err)
			}
		}
		s := plan.Summary
		_, err = fmt.Fprintf(cmd.ErrOrStderr(),
			"%s: %s, %d hours, profit %.2f EUR, CHP %d h / %d starts, sold %.3f MWh\n",
			optimizeOpts.site, plan.Status, s.Hours, s.TotalProfit, s.CHPHours, s.CHPStarts, s.ElectricitySold)
		return err
	})
}

// writeTo writes to path, or to the command output when path is "-".
func writeTo(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
