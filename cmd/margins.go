package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/chpdispatch/app"
	"github.com/kilianp07/chpdispatch/config"
	"github.com/kilianp07/chpdispatch/core/model"
	"github.com/kilianp07/chpdispatch/pkg/export"
)

var priceOpts struct {
	site        string
	electricity float64
	gas         float64
	heat        float64
}

var marginsCmd = &cobra.Command{
	Use:   "margins",
	Short: "Show marginal heat costs and margins of each strategy at given prices",
	RunE:  runMargins,
}

var sweepOpts struct {
	from, to, step float64
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate margins over a range of electricity prices as CSV",
	RunE:  runSweep,
}

func init() {
	for _, c := range []*cobra.Command{marginsCmd, sweepCmd} {
		f := c.Flags()
		f.StringVar(&priceOpts.site, "site", "behounkova", "site name")
		f.Float64Var(&priceOpts.gas, "gas", 0, "gas price EUR/MWh (default: site price)")
		f.Float64Var(&priceOpts.heat, "heat", 0, "heat price EUR/MWh (default: site price)")
	}
	marginsCmd.Flags().Float64Var(&priceOpts.electricity, "electricity", 0, "electricity price EUR/MWh")
	_ = marginsCmd.MarkFlagRequired("electricity")
	sweepCmd.Flags().Float64Var(&sweepOpts.from, "from", 0, "first electricity price")
	sweepCmd.Flags().Float64Var(&sweepOpts.to, "to", 300, "last electricity price")
	sweepCmd.Flags().Float64Var(&sweepOpts.step, "step", 10, "price step")
	rootCmd.AddCommand(marginsCmd, sweepCmd)
}

// prices resolves the gas and heat prices, falling back to the site's fixed
// prices for flags left unset.
func prices(cmd *cobra.Command, svc *app.Service) (gas, heat float64, err error) {
	d, err := svc.Defaults(priceOpts.site)
	if err != nil {
		return 0, 0, err
	}
	gas, heat = d.GasPrice, d.HeatPrice
	if cmd.Flags().Changed("gas") {
		gas = priceOpts.gas
	}
	if cmd.Flags().Changed("heat") {
		heat = priceOpts.heat
	}
	return gas, heat, nil
}

func runMargins(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(_ context.Context, _ *config.Config, svc *app.Service) error {
		gas, heat, err := prices(cmd, svc)
		if err != nil {
			return err
		}
		pt, err := svc.Margins(priceOpts.site, priceOpts.electricity, gas, heat)
		if err != nil {
			return err
		}
		ms := pt.Margins
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "site\t%s\n", priceOpts.site)
		fmt.Fprintf(tw, "prices\tel %.2f  gas %.2f  heat %.2f EUR/MWh\n\n", priceOpts.electricity, gas, heat)
		fmt.Fprintln(tw, "strategy\tcost\tmargin")
		for i, st := range model.Strategies {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", st, ms.Costs[i], ms.Margins[i])
		}
		fmt.Fprintf(tw, "\ntrigger (electricity only)\t%.2f\n", ms.TriggerElectricityOnly)
		fmt.Fprintf(tw, "trigger (full)\t%.2f\n", ms.TriggerFull)
		fmt.Fprintf(tw, "CHP electricity margin\t%.2f\n", ms.CHPElectricityMargin)
		fmt.Fprintf(tw, "best source\t%s\n", pt.Best)
		return tw.Flush()
	})
}

func runSweep(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(_ context.Context, _ *config.Config, svc *app.Service) error {
		gas, heat, err := prices(cmd, svc)
		if err != nil {
			return err
		}
		points, err := svc.Sweep(priceOpts.site, sweepOpts.from, sweepOpts.to, sweepOpts.step, gas, heat)
		if err != nil {
			return err
		}
		return export.WriteSweepCSV(cmd.OutOrStdout(), points)
	})
}
