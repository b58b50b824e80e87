package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/chpdispatch/app"
	"github.com/kilianp07/chpdispatch/config"
	"github.com/kilianp07/chpdispatch/core/dispatch/logging"
)

var runsOpts struct {
	site   string
	status string
	since  time.Duration
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List optimization runs from the run log",
	RunE:  runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.StringVar(&runsOpts.site, "site", "", "only runs of this site")
	f.StringVar(&runsOpts.status, "status", "", "only runs with this status")
	f.DurationVar(&runsOpts.since, "since", 0, "only runs newer than this duration")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, _ *config.Config, svc *app.Service) error {
		q := logging.RunQuery{Site: runsOpts.site, Status: runsOpts.status}
		if runsOpts.since > 0 {
			q.Start = time.Now().Add(-runsOpts.since)
		}
		recs, err := svc.Runs(ctx, q)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "time\tsite\tstatus\thours\tobjective\tduration\trun")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
				r.Timestamp.Format(time.RFC3339), r.Site, r.Status, r.Hours, r.Objective,
				time.Duration(r.DurationMS)*time.Millisecond, r.RunID)
		}
		return tw.Flush()
	})
}
