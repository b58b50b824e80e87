package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/chpdispatch/app"
	"github.com/kilianp07/chpdispatch/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dispatch HTTP API and Prometheus metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, func(ctx context.Context, _ *config.Config, svc *app.Service) error {
			return svc.Run(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
