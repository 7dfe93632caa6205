package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/workout"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Fetch the latest workout snapshot once and print it",
	RunE:  runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateMetrics(); err != nil {
		return err
	}

	fetcher := workout.NewFetcher(cfg.MetricsURL,
		workout.WithTimeout(cfg.MetricsTimeout),
		workout.WithLogger(log.Component("workout.fetcher")),
	)

	snap, err := fetcher.FetchErr(cmd.Context())
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "no snapshot available: %v\n", err)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), snap.String())
	return nil
}
