package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/monitoring"
	"github.com/sells-group/geo-benchmark/internal/store"
)

func newChecker(st store.Store) *monitoring.Checker {
	return monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check run health and send alerts",
}

var monitorCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate recent runs once and post any alerts to the webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		alerts, err := newChecker(st).Check(ctx)
		if err != nil {
			return err
		}
		if alerts == nil {
			alerts = []monitoring.Alert{}
		}
		return printJSON(alerts)
	},
}

func init() {
	monitorCmd.AddCommand(monitorCheckCmd)
	rootCmd.AddCommand(monitorCmd)
}
