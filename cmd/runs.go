package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-benchmark/internal/benchmark"
	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect benchmark run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List benchmark runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(status), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, id)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- metrics recompute --

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Manage aggregated daily metrics",
}

var metricsRecomputeCmd = &cobra.Command{
	Use:   "recompute <run-id>",
	Short: "Rebuild a run's daily metrics from its stored responses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg, err := brand.Load(cfg.Benchmark.BrandsFile)
		if err != nil {
			return err
		}

		rows, err := benchmark.RecomputeMetrics(ctx, st, reg, id, "")
		if err != nil {
			return err
		}
		cmd.Printf("run %d: %d metric rows\n", id, len(rows))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, completed, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)

	metricsCmd.AddCommand(metricsRecomputeCmd)
	rootCmd.AddCommand(metricsCmd)
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid run id %q", s)
	}
	return id, nil
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tTRIGGER\tSTATUS\tPROGRESS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t------\t--------\t-------\t--------")

	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		status := string(r.Status)
		if r.ErrorMessage != "" {
			msg := r.ErrorMessage
			if len(msg) > 40 {
				msg = msg[:37] + "..."
			}
			status += " (" + msg + ")"
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.ID,
			r.RunDate,
			r.TriggerType,
			status,
			r.CompletedItems, r.TotalItems,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}
