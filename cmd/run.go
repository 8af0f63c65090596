package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/benchmark"
	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/model"
)

var (
	runScheduled bool
	runResume    int64
	runQuiet     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark across every active query and provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initBenchEnv(ctx, config.ModeRun)
		if err != nil {
			return err
		}
		defer env.Close()

		trigger := model.TriggerManual
		if runScheduled {
			trigger = model.TriggerScheduled
		}
		opts := benchmark.Options{Trigger: trigger, ResumeRunID: runResume}
		if !runQuiet {
			opts.Progress = progressPrinter(os.Stderr)
		}

		run, err := env.Engine.Run(ctx, opts)
		if cfg.Monitoring.WebhookURL != "" {
			if _, cerr := newChecker(env.Store).Check(context.WithoutCancel(ctx)); cerr != nil {
				zap.L().Warn("run health check failed", zap.Error(cerr))
			}
		}
		if err != nil {
			if run != nil && !run.Status.IsTerminal() {
				zap.L().Warn("run interrupted, resume with --resume",
					zap.Int64("run_id", run.ID),
					zap.Int("completed", run.CompletedItems),
					zap.Int("total", run.TotalItems))
			}
			return eris.Wrap(err, "benchmark run")
		}

		zap.L().Info("benchmark complete",
			zap.Int64("run_id", run.ID),
			zap.String("run_date", run.RunDate),
			zap.Int("items", run.TotalItems),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runScheduled, "scheduled", false, "record the run as scheduled instead of manual")
	runCmd.Flags().Int64Var(&runResume, "resume", 0, "resume an interrupted run by id")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "suppress progress lines on stderr")
	rootCmd.AddCommand(runCmd)
}
