package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geo-benchmark",
	Short: "Benchmark brand visibility in LLM answers",
	Long:  "Sends a fixed library of buyer questions to web-search and knowledge-only LLMs, extracts brand mentions and citations, and scores share of voice per brand.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
