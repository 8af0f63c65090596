package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/report"
	"github.com/sells-group/geo-benchmark/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve benchmark results as a JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, config.ModeServe)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg, err := brand.Load(cfg.Benchmark.BrandsFile)
		if err != nil {
			return err
		}

		// Without provider keys the API stays read-only.
		var runner server.Runner
		engine, err := initBenchmark(st, reg)
		if err != nil {
			zap.L().Warn("run trigger disabled", zap.Error(err))
		} else {
			runner = engine
		}
		var rec server.Recommender
		if g := initRecommender(reg); g != nil {
			rec = g
		}

		if cfg.Monitoring.WebhookURL != "" {
			go newChecker(st).Run(ctx)
		}

		api := server.New(ctx, st, report.NewReader(st, reg), runner, rec, cfg.Server.AllowedOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// Triggered runs see the cancelled context and stop at the next item.
		api.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
