package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/benchmark"
	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/normalize"
	"github.com/sells-group/geo-benchmark/internal/provider"
	"github.com/sells-group/geo-benchmark/internal/querylib"
	"github.com/sells-group/geo-benchmark/internal/ratelimit"
	"github.com/sells-group/geo-benchmark/internal/recommend"
	"github.com/sells-group/geo-benchmark/internal/resilience"
	"github.com/sells-group/geo-benchmark/internal/store"
)

// benchEnv holds the store, registry, and engine needed by run and serve.
type benchEnv struct {
	Store    store.Store
	Registry *brand.Registry
	Engine   *benchmark.Engine
}

// Close releases resources held by the environment.
func (e *benchEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initBenchmark builds every provider client, the normalizer, and the
// engine on top of st. Missing keys fail here, before any run exists.
func initBenchmark(st store.Store, reg *brand.Registry) (*benchmark.Engine, error) {
	seeds, err := querylib.Load(cfg.Benchmark.QueriesFile)
	if err != nil {
		return nil, err
	}
	enabled, err := provider.ParseProviders(cfg.Benchmark.Providers)
	if err != nil {
		return nil, err
	}

	settings := cfg.Resilience()
	calc := cost.NewCalculator(cfg.Rates())
	guard := provider.Guard{
		Limiter:  ratelimit.New(provider.Intervals(cfg)),
		Breakers: resilience.NewBreakers(settings.Circuit()),
		Retry:    settings.Retry(),
	}
	clients, err := provider.NewSet(cfg, enabled, guard, calc)
	if err != nil {
		return nil, err
	}

	if cfg.Anthropic.Key == "" {
		return nil, eris.Errorf("normalizer requires anthropic.key (set %s)", config.KeyEnvHint("anthropic.key"))
	}
	parser := normalize.NewParser(provider.NewAnthropic(cfg.Anthropic), reg, normalize.Config{
		Model:     cfg.Anthropic.ParserModel,
		MaxTokens: cfg.Anthropic.ParserMaxTokens,
		Timeout:   cfg.Benchmark.CallTimeout(),
		Retry:     settings.Retry(),
	}, calc)

	zap.L().Info("benchmark configured",
		zap.Int("providers", len(clients)),
		zap.Int("queries", len(seeds)),
		zap.Int("concurrency", cfg.Benchmark.Concurrency),
	)

	return benchmark.New(st, clients, parser, reg, seeds, benchmark.Config{
		Concurrency:    cfg.Benchmark.Concurrency,
		ProgressBuffer: cfg.Benchmark.ProgressBuffer,
	}), nil
}

// initBenchEnv opens the store and builds the engine. Callers should defer
// env.Close().
func initBenchEnv(ctx context.Context, mode string) (*benchEnv, error) {
	st, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}
	reg, err := brand.Load(cfg.Benchmark.BrandsFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	engine, err := initBenchmark(st, reg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &benchEnv{Store: st, Registry: reg, Engine: engine}, nil
}

// initRecommender returns nil when no Anthropic key is configured.
func initRecommender(reg *brand.Registry) *recommend.Generator {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	return recommend.NewGenerator(provider.NewAnthropic(cfg.Anthropic), reg, recommend.Config{
		Model:     cfg.Anthropic.RecommendModel,
		MaxTokens: cfg.Anthropic.RecommendMaxTokens,
		Timeout:   cfg.Benchmark.CallTimeout(),
		Retry:     cfg.Resilience().Retry(),
	}, cost.NewCalculator(cfg.Rates()))
}

// progressPrinter writes one line per progress event.
func progressPrinter(w io.Writer) benchmark.ProgressFunc {
	return func(completed, total int, message string) {
		_, _ = fmt.Fprintf(w, "[%d/%d] %s\n", completed, total, message)
	}
}
