package benchmark

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/metrics"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/store"
)

// RecomputeMetrics rebuilds and replaces the run's daily metrics from its
// stored ok responses. An empty runDate is looked up from the run.
func RecomputeMetrics(ctx context.Context, st store.Store, reg *brand.Registry, runID int64, runDate string) ([]model.DailyMetric, error) {
	if runDate == "" {
		run, err := st.GetRun(ctx, runID)
		if err != nil {
			return nil, eris.Wrapf(err, "benchmark: load run %d", runID)
		}
		runDate = run.RunDate
	}

	facts, err := st.ResponseFacts(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: load facts for run %d", runID)
	}
	rows := metrics.Compute(runID, runDate, facts, reg)
	if err := st.ReplaceDailyMetrics(ctx, runID, rows); err != nil {
		return nil, eris.Wrapf(err, "benchmark: store metrics for run %d", runID)
	}
	zap.L().Debug("metrics recomputed",
		zap.Int64("run_id", runID),
		zap.Int("responses", len(facts)),
		zap.Int("rows", len(rows)))
	return rows, nil
}
