// Package report serves the aggregate views over stored daily metrics.
package report

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/metrics"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/store"
)

// DefaultTrendDays is the trend window when none is given.
const DefaultTrendDays = 30

// DefaultCitationLimit caps the citation leaderboard when no limit is given.
const DefaultCitationLimit = 20

// Reader answers dashboard queries. An empty provider means all providers.
type Reader struct {
	store    store.Store
	registry *brand.Registry
	now      func() time.Time
}

// NewReader creates a Reader.
func NewReader(st store.Store, reg *brand.Registry) *Reader {
	return &Reader{store: st, registry: reg, now: time.Now}
}

// LatestRunID returns the newest completed run, or 0 when none exists.
func (r *Reader) LatestRunID(ctx context.Context) (int64, error) {
	id, err := r.store.LatestCompletedRunID(ctx)
	return id, eris.Wrap(err, "report: latest run")
}

// ShareOfVoice returns per-brand SOV, position, sentiment and win rate.
func (r *Reader) ShareOfVoice(ctx context.Context, runID int64, p model.Provider) ([]model.BrandSummary, error) {
	rows, err := r.store.DailyMetrics(ctx, store.MetricFilter{RunID: runID, Provider: p})
	if err != nil {
		return nil, eris.Wrapf(err, "report: share of voice for run %d", runID)
	}
	return metrics.ShareOfVoice(rows, r.registry.Keys()), nil
}

// Breakdown returns one row per (query, brand) for a run.
func (r *Reader) Breakdown(ctx context.Context, runID int64, p model.Provider) ([]model.TermBreakdownRow, error) {
	rows, err := r.store.DailyMetrics(ctx, store.MetricFilter{RunID: runID, Provider: p})
	if err != nil {
		return nil, eris.Wrapf(err, "report: breakdown for run %d", runID)
	}
	queries, err := r.queryIndex(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.Breakdown(rows, queries, r.registry.Keys()), nil
}

// Trends aggregates the last days of run dates per brand.
func (r *Reader) Trends(ctx context.Context, p model.Provider, days int) ([]model.TrendPoint, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}
	since := r.now().UTC().AddDate(0, 0, -days).Format(time.DateOnly)
	rows, err := r.store.DailyMetrics(ctx, store.MetricFilter{Provider: p, Since: since})
	if err != nil {
		return nil, eris.Wrap(err, "report: trends")
	}
	return metrics.Trends(rows, r.registry.Keys()), nil
}

// Citations returns the most cited domains of a run.
func (r *Reader) Citations(ctx context.Context, runID int64, p model.Provider, limit int) ([]model.DomainCount, error) {
	if limit <= 0 {
		limit = DefaultCitationLimit
	}
	out, err := r.store.CitationDomains(ctx, runID, p, limit)
	return out, eris.Wrapf(err, "report: citations for run %d", runID)
}

// RunMetrics loads a run's metric rows and the query index they refer to.
func (r *Reader) RunMetrics(ctx context.Context, runID int64) ([]model.DailyMetric, map[int64]model.Query, error) {
	rows, err := r.store.DailyMetrics(ctx, store.MetricFilter{RunID: runID})
	if err != nil {
		return nil, nil, eris.Wrapf(err, "report: metrics for run %d", runID)
	}
	queries, err := r.queryIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rows, queries, nil
}

func (r *Reader) queryIndex(ctx context.Context) (map[int64]model.Query, error) {
	qs, err := r.store.ListQueries(ctx, false)
	if err != nil {
		return nil, eris.Wrap(err, "report: load queries")
	}
	idx := make(map[int64]model.Query, len(qs))
	for _, q := range qs {
		idx[q.ID] = q
	}
	return idx, nil
}
