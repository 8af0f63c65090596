// Package store persists queries, runs, responses, extracted facts and
// aggregated daily metrics. SQLite is the embedded default; Postgres serves
// shared deployments.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/geo-benchmark/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// MetricFilter selects daily metric rows. Zero fields do not filter.
type MetricFilter struct {
	RunID    int64
	Provider model.Provider
	Since    string // inclusive run date, YYYY-MM-DD
}

// Store defines the persistence interface for the benchmark.
type Store interface {
	// Queries
	SeedQueries(ctx context.Context, seeds []model.QuerySeed) (int, error)
	ListQueries(ctx context.Context, activeOnly bool) ([]model.Query, error)

	// Runs
	CreateRun(ctx context.Context, run model.NewRun) (*model.Run, error)
	GetRun(ctx context.Context, runID int64) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	ReopenRun(ctx context.Context, runID int64, completed, total int) error
	IncrementCompleted(ctx context.Context, runID int64) (int, error)
	CompleteRun(ctx context.Context, runID int64) error
	FailRun(ctx context.Context, runID int64, message string) error
	LatestCompletedRunID(ctx context.Context) (int64, error)

	// Responses and extracted facts
	CompletedWork(ctx context.Context, runID int64) (map[model.WorkKey]bool, error)
	SaveWorkItem(ctx context.Context, item model.WorkItemResult) (int64, error)
	SaveErrorResponse(ctx context.Context, resp model.Response) (int64, error)
	ListResponses(ctx context.Context, runID int64) ([]model.Response, error)
	ResponseFacts(ctx context.Context, runID int64) ([]model.ResponseFacts, error)

	// Metrics
	ReplaceDailyMetrics(ctx context.Context, runID int64, rows []model.DailyMetric) error
	DailyMetrics(ctx context.Context, filter MetricFilter) ([]model.DailyMetric, error)
	CitationDomains(ctx context.Context, runID int64, provider model.Provider, limit int) ([]model.DomainCount, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
