// Package benchmark runs (query, provider) work items through the provider
// clients, normalizes and persists each answer, resumes partial runs, and
// aggregates finished runs into daily metrics.
package benchmark

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/normalize"
	"github.com/sells-group/geo-benchmark/internal/provider"
	"github.com/sells-group/geo-benchmark/internal/resilience"
	"github.com/sells-group/geo-benchmark/internal/store"
)

// Normalizer extracts brand mentions from an answer. It never fails.
type Normalizer interface {
	Parse(ctx context.Context, rawText string) normalize.Result
}

// Config tunes the engine.
type Config struct {
	Concurrency    int
	ProgressBuffer int
}

// Options selects what a single Run does.
type Options struct {
	Trigger     model.TriggerType
	ResumeRunID int64
	RunDate     string
	Progress    ProgressFunc
}

// Engine orchestrates benchmark runs. Clients are expected to already carry
// their rate limiting and retry policy.
type Engine struct {
	store      store.Store
	clients    []provider.Client
	normalizer Normalizer
	registry   *brand.Registry
	seeds      []model.QuerySeed
	cfg        Config
	now        func() time.Time
}

// New creates an Engine.
func New(st store.Store, clients []provider.Client, n Normalizer, reg *brand.Registry, seeds []model.QuerySeed, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 9
	}
	if cfg.ProgressBuffer <= 0 {
		cfg.ProgressBuffer = 64
	}
	return &Engine{
		store:      st,
		clients:    clients,
		normalizer: n,
		registry:   reg,
		seeds:      seeds,
		cfg:        cfg,
		now:        time.Now,
	}
}

type workItem struct {
	query  model.Query
	client provider.Client
}

func (w workItem) key() model.WorkKey {
	return model.WorkKey{QueryID: w.query.ID, Provider: w.client.Name()}
}

// Run executes a new run, or resumes opts.ResumeRunID. The returned run
// reflects the final stored state. On cancellation or a storage error after
// dispatch the run is left running so it can be resumed.
func (e *Engine) Run(ctx context.Context, opts Options) (*model.Run, error) {
	if len(e.clients) == 0 {
		return nil, eris.New("benchmark: no providers configured")
	}
	attemptID := uuid.NewString()

	if _, err := e.store.SeedQueries(ctx, e.seeds); err != nil {
		return nil, eris.Wrap(err, "benchmark: seed queries")
	}
	queries, err := e.store.ListQueries(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "benchmark: load queries")
	}

	all := make([]workItem, 0, len(queries)*len(e.clients))
	for _, q := range queries {
		for _, c := range e.clients {
			all = append(all, workItem{query: q, client: c})
		}
	}

	run, done, err := e.openRun(ctx, opts, len(all))
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.Int64("run_id", run.ID), zap.String("attempt_id", attemptID))

	var pending []workItem
	completed := 0
	for _, w := range all {
		if done[w.key()] {
			completed++
			continue
		}
		pending = append(pending, w)
	}
	// A resumed run is sized by the current query library, which may have
	// changed since the run was opened.
	if opts.ResumeRunID > 0 {
		if err := e.store.ReopenRun(ctx, run.ID, completed, len(all)); err != nil {
			return nil, eris.Wrapf(err, "benchmark: reopen run %d", run.ID)
		}
		run.Status = model.RunStatusRunning
		run.CompletedItems = completed
		run.TotalItems = len(all)
	}

	if err := ctx.Err(); err != nil {
		e.failRun(run.ID, "aborted before dispatch: "+err.Error())
		return nil, eris.Wrapf(err, "benchmark: run %d aborted before dispatch", run.ID)
	}

	total := run.TotalItems

	progress := newReporter(opts.Progress, e.cfg.ProgressBuffer)
	defer progress.Close()
	progress.Report(completed, total, fmt.Sprintf("%d of %d work items remaining", len(pending), total))

	log.Info("dispatching work items",
		zap.Int("pending", len(pending)),
		zap.Int("completed", completed),
		zap.Int("total", total))

	if len(pending) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Concurrency)
		for _, w := range pending {
			g.Go(func() error {
				return e.runItem(gctx, run, w, attemptID, total, progress)
			})
		}
		if err := g.Wait(); err != nil {
			log.Warn("run interrupted; resumable", zap.Error(err))
			return run, eris.Wrapf(err, "benchmark: run %d interrupted", run.ID)
		}
	}

	rows, err := RecomputeMetrics(ctx, e.store, e.registry, run.ID, run.RunDate)
	if err != nil {
		return run, err
	}
	if err := e.store.CompleteRun(ctx, run.ID); err != nil {
		return run, eris.Wrapf(err, "benchmark: complete run %d", run.ID)
	}
	progress.Report(total, total, "complete")
	log.Info("run complete", zap.Int("metric_rows", len(rows)))

	final, err := e.store.GetRun(ctx, run.ID)
	if err != nil {
		return run, eris.Wrapf(err, "benchmark: reload run %d", run.ID)
	}
	return final, nil
}

func (e *Engine) openRun(ctx context.Context, opts Options, total int) (*model.Run, map[model.WorkKey]bool, error) {
	if opts.ResumeRunID > 0 {
		run, err := e.store.GetRun(ctx, opts.ResumeRunID)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "benchmark: resume run %d", opts.ResumeRunID)
		}
		done, err := e.store.CompletedWork(ctx, run.ID)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "benchmark: completed work for run %d", run.ID)
		}
		return run, done, nil
	}

	runDate := opts.RunDate
	if runDate == "" {
		runDate = e.now().Format(time.DateOnly)
	}
	trigger := opts.Trigger
	if trigger == "" {
		trigger = model.TriggerManual
	}
	run, err := e.store.CreateRun(ctx, model.NewRun{RunDate: runDate, TriggerType: trigger, TotalItems: total})
	if err != nil {
		return nil, nil, eris.Wrap(err, "benchmark: create run")
	}
	return run, map[model.WorkKey]bool{}, nil
}

// failRun records a pre-dispatch abort. The caller's context is already
// done, so the write uses its own deadline.
func (e *Engine) failRun(runID int64, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.FailRun(ctx, runID, message); err != nil {
		zap.L().Error("mark run failed", zap.Int64("run_id", runID), zap.Error(err))
	}
}

// runItem processes one work item. Provider failures become error
// placeholders; only cancellation and storage errors are returned.
func (e *Engine) runItem(ctx context.Context, run *model.Run, w workItem, attemptID string, total int, progress *reporter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := w.key()
	log := zap.L().With(
		zap.Int64("run_id", run.ID),
		zap.Int64("query_id", key.QueryID),
		zap.String("provider", string(key.Provider)))

	resp := model.Response{
		RunID:     run.ID,
		QueryID:   key.QueryID,
		Provider:  key.Provider,
		AttemptID: attemptID,
		CreatedAt: e.now().UTC(),
	}

	raw, err := w.client.Query(ctx, w.query.Text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errType := resilience.ClassifyError(err)
		log.Warn("work item failed", zap.String("error_type", errType), zap.Error(err))
		resp.Metadata = model.ResponseMetadata{Error: err.Error(), ErrorType: errType}
		if _, err := e.store.SaveErrorResponse(ctx, resp); err != nil {
			return eris.Wrap(err, "benchmark: save error response")
		}
		return e.advance(ctx, run.ID, total, fmt.Sprintf("[%s] failed: %s", key.Provider.Label(), w.query.Text), progress)
	}

	parsed := e.normalizer.Parse(ctx, raw.Text)
	if parsed.Degraded() && ctx.Err() != nil {
		return ctx.Err()
	}
	if parsed.Degraded() {
		log.Warn("normalization degraded", zap.String("parse_error", parsed.ParseError))
	}

	usage := raw.Usage
	parseUsage := parsed.Usage
	resp.ModelName = raw.Model
	resp.Text = raw.Text
	resp.Metadata = model.ResponseMetadata{
		Usage:          &usage,
		ParseErr:       parsed.ParseError,
		ParseUsage:     &parseUsage,
		ReportedWinner: parsed.OverallWinner,
	}

	item := model.WorkItemResult{
		Response:  resp,
		Mentions:  parsed.Mentions,
		Citations: e.classify(raw.Citations),
	}
	if _, err := e.store.SaveWorkItem(ctx, item); err != nil {
		return eris.Wrap(err, "benchmark: save work item")
	}
	return e.advance(ctx, run.ID, total, fmt.Sprintf("[%s] %s", key.Provider.Label(), w.query.Text), progress)
}

func (e *Engine) advance(ctx context.Context, runID int64, total int, message string, progress *reporter) error {
	n, err := e.store.IncrementCompleted(ctx, runID)
	if err != nil {
		return eris.Wrap(err, "benchmark: advance progress")
	}
	progress.Report(n, total, message)
	return nil
}

func (e *Engine) classify(sources []provider.Source) []model.Citation {
	out := make([]model.Citation, 0, len(sources))
	for _, s := range sources {
		c := e.registry.Classify(s.URL)
		out = append(out, model.Citation{
			URL:               s.URL,
			Title:             s.Title,
			Domain:            c.Domain,
			Brand:             c.Brand,
			IsPrimaryDomain:   c.IsPrimaryDomain,
			IsSecondaryDomain: c.IsSecondaryDomain,
		})
	}
	return out
}
