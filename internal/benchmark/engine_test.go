package benchmark

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/normalize"
	"github.com/sells-group/geo-benchmark/internal/provider"
	"github.com/sells-group/geo-benchmark/internal/resilience"
	"github.com/sells-group/geo-benchmark/internal/store"
)

var testSeeds = []model.QuerySeed{
	{Text: "best webinar platform", Category: "platform_selection"},
	{Text: "on24 alternatives", Category: "competitor_comparison"},
	{Text: "virtual event software for b2b", Category: "platform_selection"},
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "bench.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// fakeClient answers every question with the question text, citing the
// brand domains. fail, when set, decides per question whether to error.
type fakeClient struct {
	name  model.Provider
	fail  func(question string) error
	calls atomic.Int64
	hook  func()
}

func (f *fakeClient) Name() model.Provider { return f.name }

func (f *fakeClient) Query(ctx context.Context, question string) (*provider.RawResult, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fail != nil {
		if err := f.fail(question); err != nil {
			return nil, err
		}
	}
	return &provider.RawResult{
		Text:  question,
		Model: "fake-" + string(f.name),
		Usage: model.TokenUsage{InputTokens: 10, OutputTokens: 20, CostUSD: 0.001},
		Citations: []provider.Source{
			{URL: "https://www.on24.com/blog", Title: "ON24"},
			{URL: "https://event.on24.com/wcc/r/1", Title: "Webcast"},
			{URL: "https://zoom.us/webinars", Title: "Zoom"},
		},
	}, nil
}

// fakeNormalizer ranks on24 first for every answer, goldcast second.
type fakeNormalizer struct{}

func (fakeNormalizer) Parse(_ context.Context, raw string) normalize.Result {
	s1, s2 := 0.8, 0.1
	return normalize.Result{
		Mentions: []model.Mention{
			{Brand: "on24", Position: 1, Context: raw, Sentiment: model.SentimentPositive, SentimentScore: &s1, IsPrimary: true},
			{Brand: "goldcast", Position: 2, Sentiment: model.SentimentNeutral, SentimentScore: &s2},
		},
		BrandsNotMentioned: []string{"zoom"},
		OverallWinner:      "on24",
		ContextIsWebinar:   true,
	}
}

func clients(cs ...*fakeClient) []provider.Client {
	out := make([]provider.Client, len(cs))
	for i, c := range cs {
		out[i] = c
	}
	return out
}

func allProviders() []*fakeClient {
	return []*fakeClient{
		{name: model.ProviderGrok},
		{name: model.ProviderChatGPT},
		{name: model.ProviderClaude},
	}
}

func newEngine(st store.Store, cs []*fakeClient) *Engine {
	e := New(st, clients(cs...), fakeNormalizer{}, brand.Default(), testSeeds, Config{Concurrency: 4, ProgressBuffer: 128})
	e.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return e
}

// comparable strips ids so metric sets from different runs can be compared.
func comparable(rows []model.DailyMetric) []model.DailyMetric {
	out := make([]model.DailyMetric, len(rows))
	for i, r := range rows {
		r.ID = 0
		r.RunID = 0
		out[i] = r
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.QueryID != b.QueryID {
			return a.QueryID < b.QueryID
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.Brand < b.Brand
	})
	return out
}

func TestEngine_FullRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []int
	e := newEngine(st, allProviders())

	run, err := e.Run(ctx, Options{Progress: func(completed, total int, _ string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, completed)
		assert.Equal(t, 9, total)
	}})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 9, run.TotalItems)
	assert.Equal(t, 9, run.CompletedItems)
	assert.Equal(t, "2026-10-16", run.RunDate)
	assert.Equal(t, model.TriggerManual, run.TriggerType)

	rows, err := st.DailyMetrics(ctx, store.MetricFilter{RunID: run.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 9*3)

	winners := 0
	for _, r := range rows {
		if r.IsWinner {
			winners++
			assert.Equal(t, "on24", r.Brand)
		}
		if r.Brand == "on24" {
			assert.Equal(t, 2, r.CitationCount)
			assert.Equal(t, 1, r.PrimaryCitationCount)
			assert.Equal(t, 1, r.SecondaryCitationCount)
		}
	}
	assert.Equal(t, 9, winners)

	responses, err := st.ListResponses(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, responses, 9)
	attempt := responses[0].AttemptID
	assert.NotEmpty(t, attempt)
	for _, r := range responses {
		assert.Equal(t, attempt, r.AttemptID)
		assert.Equal(t, "on24", r.Metadata.ReportedWinner)
		require.NotNil(t, r.Metadata.Usage)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, 9)
}

func TestEngine_RetriesExhaustedRecordsPlaceholder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	flaky := &fakeClient{name: model.ProviderGrok, fail: func(q string) error {
		if q == testSeeds[1].Text {
			return resilience.NewTransientError(errors.New("503 from upstream"), 503)
		}
		return nil
	}}
	guard := provider.Guard{Retry: resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}}
	e := New(st, []provider.Client{guard.Wrap(flaky)}, fakeNormalizer{}, brand.Default(), testSeeds, Config{Concurrency: 2})

	run, err := e.Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.CompletedItems)
	assert.Equal(t, int64(2+3), flaky.calls.Load())

	responses, err := st.ListResponses(ctx, run.ID)
	require.NoError(t, err)
	var failed []model.Response
	for _, r := range responses {
		if r.Status == model.ResponseError {
			failed = append(failed, r)
		}
	}
	require.Len(t, failed, 1)
	assert.Empty(t, failed[0].Text)
	assert.Equal(t, resilience.ErrorTypeTransient, failed[0].Metadata.ErrorType)
	assert.Contains(t, failed[0].Metadata.Error, "503")

	facts, err := st.ResponseFacts(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, facts, 2)
	for _, f := range facts {
		assert.NotEqual(t, failed[0].ID, f.ResponseID)
	}

	rows, err := st.DailyMetrics(ctx, store.MetricFilter{RunID: run.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 2*3)
}

func TestEngine_ResumeMatchesUninterruptedRun(t *testing.T) {
	ctx := context.Background()

	baseline := newTestStore(t)
	full, err := newEngine(baseline, allProviders()).Run(ctx, Options{})
	require.NoError(t, err)
	want, err := baseline.DailyMetrics(ctx, store.MetricFilter{RunID: full.ID})
	require.NoError(t, err)

	st := newTestStore(t)
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cs := allProviders()
	var n atomic.Int64
	for _, c := range cs {
		c.hook = func() {
			if n.Add(1) == 4 {
				cancel()
			}
		}
	}
	e := newEngine(st, cs)
	e.cfg.Concurrency = 1

	partial, err := e.Run(cctx, Options{})
	require.Error(t, err)
	require.NotNil(t, partial)

	stored, err := st.GetRun(ctx, partial.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, stored.Status)
	assert.Less(t, stored.CompletedItems, 9)

	resumed, err := newEngine(st, allProviders()).Run(ctx, Options{ResumeRunID: partial.ID})
	require.NoError(t, err)
	assert.Equal(t, partial.ID, resumed.ID)
	assert.Equal(t, model.RunStatusCompleted, resumed.Status)
	assert.Equal(t, 9, resumed.CompletedItems)

	got, err := st.DailyMetrics(ctx, store.MetricFilter{RunID: resumed.ID})
	require.NoError(t, err)
	assert.Equal(t, comparable(want), comparable(got))

	responses, err := st.ListResponses(ctx, resumed.ID)
	require.NoError(t, err)
	assert.Len(t, responses, 9)
}

func TestEngine_ResumeCompletedRunOnlyReaggregates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := newEngine(st, allProviders()).Run(ctx, Options{})
	require.NoError(t, err)

	cs := allProviders()
	again, err := newEngine(st, cs).Run(ctx, Options{ResumeRunID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, again.Status)
	assert.Equal(t, 9, again.CompletedItems)
	for _, c := range cs {
		assert.Zero(t, c.calls.Load())
	}
}

func TestEngine_ResumeAfterLibraryGrowthResizesRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := newEngine(st, allProviders()).Run(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, 9, first.TotalItems)

	grown := append(append([]model.QuerySeed{}, testSeeds...),
		model.QuerySeed{Text: "goldcast vs zoom events", Category: "competitor_comparison"})
	cs := allProviders()
	e := New(st, clients(cs...), fakeNormalizer{}, brand.Default(), grown, Config{Concurrency: 4, ProgressBuffer: 128})
	e.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	resumed, err := e.Run(ctx, Options{ResumeRunID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, 12, resumed.TotalItems)
	assert.Equal(t, 12, resumed.CompletedItems)
	assert.Equal(t, 1.0, resumed.Progress())
	for _, c := range cs {
		assert.Equal(t, int64(1), c.calls.Load())
	}
}

func TestEngine_ResumeUnknownRun(t *testing.T) {
	st := newTestStore(t)
	_, err := newEngine(st, allProviders()).Run(context.Background(), Options{ResumeRunID: 42})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// cancelOnCreate aborts the caller's context right after the run row exists.
type cancelOnCreate struct {
	store.Store
	cancel context.CancelFunc
}

func (c cancelOnCreate) CreateRun(ctx context.Context, run model.NewRun) (*model.Run, error) {
	r, err := c.Store.CreateRun(ctx, run)
	c.cancel()
	return r, err
}

func TestEngine_AbortBeforeDispatchFailsRun(t *testing.T) {
	st := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cs := allProviders()
	e := newEngine(cancelOnCreate{Store: st, cancel: cancel}, cs)
	_, err := e.Run(ctx, Options{Trigger: model.TriggerScheduled})
	require.Error(t, err)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "before dispatch")
	for _, c := range cs {
		assert.Zero(t, c.calls.Load())
	}
}

func TestEngine_PanickingProgressSinkDoesNotStopRun(t *testing.T) {
	st := newTestStore(t)
	run, err := newEngine(st, allProviders()).Run(context.Background(), Options{
		Progress: func(int, int, string) { panic("sink bug") },
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
}

func TestEngine_NoProviders(t *testing.T) {
	e := New(newTestStore(t), nil, fakeNormalizer{}, brand.Default(), testSeeds, Config{})
	_, err := e.Run(context.Background(), Options{})
	require.Error(t, err)
}
