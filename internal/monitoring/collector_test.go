package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedRuns stores a completed run with one ok and one error response, a
// failed run, and a run left running.
func seedRuns(t *testing.T, st *store.SQLiteStore) (completed, failed, running int64) {
	t.Helper()
	ctx := context.Background()
	_, err := st.SeedQueries(ctx, []model.QuerySeed{
		{Text: "best webinar platform", Category: "platform_selection"},
		{Text: "on24 vs goldcast", Category: "competitor_comparison"},
	})
	require.NoError(t, err)
	qs, err := st.ListQueries(ctx, true)
	require.NoError(t, err)

	newRun := func() int64 {
		r, err := st.CreateRun(ctx, model.NewRun{RunDate: "2026-10-16", TotalItems: 2})
		require.NoError(t, err)
		return r.ID
	}

	completed = newRun()
	_, err = st.SaveWorkItem(ctx, model.WorkItemResult{Response: model.Response{
		RunID: completed, QueryID: qs[0].ID, Provider: model.ProviderGrok, Text: "ON24 leads.",
		Metadata: model.ResponseMetadata{
			Usage:      &model.TokenUsage{CostUSD: 0.25},
			ParseUsage: &model.TokenUsage{CostUSD: 0.05},
		},
	}})
	require.NoError(t, err)
	_, err = st.SaveErrorResponse(ctx, model.Response{
		RunID: completed, QueryID: qs[1].ID, Provider: model.ProviderChatGPT,
		Metadata: model.ResponseMetadata{Error: "rate limited", ErrorType: "transient"},
	})
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, completed))

	failed = newRun()
	require.NoError(t, st.FailRun(ctx, failed, "aborted"))

	running = newRun()
	return completed, failed, running
}

func TestCollector_EmptyStore(t *testing.T) {
	c := NewCollector(newTestStore(t))

	snap, err := c.Collect(context.Background(), 24, 6)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.ErrorRate)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_RunHealth(t *testing.T) {
	st := newTestStore(t)
	_, failed, running := seedRuns(t, st)
	c := NewCollector(st)

	snap, err := c.Collect(context.Background(), 24, 6)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsCompleted)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.Equal(t, []int64{failed}, snap.FailedRuns)
	assert.Empty(t, snap.StaleRuns)
	assert.Equal(t, 2, snap.Items)
	assert.Equal(t, 1, snap.ItemErrors)
	assert.InDelta(t, 0.5, snap.ErrorRate, 1e-9)
	assert.Equal(t, 1, snap.ProviderErrors[model.ProviderChatGPT])
	assert.InDelta(t, 0.30, snap.CostUSD, 1e-9)

	c.now = func() time.Time { return time.Now().Add(10 * time.Hour) }
	snap, err = c.Collect(context.Background(), 24, 6)
	require.NoError(t, err)
	assert.Equal(t, []int64{running}, snap.StaleRuns)

	c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	snap, err = c.Collect(context.Background(), 24, 6)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Equal(t, []int64{running}, snap.StaleRuns)
}

// fixedRuns serves a canned run list with no responses.
type fixedRuns struct {
	store.Store
	runs []model.Run
}

func (f fixedRuns) ListRuns(context.Context, store.RunFilter) ([]model.Run, error) {
	return f.runs, nil
}

func (f fixedRuns) ListResponses(context.Context, int64) ([]model.Response, error) {
	return nil, nil
}

func TestCollector_StalenessFollowsLastProgress(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	st := fixedRuns{runs: []model.Run{
		// Resumed an hour ago after starting three days back.
		{ID: 1, Status: model.RunStatusRunning, StartedAt: now.Add(-72 * time.Hour), LastProgressAt: now.Add(-time.Hour)},
		// Stuck for two days, outside the lookback window.
		{ID: 2, Status: model.RunStatusRunning, StartedAt: now.Add(-50 * time.Hour), LastProgressAt: now.Add(-48 * time.Hour)},
		// Older row with no progress stamp.
		{ID: 3, Status: model.RunStatusRunning, StartedAt: now.Add(-8 * time.Hour)},
		{ID: 4, Status: model.RunStatusCompleted, StartedAt: now.Add(-72 * time.Hour), LastProgressAt: now.Add(-70 * time.Hour)},
	}}
	c := &Collector{store: st, now: func() time.Time { return now }}

	snap, err := c.Collect(context.Background(), 24, 6)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, snap.StaleRuns)
	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsRunning)
}
