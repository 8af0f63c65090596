package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/store"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

// fixture stores one run dated 2026-10-15 with two queries answered by grok.
func fixture(t *testing.T) (*Reader, int64) {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	_, err = st.SeedQueries(ctx, []model.QuerySeed{
		{Text: "best webinar platform", Category: "platform_selection"},
		{Text: "goldcast alternatives", Category: "competitor_comparison"},
	})
	require.NoError(t, err)
	qs, err := st.ListQueries(ctx, true)
	require.NoError(t, err)
	run, err := st.CreateRun(ctx, model.NewRun{RunDate: "2026-10-15", TotalItems: 2})
	require.NoError(t, err)

	row := func(q model.Query, b string, mentioned bool, pos *int, sent *float64, winner bool) model.DailyMetric {
		return model.DailyMetric{
			RunDate: run.RunDate, RunID: run.ID, QueryID: q.ID, QueryCategory: q.Category,
			Provider: model.ProviderGrok, Brand: b, IsMentioned: mentioned,
			FirstMentionPosition: pos, AvgSentimentScore: sent, IsWinner: winner,
		}
	}
	rows := []model.DailyMetric{
		row(qs[0], "on24", true, intp(1), floatp(0.8), true),
		row(qs[0], "goldcast", true, intp(2), floatp(0.4), false),
		row(qs[0], "zoom", false, nil, nil, false),
		row(qs[1], "on24", false, nil, nil, false),
		row(qs[1], "goldcast", true, intp(1), floatp(0.6), true),
		row(qs[1], "zoom", false, nil, nil, false),
	}
	require.NoError(t, st.ReplaceDailyMetrics(ctx, run.ID, rows))
	require.NoError(t, st.CompleteRun(ctx, run.ID))

	r := NewReader(st, brand.Default())
	r.now = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }
	return r, run.ID
}

func TestReader_ShareOfVoice(t *testing.T) {
	r, runID := fixture(t)
	ctx := context.Background()

	latest, err := r.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, runID, latest)

	sov, err := r.ShareOfVoice(ctx, runID, "")
	require.NoError(t, err)
	require.Len(t, sov, 3)
	assert.Equal(t, "on24", sov[0].Brand)
	assert.Equal(t, 50.0, sov[0].SOV)
	assert.Equal(t, 50.0, sov[0].WinRate)
	assert.Equal(t, "goldcast", sov[1].Brand)
	assert.Equal(t, 100.0, sov[1].SOV)
	require.NotNil(t, sov[1].AvgPosition)
	assert.Equal(t, 1.5, *sov[1].AvgPosition)
	assert.Equal(t, 0.0, sov[2].SOV)
	assert.Nil(t, sov[2].AvgPosition)

	none, err := r.ShareOfVoice(ctx, runID, model.ProviderClaude)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReader_Breakdown(t *testing.T) {
	r, runID := fixture(t)

	rows, err := r.Breakdown(context.Background(), runID, model.ProviderGrok)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "best webinar platform", rows[0].QueryText)
	assert.Equal(t, "on24", rows[0].Brand)
	assert.True(t, rows[0].IsWinner)
	assert.Equal(t, "goldcast alternatives", rows[4].QueryText)
	assert.Equal(t, "goldcast", rows[4].Brand)
}

func TestReader_TrendsWindow(t *testing.T) {
	r, _ := fixture(t)
	ctx := context.Background()

	points, err := r.Trends(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2026-10-15", points[0].Date)

	r.now = func() time.Time { return time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC) }
	points, err = r.Trends(ctx, "", 30)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestReader_RunMetrics(t *testing.T) {
	r, runID := fixture(t)

	rows, queries, err := r.RunMetrics(context.Background(), runID)
	require.NoError(t, err)
	assert.Len(t, rows, 6)
	assert.Len(t, queries, 2)
}
