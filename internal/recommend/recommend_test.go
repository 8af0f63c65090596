package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/pkg/anthropic"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*anthropic.MessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func sampleRows() ([]model.DailyMetric, map[int64]model.Query) {
	pos := 1
	avg := 0.75
	rows := []model.DailyMetric{
		{QueryID: 2, QueryCategory: "competitor_comparison", Provider: model.ProviderClaude, Brand: "zoom"},
		{QueryID: 1, QueryCategory: "platform_selection", Provider: model.ProviderGrok, Brand: "on24",
			IsMentioned: true, FirstMentionPosition: &pos, AvgSentimentScore: &avg, CitationCount: 2,
			IsPrimaryRecommendation: true, IsWinner: true},
	}
	queries := map[int64]model.Query{
		1: {ID: 1, Text: "best webinar platform"},
		2: {ID: 2, Text: "zoom webinar alternatives"},
	}
	return rows, queries
}

func TestSummary(t *testing.T) {
	rows, queries := sampleRows()
	s := Summary(rows, queries)

	assert.Contains(t, s, `Query: "best webinar platform"`)
	assert.Contains(t, s, "[grok_web_search] ON24: MENTIONED | Pos#1 | Sent:0.75 | Cites:2 [PRIMARY] [WINNER]")
	assert.Contains(t, s, "[claude_parametric] ZOOM: NOT MENTIONED | N/A |  | ")
	assert.Less(t, indexOf(s, "best webinar platform"), indexOf(s, "zoom webinar alternatives"))
	assert.Equal(t, "No benchmark data available yet.", Summary(nil, nil))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestGenerate(t *testing.T) {
	m := &mockAnthropic{}
	m.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-20250514" && req.MaxTokens == 4096 &&
			len(req.Messages) == 1 && len(req.System) == 1
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "```json\n" + `{
  "executive_summary": "ON24 leads on search-backed answers.",
  "sov_assessment": "Strong",
  "wins": [{"query": "best webinar platform", "reason": "primary pick"}],
  "recommendations": [
    {"priority": 2, "category": "content", "action": "B", "expected_impact": "low"},
    {"priority": 1, "category": "seo", "action": "A", "expected_impact": "high"}
  ],
  "competitor_insights": {"goldcast": {"strengths": "events", "weaknesses": "scale", "threat_level": "high"}}
}` + "\n```"}},
		Usage: anthropic.TokenUsage{InputTokens: 500, OutputTokens: 300},
	}, nil)

	g := NewGenerator(m, brand.Default(), Config{Model: "claude-sonnet-4-20250514"}, cost.NewCalculator(nil))
	rows, queries := sampleRows()
	rep := g.Generate(context.Background(), rows, queries)

	assert.Empty(t, rep.Error)
	assert.Equal(t, "ON24 leads on search-backed answers.", rep.ExecutiveSummary)
	require.Len(t, rep.Wins, 1)
	assert.Empty(t, rep.Losses)
	require.Len(t, rep.Recommendations, 2)
	assert.Equal(t, "A", rep.Recommendations[0].Action)
	assert.Equal(t, "high", rep.CompetitorInsights["goldcast"].ThreatLevel)
	assert.Equal(t, "medium", rep.CompetitorInsights["zoom"].ThreatLevel)
	m.AssertExpectations(t)
}

func TestGenerate_Degraded(t *testing.T) {
	rows, queries := sampleRows()

	t.Run("call error", func(t *testing.T) {
		m := &mockAnthropic{}
		m.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))
		rep := NewGenerator(m, brand.Default(), Config{}, nil).Generate(context.Background(), rows, queries)
		assert.Contains(t, rep.Error, "overloaded")
		assert.Contains(t, rep.ExecutiveSummary, "Error generating recommendations")
		assert.Empty(t, rep.Recommendations)
		assert.Len(t, rep.CompetitorInsights, 2)
	})

	t.Run("prose reply", func(t *testing.T) {
		m := &mockAnthropic{}
		m.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: "Sorry, I cannot help."}},
		}, nil)
		rep := NewGenerator(m, brand.Default(), Config{}, nil).Generate(context.Background(), rows, queries)
		assert.NotEmpty(t, rep.Error)
	})

	t.Run("no data", func(t *testing.T) {
		m := &mockAnthropic{}
		rep := NewGenerator(m, brand.Default(), Config{}, nil).Generate(context.Background(), nil, nil)
		assert.NotEmpty(t, rep.Error)
		m.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	})
}

func TestSystemPrompt(t *testing.T) {
	g := NewGenerator(&mockAnthropic{}, brand.Default(), Config{}, nil)
	p := g.systemPrompt()
	assert.Contains(t, p, "improve ON24's visibility")
	assert.Contains(t, p, "www.on24.com citations (NOT event.on24.com)")
	assert.Contains(t, p, `"goldcast": {`)
	assert.Contains(t, p, `"zoom": {`)
}
