// Package recommend asks Claude for GEO recommendations based on a run's
// daily metrics.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/normalize"
	"github.com/sells-group/geo-benchmark/internal/resilience"
	"github.com/sells-group/geo-benchmark/pkg/anthropic"
)

// Win is a query the tracked brand won.
type Win struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// Loss is a query a competitor won.
type Loss struct {
	Query             string `json:"query"`
	WinningCompetitor string `json:"winning_competitor"`
	Reason            string `json:"reason"`
}

// Action is one prioritized recommendation.
type Action struct {
	Priority       int    `json:"priority"`
	Category       string `json:"category"`
	Action         string `json:"action"`
	Rationale      string `json:"rationale"`
	ExpectedImpact string `json:"expected_impact"`
}

// CompetitorInsight summarizes one competitor.
type CompetitorInsight struct {
	Strengths   string `json:"strengths"`
	Weaknesses  string `json:"weaknesses"`
	ThreatLevel string `json:"threat_level"`
}

// Report is the recommendation document.
type Report struct {
	ExecutiveSummary   string                       `json:"executive_summary"`
	SOVAssessment      string                       `json:"sov_assessment"`
	Wins               []Win                        `json:"wins"`
	Losses             []Loss                       `json:"losses"`
	Recommendations    []Action                     `json:"recommendations"`
	CompetitorInsights map[string]CompetitorInsight `json:"competitor_insights"`
	Error              string                       `json:"error,omitempty"`
}

// Config tunes the recommendation call.
type Config struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	Retry     resilience.RetryConfig
}

// Generator produces recommendation reports.
type Generator struct {
	client   anthropic.Client
	registry *brand.Registry
	cfg      Config
	calc     *cost.Calculator
}

// NewGenerator creates a Generator.
func NewGenerator(client anthropic.Client, reg *brand.Registry, cfg Config, calc *cost.Calculator) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	return &Generator{client: client, registry: reg, cfg: cfg, calc: calc}
}

// Generate never fails: a call or decoding problem yields a degraded report
// with Error set.
func (g *Generator) Generate(ctx context.Context, rows []model.DailyMetric, queries map[int64]model.Query) Report {
	if len(rows) == 0 {
		return g.degraded(eris.New("recommend: no benchmark data for run"))
	}

	resp, err := resilience.DoVal(ctx, g.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
		}
		return g.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     g.cfg.Model,
			MaxTokens: g.cfg.MaxTokens,
			System:    anthropic.BuildCachedSystemBlocks(g.systemPrompt(), ""),
			Messages:  anthropic.UserText("Analyze this GEO benchmark data:\n\n" + Summary(rows, queries)),
		})
	})
	if err != nil {
		return g.degraded(eris.Wrap(err, "recommend: generate"))
	}

	costUSD := g.calc.Estimate(g.cfg.Model, cost.Usage{
		InputTokens:      resp.Usage.InputTokens,
		OutputTokens:     resp.Usage.OutputTokens,
		CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:  resp.Usage.CacheReadInputTokens,
	})
	resp.Usage.LogCost(g.cfg.Model, "recommend", costUSD)

	payload := normalize.ExtractJSON(resp.Text())
	if payload == "" {
		return g.degraded(eris.New("recommend: no JSON object in reply"))
	}
	var rep Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return g.degraded(eris.Wrap(err, "recommend: decode reply"))
	}
	g.fill(&rep)
	return rep
}

func (g *Generator) fill(rep *Report) {
	if rep.Wins == nil {
		rep.Wins = []Win{}
	}
	if rep.Losses == nil {
		rep.Losses = []Loss{}
	}
	if rep.Recommendations == nil {
		rep.Recommendations = []Action{}
	}
	sort.SliceStable(rep.Recommendations, func(i, j int) bool {
		return rep.Recommendations[i].Priority < rep.Recommendations[j].Priority
	})
	if rep.CompetitorInsights == nil {
		rep.CompetitorInsights = map[string]CompetitorInsight{}
	}
	for _, k := range g.competitors() {
		if _, ok := rep.CompetitorInsights[k]; !ok {
			rep.CompetitorInsights[k] = CompetitorInsight{ThreatLevel: "medium"}
		}
	}
}

func (g *Generator) degraded(err error) Report {
	zap.L().Warn("recommendations degraded", zap.Error(err))
	rep := Report{
		ExecutiveSummary: "Error generating recommendations: " + err.Error(),
		Error:            err.Error(),
	}
	g.fill(&rep)
	return rep
}

func (g *Generator) competitors() []string {
	keys := g.registry.Keys()
	if len(keys) <= 1 {
		return nil
	}
	return keys[1:]
}

func (g *Generator) systemPrompt() string {
	defs := g.registry.Definitions()
	focus := defs[0]

	var b strings.Builder
	b.WriteString("You are a senior GEO (Generative Engine Optimization) strategist for B2B marketing technology.\n")
	fmt.Fprintf(&b, "Analyze the benchmark data and provide tactical recommendations to improve %s's visibility in LLM search results.\n\n", focus.DisplayName)
	b.WriteString("Focus on:\n")
	fmt.Fprintf(&b, "1. Which search terms %s is winning and losing\n", focus.DisplayName)
	fmt.Fprintf(&b, "2. Content gaps where %s is not mentioned but competitors are\n", focus.DisplayName)
	if len(focus.Domains) > 0 {
		if focus.DualDomain() {
			fmt.Fprintf(&b, "3. Specific actions to improve www.%s citations (NOT %s)\n", focus.Domains[0], strings.Join(focus.SecondaryHosts, ", "))
		} else {
			fmt.Fprintf(&b, "3. Specific actions to improve %s citations\n", focus.Domains[0])
		}
	}
	b.WriteString("4. Tactical content and SEO recommendations\n\n")
	b.WriteString("Return a JSON object with this exact structure:\n")
	b.WriteString(`{
  "executive_summary": "string",
  "sov_assessment": "string",
  "wins": [{"query": "string", "reason": "string"}],
  "losses": [{"query": "string", "winning_competitor": "string", "reason": "string"}],
  "recommendations": [{"priority": 1, "category": "string", "action": "string", "rationale": "string", "expected_impact": "high|medium|low"}],
  "competitor_insights": {`)
	for i, k := range g.competitors() {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "\n    %q: {\"strengths\": \"string\", \"weaknesses\": \"string\", \"threat_level\": \"high|medium|low\"}", k)
	}
	b.WriteString("\n  }\n}")
	return b.String()
}

// Summary renders daily metrics as the text digest sent to the model.
func Summary(rows []model.DailyMetric, queries map[int64]model.Query) string {
	if len(rows) == 0 {
		return "No benchmark data available yet."
	}
	sorted := make([]model.DailyMetric, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].QueryID < sorted[j].QueryID })

	var b strings.Builder
	b.WriteString("=== GEO BENCHMARK DATA SUMMARY ===\n")
	var current int64 = -1
	for _, r := range sorted {
		if r.QueryID != current {
			current = r.QueryID
			fmt.Fprintf(&b, "\nQuery: %q\nCategory: %s\n", queries[r.QueryID].Text, r.QueryCategory)
		}
		status := "NOT MENTIONED"
		if r.IsMentioned {
			status = "MENTIONED"
		}
		pos := "N/A"
		if r.FirstMentionPosition != nil {
			pos = fmt.Sprintf("Pos#%d", *r.FirstMentionPosition)
		}
		sent := ""
		if r.AvgSentimentScore != nil {
			sent = fmt.Sprintf("Sent:%.2f", *r.AvgSentimentScore)
		}
		cites := ""
		if r.CitationCount > 0 {
			cites = fmt.Sprintf("Cites:%d", r.CitationCount)
		}
		fmt.Fprintf(&b, "  [%s] %s: %s | %s | %s | %s", r.Provider, strings.ToUpper(r.Brand), status, pos, sent, cites)
		if r.IsPrimaryRecommendation {
			b.WriteString(" [PRIMARY]")
		}
		if r.IsWinner {
			b.WriteString(" [WINNER]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
