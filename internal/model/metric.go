package model

// DailyMetric is the aggregated row per (run, query, provider, brand).
type DailyMetric struct {
	ID                      int64    `json:"id,omitempty"`
	RunDate                 string   `json:"run_date"`
	RunID                   int64    `json:"run_id"`
	QueryID                 int64    `json:"query_id"`
	QueryCategory           string   `json:"query_category"`
	Provider                Provider `json:"provider"`
	Brand                   string   `json:"brand"`
	IsMentioned             bool     `json:"is_mentioned"`
	MentionCount            int      `json:"mention_count"`
	FirstMentionPosition    *int     `json:"first_mention_position"`
	IsPrimaryRecommendation bool     `json:"is_primary_recommendation"`
	AvgSentimentScore       *float64 `json:"avg_sentiment_score"`
	DominantSentiment       *string  `json:"dominant_sentiment"`
	CitationCount           int      `json:"citation_count"`
	PrimaryCitationCount    int      `json:"primary_citation_count"`
	SecondaryCitationCount  int      `json:"secondary_citation_count"`
	IsWinner                bool     `json:"is_winner"`
}

// GroupKey identifies the (query, provider) winner group of a metric row.
func (m DailyMetric) GroupKey() WorkKey {
	return WorkKey{QueryID: m.QueryID, Provider: m.Provider}
}

// BrandSummary is the share-of-voice view of one brand for a run and provider.
type BrandSummary struct {
	Brand        string   `json:"brand"`
	SOV          float64  `json:"sov"`
	AvgPosition  *float64 `json:"avg_position"`
	AvgSentiment *float64 `json:"avg_sentiment"`
	WinRate      float64  `json:"win_rate"`
}

// TermBreakdownRow is one brand's outcome for one search term.
type TermBreakdownRow struct {
	QueryID                 int64    `json:"query_id"`
	QueryText               string   `json:"query_text"`
	Category                string   `json:"category"`
	Brand                   string   `json:"brand"`
	IsMentioned             bool     `json:"is_mentioned"`
	FirstMentionPosition    *int     `json:"first_mention_position"`
	AvgSentimentScore       *float64 `json:"avg_sentiment_score"`
	IsPrimaryRecommendation bool     `json:"is_primary_recommendation"`
	IsWinner                bool     `json:"is_winner"`
}

// TrendPoint aggregates one brand's metrics for one run date.
type TrendPoint struct {
	Date               string   `json:"date"`
	Brand              string   `json:"brand"`
	SOV                float64  `json:"sov"`
	AvgPosition        *float64 `json:"avg_position"`
	AvgSentiment       *float64 `json:"avg_sentiment"`
	WinRate            float64  `json:"win_rate"`
	Citations          int      `json:"total_citations"`
	PrimaryCitations   int      `json:"primary_citations"`
	SecondaryCitations int      `json:"secondary_citations"`
}

// DomainCount is a cited domain and how often it appeared in a run.
type DomainCount struct {
	Domain string `json:"domain"`
	Brand  string `json:"brand_association"`
	Count  int    `json:"count"`
}
