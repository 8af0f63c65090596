package model

import "time"

// ResponseStatus distinguishes real answers from error placeholders.
type ResponseStatus string

const (
	ResponseOK    ResponseStatus = "ok"
	ResponseError ResponseStatus = "error"
)

// TokenUsage is the normalized usage/cost record of one provider call.
type TokenUsage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CostUSD += other.CostUSD
}

// ResponseMetadata is stored as JSON alongside each response row.
type ResponseMetadata struct {
	Usage     *TokenUsage `json:"usage,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	ParseErr  string      `json:"parse_error,omitempty"`

	ParseUsage     *TokenUsage `json:"parse_usage,omitempty"`
	ReportedWinner string      `json:"reported_winner,omitempty"`
}

// Response is one raw provider answer for a (run, query, provider) triple.
type Response struct {
	ID        int64            `json:"id"`
	RunID     int64            `json:"run_id"`
	QueryID   int64            `json:"query_id"`
	Provider  Provider         `json:"provider"`
	ModelName string           `json:"model_name"`
	Text      string           `json:"raw_response"`
	Status    ResponseStatus   `json:"status"`
	Metadata  ResponseMetadata `json:"metadata"`
	AttemptID string           `json:"attempt_id"`
	CreatedAt time.Time        `json:"created_at"`
}

// Sentiment labels produced by the normalizer.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Mention is one brand reference extracted from a response.
type Mention struct {
	ID             int64    `json:"id,omitempty"`
	ResponseID     int64    `json:"response_id,omitempty"`
	Brand          string   `json:"brand"`
	Position       int      `json:"position"`
	Context        string   `json:"context"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore *float64 `json:"sentiment_score"`
	IsPrimary      bool     `json:"is_primary_recommendation"`
}

// Citation is one URL referenced by a response, with its classification.
type Citation struct {
	ID                int64  `json:"id,omitempty"`
	ResponseID        int64  `json:"response_id,omitempty"`
	URL               string `json:"url"`
	Title             string `json:"title"`
	Domain            string `json:"domain"`
	Brand             string `json:"brand_association"`
	IsPrimaryDomain   bool   `json:"is_primary_domain"`
	IsSecondaryDomain bool   `json:"is_secondary_domain"`
}

// WorkItemResult bundles everything one successful work item persists.
type WorkItemResult struct {
	Response  Response
	Mentions  []Mention
	Citations []Citation
}

// ResponseFacts is a stored ok response with its mentions and citations,
// as consumed by metrics computation.
type ResponseFacts struct {
	ResponseID    int64
	QueryID       int64
	QueryCategory string
	Provider      Provider
	Mentions      []Mention
	Citations     []Citation
}
