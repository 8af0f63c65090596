package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/sells-group/geo-benchmark/internal/model"
)

// statements builds the SQL shared by both backends; only the placeholder
// format differs.
type statements struct {
	sb sq.StatementBuilderType
}

func newStatements(format sq.PlaceholderFormat) statements {
	return statements{sb: sq.StatementBuilder.PlaceholderFormat(format)}
}

var (
	queryColumns = []string{"id", "query_text", "category", "COALESCE(subcategory, '')", "is_active", "created_at"}
	runColumns   = []string{
		"id", "run_date", "trigger_type", "status", "total_items", "completed_items",
		"started_at", "updated_at", "completed_at", "COALESCE(error_message, '')",
	}
	responseColumns = []string{
		"id", "run_id", "query_id", "provider", "model_name", "raw_response",
		"status", "metadata", "attempt_id", "created_at",
	}
	mentionColumns = []string{
		"response_id", "run_id", "query_id", "provider", "brand", "position",
		"context", "sentiment", "sentiment_score", "is_primary_recommendation",
	}
	citationColumns = []string{
		"response_id", "run_id", "query_id", "provider", "url", "title",
		"domain", "brand_association", "is_primary_domain", "is_secondary_domain",
	}
	metricColumns = []string{
		"run_date", "run_id", "query_id", "query_category", "provider", "brand",
		"is_mentioned", "mention_count", "first_mention_position",
		"is_primary_recommendation", "avg_sentiment_score", "dominant_sentiment",
		"citation_count", "primary_citation_count", "secondary_citation_count", "is_winner",
	}
)

func (s statements) seedQuery(seed model.QuerySeed, createdAt any) sq.InsertBuilder {
	return s.sb.Insert("queries").
		Columns("query_text", "category", "subcategory", "created_at").
		Values(seed.Text, seed.Category, nullString(seed.Subcategory), createdAt).
		Suffix("ON CONFLICT (query_text) DO NOTHING")
}

func (s statements) listQueries(activeOnly bool) sq.SelectBuilder {
	q := s.sb.Select(queryColumns...).From("queries").OrderBy("id")
	if activeOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}
	return q
}

func (s statements) getRun(runID int64) sq.SelectBuilder {
	return s.sb.Select(runColumns...).From("benchmark_runs").Where(sq.Eq{"id": runID})
}

func (s statements) listRuns(f RunFilter) sq.SelectBuilder {
	q := s.sb.Select(runColumns...).From("benchmark_runs").OrderBy("id DESC")
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q = q.Limit(uint64(limit))
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

func (s statements) createRun(run model.NewRun, trigger model.TriggerType, at any) sq.InsertBuilder {
	return s.sb.Insert("benchmark_runs").
		Columns("run_date", "trigger_type", "status", "total_items", "completed_items", "started_at", "updated_at").
		Values(run.RunDate, string(trigger), string(model.RunStatusRunning), run.TotalItems, 0, at, at).
		Suffix("RETURNING id")
}

func (s statements) reopenRun(runID int64, completed, total int, at any) sq.UpdateBuilder {
	return s.sb.Update("benchmark_runs").
		Set("status", string(model.RunStatusRunning)).
		Set("completed_items", completed).
		Set("total_items", total).
		Set("updated_at", at).
		Set("completed_at", nil).
		Set("error_message", nil).
		Where(sq.Eq{"id": runID})
}

func (s statements) incrementCompleted(runID int64, at any) sq.UpdateBuilder {
	return s.sb.Update("benchmark_runs").
		Set("completed_items", sq.Expr("completed_items + 1")).
		Set("updated_at", at).
		Where(sq.Eq{"id": runID}).
		Suffix("RETURNING completed_items")
}

func (s statements) finishRun(runID int64, status model.RunStatus, message string, at any) sq.UpdateBuilder {
	return s.sb.Update("benchmark_runs").
		Set("status", string(status)).
		Set("completed_at", at).
		Set("error_message", nullString(message)).
		Where(sq.Eq{"id": runID})
}

func (s statements) latestCompletedRun() sq.SelectBuilder {
	return s.sb.Select("id").From("benchmark_runs").
		Where(sq.Eq{"status": string(model.RunStatusCompleted)}).
		OrderBy("id DESC").Limit(1)
}

func (s statements) completedWork(runID int64) sq.SelectBuilder {
	return s.sb.Select("query_id", "provider").From("responses").
		Where(sq.Eq{"run_id": runID, "status": string(model.ResponseOK)})
}

// insertResponse skips a second ok row for the same work item; the partial
// unique index is the conflict target.
func (s statements) insertResponse(r model.Response, metadata string, createdAt any) sq.InsertBuilder {
	q := s.sb.Insert("responses").
		Columns("run_id", "query_id", "provider", "model_name", "raw_response", "status", "metadata", "attempt_id", "created_at").
		Values(r.RunID, r.QueryID, string(r.Provider), r.ModelName, r.Text, string(r.Status), metadata, r.AttemptID, createdAt)
	if r.Status == model.ResponseOK {
		q = q.Suffix("ON CONFLICT (run_id, query_id, provider) WHERE status = 'ok' DO NOTHING RETURNING id")
	} else {
		q = q.Suffix("RETURNING id")
	}
	return q
}

func (s statements) existingOKResponse(k model.WorkKey, runID int64) sq.SelectBuilder {
	return s.sb.Select("id").From("responses").
		Where(sq.Eq{"run_id": runID, "query_id": k.QueryID, "provider": string(k.Provider), "status": string(model.ResponseOK)})
}

func (s statements) insertMentions(r model.Response, mentions []model.Mention) sq.InsertBuilder {
	q := s.sb.Insert("mentions").Columns(mentionColumns...)
	for _, m := range mentions {
		q = q.Values(r.ID, r.RunID, r.QueryID, string(r.Provider), m.Brand, m.Position,
			m.Context, m.Sentiment, nullable(m.SentimentScore), m.IsPrimary)
	}
	return q
}

func (s statements) insertCitations(r model.Response, citations []model.Citation) sq.InsertBuilder {
	q := s.sb.Insert("citations").Columns(citationColumns...)
	for _, c := range citations {
		q = q.Values(r.ID, r.RunID, r.QueryID, string(r.Provider), c.URL, c.Title,
			c.Domain, c.Brand, c.IsPrimaryDomain, c.IsSecondaryDomain)
	}
	return q
}

func (s statements) listResponses(runID int64) sq.SelectBuilder {
	return s.sb.Select(responseColumns...).From("responses").
		Where(sq.Eq{"run_id": runID}).OrderBy("id")
}

func (s statements) okResponses(runID int64) sq.SelectBuilder {
	return s.sb.Select("r.id", "r.query_id", "q.category", "r.provider").
		From("responses r").
		Join("queries q ON q.id = r.query_id").
		Where(sq.Eq{"r.run_id": runID, "r.status": string(model.ResponseOK)}).
		OrderBy("r.id")
}

func (s statements) runMentions(runID int64) sq.SelectBuilder {
	return s.sb.Select("response_id", "brand", "position", "context", "sentiment", "sentiment_score", "is_primary_recommendation").
		From("mentions").Where(sq.Eq{"run_id": runID}).OrderBy("response_id", "position", "id")
}

func (s statements) runCitations(runID int64) sq.SelectBuilder {
	return s.sb.Select("response_id", "url", "COALESCE(title, '')", "domain", "brand_association", "is_primary_domain", "is_secondary_domain").
		From("citations").Where(sq.Eq{"run_id": runID}).OrderBy("response_id", "id")
}

func (s statements) deleteMetrics(runID int64) sq.DeleteBuilder {
	return s.sb.Delete("daily_metrics").Where(sq.Eq{"run_id": runID})
}

func (s statements) insertMetrics(rows []model.DailyMetric) sq.InsertBuilder {
	q := s.sb.Insert("daily_metrics").Columns(metricColumns...)
	for _, r := range rows {
		q = q.Values(metricValues(r)...)
	}
	return q
}

func (s statements) dailyMetrics(f MetricFilter) sq.SelectBuilder {
	q := s.sb.Select(append([]string{"id"}, metricColumns...)...).From("daily_metrics").
		OrderBy("run_date", "run_id", "query_id", "provider", "id")
	if f.RunID > 0 {
		q = q.Where(sq.Eq{"run_id": f.RunID})
	}
	if f.Provider != "" {
		q = q.Where(sq.Eq{"provider": string(f.Provider)})
	}
	if f.Since != "" {
		q = q.Where(sq.GtOrEq{"run_date": f.Since})
	}
	return q
}

func (s statements) citationDomains(runID int64, provider model.Provider, limit int) sq.SelectBuilder {
	q := s.sb.Select("domain", "brand_association", "COUNT(*) AS n").
		From("citations").
		Where(sq.Eq{"run_id": runID}).
		GroupBy("domain", "brand_association").
		OrderBy("n DESC", "domain")
	if provider != "" {
		q = q.Where(sq.Eq{"provider": string(provider)})
	}
	if limit <= 0 {
		limit = 20
	}
	return q.Limit(uint64(limit))
}

func metricValues(r model.DailyMetric) []any {
	return []any{
		r.RunDate, r.RunID, r.QueryID, r.QueryCategory, string(r.Provider), r.Brand,
		r.IsMentioned, r.MentionCount, nullable(r.FirstMentionPosition),
		r.IsPrimaryRecommendation, nullable(r.AvgSentimentScore), nullable(r.DominantSentiment),
		r.CitationCount, r.PrimaryCitationCount, r.SecondaryCitationCount, r.IsWinner,
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
