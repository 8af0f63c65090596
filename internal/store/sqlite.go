package store

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/geo-benchmark/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	st statements
}

var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(10000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// NewSQLite opens a SQLite database at path. The pragmas travel in the DSN
// so every pooled connection gets WAL mode and the busy timeout.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db, st: newStatements(sq.Question)}, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	// SQLite has no ADD COLUMN IF NOT EXISTS.
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('benchmark_runs') WHERE name = 'updated_at'`).Scan(&n)
	if err != nil {
		return eris.Wrap(err, "sqlite: inspect benchmark_runs")
	}
	if n == 0 {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE benchmark_runs ADD COLUMN updated_at DATETIME`); err != nil {
			return eris.Wrap(err, "sqlite: add benchmark_runs.updated_at")
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Queries ---

func (s *SQLiteStore) SeedQueries(ctx context.Context, seeds []model.QuerySeed) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin seed")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	inserted := 0
	for _, seed := range seeds {
		res, err := s.st.seedQuery(seed, now).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed query %q", seed.Text)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}
	return inserted, eris.Wrap(tx.Commit(), "sqlite: commit seed")
}

func (s *SQLiteStore) ListQueries(ctx context.Context, activeOnly bool) ([]model.Query, error) {
	rows, err := s.st.listQueries(activeOnly).RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queries")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Query
	for rows.Next() {
		var q model.Query
		if err := rows.Scan(&q.ID, &q.Text, &q.Category, &q.Subcategory, &q.IsActive, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan query")
		}
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list queries iterate")
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.NewRun) (*model.Run, error) {
	now := time.Now().UTC()
	trigger := run.TriggerType
	if trigger == "" {
		trigger = model.TriggerManual
	}
	var id int64
	err := s.st.createRun(run, trigger, now).
		RunWith(s.db).QueryRowContext(ctx).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{
		ID:             id,
		RunDate:        run.RunDate,
		TriggerType:    trigger,
		Status:         model.RunStatusRunning,
		TotalItems:     run.TotalItems,
		StartedAt:      now,
		LastProgressAt: now,
	}, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID int64) (*model.Run, error) {
	r, err := scanSQLiteRun(s.st.getRun(runID).RunWith(s.db).QueryRowContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %d", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	rows, err := s.st.listRuns(filter).RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ReopenRun(ctx context.Context, runID int64, completed, total int) error {
	res, err := s.st.reopenRun(runID, completed, total, time.Now().UTC()).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reopen run %d", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) IncrementCompleted(ctx context.Context, runID int64) (int, error) {
	var n int
	err := s.st.incrementCompleted(runID, time.Now().UTC()).RunWith(s.db).QueryRowContext(ctx).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, eris.Wrapf(ErrNotFound, "sqlite: run %d", runID)
	}
	return n, eris.Wrapf(err, "sqlite: increment run %d", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID int64) error {
	return s.finishRun(ctx, runID, model.RunStatusCompleted, "")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID int64, message string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, message)
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID int64, status model.RunStatus, message string) error {
	res, err := s.st.finishRun(runID, status, message, time.Now().UTC()).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark run %d %s", runID, status)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) LatestCompletedRunID(ctx context.Context) (int64, error) {
	var id int64
	err := s.st.latestCompletedRun().RunWith(s.db).QueryRowContext(ctx).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, eris.Wrap(err, "sqlite: latest completed run")
}

// --- Responses ---

func (s *SQLiteStore) CompletedWork(ctx context.Context, runID int64) (map[model.WorkKey]bool, error) {
	rows, err := s.st.completedWork(runID).RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: completed work for run %d", runID)
	}
	defer rows.Close() //nolint:errcheck

	done := make(map[model.WorkKey]bool)
	for rows.Next() {
		var k model.WorkKey
		var provider string
		if err := rows.Scan(&k.QueryID, &provider); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan completed work")
		}
		k.Provider = model.Provider(provider)
		done[k] = true
	}
	return done, eris.Wrap(rows.Err(), "sqlite: completed work iterate")
}

// SaveWorkItem writes the response with its mentions and citations in one
// transaction. A repeated ok write for the same work item keeps the first
// row and returns its id.
func (s *SQLiteStore) SaveWorkItem(ctx context.Context, item model.WorkItemResult) (int64, error) {
	resp := item.Response
	resp.Status = model.ResponseOK

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin work item")
	}
	defer tx.Rollback() //nolint:errcheck

	id, inserted, err := s.insertResponse(ctx, tx, resp)
	if err != nil {
		return 0, err
	}
	if inserted {
		resp.ID = id
		if len(item.Mentions) > 0 {
			if _, err := s.st.insertMentions(resp, item.Mentions).RunWith(tx).ExecContext(ctx); err != nil {
				return 0, eris.Wrap(err, "sqlite: insert mentions")
			}
		}
		if len(item.Citations) > 0 {
			if _, err := s.st.insertCitations(resp, item.Citations).RunWith(tx).ExecContext(ctx); err != nil {
				return 0, eris.Wrap(err, "sqlite: insert citations")
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit work item")
	}
	return id, nil
}

func (s *SQLiteStore) SaveErrorResponse(ctx context.Context, resp model.Response) (int64, error) {
	resp.Status = model.ResponseError
	resp.Text = ""
	id, _, err := s.insertResponse(ctx, s.db, resp)
	return id, err
}

func (s *SQLiteStore) insertResponse(ctx context.Context, runner sq.BaseRunner, resp model.Response) (int64, bool, error) {
	md, err := encodeMetadata(resp.Metadata)
	if err != nil {
		return 0, false, err
	}
	createdAt := resp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err = s.st.insertResponse(resp, md, createdAt).RunWith(runner).QueryRowContext(ctx).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, eris.Wrap(err, "sqlite: insert response")
	}

	key := model.WorkKey{QueryID: resp.QueryID, Provider: resp.Provider}
	if err := s.st.existingOKResponse(key, resp.RunID).RunWith(runner).QueryRowContext(ctx).Scan(&id); err != nil {
		return 0, false, eris.Wrap(err, "sqlite: find existing response")
	}
	return id, false, nil
}

func (s *SQLiteStore) ListResponses(ctx context.Context, runID int64) ([]model.Response, error) {
	rows, err := s.st.listResponses(runID).RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list responses for run %d", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Response
	for rows.Next() {
		var r model.Response
		var provider, status, md string
		if err := rows.Scan(&r.ID, &r.RunID, &r.QueryID, &provider, &r.ModelName, &r.Text, &status, &md, &r.AttemptID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan response")
		}
		r.Provider = model.Provider(provider)
		r.Status = model.ResponseStatus(status)
		if r.Metadata, err = decodeMetadata(md); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list responses iterate")
}

func (s *SQLiteStore) ResponseFacts(ctx context.Context, runID int64) ([]model.ResponseFacts, error) {
	idx := newFactIndex()
	steps := []struct {
		name string
		q    sq.SelectBuilder
		add  func(scannable) error
	}{
		{"responses", s.st.okResponses(runID), idx.addResponse},
		{"mentions", s.st.runMentions(runID), idx.addMention},
		{"citations", s.st.runCitations(runID), idx.addCitation},
	}
	for _, step := range steps {
		if err := s.each(ctx, step.q, step.add); err != nil {
			return nil, eris.Wrapf(err, "sqlite: load %s for run %d", step.name, runID)
		}
	}
	return idx.facts(), nil
}

func (s *SQLiteStore) each(ctx context.Context, q sq.SelectBuilder, fn func(scannable) error) error {
	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// --- Metrics ---

// ReplaceDailyMetrics swaps the run's metric rows in one transaction.
func (s *SQLiteStore) ReplaceDailyMetrics(ctx context.Context, runID int64, rows []model.DailyMetric) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin metrics")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := s.st.deleteMetrics(runID).RunWith(tx).ExecContext(ctx); err != nil {
		return eris.Wrapf(err, "sqlite: delete metrics for run %d", runID)
	}
	for start := 0; start < len(rows); start += metricBatch {
		end := min(start+metricBatch, len(rows))
		if _, err := s.st.insertMetrics(rows[start:end]).RunWith(tx).ExecContext(ctx); err != nil {
			return eris.Wrapf(err, "sqlite: insert metrics for run %d", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit metrics")
}

// metricBatch keeps each multi-row insert under SQLite's bound-variable limit.
const metricBatch = 500

func (s *SQLiteStore) DailyMetrics(ctx context.Context, filter MetricFilter) ([]model.DailyMetric, error) {
	var out []model.DailyMetric
	err := s.each(ctx, s.st.dailyMetrics(filter), func(row scannable) error {
		m, err := scanMetric(row)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, eris.Wrap(err, "sqlite: daily metrics")
}

func (s *SQLiteStore) CitationDomains(ctx context.Context, runID int64, provider model.Provider, limit int) ([]model.DomainCount, error) {
	var out []model.DomainCount
	err := s.each(ctx, s.st.citationDomains(runID, provider, limit), func(row scannable) error {
		var d model.DomainCount
		if err := row.Scan(&d.Domain, &d.Brand, &d.Count); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, eris.Wrap(err, "sqlite: citation domains")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}

func scanSQLiteRun(row scannable) (*model.Run, error) {
	var r model.Run
	var trigger, status string
	var updatedAt, completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.RunDate, &trigger, &status, &r.TotalItems, &r.CompletedItems,
		&r.StartedAt, &updatedAt, &completedAt, &r.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.TriggerType = model.TriggerType(trigger)
	r.Status = model.RunStatus(status)
	r.LastProgressAt = r.StartedAt
	if updatedAt.Valid {
		r.LastProgressAt = updatedAt.Time
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
