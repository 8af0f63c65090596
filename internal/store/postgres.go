package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-benchmark/internal/db"
	"github.com/sells-group/geo-benchmark/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	st      statements
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn, st: newStatements(sq.Dollar)}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// sqlizer is satisfied by every squirrel builder.
type sqlizer interface {
	ToSql() (string, []any, error)
}

func (s *PostgresStore) exec(ctx context.Context, q db.Querier, b sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build statement")
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) queryRow(ctx context.Context, q db.Querier, b sqlizer, dest ...any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build statement")
	}
	return q.QueryRow(ctx, query, args...).Scan(dest...)
}

func (s *PostgresStore) each(ctx context.Context, b sqlizer, fn func(scannable) error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build statement")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// --- Queries ---

func (s *PostgresStore) SeedQueries(ctx context.Context, seeds []model.QuerySeed) (int, error) {
	inserted := 0
	now := time.Now().UTC()
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, seed := range seeds {
			n, err := s.exec(ctx, tx, s.st.seedQuery(seed, now))
			if err != nil {
				return eris.Wrapf(err, "postgres: seed query %q", seed.Text)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *PostgresStore) ListQueries(ctx context.Context, activeOnly bool) ([]model.Query, error) {
	var out []model.Query
	err := s.each(ctx, s.st.listQueries(activeOnly), func(row scannable) error {
		var q model.Query
		if err := row.Scan(&q.ID, &q.Text, &q.Category, &q.Subcategory, &q.IsActive, &q.CreatedAt); err != nil {
			return err
		}
		out = append(out, q)
		return nil
	})
	return out, eris.Wrap(err, "postgres: list queries")
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run model.NewRun) (*model.Run, error) {
	now := time.Now().UTC()
	trigger := run.TriggerType
	if trigger == "" {
		trigger = model.TriggerManual
	}
	var id int64
	err := s.queryRow(ctx, s.pool, s.st.createRun(run, trigger, now), &id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) GetRun(ctx context.Context, runID int64) (*model.Run, error) {
	query, args, err := s.st.getRun(runID).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build statement")
	}
	r, err := scanPostgresRun(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %d", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var runs []model.Run
	err := s.each(ctx, s.st.listRuns(filter), func(row scannable) error {
		r, err := scanPostgresRun(row)
		if err != nil {
			return err
		}
		runs = append(runs, *r)
		return nil
	})
	return runs, eris.Wrap(err, "postgres: list runs")
}

func (s *PostgresStore) ReopenRun(ctx context.Context, runID int64, completed, total int) error {
	n, err := s.exec(ctx, s.pool, s.st.reopenRun(runID, completed, total, time.Now().UTC()))
	if err != nil {
		return eris.Wrapf(err, "postgres: reopen run %d", runID)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %d", runID)
	}
	return nil
}

func (s *PostgresStore) IncrementCompleted(ctx context.Context, runID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, s.pool, s.st.incrementCompleted(runID, time.Now().UTC()), &n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(ErrNotFound, "postgres: run %d", runID)
	}
	return n, eris.Wrapf(err, "postgres: increment run %d", runID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID int64) error {
	return s.finishRun(ctx, runID, model.RunStatusCompleted, "")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID int64, message string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, message)
}

func (s *PostgresStore) finishRun(ctx context.Context, runID int64, status model.RunStatus, message string) error {
	n, err := s.exec(ctx, s.pool, s.st.finishRun(runID, status, message, time.Now().UTC()))
	if err != nil {
		return eris.Wrapf(err, "postgres: mark run %d %s", runID, status)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %d", runID)
	}
	return nil
}

func (s *PostgresStore) LatestCompletedRunID(ctx context.Context) (int64, error) {
	var id int64
	err := s.queryRow(ctx, s.pool, s.st.latestCompletedRun(), &id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return id, eris.Wrap(err, "postgres: latest completed run")
}

// --- Responses ---

func (s *PostgresStore) CompletedWork(ctx context.Context, runID int64) (map[model.WorkKey]bool, error) {
	done := make(map[model.WorkKey]bool)
	err := s.each(ctx, s.st.completedWork(runID), func(row scannable) error {
		var k model.WorkKey
		var provider string
		if err := row.Scan(&k.QueryID, &provider); err != nil {
			return err
		}
		k.Provider = model.Provider(provider)
		done[k] = true
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: completed work for run %d", runID)
	}
	return done, nil
}

// SaveWorkItem writes the response with its mentions and citations in one
// transaction. A repeated ok write for the same work item keeps the first
// row and returns its id.
func (s *PostgresStore) SaveWorkItem(ctx context.Context, item model.WorkItemResult) (int64, error) {
	resp := item.Response
	resp.Status = model.ResponseOK

	var id int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var inserted bool
		var err error
		id, inserted, err = s.insertResponse(ctx, tx, resp)
		if err != nil || !inserted {
			return err
		}
		resp.ID = id
		if len(item.Mentions) > 0 {
			if _, err := s.exec(ctx, tx, s.st.insertMentions(resp, item.Mentions)); err != nil {
				return eris.Wrap(err, "postgres: insert mentions")
			}
		}
		if len(item.Citations) > 0 {
			if _, err := s.exec(ctx, tx, s.st.insertCitations(resp, item.Citations)); err != nil {
				return eris.Wrap(err, "postgres: insert citations")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) SaveErrorResponse(ctx context.Context, resp model.Response) (int64, error) {
	resp.Status = model.ResponseError
	resp.Text = ""
	id, _, err := s.insertResponse(ctx, s.pool, resp)
	return id, err
}

func (s *PostgresStore) insertResponse(ctx context.Context, q db.Querier, resp model.Response) (int64, bool, error) {
	md, err := encodeMetadata(resp.Metadata)
	if err != nil {
		return 0, false, err
	}
	createdAt := resp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err = s.queryRow(ctx, q, s.st.insertResponse(resp, md, createdAt), &id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, eris.Wrap(err, "postgres: insert response")
	}

	key := model.WorkKey{QueryID: resp.QueryID, Provider: resp.Provider}
	if err := s.queryRow(ctx, q, s.st.existingOKResponse(key, resp.RunID), &id); err != nil {
		return 0, false, eris.Wrap(err, "postgres: find existing response")
	}
	return id, false, nil
}

func (s *PostgresStore) ListResponses(ctx context.Context, runID int64) ([]model.Response, error) {
	var out []model.Response
	err := s.each(ctx, s.st.listResponses(runID), func(row scannable) error {
		var r model.Response
		var provider, status string
		var md []byte
		if err := row.Scan(&r.ID, &r.RunID, &r.QueryID, &provider, &r.ModelName, &r.Text, &status, &md, &r.AttemptID, &r.CreatedAt); err != nil {
			return err
		}
		r.Provider = model.Provider(provider)
		r.Status = model.ResponseStatus(status)
		var err error
		if r.Metadata, err = decodeMetadata(string(md)); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, eris.Wrapf(err, "postgres: list responses for run %d", runID)
}

func (s *PostgresStore) ResponseFacts(ctx context.Context, runID int64) ([]model.ResponseFacts, error) {
	idx := newFactIndex()
	steps := []struct {
		name string
		q    sqlizer
		add  func(scannable) error
	}{
		{"responses", s.st.okResponses(runID), idx.addResponse},
		{"mentions", s.st.runMentions(runID), idx.addMention},
		{"citations", s.st.runCitations(runID), idx.addCitation},
	}
	for _, step := range steps {
		if err := s.each(ctx, step.q, step.add); err != nil {
			return nil, eris.Wrapf(err, "postgres: load %s for run %d", step.name, runID)
		}
	}
	return idx.facts(), nil
}

// --- Metrics ---

// ReplaceDailyMetrics deletes the run's rows and COPYs the new set in one
// transaction.
func (s *PostgresStore) ReplaceDailyMetrics(ctx context.Context, runID int64, rows []model.DailyMetric) error {
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = metricValues(r)
	}
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := s.exec(ctx, tx, s.st.deleteMetrics(runID)); err != nil {
			return eris.Wrapf(err, "postgres: delete metrics for run %d", runID)
		}
		if _, err := db.CopyFrom(ctx, tx, "daily_metrics", metricColumns, values); err != nil {
			return eris.Wrapf(err, "postgres: copy metrics for run %d", runID)
		}
		return nil
	})
}

func (s *PostgresStore) DailyMetrics(ctx context.Context, filter MetricFilter) ([]model.DailyMetric, error) {
	var out []model.DailyMetric
	err := s.each(ctx, s.st.dailyMetrics(filter), func(row scannable) error {
		m, err := scanMetric(row)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, eris.Wrap(err, "postgres: daily metrics")
}

func (s *PostgresStore) CitationDomains(ctx context.Context, runID int64, provider model.Provider, limit int) ([]model.DomainCount, error) {
	var out []model.DomainCount
	err := s.each(ctx, s.st.citationDomains(runID, provider, limit), func(row scannable) error {
		var d model.DomainCount
		if err := row.Scan(&d.Domain, &d.Brand, &d.Count); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, eris.Wrap(err, "postgres: citation domains")
}

func scanPostgresRun(row scannable) (*model.Run, error) {
	var r model.Run
	var trigger, status string
	var updatedAt *time.Time
	err := row.Scan(&r.ID, &r.RunDate, &trigger, &status, &r.TotalItems, &r.CompletedItems,
		&r.StartedAt, &updatedAt, &r.CompletedAt, &r.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.TriggerType = model.TriggerType(trigger)
	r.Status = model.RunStatus(status)
	r.LastProgressAt = r.StartedAt
	if updatedAt != nil {
		r.LastProgressAt = *updatedAt
	}
	return &r, nil
}
