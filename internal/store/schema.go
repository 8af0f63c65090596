package store

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS queries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	query_text  TEXT NOT NULL UNIQUE,
	category    TEXT NOT NULL,
	subcategory TEXT,
	is_active   BOOLEAN NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS benchmark_runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_date        TEXT NOT NULL,
	trigger_type    TEXT NOT NULL DEFAULT 'manual',
	status          TEXT NOT NULL DEFAULT 'running',
	total_items     INTEGER NOT NULL DEFAULT 0,
	completed_items INTEGER NOT NULL DEFAULT 0,
	started_at      DATETIME NOT NULL,
	updated_at      DATETIME,
	completed_at    DATETIME,
	error_message   TEXT
);

CREATE TABLE IF NOT EXISTS responses (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       INTEGER NOT NULL REFERENCES benchmark_runs(id),
	query_id     INTEGER NOT NULL REFERENCES queries(id),
	provider     TEXT NOT NULL,
	model_name   TEXT NOT NULL DEFAULT '',
	raw_response TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'ok',
	metadata     TEXT NOT NULL DEFAULT '{}',
	attempt_id   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_responses_ok
	ON responses(run_id, query_id, provider) WHERE status = 'ok';
CREATE INDEX IF NOT EXISTS idx_responses_run ON responses(run_id);

CREATE TABLE IF NOT EXISTS mentions (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	response_id               INTEGER NOT NULL REFERENCES responses(id),
	run_id                    INTEGER NOT NULL,
	query_id                  INTEGER NOT NULL,
	provider                  TEXT NOT NULL,
	brand                     TEXT NOT NULL,
	position                  INTEGER NOT NULL,
	context                   TEXT NOT NULL DEFAULT '',
	sentiment                 TEXT NOT NULL,
	sentiment_score           REAL,
	is_primary_recommendation BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_mentions_run ON mentions(run_id);
CREATE INDEX IF NOT EXISTS idx_mentions_response ON mentions(response_id);

CREATE TABLE IF NOT EXISTS citations (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	response_id         INTEGER NOT NULL REFERENCES responses(id),
	run_id              INTEGER NOT NULL,
	query_id            INTEGER NOT NULL,
	provider            TEXT NOT NULL,
	url                 TEXT NOT NULL,
	title               TEXT,
	domain              TEXT NOT NULL DEFAULT '',
	brand_association   TEXT NOT NULL DEFAULT 'other',
	is_primary_domain   BOOLEAN NOT NULL DEFAULT 0,
	is_secondary_domain BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_citations_run ON citations(run_id);
CREATE INDEX IF NOT EXISTS idx_citations_response ON citations(response_id);

CREATE TABLE IF NOT EXISTS daily_metrics (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_date                  TEXT NOT NULL,
	run_id                    INTEGER NOT NULL REFERENCES benchmark_runs(id),
	query_id                  INTEGER NOT NULL,
	query_category            TEXT NOT NULL DEFAULT '',
	provider                  TEXT NOT NULL,
	brand                     TEXT NOT NULL,
	is_mentioned              BOOLEAN NOT NULL DEFAULT 0,
	mention_count             INTEGER NOT NULL DEFAULT 0,
	first_mention_position    INTEGER,
	is_primary_recommendation BOOLEAN NOT NULL DEFAULT 0,
	avg_sentiment_score       REAL,
	dominant_sentiment        TEXT,
	citation_count            INTEGER NOT NULL DEFAULT 0,
	primary_citation_count    INTEGER NOT NULL DEFAULT 0,
	secondary_citation_count  INTEGER NOT NULL DEFAULT 0,
	is_winner                 BOOLEAN NOT NULL DEFAULT 0,
	UNIQUE (run_id, query_id, provider, brand)
);

CREATE INDEX IF NOT EXISTS idx_daily_metrics_date ON daily_metrics(run_date, provider);
`

const postgresMigration = `
CREATE TABLE IF NOT EXISTS queries (
	id          BIGSERIAL PRIMARY KEY,
	query_text  TEXT NOT NULL UNIQUE,
	category    TEXT NOT NULL,
	subcategory TEXT,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS benchmark_runs (
	id              BIGSERIAL PRIMARY KEY,
	run_date        TEXT NOT NULL,
	trigger_type    TEXT NOT NULL DEFAULT 'manual',
	status          TEXT NOT NULL DEFAULT 'running',
	total_items     INTEGER NOT NULL DEFAULT 0,
	completed_items INTEGER NOT NULL DEFAULT 0,
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ,
	error_message   TEXT
);

ALTER TABLE benchmark_runs ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS idx_benchmark_runs_status ON benchmark_runs(status);

CREATE TABLE IF NOT EXISTS responses (
	id           BIGSERIAL PRIMARY KEY,
	run_id       BIGINT NOT NULL REFERENCES benchmark_runs(id),
	query_id     BIGINT NOT NULL REFERENCES queries(id),
	provider     TEXT NOT NULL,
	model_name   TEXT NOT NULL DEFAULT '',
	raw_response TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'ok',
	metadata     JSONB NOT NULL DEFAULT '{}'::jsonb,
	attempt_id   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_responses_ok
	ON responses(run_id, query_id, provider) WHERE status = 'ok';
CREATE INDEX IF NOT EXISTS idx_responses_run ON responses(run_id);

CREATE TABLE IF NOT EXISTS mentions (
	id                        BIGSERIAL PRIMARY KEY,
	response_id               BIGINT NOT NULL REFERENCES responses(id),
	run_id                    BIGINT NOT NULL,
	query_id                  BIGINT NOT NULL,
	provider                  TEXT NOT NULL,
	brand                     TEXT NOT NULL,
	position                  INTEGER NOT NULL,
	context                   TEXT NOT NULL DEFAULT '',
	sentiment                 TEXT NOT NULL,
	sentiment_score           DOUBLE PRECISION,
	is_primary_recommendation BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_mentions_run ON mentions(run_id);
CREATE INDEX IF NOT EXISTS idx_mentions_response ON mentions(response_id);

CREATE TABLE IF NOT EXISTS citations (
	id                  BIGSERIAL PRIMARY KEY,
	response_id         BIGINT NOT NULL REFERENCES responses(id),
	run_id              BIGINT NOT NULL,
	query_id            BIGINT NOT NULL,
	provider            TEXT NOT NULL,
	url                 TEXT NOT NULL,
	title               TEXT,
	domain              TEXT NOT NULL DEFAULT '',
	brand_association   TEXT NOT NULL DEFAULT 'other',
	is_primary_domain   BOOLEAN NOT NULL DEFAULT FALSE,
	is_secondary_domain BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_citations_run ON citations(run_id);
CREATE INDEX IF NOT EXISTS idx_citations_response ON citations(response_id);

CREATE TABLE IF NOT EXISTS daily_metrics (
	id                        BIGSERIAL PRIMARY KEY,
	run_date                  TEXT NOT NULL,
	run_id                    BIGINT NOT NULL REFERENCES benchmark_runs(id),
	query_id                  BIGINT NOT NULL,
	query_category            TEXT NOT NULL DEFAULT '',
	provider                  TEXT NOT NULL,
	brand                     TEXT NOT NULL,
	is_mentioned              BOOLEAN NOT NULL DEFAULT FALSE,
	mention_count             INTEGER NOT NULL DEFAULT 0,
	first_mention_position    INTEGER,
	is_primary_recommendation BOOLEAN NOT NULL DEFAULT FALSE,
	avg_sentiment_score       DOUBLE PRECISION,
	dominant_sentiment        TEXT,
	citation_count            INTEGER NOT NULL DEFAULT 0,
	primary_citation_count    INTEGER NOT NULL DEFAULT 0,
	secondary_citation_count  INTEGER NOT NULL DEFAULT 0,
	is_winner                 BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (run_id, query_id, provider, brand)
);

CREATE INDEX IF NOT EXISTS idx_daily_metrics_date ON daily_metrics(run_date, provider);
`
