package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PgStore is the persistence gateway. It owns all durable state; every
// collector reads and writes through it.
type PgStore struct {
	db *sqlx.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: sqlx.NewDb(db, "postgres")}
}

// RunMigrations ensures the monitor tables and their uniqueness constraints
// exist. The dedup invariants (article url, brief date, metric period) are
// enforced here, not in application code.
func RunMigrations(db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS news_articles(
  id UUID PRIMARY KEY,
  title TEXT NOT NULL,
  content TEXT,
  summary TEXT,
  source TEXT,
  url TEXT NOT NULL UNIQUE,
  published_date TIMESTAMPTZ,
  category TEXT,
  priority_score INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_articles_published ON news_articles(published_date);
CREATE INDEX IF NOT EXISTS idx_articles_category ON news_articles(category);
CREATE INDEX IF NOT EXISTS idx_articles_priority ON news_articles(priority_score);

CREATE TABLE IF NOT EXISTS carbon_prices(
  id UUID PRIMARY KEY,
  market TEXT NOT NULL,
  price NUMERIC(12,2) NOT NULL,
  volume BIGINT NOT NULL DEFAULT 0,
  currency TEXT,
  timestamp TIMESTAMPTZ NOT NULL,
  data_source TEXT
);

CREATE INDEX IF NOT EXISTS idx_prices_market_ts ON carbon_prices(market, timestamp);

CREATE TABLE IF NOT EXISTS ecosystem_metrics(
  id UUID PRIMARY KEY,
  metric_name TEXT NOT NULL,
  value JSONB,
  unit TEXT,
  period_start TIMESTAMPTZ NOT NULL,
  period_end TIMESTAMPTZ NOT NULL,
  geography TEXT,
  data_source TEXT,
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE(metric_name, period_start, period_end)
);

CREATE TABLE IF NOT EXISTS daily_briefs(
  id UUID PRIMARY KEY,
  brief_date DATE NOT NULL UNIQUE,
  content TEXT,
  article_count INT NOT NULL DEFAULT 0,
  top_categories JSONB,
  ai_model_used TEXT,
  generated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS data_sources(
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  url TEXT NOT NULL UNIQUE,
  source_type TEXT NOT NULL DEFAULT 'rss',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  last_scraped TIMESTAMPTZ,
  error_count INT NOT NULL DEFAULT 0
);
`
	_, err := db.Exec(initSQL)
	return err
}

// isUniqueViolation reports whether err is a Postgres duplicate-key error.
// Constraint violations on insert are an expected outcome of racing
// collectors, not a failure.
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
