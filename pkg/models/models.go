package models

import (
	"time"

	"github.com/shopspring/decimal"

	dbtypes "github.com/eiim/monitor/internal/db"
)

// Article is a normalized news item collected from an RSS source.
// Rows are immutable after insert except for the summary, which the
// re-summarization endpoint may replace.
type Article struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Content       string    `db:"content" json:"content"`
	Summary       string    `db:"summary" json:"summary"`
	Source        string    `db:"source" json:"source"`
	URL           string    `db:"url" json:"url"`
	PublishedDate time.Time `db:"published_date" json:"published_date"`
	Category      string    `db:"category" json:"category"`
	PriorityScore int       `db:"priority_score" json:"priority_score"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CarbonPrice is one observed or simulated price point for a carbon market.
type CarbonPrice struct {
	ID         string          `db:"id" json:"id"`
	Market     string          `db:"market" json:"market"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Volume     int64           `db:"volume" json:"volume"`
	Currency   string          `db:"currency" json:"currency"`
	Timestamp  time.Time       `db:"timestamp" json:"timestamp"`
	DataSource string          `db:"data_source" json:"data_source"`
}

// EcosystemMetric is one indicator value attributed to a reporting period.
// (metric_name, period_start, period_end) is unique; re-collection within
// the same period updates the row in place.
type EcosystemMetric struct {
	ID          string              `db:"id" json:"id"`
	MetricName  string              `db:"metric_name" json:"metric_name"`
	Value       dbtypes.MetricValue `db:"value" json:"value"`
	Unit        string              `db:"unit" json:"unit"`
	PeriodStart time.Time           `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time           `db:"period_end" json:"period_end"`
	Geography   string              `db:"geography" json:"geography"`
	DataSource  string              `db:"data_source" json:"data_source"`
	RecordedAt  time.Time           `db:"recorded_at" json:"recorded_at"`
}

// DailyBrief is the aggregate narrative generated once per calendar date.
type DailyBrief struct {
	ID            string              `db:"id" json:"id"`
	BriefDate     time.Time           `db:"brief_date" json:"brief_date"`
	Content       string              `db:"content" json:"content"`
	ArticleCount  int                 `db:"article_count" json:"article_count"`
	TopCategories dbtypes.StringSlice `db:"top_categories" json:"top_categories"`
	AIModelUsed   string              `db:"ai_model_used" json:"ai_model_used"`
	GeneratedAt   time.Time           `db:"generated_at" json:"generated_at"`
}

// DataSource is a registered feed endpoint. ErrorCount tracks consecutive
// failures; a successful poll resets it to zero.
type DataSource struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	URL         string     `db:"url" json:"url"`
	SourceType  string     `db:"source_type" json:"source_type"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	LastScraped *time.Time `db:"last_scraped" json:"last_scraped,omitempty"`
	ErrorCount  int        `db:"error_count" json:"error_count"`
}
