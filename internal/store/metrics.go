package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eiim/monitor/pkg/models"
)

// UpsertMetric writes one indicator value for its reporting period. A second
// collection within the same period updates value and recorded_at in place.
func (p *PgStore) UpsertMetric(ctx context.Context, m *models.EcosystemMetric) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}

	stmt := `
INSERT INTO ecosystem_metrics (id, metric_name, value, unit, period_start, period_end, geography, data_source, recorded_at)
VALUES ($1,$2,$3::jsonb,$4,$5,$6,$7,$8,$9)
ON CONFLICT (metric_name, period_start, period_end) DO UPDATE SET
 value=EXCLUDED.value,
 recorded_at=EXCLUDED.recorded_at
`
	_, err := p.db.ExecContext(ctx, stmt,
		m.ID, m.MetricName, m.Value, m.Unit,
		m.PeriodStart, m.PeriodEnd, m.Geography, m.DataSource, m.RecordedAt)
	if err != nil {
		return fmt.Errorf("upsert metric %s: %w", m.MetricName, err)
	}
	return nil
}

// LatestMetrics returns the most recent row per indicator.
func (p *PgStore) LatestMetrics(ctx context.Context) ([]*models.EcosystemMetric, error) {
	rows := []*models.EcosystemMetric{}
	query := `
SELECT DISTINCT ON (metric_name) id, metric_name, value, unit, period_start, period_end, geography, data_source, recorded_at
FROM ecosystem_metrics
ORDER BY metric_name, period_start DESC, recorded_at DESC
`
	err := p.db.SelectContext(ctx, &rows, query)
	return rows, err
}

// MetricHistory returns all periods recorded for one indicator, oldest first.
func (p *PgStore) MetricHistory(ctx context.Context, name string, limit int) ([]*models.EcosystemMetric, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows := []*models.EcosystemMetric{}
	query := `
SELECT id, metric_name, value, unit, period_start, period_end, geography, data_source, recorded_at
FROM ecosystem_metrics
WHERE metric_name = $1
ORDER BY period_start ASC
LIMIT $2
`
	err := p.db.SelectContext(ctx, &rows, query, name, limit)
	return rows, err
}
