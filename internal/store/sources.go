package store

import (
	"context"
	"fmt"

	"github.com/eiim/monitor/pkg/models"
)

// ActiveFeedSources returns the active feed-type sources in id order.
func (p *PgStore) ActiveFeedSources(ctx context.Context) ([]models.DataSource, error) {
	rows := []models.DataSource{}
	query := `
SELECT id, name, url, source_type, is_active, last_scraped, error_count
FROM data_sources
WHERE is_active = TRUE AND source_type = 'rss'
ORDER BY id
`
	err := p.db.SelectContext(ctx, &rows, query)
	return rows, err
}

// SeedSources inserts the configured feed registry rows, skipping any URL
// already present. The registry is otherwise managed outside this service.
func (p *PgStore) SeedSources(ctx context.Context, sources []models.DataSource) error {
	for _, s := range sources {
		_, err := p.db.ExecContext(ctx, `
INSERT INTO data_sources (name, url, source_type, is_active)
VALUES ($1,$2,$3,TRUE)
ON CONFLICT (url) DO NOTHING
`, s.Name, s.URL, s.SourceType)
		if err != nil {
			return fmt.Errorf("seed source %s: %w", s.Name, err)
		}
	}
	return nil
}

// MarkSourceScraped records a successful poll and clears the error streak.
func (p *PgStore) MarkSourceScraped(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx,
		"UPDATE data_sources SET last_scraped = NOW(), error_count = 0 WHERE id = $1", id)
	return err
}

// BumpSourceError increments the consecutive failure count for a source.
func (p *PgStore) BumpSourceError(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx,
		"UPDATE data_sources SET error_count = error_count + 1 WHERE id = $1", id)
	return err
}
