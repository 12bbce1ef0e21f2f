package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/eiim/monitor/internal/db"
	"github.com/eiim/monitor/pkg/models"
)

const briefColumns = "id, brief_date, content, article_count, top_categories, ai_model_used, generated_at"

// BriefByDate returns the brief for a calendar date, or nil when none exists.
func (p *PgStore) BriefByDate(ctx context.Context, date time.Time) (*models.DailyBrief, error) {
	var b models.DailyBrief
	query := "SELECT " + briefColumns + " FROM daily_briefs WHERE brief_date = $1"
	err := p.db.GetContext(ctx, &b, query, date.Format("2006-01-02"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brief by date: %w", err)
	}
	return &b, nil
}

// SaveBrief stores a brief for its date. Without force an existing row wins
// and the write is dropped; with force the row is superseded in place, so
// concurrent forced generations resolve to last writer wins.
func (p *PgStore) SaveBrief(ctx context.Context, b *models.DailyBrief, force bool) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.GeneratedAt.IsZero() {
		b.GeneratedAt = time.Now().UTC()
	}
	if b.TopCategories == nil {
		b.TopCategories = dbtypes.StringSlice{}
	}

	conflict := "DO NOTHING"
	if force {
		conflict = `DO UPDATE SET
 content=EXCLUDED.content,
 article_count=EXCLUDED.article_count,
 top_categories=EXCLUDED.top_categories,
 ai_model_used=EXCLUDED.ai_model_used,
 generated_at=EXCLUDED.generated_at`
	}

	stmt := `
INSERT INTO daily_briefs (id, brief_date, content, article_count, top_categories, ai_model_used, generated_at)
VALUES ($1,$2,$3,$4,$5::jsonb,$6,$7)
ON CONFLICT (brief_date) ` + conflict

	_, err := p.db.ExecContext(ctx, stmt,
		b.ID, b.BriefDate.Format("2006-01-02"), b.Content, b.ArticleCount,
		b.TopCategories, b.AIModelUsed, b.GeneratedAt)
	if err != nil {
		return fmt.Errorf("save brief %s: %w", b.BriefDate.Format("2006-01-02"), err)
	}
	return nil
}

// Briefs lists stored briefs, newest date first.
func (p *PgStore) Briefs(ctx context.Context, limit int) ([]*models.DailyBrief, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	rows := []*models.DailyBrief{}
	query := "SELECT " + briefColumns + " FROM daily_briefs ORDER BY brief_date DESC LIMIT $1"
	err := p.db.SelectContext(ctx, &rows, query, limit)
	return rows, err
}

// LatestBrief returns the most recent brief, or nil when none exist.
func (p *PgStore) LatestBrief(ctx context.Context) (*models.DailyBrief, error) {
	var b models.DailyBrief
	query := "SELECT " + briefColumns + " FROM daily_briefs ORDER BY brief_date DESC LIMIT 1"
	err := p.db.GetContext(ctx, &b, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
