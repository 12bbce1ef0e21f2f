package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eiim/monitor/pkg/models"
)

const articleColumns = "id, title, content, summary, source, url, published_date, category, priority_score, created_at"

// ArticleExists reports whether an article with the given URL is already stored.
func (p *PgStore) ArticleExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := p.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM news_articles WHERE url = $1)", url)
	if err != nil {
		return false, fmt.Errorf("article exists: %w", err)
	}
	return exists, nil
}

// InsertArticle stores a new article. It returns false when the URL already
// exists; a duplicate-key race is folded into that outcome.
func (p *PgStore) InsertArticle(ctx context.Context, a *models.Article) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.PublishedDate.IsZero() {
		a.PublishedDate = a.CreatedAt
	}

	stmt := `
INSERT INTO news_articles (id, title, content, summary, source, url, published_date, category, priority_score, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (url) DO NOTHING
`
	res, err := p.db.ExecContext(ctx, stmt,
		a.ID, a.Title, a.Content, a.Summary, a.Source, a.URL,
		a.PublishedDate, a.Category, a.PriorityScore, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert article url=%s: %w", a.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ArticleByID fetches a single article.
func (p *PgStore) ArticleByID(ctx context.Context, id string) (*models.Article, error) {
	var a models.Article
	query := "SELECT " + articleColumns + " FROM news_articles WHERE id = $1"
	if err := p.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, fmt.Errorf("article by id: %w", err)
	}
	return &a, nil
}

// Articles lists stored articles, newest and highest-priority first,
// optionally filtered by category.
func (p *PgStore) Articles(ctx context.Context, category string, limit int) ([]*models.Article, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows := []*models.Article{}
	if category != "" {
		query := `
SELECT ` + articleColumns + `
FROM news_articles
WHERE category = $1
ORDER BY priority_score DESC, published_date DESC
LIMIT $2
`
		err := p.db.SelectContext(ctx, &rows, query, category, limit)
		return rows, err
	}
	query := `
SELECT ` + articleColumns + `
FROM news_articles
ORDER BY priority_score DESC, published_date DESC
LIMIT $1
`
	err := p.db.SelectContext(ctx, &rows, query, limit)
	return rows, err
}

// SearchArticles matches the query against title, content and summary and
// applies the optional filters, highest-priority first.
func (p *PgStore) SearchArticles(ctx context.Context, q, category, source string, minPriority, limit int) ([]*models.Article, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	where := "(title ILIKE $1 OR content ILIKE $1 OR summary ILIKE $1)"
	args := []any{"%" + q + "%"}
	if category != "" {
		args = append(args, category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if source != "" {
		args = append(args, "%"+source+"%")
		where += fmt.Sprintf(" AND source ILIKE $%d", len(args))
	}
	if minPriority > 0 {
		args = append(args, minPriority)
		where += fmt.Sprintf(" AND priority_score >= $%d", len(args))
	}
	args = append(args, limit)

	rows := []*models.Article{}
	query := fmt.Sprintf(`
SELECT %s
FROM news_articles
WHERE %s
ORDER BY priority_score DESC, published_date DESC
LIMIT $%d
`, articleColumns, where, len(args))
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return rows, nil
}

// SummarizedArticlesAround returns articles published within 24 hours either
// side of day that carry a summary, priority-ordered. These are the inputs
// to daily brief assembly.
func (p *PgStore) SummarizedArticlesAround(ctx context.Context, day time.Time, limit int) ([]*models.Article, error) {
	if limit <= 0 {
		limit = 20
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	rows := []*models.Article{}
	query := `
SELECT ` + articleColumns + `
FROM news_articles
WHERE published_date >= $1 AND published_date < $2
  AND summary IS NOT NULL AND summary <> ''
ORDER BY priority_score DESC, published_date DESC
LIMIT $3
`
	err := p.db.SelectContext(ctx, &rows, query,
		dayStart.Add(-24*time.Hour), dayStart.Add(24*time.Hour), limit)
	return rows, err
}

// UpdateArticleSummary replaces the stored summary for one article.
func (p *PgStore) UpdateArticleSummary(ctx context.Context, id, summary string) error {
	_, err := p.db.ExecContext(ctx,
		"UPDATE news_articles SET summary = $1 WHERE id = $2", summary, id)
	return err
}
