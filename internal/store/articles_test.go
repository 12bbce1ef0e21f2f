package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var articleRowColumns = []string{
	"id", "title", "content", "summary", "source", "url",
	"published_date", "category", "priority_score", "created_at",
}

func TestSummarizedArticlesAroundWindowBounds(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	day := time.Date(2026, time.August, 17, 15, 42, 0, 0, time.UTC)
	dayStart := time.Date(2026, time.August, 17, 0, 0, 0, 0, time.UTC)

	// Brief inputs span one day either side of the brief date's midnight.
	mock.ExpectQuery(`FROM news_articles\s+WHERE published_date >= \$1 AND published_date < \$2\s+AND summary IS NOT NULL`).
		WithArgs(dayStart.Add(-24*time.Hour), dayStart.Add(24*time.Hour), 20).
		WillReturnRows(sqlmock.NewRows(articleRowColumns).
			AddRow("a1", "EU ETS rally", "body", "summary", "Carbon Pulse",
				"https://example.com/a1", dayStart, "carbon-markets", 80, dayStart))

	rows, err := s.SummarizedArticlesAround(context.Background(), day, 0)
	if err != nil {
		t.Fatalf("summarized articles: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "a1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestSearchArticlesFilterBinding(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM news_articles\s+WHERE \(title ILIKE \$1 OR content ILIKE \$1 OR summary ILIKE \$1\) AND category = \$2 AND source ILIKE \$3 AND priority_score >= \$4`).
		WithArgs("%carbon%", "policy", "%reuters%", 60, 20).
		WillReturnRows(sqlmock.NewRows(articleRowColumns))

	rows, err := s.SearchArticles(context.Background(), "carbon", "policy", "reuters", 60, 0)
	if err != nil {
		t.Fatalf("search articles: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}
