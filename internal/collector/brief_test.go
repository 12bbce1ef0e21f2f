package collector

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eiim/monitor/internal/llm"
	"github.com/eiim/monitor/pkg/models"
)

type fakeBriefStore struct {
	briefs   map[string]*models.DailyBrief
	articles []*models.Article
	saves    int
}

func newFakeBriefStore(articles ...*models.Article) *fakeBriefStore {
	return &fakeBriefStore{briefs: make(map[string]*models.DailyBrief), articles: articles}
}

func (f *fakeBriefStore) BriefByDate(_ context.Context, date time.Time) (*models.DailyBrief, error) {
	return f.briefs[date.Format("2006-01-02")], nil
}

func (f *fakeBriefStore) SummarizedArticlesAround(context.Context, time.Time, int) ([]*models.Article, error) {
	return f.articles, nil
}

func (f *fakeBriefStore) SaveBrief(_ context.Context, b *models.DailyBrief, force bool) error {
	f.saves++
	key := b.BriefDate.Format("2006-01-02")
	if _, exists := f.briefs[key]; exists && !force {
		return nil
	}
	f.briefs[key] = b
	return nil
}

type fakeBriefGenerator struct {
	enabled bool
	calls   int
	content string
}

func (f *fakeBriefGenerator) Enabled() bool { return f.enabled }

func (f *fakeBriefGenerator) GenerateDailyBrief(_ context.Context, articles []*models.Article) (*llm.Brief, error) {
	f.calls++
	return &llm.Brief{
		Content:       f.content,
		ArticleCount:  len(articles),
		TopCategories: []string{"carbon-markets"},
		Model:         "test/model",
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

func sampleArticles() []*models.Article {
	return []*models.Article{
		{Title: "Carbon hits record", Source: "Carbon Pulse", Category: "carbon-markets", Summary: "Allowances climbed."},
		{Title: "Fund launch", Source: "Reuters", Category: "venture-capital", Summary: "New climate fund."},
	}
}

func TestBriefGenerate(t *testing.T) {
	t.Parallel()

	store := newFakeBriefStore(sampleArticles()...)
	gen := &fakeBriefGenerator{enabled: true, content: "Generated brief."}
	b := NewBriefAssembler(store, gen, zerolog.Nop())

	date := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)
	brief, err := b.Generate(context.Background(), date, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if brief == nil {
		t.Fatal("expected a brief")
	}
	if brief.Content != "Generated brief." {
		t.Fatalf("unexpected content: %q", brief.Content)
	}
	if brief.ArticleCount != 2 {
		t.Fatalf("expected 2 articles, got %d", brief.ArticleCount)
	}
	if !brief.BriefDate.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("brief date not truncated to the calendar day: %v", brief.BriefDate)
	}
	if brief.AIModelUsed != "test/model" {
		t.Fatalf("unexpected model: %q", brief.AIModelUsed)
	}
}

func TestBriefGenerateExistingReturnedUnchanged(t *testing.T) {
	t.Parallel()

	store := newFakeBriefStore(sampleArticles()...)
	gen := &fakeBriefGenerator{enabled: true, content: "fresh"}
	b := NewBriefAssembler(store, gen, zerolog.Nop())

	existing := &models.DailyBrief{
		BriefDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Content:   "yesterday's words",
	}
	store.briefs["2026-03-02"] = existing

	brief, err := b.Generate(context.Background(), existing.BriefDate, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if brief != existing {
		t.Fatal("expected the stored brief back untouched")
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not run when a brief exists, ran %d times", gen.calls)
	}
	if store.saves != 0 {
		t.Fatalf("no save expected, got %d", store.saves)
	}
}

func TestBriefGenerateForceSupersedes(t *testing.T) {
	t.Parallel()

	store := newFakeBriefStore(sampleArticles()...)
	gen := &fakeBriefGenerator{enabled: true, content: "regenerated"}
	b := NewBriefAssembler(store, gen, zerolog.Nop())

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store.briefs["2026-03-02"] = &models.DailyBrief{BriefDate: date, Content: "stale"}

	brief, err := b.Generate(context.Background(), date, true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if brief.Content != "regenerated" {
		t.Fatalf("force should regenerate, got %q", brief.Content)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generator call, got %d", gen.calls)
	}
	if store.briefs["2026-03-02"].Content != "regenerated" {
		t.Fatal("stored brief not superseded")
	}
}

func TestBriefGenerateNoArticles(t *testing.T) {
	t.Parallel()

	store := newFakeBriefStore()
	b := NewBriefAssembler(store, &fakeBriefGenerator{enabled: true}, zerolog.Nop())

	brief, err := b.Generate(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), false)
	if err != nil {
		t.Fatalf("zero articles is not an error: %v", err)
	}
	if brief != nil {
		t.Fatalf("expected no brief, got %+v", brief)
	}
	if store.saves != 0 {
		t.Fatal("nothing should be saved")
	}
}

func TestBriefGenerateFallbackWhenGeneratorDisabled(t *testing.T) {
	t.Parallel()

	store := newFakeBriefStore(sampleArticles()...)
	gen := &fakeBriefGenerator{enabled: false}
	b := NewBriefAssembler(store, gen, zerolog.Nop())

	brief, err := b.Generate(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("disabled generator must not be called")
	}
	if brief.AIModelUsed != "fallback" {
		t.Fatalf("expected fallback model marker, got %q", brief.AIModelUsed)
	}
	if !strings.Contains(brief.Content, "Daily Environmental Impact Investing Brief") {
		t.Fatalf("fallback template missing from content: %q", brief.Content)
	}
}

func TestBriefGenerateZeroDateUsesToday(t *testing.T) {
	t.Parallel()

	store := newFakeBriefStore(sampleArticles()...)
	b := NewBriefAssembler(store, &fakeBriefGenerator{enabled: false}, zerolog.Nop())
	fixed := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	brief, err := b.Generate(context.Background(), time.Time{}, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !brief.BriefDate.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected today's date, got %v", brief.BriefDate)
	}
}
