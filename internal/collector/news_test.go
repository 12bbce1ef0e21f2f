package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eiim/monitor/pkg/models"
)

func TestCategorize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title, content, want string
	}{
		{"Climate startup raises Series A", "", "venture-capital"},
		{"New funding round announced", "", "venture-capital"},
		{"EU carbon allowances climb", "", "carbon-markets"},
		{"Emissions trading update", "", "carbon-markets"},
		{"Green bond issuance grows", "", "public-markets"},
		{"New government policy on renewables", "", "policy-regulation"},
		{"Battery technology breakthrough", "", "technology"},
		{"Biodiversity credits launch", "", "biodiversity"},
		{"Quarterly outlook", "nothing matches here", "esg-sustainability"},
		{"", "", "esg-sustainability"},
	}
	for _, tc := range cases {
		if got := Categorize(tc.title, tc.content); got != tc.want {
			t.Errorf("Categorize(%q, %q) = %q, want %q", tc.title, tc.content, got, tc.want)
		}
	}
}

func TestCategorizeFirstRuleWins(t *testing.T) {
	t.Parallel()

	// "funding" (venture-capital) and "carbon" (carbon-markets) both match;
	// the earlier rule in the table decides.
	got := Categorize("Carbon capture startup funding", "")
	if got != "venture-capital" {
		t.Fatalf("expected venture-capital, got %q", got)
	}
}

func TestPriorityScore(t *testing.T) {
	t.Parallel()

	if got := PriorityScore("plain title", "plain body", "Unknown Blog"); got != 50 {
		t.Fatalf("expected base score 50, got %d", got)
	}

	// Base 50 + breakthrough 10 + funding 10.
	got := PriorityScore("Breakthrough funding announced", "", "Unknown Blog")
	if got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}

	// Reputable source adds a flat 20.
	got = PriorityScore("plain title", "", "Carbon Pulse")
	if got != 70 {
		t.Fatalf("expected 70 for reputable source, got %d", got)
	}
}

func TestPriorityScoreClamped(t *testing.T) {
	t.Parallel()

	title := "breakthrough record first largest major significant investment funding merger acquisition ipo regulation"
	got := PriorityScore(title, "", "Bloomberg Green")
	if got != 100 {
		t.Fatalf("expected clamp at 100, got %d", got)
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	got := CleanText(`<p>Carbon prices <b>rise</b> again.</p>`)
	if got != "Carbon prices rise again." {
		t.Fatalf("unexpected clean text: %q", got)
	}

	if CleanText("") != "" {
		t.Fatal("empty input should stay empty")
	}

	if got := CleanText("  plain text  "); got != "plain text" {
		t.Fatalf("expected trim, got %q", got)
	}
}

func TestExtractiveSummary(t *testing.T) {
	t.Parallel()

	content := "The first sentence is long enough to keep. Nope. " +
		"A second sentence that also clears the bar easily. " +
		"The third keeps going past thirty characters. " +
		"Fourth never shows up in the result text at all."
	got := extractiveSummary(content)
	if strings.Contains(got, "Fourth") {
		t.Fatalf("kept too many sentences: %q", got)
	}
	if strings.Contains(got, "Nope") {
		t.Fatalf("kept a short sentence: %q", got)
	}

	if extractiveSummary("") != "" {
		t.Fatal("empty content should give empty summary")
	}
}

type fakeNewsStore struct {
	mu       sync.Mutex
	sources  []models.DataSource
	articles map[string]*models.Article
	scraped  map[int64]int
	errored  map[int64]int
}

func newFakeNewsStore(sources ...models.DataSource) *fakeNewsStore {
	return &fakeNewsStore{
		sources:  sources,
		articles: make(map[string]*models.Article),
		scraped:  make(map[int64]int),
		errored:  make(map[int64]int),
	}
}

func (f *fakeNewsStore) ActiveFeedSources(context.Context) ([]models.DataSource, error) {
	return f.sources, nil
}

func (f *fakeNewsStore) ArticleExists(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.articles[url]
	return ok, nil
}

func (f *fakeNewsStore) InsertArticle(_ context.Context, a *models.Article) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.articles[a.URL]; ok {
		return false, nil
	}
	f.articles[a.URL] = a
	return true, nil
}

func (f *fakeNewsStore) MarkSourceScraped(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scraped[id]++
	return nil
}

func (f *fakeNewsStore) BumpSourceError(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errored[id]++
	return nil
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Environmental Feed</title>
    <item>
      <title>Major carbon market breakthrough announced</title>
      <link>https://example.org/articles/1</link>
      <description>&lt;p&gt;Carbon allowance prices reached a significant new level today as trading volumes surged across European markets.&lt;/p&gt;</description>
      <pubDate>Mon, 02 Mar 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Climate startup closes funding round</title>
      <link>https://example.org/articles/2</link>
      <description>A climate technology startup announced the close of its latest venture funding round this morning.</description>
      <pubDate>Mon, 02 Mar 2026 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Entry without a link is skipped</title>
      <description>No link here.</description>
    </item>
  </channel>
</rss>`

func TestNewsCollectorRun(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeed)
	}))
	defer srv.Close()

	store := newFakeNewsStore(models.DataSource{ID: 1, Name: "Test Feed", URL: srv.URL})
	c := NewNewsCollector(store, nil, zerolog.Nop())

	count, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 articles stored, got %d", count)
	}
	if store.scraped[1] != 1 {
		t.Fatalf("expected last_scraped update, got %d", store.scraped[1])
	}

	a := store.articles["https://example.org/articles/1"]
	if a == nil {
		t.Fatal("first article not stored")
	}
	if a.Category != "carbon-markets" {
		t.Fatalf("expected carbon-markets, got %q", a.Category)
	}
	if a.PriorityScore <= 50 {
		t.Fatalf("bonus keywords should raise priority above base, got %d", a.PriorityScore)
	}
	if strings.Contains(a.Content, "<p>") {
		t.Fatalf("content should be stripped of markup: %q", a.Content)
	}
	if a.PublishedDate.IsZero() {
		t.Fatal("published date not set")
	}

	// Second run over the same feed inserts nothing new.
	count, err = c.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected dedup to skip all entries, got %d", count)
	}
}

func TestNewsCollectorScoringScenario(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("An unremarkable filler sentence about the industry keeps the word count climbing steadily. ", 5) +
		"The company described the result as a genuine breakthrough and confirmed additional funding."
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Niche Blog</title>
    <item>
      <title>Startup milestone</title>
      <link>https://example.com/a</link>
      <description>` + body + `</description>
    </item>
  </channel>
</rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feed)
	}))
	defer srv.Close()

	store := newFakeNewsStore(models.DataSource{ID: 1, Name: "Niche Blog", URL: srv.URL})
	c := NewNewsCollector(store, nil, zerolog.Nop())

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	a := store.articles["https://example.com/a"]
	if a == nil {
		t.Fatal("article not stored")
	}
	// Base 50, no reputation bonus, +10 breakthrough, +10 funding.
	if a.PriorityScore != 70 {
		t.Fatalf("expected priority 70, got %d", a.PriorityScore)
	}
	if a.Category != "venture-capital" {
		t.Fatalf("expected venture-capital, got %q", a.Category)
	}
	if a.Summary == "" {
		t.Fatal("expected extractive summary with no model configured")
	}
}

func TestNewsCollectorRunFailingSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newFakeNewsStore(
		models.DataSource{ID: 1, Name: "Broken Feed", URL: srv.URL},
	)
	c := NewNewsCollector(store, nil, zerolog.Nop())

	count, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run should not fail on a broken source: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 articles, got %d", count)
	}
	if store.errored[1] != 1 {
		t.Fatalf("expected error count bump, got %d", store.errored[1])
	}
	if store.scraped[1] != 0 {
		t.Fatal("failing source must not be marked scraped")
	}
}
