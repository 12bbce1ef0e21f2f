package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/eiim/monitor/pkg/models"
)

const (
	feedTimeout      = 10 * time.Second
	feedUserAgent    = "EIIM/1.0 (+https://eiim.app)"
	entriesPerFeed   = 10
	basePriority     = 50
	reputationBonus  = 20
	defaultCategory  = "esg-sustainability"
	maxPriorityScore = 100
)

// categoryRules is the ordered classification table; the first rule whose
// keyword matches wins.
var categoryRules = []struct {
	Category string
	Keywords []string
}{
	{"venture-capital", []string{"venture", "startup", "funding"}},
	{"carbon-markets", []string{"carbon", "emissions", "pricing"}},
	{"public-markets", []string{"bond", "public market", "stock"}},
	{"policy-regulation", []string{"policy", "regulation", "government"}},
	{"technology", []string{"technology", "innovation", "breakthrough"}},
	{"biodiversity", []string{"biodiversity", "nature", "ecosystem"}},
}

// priorityKeywords each add their bonus to the base score when present.
var priorityKeywords = []struct {
	Keyword string
	Bonus   int
}{
	{"breakthrough", 10},
	{"record", 10},
	{"first", 10},
	{"largest", 10},
	{"major", 10},
	{"significant", 10},
	{"investment", 10},
	{"funding", 10},
	{"merger", 10},
	{"acquisition", 10},
	{"ipo", 10},
	{"regulation", 10},
}

// reputableSources get a flat bonus on top of the base score.
var reputableSources = []string{"Environmental Finance", "Carbon Pulse", "Bloomberg Green"}

// Categorize maps title+content to exactly one category. Empty input falls
// through to the catch-all.
func Categorize(title, content string) string {
	text := strings.ToLower(title + " " + content)
	for _, rule := range categoryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Category
			}
		}
	}
	return defaultCategory
}

// PriorityScore computes the article's priority in [0,100].
func PriorityScore(title, content, source string) int {
	score := basePriority
	for _, s := range reputableSources {
		if s == source {
			score += reputationBonus
			break
		}
	}

	text := strings.ToLower(title + " " + content)
	for _, pk := range priorityKeywords {
		if strings.Contains(text, pk.Keyword) {
			score += pk.Bonus
		}
	}

	if score > maxPriorityScore {
		score = maxPriorityScore
	}
	if score < 0 {
		score = 0
	}
	return score
}

// CleanText strips HTML markup, returning trimmed plain text.
func CleanText(raw string) string {
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(doc.Text())
}

// extractiveSummary is the local summarizer of last resort: the first three
// sentences longer than 30 characters.
func extractiveSummary(content string) string {
	if content == "" {
		return ""
	}
	var kept []string
	for _, s := range strings.Split(content, ".") {
		if len(strings.TrimSpace(s)) > 30 {
			kept = append(kept, strings.TrimSpace(s))
		}
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) == 0 {
		if len(content) > 200 {
			return content[:200] + "..."
		}
		return content
	}
	return strings.Join(kept, ". ") + "."
}

// NewsStore is the persistence surface the news collector needs.
type NewsStore interface {
	ActiveFeedSources(ctx context.Context) ([]models.DataSource, error)
	ArticleExists(ctx context.Context, url string) (bool, error)
	InsertArticle(ctx context.Context, a *models.Article) (bool, error)
	MarkSourceScraped(ctx context.Context, id int64) error
	BumpSourceError(ctx context.Context, id int64) error
}

// Summarizer produces article summaries. Enabled reports whether the
// external model can be called at all.
type Summarizer interface {
	Enabled() bool
	SummarizeArticle(ctx context.Context, title, content string) (string, error)
}

// NewsCollector pulls the registered feeds, deduplicates by URL, classifies
// and scores entries, and persists them with a summary.
type NewsCollector struct {
	store      NewsStore
	summarizer Summarizer
	parser     *gofeed.Parser
	log        zerolog.Logger
	now        func() time.Time
	perFeed    int
}

func NewNewsCollector(store NewsStore, summarizer Summarizer, log zerolog.Logger) *NewsCollector {
	parser := gofeed.NewParser()
	parser.UserAgent = feedUserAgent
	parser.Client = &http.Client{Timeout: feedTimeout}
	return &NewsCollector{
		store:      store,
		summarizer: summarizer,
		parser:     parser,
		log:        log,
		now:        time.Now,
		perFeed:    entriesPerFeed,
	}
}

// Run polls every active feed source. A failing source is logged and
// skipped; the run only errors when the source registry itself is
// unreachable. Returns the number of new articles stored.
func (c *NewsCollector) Run(ctx context.Context) (int, error) {
	sources, err := c.store.ActiveFeedSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("load feed sources: %w", err)
	}
	c.log.Info().Int("sources", len(sources)).Msg("starting news collection")

	total := 0
	for _, src := range sources {
		count, err := c.scrapeSource(ctx, src)
		if err != nil {
			c.log.Warn().Err(err).Str("source", src.Name).Msg("feed scrape failed")
			if err := c.store.BumpSourceError(ctx, src.ID); err != nil {
				c.log.Warn().Err(err).Str("source", src.Name).Msg("error count update failed")
			}
			continue
		}
		if err := c.store.MarkSourceScraped(ctx, src.ID); err != nil {
			c.log.Warn().Err(err).Str("source", src.Name).Msg("last_scraped update failed")
		}
		c.log.Info().Str("source", src.Name).Int("articles", count).Msg("feed scraped")
		total += count
	}

	c.log.Info().Int("articles", total).Msg("news collection completed")
	return total, nil
}

func (c *NewsCollector) scrapeSource(ctx context.Context, src models.DataSource) (int, error) {
	feed, err := c.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return 0, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	items := feed.Items
	if len(items) > c.perFeed {
		items = items[:c.perFeed]
	}

	count := 0
	for _, item := range items {
		inserted, err := c.processEntry(ctx, item, src)
		if err != nil {
			c.log.Warn().Err(err).Str("source", src.Name).Str("url", item.Link).Msg("entry processing failed")
			continue
		}
		if inserted {
			count++
		}
	}
	return count, nil
}

// processEntry handles one feed item. Returns false for entries that are
// skipped (no link, already stored, lost insert race).
func (c *NewsCollector) processEntry(ctx context.Context, item *gofeed.Item, src models.DataSource) (bool, error) {
	if item.Link == "" {
		return false, nil
	}

	exists, err := c.store.ArticleExists(ctx, item.Link)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if exists {
		return false, nil
	}

	title := CleanText(item.Title)
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	content := CleanText(raw)

	published := c.now().UTC()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	}

	article := &models.Article{
		Title:         title,
		Content:       content,
		Summary:       c.summarize(ctx, title, content),
		Source:        src.Name,
		URL:           item.Link,
		PublishedDate: published,
		Category:      Categorize(title, content),
		PriorityScore: PriorityScore(title, content, src.Name),
	}

	return c.store.InsertArticle(ctx, article)
}

func (c *NewsCollector) summarize(ctx context.Context, title, content string) string {
	if c.summarizer == nil || !c.summarizer.Enabled() {
		return extractiveSummary(content)
	}
	summary, err := c.summarizer.SummarizeArticle(ctx, title, content)
	if err != nil || summary == "" {
		c.log.Warn().Err(err).Msg("summarization failed, using extractive fallback")
		return extractiveSummary(content)
	}
	return summary
}
