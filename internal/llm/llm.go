// Package llm wraps the OpenRouter chat-completions API for article
// summaries, daily briefs and trend commentary. The external call is treated
// as fully untrusted: every operation has a deterministic local fallback and
// a per-minute request budget guards against runaway usage.
package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/eiim/monitor/internal/cache"
	"github.com/eiim/monitor/internal/config"
	"github.com/eiim/monitor/pkg/models"
)

// ErrBudgetExhausted is returned when the per-minute request ceiling is hit.
// The call is refused before any network I/O.
var ErrBudgetExhausted = errors.New("llm: request budget exhausted")

const (
	summaryCacheTTL = 24 * time.Hour
	briefCacheTTL   = 6 * time.Hour
	requestTimeout  = 30 * time.Second
)

// Client calls the chat-completions endpoint with caching, budgeting and
// fallbacks. All mutable state is instance-owned so independent clients
// (e.g. in tests) do not interfere.
type Client struct {
	baseURL       string
	apiKey        string
	summaryModel  string
	analysisModel string

	hc    *http.Client
	cache cache.Cache
	log   zerolog.Logger
	now   func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	requests    int
	perMinute   int
	tokens      int64
}

// NewClient builds a client from configuration. A nil httpClient gets the
// default with the LLM timeout applied.
func NewClient(cfg config.OpenRouterConfig, c cache.Cache, log zerolog.Logger, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute == 0 {
		perMinute = 20
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		summaryModel:  cfg.SummaryModel,
		analysisModel: cfg.AnalysisModel,
		hc:            httpClient,
		cache:         c,
		log:           log,
		now:           time.Now,
		perMinute:     perMinute,
	}
}

// Enabled reports whether an API key is configured. Callers skip straight to
// their fallback path when it is not.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// TokensUsed returns the token count accumulated in the current window.
func (c *Client) TokensUsed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

// checkBudget enforces the fixed-window request ceiling. The window resets
// 60 seconds after it opened.
func (c *Client) checkBudget() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.windowStart) > time.Minute {
		c.windowStart = now
		c.requests = 0
		c.tokens = 0
	}
	if c.requests >= c.perMinute {
		return ErrBudgetExhausted
	}
	return nil
}

func (c *Client) recordUsage(tokens int64) {
	c.mu.Lock()
	c.requests++
	c.tokens += tokens
	c.mu.Unlock()
}

// complete sends one chat-completion request and returns the generated text.
func (c *Client) complete(ctx context.Context, model string, messages []message, maxTokens int, temperature float64) (string, error) {
	if !c.Enabled() {
		return "", errors.New("llm: no API key configured")
	}
	if err := c.checkBudget(); err != nil {
		return "", err
	}

	body, err := json.Marshal(completionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://eiim.app")
	req.Header.Set("X-Title", "Environmental Impact Investing Monitor")

	start := c.now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("llm decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm: empty choices in response")
	}

	c.recordUsage(parsed.Usage.TotalTokens)
	c.log.Debug().Str("model", model).Dur("latency", c.now().Sub(start)).
		Int64("tokens", parsed.Usage.TotalTokens).Msg("llm request completed")

	return parsed.Choices[0].Message.Content, nil
}

// SummarizeArticle returns a ~100-word investor-focused summary of the
// article. Responses are cached for 24 hours keyed by a hash of
// title+content; any failure yields the local extractive fallback.
func (c *Client) SummarizeArticle(ctx context.Context, title, content string) (string, error) {
	cacheKey := "summary:" + contentHash(title+content)
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	prompt := fmt.Sprintf(`Summarize this environmental finance article in exactly 100 words, focusing on investment implications, key metrics, and market impact. Be concise and investor-focused.

Title: %s
Content: %s`, title, truncate(content, 2000))

	summary, err := c.complete(ctx, c.summaryModel, []message{{Role: "user", Content: prompt}}, 150, 0.3)
	if err != nil {
		c.log.Warn().Err(err).Msg("article summarization failed, using fallback")
		return FallbackSummary(content), nil
	}

	if c.cache != nil {
		c.cache.Set(ctx, cacheKey, summary, summaryCacheTTL)
	}
	return summary, nil
}

// Brief is a generated (or fallback-templated) daily brief.
type Brief struct {
	Content       string    `json:"content"`
	ArticleCount  int       `json:"article_count"`
	TopCategories []string  `json:"top_categories"`
	Model         string    `json:"model"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// GenerateDailyBrief builds the aggregate morning brief from the day's
// articles. Responses are cached for 6 hours keyed by the calendar date;
// any failure yields the locally templated brief.
func (c *Client) GenerateDailyBrief(ctx context.Context, articles []*models.Article) (*Brief, error) {
	if len(articles) == 0 {
		return nil, errors.New("llm: no articles provided for brief generation")
	}

	cacheKey := "brief:" + c.now().UTC().Format("2006-01-02")
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, cacheKey); ok {
			var b Brief
			if err := json.Unmarshal([]byte(cached), &b); err == nil {
				return &b, nil
			}
		}
	}

	grouped := groupByCategory(articles)
	prompt := briefPrompt(articles, grouped)

	content, err := c.complete(ctx, c.analysisModel, []message{{Role: "user", Content: prompt}}, 1500, 0.4)
	if err != nil {
		c.log.Warn().Err(err).Msg("brief generation failed, using fallback")
		return FallbackBrief(articles), nil
	}

	b := &Brief{
		Content:       content,
		ArticleCount:  len(articles),
		TopCategories: topCategories(grouped, 5),
		Model:         c.analysisModel,
		GeneratedAt:   c.now().UTC(),
	}
	if c.cache != nil {
		if raw, err := json.Marshal(b); err == nil {
			c.cache.Set(ctx, cacheKey, string(raw), briefCacheTTL)
		}
	}
	return b, nil
}

func briefPrompt(articles []*models.Article, grouped map[string][]*models.Article) string {
	var sections strings.Builder
	for _, category := range sortedKeys(grouped) {
		sections.WriteString("\n" + strings.ToUpper(category) + ":\n")
		for _, a := range grouped[category] {
			summary := a.Summary
			if summary == "" {
				summary = truncate(a.Content, 200)
			}
			fmt.Fprintf(&sections, "- %s (%s): %s\n", a.Title, a.Source, summary)
		}
	}

	return fmt.Sprintf(`Create a comprehensive daily morning brief for environmental impact investors from these %d articles.

Structure the brief with:
1. Executive Summary (2-3 sentences highlighting the most important developments)
2. Key Developments by Category
3. Market Implications
4. Investment Outlook

Focus on:
- Investment opportunities and risks
- Market movements and trends
- Policy changes affecting investments
- Technology breakthroughs with commercial potential
- Regional focus: 60%% US/North America, 40%% global

Articles by category:
%s
Keep the brief professional, concise, and actionable for investors.`, len(articles), sections.String())
}

// TrendPoint is one observation handed to trend analysis.
type TrendPoint struct {
	Label     string    `json:"label"`
	Value     float64   `json:"value"`
	Currency  string    `json:"currency,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TrendAnalysis is prose commentary over a time series.
type TrendAnalysis struct {
	Analysis    string    `json:"analysis"`
	DataType    string    `json:"data_type"`
	DataPoints  int       `json:"data_points"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AnalyzeTrends produces commentary for a series. Carbon price series get a
// specialized prompt; any failure yields a minimal placeholder.
func (c *Client) AnalyzeTrends(ctx context.Context, points []TrendPoint, dataType string) (*TrendAnalysis, error) {
	prompt := trendPrompt(points, dataType)

	analysis, err := c.complete(ctx, c.analysisModel, []message{{Role: "user", Content: prompt}}, 800, 0.3)
	if err != nil {
		c.log.Warn().Err(err).Str("data_type", dataType).Msg("trend analysis failed, using fallback")
		return FallbackTrendAnalysis(points, dataType), nil
	}

	return &TrendAnalysis{
		Analysis:    analysis,
		DataType:    dataType,
		DataPoints:  len(points),
		GeneratedAt: c.now().UTC(),
	}, nil
}

func trendPrompt(points []TrendPoint, dataType string) string {
	if dataType == "carbon_prices" {
		var lines strings.Builder
		for _, p := range points {
			fmt.Fprintf(&lines, "%s: %.2f %s (%s)\n", p.Label, p.Value, p.Currency, p.Timestamp.Format(time.RFC3339))
		}
		return fmt.Sprintf(`Analyze this carbon pricing data for trends, patterns, and investment implications:

%s
Include:
- Price movement analysis
- Volatility assessment
- Market correlation insights
- Policy impact evaluation
- Investment recommendations`, lines.String())
	}

	sample := points
	if len(sample) > 10 {
		sample = sample[:10]
	}
	raw, _ := json.Marshal(sample)
	return fmt.Sprintf("Analyze this %s data for trends and investment implications: %s", dataType, string(raw))
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}

// truncate caps s at n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
