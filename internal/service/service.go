package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/eiim/monitor/internal/collector"
	"github.com/eiim/monitor/internal/llm"
	"github.com/eiim/monitor/pkg/models"
)

// Store is the read/update surface the service layer needs from persistence.
type Store interface {
	Articles(ctx context.Context, category string, limit int) ([]*models.Article, error)
	SearchArticles(ctx context.Context, q, category, source string, minPriority, limit int) ([]*models.Article, error)
	ArticleByID(ctx context.Context, id string) (*models.Article, error)
	UpdateArticleSummary(ctx context.Context, id, summary string) error

	Prices(ctx context.Context, market string, limit int) ([]*models.CarbonPrice, error)
	LatestPrices(ctx context.Context) ([]*models.CarbonPrice, error)
	PricesSince(ctx context.Context, market string, since time.Time) ([]*models.CarbonPrice, error)

	LatestMetrics(ctx context.Context) ([]*models.EcosystemMetric, error)
	MetricHistory(ctx context.Context, name string, limit int) ([]*models.EcosystemMetric, error)

	Briefs(ctx context.Context, limit int) ([]*models.DailyBrief, error)
	LatestBrief(ctx context.Context) (*models.DailyBrief, error)
	BriefByDate(ctx context.Context, date time.Time) (*models.DailyBrief, error)
}

// Service fronts the collectors and read paths for the HTTP layer.
type Service struct {
	store   Store
	news    *collector.NewsCollector
	prices  *collector.PriceCollector
	metrics *collector.MetricsCollector
	brief   *collector.BriefAssembler
	llm     *llm.Client
	log     zerolog.Logger
}

func NewService(store Store, news *collector.NewsCollector, prices *collector.PriceCollector,
	metricsC *collector.MetricsCollector, brief *collector.BriefAssembler, llmClient *llm.Client,
	log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		news:    news,
		prices:  prices,
		metrics: metricsC,
		brief:   brief,
		llm:     llmClient,
		log:     log,
	}
}

// Collection entry points, also wired into the scheduler.

func (s *Service) RunNewsCollection(ctx context.Context) (int, error) {
	return s.news.Run(ctx)
}

func (s *Service) RunPriceCollection(ctx context.Context) (int, error) {
	return s.prices.Run(ctx)
}

func (s *Service) RunMetricsCollection(ctx context.Context) (int, error) {
	return s.metrics.Run(ctx)
}

func (s *Service) GenerateBrief(ctx context.Context, date time.Time, force bool) (*models.DailyBrief, error) {
	return s.brief.Generate(ctx, date, force)
}

// Read paths.

func (s *Service) Articles(ctx context.Context, category string, limit int) ([]*models.Article, error) {
	return s.store.Articles(ctx, category, limit)
}

func (s *Service) SearchArticles(ctx context.Context, q, category, source string, minPriority, limit int) ([]*models.Article, error) {
	return s.store.SearchArticles(ctx, q, category, source, minPriority, limit)
}

func (s *Service) ArticleByID(ctx context.Context, id string) (*models.Article, error) {
	return s.store.ArticleByID(ctx, id)
}

func (s *Service) Prices(ctx context.Context, market string, limit int) ([]*models.CarbonPrice, error) {
	return s.store.Prices(ctx, market, limit)
}

func (s *Service) LatestPrices(ctx context.Context) ([]*models.CarbonPrice, error) {
	return s.store.LatestPrices(ctx)
}

func (s *Service) LatestMetrics(ctx context.Context) ([]*models.EcosystemMetric, error) {
	return s.store.LatestMetrics(ctx)
}

func (s *Service) MetricHistory(ctx context.Context, name string, limit int) ([]*models.EcosystemMetric, error) {
	return s.store.MetricHistory(ctx, name, limit)
}

func (s *Service) Briefs(ctx context.Context, limit int) ([]*models.DailyBrief, error) {
	return s.store.Briefs(ctx, limit)
}

func (s *Service) LatestBrief(ctx context.Context) (*models.DailyBrief, error) {
	return s.store.LatestBrief(ctx)
}

func (s *Service) BriefByDate(ctx context.Context, date time.Time) (*models.DailyBrief, error) {
	return s.store.BriefByDate(ctx, date)
}

// ResummarizeArticle regenerates and persists the summary for one stored
// article, returning the new text.
func (s *Service) ResummarizeArticle(ctx context.Context, id string) (string, error) {
	article, err := s.store.ArticleByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}

	content := article.Content
	if content == "" {
		content = article.Title
	}

	summary, err := s.llm.SummarizeArticle(ctx, article.Title, content)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if err := s.store.UpdateArticleSummary(ctx, article.ID, summary); err != nil {
		return "", fmt.Errorf("save summary: %w", err)
	}
	return summary, nil
}

// AnalyzeMarket runs model-backed trend commentary over a market's recent
// points.
func (s *Service) AnalyzeMarket(ctx context.Context, market string, days int) (*llm.TrendAnalysis, error) {
	if days <= 0 {
		days = 30
	}
	prices, err := s.store.PricesSince(ctx, market, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}

	points := make([]llm.TrendPoint, len(prices))
	for i, p := range prices {
		points[i] = llm.TrendPoint{
			Label:     p.Market,
			Value:     p.Price.InexactFloat64(),
			Currency:  p.Currency,
			Timestamp: p.Timestamp,
		}
	}
	return s.llm.AnalyzeTrends(ctx, points, "carbon_prices")
}
