package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	dbtypes "github.com/eiim/monitor/internal/db"
	"github.com/eiim/monitor/internal/llm"
	"github.com/eiim/monitor/pkg/models"
)

// briefArticleLimit caps how many articles feed one brief.
const briefArticleLimit = 20

// BriefStore is the persistence surface brief assembly needs.
type BriefStore interface {
	BriefByDate(ctx context.Context, date time.Time) (*models.DailyBrief, error)
	SummarizedArticlesAround(ctx context.Context, day time.Time, limit int) ([]*models.Article, error)
	SaveBrief(ctx context.Context, b *models.DailyBrief, force bool) error
}

// BriefGenerator produces the brief prose from the day's articles.
type BriefGenerator interface {
	Enabled() bool
	GenerateDailyBrief(ctx context.Context, articles []*models.Article) (*llm.Brief, error)
}

// BriefAssembler builds one brief per calendar date from the stored,
// summarized articles around that date.
type BriefAssembler struct {
	store BriefStore
	gen   BriefGenerator
	log   zerolog.Logger
	now   func() time.Time
}

func NewBriefAssembler(store BriefStore, gen BriefGenerator, log zerolog.Logger) *BriefAssembler {
	return &BriefAssembler{store: store, gen: gen, log: log, now: time.Now}
}

// Generate assembles and stores the brief for date (today when zero).
// An existing brief is returned unchanged unless force is set, in which case
// it is superseded from the then-current article set. A date with zero
// qualifying articles yields (nil, nil): reported, not an error.
func (b *BriefAssembler) Generate(ctx context.Context, date time.Time, force bool) (*models.DailyBrief, error) {
	if date.IsZero() {
		date = b.now()
	}
	date = date.UTC().Truncate(24 * time.Hour)

	existing, err := b.store.BriefByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("check existing brief: %w", err)
	}
	if existing != nil && !force {
		b.log.Info().Str("date", date.Format("2006-01-02")).Msg("daily brief already exists")
		return existing, nil
	}

	articles, err := b.store.SummarizedArticlesAround(ctx, date, briefArticleLimit)
	if err != nil {
		return nil, fmt.Errorf("load brief articles: %w", err)
	}
	if len(articles) == 0 {
		b.log.Warn().Str("date", date.Format("2006-01-02")).Msg("no articles available for brief generation")
		return nil, nil
	}

	b.log.Info().Str("date", date.Format("2006-01-02")).Int("articles", len(articles)).Msg("generating daily brief")

	var generated *llm.Brief
	if b.gen != nil && b.gen.Enabled() {
		generated, err = b.gen.GenerateDailyBrief(ctx, articles)
		if err != nil {
			b.log.Warn().Err(err).Msg("brief generation failed, using fallback")
			generated = llm.FallbackBrief(articles)
		}
	} else {
		generated = llm.FallbackBrief(articles)
	}

	brief := &models.DailyBrief{
		BriefDate:     date,
		Content:       generated.Content,
		ArticleCount:  generated.ArticleCount,
		TopCategories: dbtypes.StringSlice(generated.TopCategories),
		AIModelUsed:   generated.Model,
		GeneratedAt:   b.now().UTC(),
	}
	if err := b.store.SaveBrief(ctx, brief, force); err != nil {
		return nil, fmt.Errorf("store brief: %w", err)
	}

	b.log.Info().Str("date", date.Format("2006-01-02")).Str("model", brief.AIModelUsed).Msg("daily brief generated")
	return brief, nil
}
