package collector

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/eiim/monitor/internal/cache"
	dbtypes "github.com/eiim/monitor/internal/db"
	"github.com/eiim/monitor/pkg/models"
)

// Frequency is the reporting cadence of an indicator.
type Frequency string

const (
	Daily     Frequency = "daily"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

// PeriodBounds derives the [start, end) reporting window containing now,
// aligned to the frequency's calendar boundary in UTC.
func (f Frequency) PeriodBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	switch f {
	case Daily:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	case Monthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	case Quarterly:
		quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		start := time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, 0)
	case Annual:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	default:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	}
}

// Indicator is one named ecosystem statistic and its generator.
type Indicator struct {
	Name      string
	Source    string
	Frequency Frequency
	Unit      string
	Geography string
	Generate  func(ctx context.Context, c *MetricsCollector) (dbtypes.MetricValue, error)
}

// MetricStore is the persistence surface the metrics collector needs.
type MetricStore interface {
	UpsertMetric(ctx context.Context, m *models.EcosystemMetric) error
}

const (
	metricFallbackTTL  = 7 * 24 * time.Hour
	greenBondsTimeout  = 10 * time.Second
	stockIndexTimeout  = 5 * time.Second
	defaultGreenBonds  = "https://www.climatebonds.net/market/data/"
	defaultStockIndex  = "https://query1.finance.yahoo.com/v8/finance/chart/ICLN"
	metricScraperAgent = "EIIM/1.0"
)

// MetricsCollector runs the indicator roster. Most generators perturb a
// hardcoded baseline; a couple attempt a real fetch first. A generator's
// failure never aborts the run.
type MetricsCollector struct {
	store      MetricStore
	cache      cache.Cache
	hc         *http.Client
	rng        *lockedRand
	log        zerolog.Logger
	now        func() time.Time
	indicators []Indicator

	greenBondsURL string
	stockIndexURL string
}

func NewMetricsCollector(store MetricStore, c cache.Cache, log zerolog.Logger) *MetricsCollector {
	mc := &MetricsCollector{
		store:         store,
		cache:         c,
		hc:            &http.Client{Timeout: greenBondsTimeout},
		rng:           newLockedRand(),
		log:           log,
		now:           time.Now,
		greenBondsURL: defaultGreenBonds,
		stockIndexURL: defaultStockIndex,
	}
	mc.indicators = indicatorRoster()
	return mc
}

// Run collects every indicator sequentially. Failures fall back to the
// cached last-known value and are otherwise omitted; the run always
// completes and reports how many succeeded.
func (c *MetricsCollector) Run(ctx context.Context) (int, error) {
	c.log.Info().Int("indicators", len(c.indicators)).Msg("starting metrics collection")

	collected := 0
	for _, ind := range c.indicators {
		value, err := ind.Generate(ctx, c)
		if err != nil {
			c.log.Warn().Err(err).Str("metric", ind.Name).Msg("metric collection failed")
			fallback, ok := c.fallbackValue(ctx, ind)
			if !ok {
				continue
			}
			value = fallback
		} else {
			c.cacheFallback(ctx, ind, value)
		}

		if err := c.storeMetric(ctx, ind, value); err != nil {
			c.log.Warn().Err(err).Str("metric", ind.Name).Msg("metric store failed")
			continue
		}
		collected++
	}

	c.log.Info().Int("collected", collected).Int("total", len(c.indicators)).Msg("metrics collection completed")
	return collected, nil
}

func (c *MetricsCollector) storeMetric(ctx context.Context, ind Indicator, value dbtypes.MetricValue) error {
	start, end := ind.Frequency.PeriodBounds(c.now())
	return c.store.UpsertMetric(ctx, &models.EcosystemMetric{
		MetricName:  ind.Name,
		Value:       value,
		Unit:        ind.Unit,
		PeriodStart: start,
		PeriodEnd:   end,
		Geography:   ind.Geography,
		DataSource:  ind.Source,
		RecordedAt:  c.now().UTC(),
	})
}

func (c *MetricsCollector) fallbackValue(ctx context.Context, ind Indicator) (dbtypes.MetricValue, bool) {
	if c.cache == nil {
		return dbtypes.MetricValue{}, false
	}
	cached, ok := c.cache.Get(ctx, "metric_fallback:"+ind.Name)
	if !ok {
		return dbtypes.MetricValue{}, false
	}
	var v dbtypes.MetricValue
	if err := json.Unmarshal([]byte(cached), &v); err != nil {
		return dbtypes.MetricValue{}, false
	}
	return v, true
}

func (c *MetricsCollector) cacheFallback(ctx context.Context, ind Indicator, value dbtypes.MetricValue) {
	if c.cache == nil {
		return
	}
	if raw, err := json.Marshal(value); err == nil {
		c.cache.Set(ctx, "metric_fallback:"+ind.Name, string(raw), metricFallbackTTL)
	}
}

// jitter perturbs a baseline by a uniform random factor in ±spread/2.
func (c *MetricsCollector) jitter(base, spread float64) float64 {
	return base * (1 + (c.rng.Float64()-0.5)*spread)
}

func (c *MetricsCollector) jitterRound(base, spread float64) dbtypes.MetricValue {
	return dbtypes.Num(math.Round(c.jitter(base, spread)))
}

func (c *MetricsCollector) jitter2dp(base, spread float64) dbtypes.MetricValue {
	return dbtypes.Num(math.Round(c.jitter(base, spread)*100) / 100)
}

var billionRe = regexp.MustCompile(`(\d+\.?\d*)\s*[bB]illion`)

// collectGreenBonds tries the Climate Bonds Initiative market page before
// falling back to the baseline.
func (c *MetricsCollector) collectGreenBonds(ctx context.Context) (dbtypes.MetricValue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.greenBondsURL, nil)
	if err == nil {
		req.Header.Set("User-Agent", metricScraperAgent)
		resp, err := c.hc.Do(req)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				if doc, err := goquery.NewDocumentFromReader(resp.Body); err == nil {
					if m := billionRe.FindStringSubmatch(doc.Find(".green-bond-volume").Text()); m != nil {
						if v, err := strconv.ParseFloat(m[1], 64); err == nil {
							return dbtypes.Num(v * 1e9), nil
						}
					}
				}
			}
		} else {
			c.log.Warn().Err(err).Msg("green bond scrape failed")
		}
	}
	return c.jitterRound(156e9, 0.15), nil
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// collectStockIndex tries the clean-energy ETF quote before falling back.
func (c *MetricsCollector) collectStockIndex(ctx context.Context) (dbtypes.MetricValue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.stockIndexURL, nil)
	if err == nil {
		hc := &http.Client{Timeout: stockIndexTimeout}
		resp, err := hc.Do(req)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
				var chart yahooChart
				if err := json.Unmarshal(body, &chart); err == nil && len(chart.Chart.Result) > 0 {
					price := chart.Chart.Result[0].Meta.RegularMarketPrice
					if price > 0 {
						return dbtypes.Num(price), nil
					}
				}
			}
		} else {
			c.log.Warn().Err(err).Msg("stock index fetch failed")
		}
	}
	return c.jitterRound(1245, 0.1), nil
}

// collectDealSize produces the structured per-stage breakdown.
func (c *MetricsCollector) collectDealSize() dbtypes.MetricValue {
	stages := map[string]float64{
		"Pre-seed":  2_500_000,
		"Seed":      8_500_000,
		"Series A":  25_000_000,
		"Series B":  55_000_000,
		"Series C+": 125_000_000,
	}
	out := make(map[string]float64, len(stages))
	for stage, base := range stages {
		out[stage] = math.Round(c.jitter(base, 0.3))
	}
	return dbtypes.Obj(out)
}

func indicatorRoster() []Indicator {
	num := func(base, spread float64) func(context.Context, *MetricsCollector) (dbtypes.MetricValue, error) {
		return func(_ context.Context, c *MetricsCollector) (dbtypes.MetricValue, error) {
			return c.jitterRound(base, spread), nil
		}
	}
	num2dp := func(base, spread float64) func(context.Context, *MetricsCollector) (dbtypes.MetricValue, error) {
		return func(_ context.Context, c *MetricsCollector) (dbtypes.MetricValue, error) {
			return c.jitter2dp(base, spread), nil
		}
	}

	return []Indicator{
		{
			Name: "Climate Tech Venture Funding Volume", Source: "pwc_climatech",
			Frequency: Quarterly, Unit: "USD", Geography: "Global",
			Generate: num(12.8e9, 0.2),
		},
		{
			Name: "Climate Tech Deal Count", Source: "ctvc_database",
			Frequency: Monthly, Unit: "count", Geography: "Global",
			Generate: num(847, 0.15),
		},
		{
			Name: "Average Deal Size by Stage", Source: "pitchbook",
			Frequency: Quarterly, Unit: "USD", Geography: "Global",
			Generate: func(_ context.Context, c *MetricsCollector) (dbtypes.MetricValue, error) {
				return c.collectDealSize(), nil
			},
		},
		{
			Name: "New Climate Fund Formation", Source: "preqin",
			Frequency: Quarterly, Unit: "count", Geography: "Global",
			Generate: num(45, 0.25),
		},
		{
			Name: "Green Bond Issuance Volume", Source: "climate_bonds_initiative",
			Frequency: Monthly, Unit: "USD", Geography: "Global",
			Generate: func(ctx context.Context, c *MetricsCollector) (dbtypes.MetricValue, error) {
				return c.collectGreenBonds(ctx)
			},
		},
		{
			Name: "ESG Fund Flows", Source: "morningstar",
			Frequency: Monthly, Unit: "USD", Geography: "Global",
			Generate: num(89.2e9, 0.2),
		},
		{
			Name: "Clean Energy Stock Index Performance", Source: "yahoo_finance",
			Frequency: Daily, Unit: "index", Geography: "Global",
			Generate: func(ctx context.Context, c *MetricsCollector) (dbtypes.MetricValue, error) {
				return c.collectStockIndex(ctx)
			},
		},
		{
			Name: "Carbon Credit Market Volume", Source: "ecosystem_marketplace",
			Frequency: Monthly, Unit: "tonnes_co2", Geography: "Global",
			Generate: num(450e6, 0.2),
		},
		{
			Name: "Climate Patent Filings", Source: "wipo",
			Frequency: Quarterly, Unit: "count", Geography: "Global",
			Generate: num(2847, 0.18),
		},
		{
			Name: "Corporate Net-Zero Commitments", Source: "sbti",
			Frequency: Monthly, Unit: "count", Geography: "Global",
			Generate: num(1256, 0.1),
		},
		{
			Name: "Renewable Energy Capacity Additions", Source: "irena",
			Frequency: Quarterly, Unit: "GW", Geography: "Global",
			Generate: num(385, 0.15),
		},
		{
			Name: "Carbon Removal Deployment", Source: "cdr_database",
			Frequency: Quarterly, Unit: "tonnes_co2", Geography: "Global",
			Generate: num(2.5e6, 0.3),
		},
		{
			Name: "Environmental Policy Stringency Index", Source: "oecd",
			Frequency: Annual, Unit: "index", Geography: "OECD+",
			Generate: num2dp(2.85, 0.1),
		},
		{
			Name: "Government Green Investment as % GDP", Source: "iea",
			Frequency: Annual, Unit: "percentage", Geography: "Global",
			Generate: num2dp(1.8, 0.2),
		},
		{
			Name: "Biodiversity Credit Market Volume", Source: "pollination_group",
			Frequency: Quarterly, Unit: "USD", Geography: "Global",
			Generate: num(45e6, 0.4),
		},
		{
			Name: "Blue Carbon Project Pipeline", Source: "blue_carbon_initiative",
			Frequency: Quarterly, Unit: "hectares", Geography: "Global",
			Generate: num(125_000, 0.25),
		},
		{
			Name: "Water Credit Market Activity", Source: "epa",
			Frequency: Quarterly, Unit: "credits", Geography: "US",
			Generate: num(1.85e6, 0.2),
		},
		{
			Name: "Plastic Credit Market Volume", Source: "verra",
			Frequency: Quarterly, Unit: "tonnes", Geography: "Global",
			Generate: num(875_000, 0.3),
		},
	}
}
