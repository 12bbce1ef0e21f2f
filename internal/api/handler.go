package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eiim/monitor/internal/metrics"
	"github.com/eiim/monitor/internal/service"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.Use(metrics.GinMiddleware())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/generate/news", h.GenerateNews)
		v1.POST("/generate/prices", h.GeneratePrices)
		v1.POST("/generate/metrics", h.GenerateMetrics)
		v1.POST("/generate/brief", h.GenerateBrief)

		v1.GET("/articles", h.Articles)
		v1.GET("/search", h.Search)
		v1.GET("/articles/:id", h.ArticleByID)
		v1.POST("/articles/:id/summary", h.ResummarizeArticle)

		v1.GET("/carbon-prices", h.Prices)
		v1.GET("/carbon-prices/latest", h.LatestPrices)
		v1.GET("/carbon-prices/analysis/:market", h.PriceAnalysis)
		v1.GET("/carbon-prices/trends/:market", h.PriceTrends)

		v1.GET("/metrics", h.EcosystemMetrics)
		v1.GET("/metrics/:name/history", h.MetricHistory)

		v1.GET("/briefs", h.Briefs)
		v1.GET("/briefs/:date", h.BriefByDate)
	}
}

// Health: GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GenerateNews: POST /api/v1/generate/news
func (h *Handler) GenerateNews(c *gin.Context) {
	count, err := h.svc.RunNewsCollection(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"articles": count}})
}

// GeneratePrices: POST /api/v1/generate/prices
func (h *Handler) GeneratePrices(c *gin.Context) {
	count, err := h.svc.RunPriceCollection(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"prices": count}})
}

// GenerateMetrics: POST /api/v1/generate/metrics
func (h *Handler) GenerateMetrics(c *gin.Context) {
	count, err := h.svc.RunMetricsCollection(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"metrics": count}})
}

// GenerateBrief: POST /api/v1/generate/brief?date=2026-01-02&force=true
func (h *Handler) GenerateBrief(c *gin.Context) {
	var date time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	}
	force := c.Query("force") == "true"

	brief, err := h.svc.GenerateBrief(c.Request.Context(), date, force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if brief == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"generated": false, "reason": "no qualifying articles"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"generated": true}, "data": brief})
}

// Articles: GET /api/v1/articles?category=carbon-markets&limit=20
func (h *Handler) Articles(c *gin.Context) {
	category := c.Query("category")
	limit := parseLimit(c.DefaultQuery("limit", "20"))

	res, err := h.svc.Articles(c.Request.Context(), category, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"meta":    gin.H{"count": len(res), "category": category, "limit": limit},
		"data":    res,
	})
}

// Search: GET /api/v1/search?q=carbon&category=policy&source=Reuters&priority_min=60
func (h *Handler) Search(c *gin.Context) {
	q := c.Query("q")
	if len(q) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "search query must be at least 3 characters long"})
		return
	}
	category := c.Query("category")
	source := c.Query("source")
	minPriority, _ := strconv.Atoi(c.Query("priority_min"))
	limit := parseLimit(c.DefaultQuery("limit", "20"))

	res, err := h.svc.SearchArticles(c.Request.Context(), q, category, source, minPriority, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"meta":    gin.H{"count": len(res), "query": q},
		"data":    res,
	})
}

// ArticleByID: GET /api/v1/articles/:id
func (h *Handler) ArticleByID(c *gin.Context) {
	article, err := h.svc.ArticleByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "article not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": article})
}

// ResummarizeArticle: POST /api/v1/articles/:id/summary
func (h *Handler) ResummarizeArticle(c *gin.Context) {
	summary, err := h.svc.ResummarizeArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"summary": summary}})
}

// Prices: GET /api/v1/carbon-prices?market=eu_ets&limit=100
func (h *Handler) Prices(c *gin.Context) {
	market := c.Query("market")
	limit := parseLimit(c.DefaultQuery("limit", "100"))

	res, err := h.svc.Prices(c.Request.Context(), market, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"meta":    gin.H{"count": len(res), "market": market},
		"data":    res,
	})
}

// LatestPrices: GET /api/v1/carbon-prices/latest
func (h *Handler) LatestPrices(c *gin.Context) {
	res, err := h.svc.LatestPrices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"count": len(res)}, "data": res})
}

// PriceAnalysis: GET /api/v1/carbon-prices/analysis/:market?days=30
func (h *Handler) PriceAnalysis(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	analysis, err := h.svc.PriceAnalysis(c.Request.Context(), c.Param("market"), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if analysis == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"reason": "insufficient data"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": analysis})
}

// PriceTrends: GET /api/v1/carbon-prices/trends/:market?days=30
func (h *Handler) PriceTrends(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	trends, err := h.svc.AnalyzeMarket(c.Request.Context(), c.Param("market"), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": trends})
}

// EcosystemMetrics: GET /api/v1/metrics
func (h *Handler) EcosystemMetrics(c *gin.Context) {
	res, err := h.svc.LatestMetrics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"count": len(res)}, "data": res})
}

// MetricHistory: GET /api/v1/metrics/:name/history?limit=50
func (h *Handler) MetricHistory(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", "50"))

	res, err := h.svc.MetricHistory(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"count": len(res)}, "data": res})
}

// Briefs: GET /api/v1/briefs?limit=30
func (h *Handler) Briefs(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", "30"))

	res, err := h.svc.Briefs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meta": gin.H{"count": len(res)}, "data": res})
}

// BriefByDate: GET /api/v1/briefs/:date where date is YYYY-MM-DD or "latest"
func (h *Handler) BriefByDate(c *gin.Context) {
	raw := c.Param("date")

	if raw == "latest" {
		brief, err := h.svc.LatestBrief(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		if brief == nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no briefs generated yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": brief})
		return
	}

	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	brief, err := h.svc.BriefByDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if brief == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no brief for this date"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": brief})
}

func parseLimit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 20
	}
	return n
}
