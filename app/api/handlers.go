package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/dates"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/scheduler"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	feedSize        = 50
)

func NewHandler(registry SourceRegistry, sourceRepo database.SourceRepository,
	articleRepo database.ArticleRepository, trigger CrawlTrigger, generator *feed.Generator) *Handler {
	return &Handler{
		sourceRepo:  sourceRepo,
		articleRepo: articleRepo,
		registry:    registry,
		trigger:     trigger,
		generator:   generator,
	}
}

// GetFeed serves the latest stored articles of a source as RSS.
func (h *Handler) GetFeed(c *gin.Context) {
	code := c.Param("code")

	src, err := h.registry.Get(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	articles, err := h.articleRepo.ListArticles(c.Request.Context(), database.ArticleFilter{
		SourceCode: code,
		Limit:      feedSize,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "source", code, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rss, err := h.generator.Run(feed.Channel{Code: src.Code, Name: src.Name, BaseURL: src.BaseURL}, articles)
	if err != nil {
		slog.Error("Failed to generate RSS", "source", code, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate feed"})
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(c.Request.Context()); err == nil {
		health["sources"] = sourceCount
	} else {
		slog.Error("Database error", "operation", "get_source_count", "error", err)
		health["database"] = "unavailable"
	}

	health["loaded_sources"] = h.registry.Count()
	health["scheduler"] = h.trigger.Health()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.articleRepo.GetSourceStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_source_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total := 0
	perSource := make([]gin.H, 0, len(stats))
	for _, st := range stats {
		total += st.Articles
		perSource = append(perSource, gin.H{
			"source":            st.Code,
			"articles":          st.Articles,
			"last_collected_at": st.Latest,
		})
	}

	schedulerStats := h.trigger.GetStats()

	c.JSON(http.StatusOK, gin.H{
		"articles": total,
		"sources":  perSource,
		"runs": gin.H{
			"total":         schedulerStats.TotalRuns,
			"skipped_ticks": schedulerStats.SkippedTicks,
			"stored":        schedulerStats.TotalStored,
			"errors":        schedulerStats.TotalErrors,
			"running":       schedulerStats.Running,
			"last_run_at":   schedulerStats.LastRunAt,
			"last_report":   schedulerStats.LastRunReport,
		},
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources := h.registry.All()
	counts := h.articleCounts(c)

	list := make([]gin.H, 0, len(sources))
	for _, src := range sources {
		info := gin.H{
			"code":         src.Code,
			"name":         src.Name,
			"base_url":     src.BaseURL,
			"list_url":     src.ListURL,
			"enabled":      src.Enabled,
			"has_template": !src.Template.IsZero(),
		}
		if n, ok := counts[src.Code]; ok {
			info["articles"] = n
		}
		list = append(list, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": list,
		"total":   len(list),
	})
}

func (h *Handler) APIGetSource(c *gin.Context) {
	code := c.Param("code")

	src, err := h.registry.Get(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	record, err := h.sourceRepo.GetSource(c.Request.Context(), code)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", code, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	details := gin.H{
		"code":     src.Code,
		"name":     src.Name,
		"base_url": src.BaseURL,
		"list_url": src.ListURL,
		"enabled":  src.Enabled,
		"template": gin.H{
			"list_url":           src.Template.ListURL,
			"list_link_selector": src.Template.ListLinkSelector,
			"url_prefix":         src.Template.URLPrefix,
			"title_selector":     src.Template.TitleSelector,
			"content_selector":   src.Template.ContentSelector,
			"date_selector_meta": src.Template.DateMeta,
		},
	}

	if record != nil {
		details["database"] = gin.H{
			"id":         record.ID,
			"enabled":    record.Enabled,
			"created_at": record.CreatedAt,
			"updated_at": record.UpdatedAt,
		}
	}

	if n, ok := h.articleCounts(c)[code]; ok {
		details["articles"] = n
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIListArticles(c *gin.Context) {
	filter, err := parseArticleFilter(c, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	articles, err := h.articleRepo.ListArticles(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	withContent := c.Query("content") == "true"
	items := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		items = append(items, newArticleResponse(a, withContent))
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": items,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (h *Handler) APICountArticles(c *gin.Context) {
	filter, err := parseArticleFilter(c, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	total, err := h.articleRepo.CountArticles(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "count_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": total})
}

func (h *Handler) APIGetArticle(c *gin.Context) {
	id := c.Param("id")

	a, err := h.articleRepo.GetArticle(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, newArticleResponse(*a, true))
}

func (h *Handler) APIListUnscored(c *gin.Context) {
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit: %q", raw)})
			return
		}
		limit = min(n, maxPageSize)
	}

	articles, err := h.articleRepo.ListUnscored(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_unscored", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		items = append(items, newArticleResponse(a, true))
	}

	c.JSON(http.StatusOK, gin.H{"articles": items})
}

// APIUpdateSentiment stores a score produced by an external enrichment job.
func (h *Handler) APIUpdateSentiment(c *gin.Context) {
	id := c.Param("id")

	var req sentimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sentiment", "details": err.Error()})
		return
	}

	err := h.articleRepo.UpdateSentiment(c.Request.Context(), id, article.Sentiment{
		Score: *req.Score,
		Label: req.Label,
		Model: req.Model,
	})
	if errors.Is(err, database.ErrArticleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "update_sentiment", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// APITriggerCrawl starts a run in the background, or runs it inline when
// wait=true and returns the report.
func (h *Handler) APITriggerCrawl(c *gin.Context) {
	if c.Query("wait") == "true" {
		report, err := h.trigger.Trigger(c.Request.Context())
		if err != nil {
			h.triggerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
		return
	}

	if err := h.trigger.TriggerAsync(); err != nil {
		h.triggerError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Crawl started",
	})
}

func (h *Handler) triggerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Crawl already in progress"})
	case errors.Is(err, scheduler.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is shutting down"})
	default:
		slog.Error("Error triggering crawl", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger crawl", "details": err.Error()})
	}
}

func (h *Handler) articleCounts(c *gin.Context) map[string]int {
	counts := make(map[string]int)

	stats, err := h.articleRepo.GetSourceStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_source_stats", "error", err)
		return counts
	}
	for _, st := range stats {
		counts[st.Code] = st.Articles
	}
	return counts
}

func parseArticleFilter(c *gin.Context, paged bool) (database.ArticleFilter, error) {
	filter := database.ArticleFilter{
		SourceCode: strings.TrimSpace(c.Query("source")),
		Sentiment:  strings.ToLower(strings.TrimSpace(c.Query("sentiment"))),
		Search:     strings.TrimSpace(c.Query("search")),
	}

	for name, target := range map[string]**time.Time{"since": &filter.Since, "until": &filter.Until} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, _, err := dates.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid %s: %q", name, raw)
		}
		t = t.UTC()
		*target = &t
	}

	if !paged {
		return filter, nil
	}

	filter.Limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, fmt.Errorf("invalid limit: %q", raw)
		}
		filter.Limit = min(limit, maxPageSize)
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid offset: %q", raw)
		}
		filter.Offset = offset
	}

	return filter, nil
}
