package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

type route struct {
	method  string
	path    string
	name    string
	handler func(*Handler) gin.HandlerFunc
}

// apiRoutes need an access key. The root endpoint lists them by name.
var apiRoutes = []route{
	{http.MethodGet, "/sources", "sources", func(h *Handler) gin.HandlerFunc { return h.APIListSources }},
	{http.MethodGet, "/sources/:code", "source", func(h *Handler) gin.HandlerFunc { return h.APIGetSource }},
	{http.MethodGet, "/articles", "articles", func(h *Handler) gin.HandlerFunc { return h.APIListArticles }},
	{http.MethodGet, "/articles/count", "count", func(h *Handler) gin.HandlerFunc { return h.APICountArticles }},
	{http.MethodGet, "/articles/unscored", "unscored", func(h *Handler) gin.HandlerFunc { return h.APIListUnscored }},
	{http.MethodGet, "/articles/:id", "article", func(h *Handler) gin.HandlerFunc { return h.APIGetArticle }},
	{http.MethodPut, "/articles/:id/sentiment", "sentiment", func(h *Handler) gin.HandlerFunc { return h.APIUpdateSentiment }},
	{http.MethodPost, "/crawl", "crawl", func(h *Handler) gin.HandlerFunc { return h.APITriggerCrawl }},
}

// NewServer builds the gin engine. The /api group is only mounted when
// apiAccessKey is set.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery(), cors())

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)
	r.GET("/feeds/:code", handler.GetFeed)
	r.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	endpoints := map[string]string{
		"health": "/health",
		"stats":  "/stats",
		"feed":   "/feeds/<source>",
	}

	if apiAccessKey != "" {
		group := r.Group("/api", authMiddleware(apiAccessKey))
		for _, rt := range apiRoutes {
			group.Handle(rt.method, rt.path, rt.handler(handler))
			endpoints[rt.name] = rt.method + " /api" + rt.path
		}
		slog.Info("API endpoints enabled", "routes", len(apiRoutes))
	} else {
		slog.Info("API endpoints disabled, API_ACCESS_KEY not set")
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "News Comb",
			"description": "Template-driven news article ingestion",
			"endpoints":   endpoints,
			"api_status": gin.H{
				"enabled": apiAccessKey != "",
				"header":  apiKeyHeader,
			},
		})
	})

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started),
			"client", c.ClientIP(),
			"user_agent", c.Request.UserAgent())
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+apiKeyHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authMiddleware takes the key from X-API-Key or a Bearer token.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	expected := []byte(apiAccessKey)

	return func(c *gin.Context) {
		provided := c.GetHeader(apiKeyHeader)
		if provided == "" {
			provided, _ = strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		switch {
		case provided == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide the key in the X-API-Key header or as Authorization: Bearer <key>",
			})
		case subtle.ConstantTimeCompare([]byte(provided), expected) != 1:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
		default:
			c.Next()
		}
	}
}
