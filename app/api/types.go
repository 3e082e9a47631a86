package api

import (
	"context"
	"time"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/crawler"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/scheduler"
	"github.com/lysyi3m/news-comb/app/source"
)

type SourceRegistry interface {
	All() []source.Source
	Get(code string) (source.Source, error)
	Count() int
}

type CrawlTrigger interface {
	Trigger(ctx context.Context) (crawler.RunReport, error)
	TriggerAsync() error
	Health() map[string]any
	GetStats() scheduler.Stats
}

var (
	_ SourceRegistry = (*source.Registry)(nil)
	_ CrawlTrigger   = (*scheduler.Scheduler)(nil)
)

type Handler struct {
	sourceRepo  database.SourceRepository
	articleRepo database.ArticleRepository
	registry    SourceRegistry
	trigger     CrawlTrigger
	generator   *feed.Generator
}

type sentimentRequest struct {
	Score *float64 `json:"score" binding:"required"`
	Label string   `json:"label" binding:"required,oneof=positive negative neutral"`
	Model string   `json:"model" binding:"required"`
}

type articleResponse struct {
	ID                    string     `json:"id"`
	Source                string     `json:"source"`
	URL                   string     `json:"url"`
	Title                 *string    `json:"title"`
	Summary               *string    `json:"summary"`
	Content               string     `json:"content,omitempty"`
	PublishedAt           *time.Time `json:"published_at"`
	PublishedAtAssumedUTC bool       `json:"published_at_assumed_utc"`
	CollectedAt           time.Time  `json:"collected_at"`
	Language              string     `json:"language"`
	Author                *string    `json:"author"`
	SentimentScore        *float64   `json:"sentiment_score"`
	SentimentLabel        *string    `json:"sentiment_label"`
	SentimentModel        *string    `json:"sentiment_model"`
}

func newArticleResponse(a article.Stored, withContent bool) articleResponse {
	resp := articleResponse{
		ID:                    a.ID,
		Source:                a.SourceCode,
		URL:                   a.URL,
		Title:                 a.Title,
		Summary:               a.Summary,
		PublishedAt:           a.PublishedAt,
		PublishedAtAssumedUTC: a.PublishedAtAssumedUTC,
		CollectedAt:           a.CollectedAt,
		Language:              a.Language,
		Author:                a.Author,
	}
	if withContent {
		resp.Content = a.Content
	}
	if s := a.Sentiment; s != nil {
		resp.SentimentScore = &s.Score
		resp.SentimentLabel = &s.Label
		resp.SentimentModel = &s.Model
	}
	return resp
}
