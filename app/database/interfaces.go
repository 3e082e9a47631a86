package database

import (
	"context"

	"github.com/lysyi3m/news-comb/app/article"
)

type SourceRepository interface {
	UpsertSource(ctx context.Context, source Source) (int64, bool, error)
	GetSource(ctx context.Context, code string) (*Source, error)
	ListSources(ctx context.Context, enabledOnly bool) ([]Source, error)
	DisableSourcesExcept(ctx context.Context, codes []string) (int64, error)
	GetSourceCount(ctx context.Context) (int, error)
}

type ArticleRepository interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, a article.Stored) (string, error)

	GetArticle(ctx context.Context, id string) (*article.Stored, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]article.Stored, error)
	CountArticles(ctx context.Context, filter ArticleFilter) (int, error)
	GetSourceStats(ctx context.Context) ([]SourceStats, error)

	ListUnscored(ctx context.Context, limit int) ([]article.Stored, error)
	UpdateSentiment(ctx context.Context, id string, sentiment article.Sentiment) error
}
