package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/news-comb/app/article"
)

var _ ArticleRepository = (*ArticleRepo)(nil)

// ArticleRepo handles database operations for stored articles
type ArticleRepo struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

var articleColumns = []string{
	"n.id", "n.source_id", "s.code", "n.url", "n.title", "n.summary", "n.content",
	"n.published_at", "n.published_at_assumed_utc", "n.collected_at", "n.language",
	"n.author", "n.sentiment_score", "n.sentiment_label", "n.sentiment_model",
}

func (r *ArticleRepo) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM news WHERE url = ? LIMIT 1`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article existence: %w", err)
	}
	return true, nil
}

// Insert stores a new article. A URL that is already stored yields
// ErrDuplicateURL.
func (r *ArticleRepo) Insert(ctx context.Context, a article.Stored) (string, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO news (
			id, source_id, url, title, summary, content,
			published_at, published_at_assumed_utc, collected_at, language, author
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SourceID, a.URL, nullString(a.Title), nullString(a.Summary), a.Content,
		nullTime(a.PublishedAt), a.PublishedAtAssumedUTC, formatTime(a.CollectedAt), a.Language,
		nullString(a.Author))

	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateURL
		}
		return "", fmt.Errorf("failed to insert article: %w", err)
	}

	return a.ID, nil
}

func (r *ArticleRepo) GetArticle(ctx context.Context, id string) (*article.Stored, error) {
	query, args, err := r.selectArticles().Where(sq.Eq{"n.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	articles, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return &articles[0], nil
}

// ListArticles returns articles newest first.
func (r *ArticleRepo) ListArticles(ctx context.Context, filter ArticleFilter) ([]article.Stored, error) {
	builder := applyFilter(r.selectArticles(), filter).
		OrderBy("COALESCE(n.published_at, n.collected_at) DESC", "n.id")

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	articles, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

func (r *ArticleRepo) CountArticles(ctx context.Context, filter ArticleFilter) (int, error) {
	builder := applyFilter(
		sq.Select("COUNT(*)").From("news n").Join("news_sources s ON s.id = n.source_id"),
		filter,
	)

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

func (r *ArticleRepo) GetSourceStats(ctx context.Context) ([]SourceStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.code, COUNT(n.id), MAX(n.collected_at)
		FROM news_sources s
		LEFT JOIN news n ON n.source_id = s.id
		GROUP BY s.code
		ORDER BY s.code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get source stats: %w", err)
	}
	defer rows.Close()

	stats := []SourceStats{}
	for rows.Next() {
		var st SourceStats
		var latest sql.NullString
		if err := rows.Scan(&st.Code, &st.Articles, &latest); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		if latest.Valid {
			t, err := parseTime(latest.String)
			if err != nil {
				return nil, err
			}
			st.Latest = &t
		}
		stats = append(stats, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats rows: %w", err)
	}

	return stats, nil
}

// ListUnscored returns the oldest articles that have no sentiment yet.
func (r *ArticleRepo) ListUnscored(ctx context.Context, limit int) ([]article.Stored, error) {
	builder := r.selectArticles().
		Where(sq.Eq{"n.sentiment_label": nil}).
		OrderBy("n.collected_at", "n.id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	articles, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unscored articles: %w", err)
	}
	return articles, nil
}

// UpdateSentiment writes only the sentiment columns of an article.
func (r *ArticleRepo) UpdateSentiment(ctx context.Context, id string, sentiment article.Sentiment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE news
		SET sentiment_score = ?, sentiment_label = ?, sentiment_model = ?
		WHERE id = ?
	`, sentiment.Score, sentiment.Label, sentiment.Model, id)
	if err != nil {
		return fmt.Errorf("failed to update sentiment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrArticleNotFound, id)
	}

	return nil
}

func (r *ArticleRepo) selectArticles() sq.SelectBuilder {
	return sq.Select(articleColumns...).
		From("news n").
		Join("news_sources s ON s.id = n.source_id")
}

func applyFilter(builder sq.SelectBuilder, filter ArticleFilter) sq.SelectBuilder {
	if filter.SourceCode != "" {
		builder = builder.Where(sq.Eq{"s.code": filter.SourceCode})
	}
	if filter.Sentiment != "" {
		builder = builder.Where(sq.Eq{"n.sentiment_label": filter.Sentiment})
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"n.title": term},
			sq.Like{"n.summary": term},
			sq.Like{"n.content": term},
		})
	}
	if filter.Since != nil {
		builder = builder.Where(sq.GtOrEq{"n.published_at": formatTime(*filter.Since)})
	}
	if filter.Until != nil {
		builder = builder.Where(sq.Lt{"n.published_at": formatTime(*filter.Until)})
	}
	return builder
}

func (r *ArticleRepo) query(ctx context.Context, query string, args ...any) ([]article.Stored, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := []article.Stored{}
	for rows.Next() {
		var a article.Stored
		var title, summary, publishedAt, author sql.NullString
		var sentimentLabel, sentimentModel sql.NullString
		var sentimentScore sql.NullFloat64
		var collectedAt string

		err := rows.Scan(
			&a.ID, &a.SourceID, &a.SourceCode, &a.URL, &title, &summary, &a.Content,
			&publishedAt, &a.PublishedAtAssumedUTC, &collectedAt, &a.Language,
			&author, &sentimentScore, &sentimentLabel, &sentimentModel,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}

		a.Title = stringPtr(title)
		a.Summary = stringPtr(summary)
		a.Author = stringPtr(author)

		if publishedAt.Valid {
			t, err := parseTime(publishedAt.String)
			if err != nil {
				return nil, err
			}
			a.PublishedAt = &t
		}

		if a.CollectedAt, err = parseTime(collectedAt); err != nil {
			return nil, err
		}

		if sentimentLabel.Valid {
			a.Sentiment = &article.Sentiment{
				Score: sentimentScore.Float64,
				Label: sentimentLabel.String,
				Model: sentimentModel.String,
			}
		}

		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}
