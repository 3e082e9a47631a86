package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var _ SourceRepository = (*SourceRepo)(nil)

// SourceRepo handles database operations for news sources
type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// UpsertSource inserts or updates a source by code. It returns the database
// ID and whether the list or base URL changed.
func (r *SourceRepo) UpsertSource(ctx context.Context, source Source) (int64, bool, error) {
	existing, err := r.GetSource(ctx, source.Code)
	if err != nil {
		return 0, false, fmt.Errorf("failed to check existing source: %w", err)
	}

	var id int64
	var urlChanged bool
	if existing != nil {
		urlChanged = existing.BaseURL != source.BaseURL || existing.ListURL != source.ListURL

		err = r.db.QueryRowContext(ctx, `
			UPDATE news_sources
			SET name = ?, base_url = ?, list_url = ?, enabled = ?, config = ?,
			    updated_at = strftime('%Y-%m-%d %H:%M:%S', 'now')
			WHERE code = ?
			RETURNING id
		`, source.Name, source.BaseURL, source.ListURL, source.Enabled, source.Config, source.Code).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, `
			INSERT INTO news_sources (code, name, base_url, list_url, enabled, config)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`, source.Code, source.Name, source.BaseURL, source.ListURL, source.Enabled, source.Config).Scan(&id)
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to upsert source: %w", err)
	}

	return id, urlChanged, nil
}

func (r *SourceRepo) GetSource(ctx context.Context, code string) (*Source, error) {
	rows, err := r.querySources(ctx, sq.Eq{"code": code})
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *SourceRepo) ListSources(ctx context.Context, enabledOnly bool) ([]Source, error) {
	var where sq.Sqlizer = sq.Expr("1 = 1")
	if enabledOnly {
		where = sq.Eq{"enabled": true}
	}

	sources, err := r.querySources(ctx, where)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// DisableSourcesExcept disables every source whose code is not listed.
func (r *SourceRepo) DisableSourcesExcept(ctx context.Context, codes []string) (int64, error) {
	query, args, err := sq.Update("news_sources").
		Set("enabled", false).
		Set("updated_at", sq.Expr("strftime('%Y-%m-%d %H:%M:%S', 'now')")).
		Where(sq.Eq{"enabled": true}).
		Where(sq.NotEq{"code": codes}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to disable sources: %w", err)
	}

	return res.RowsAffected()
}

func (r *SourceRepo) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM news_sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func (r *SourceRepo) querySources(ctx context.Context, where sq.Sqlizer) ([]Source, error) {
	query, args, err := sq.Select(
		"id", "code", "name", "base_url", "COALESCE(list_url, '')", "enabled",
		"COALESCE(config, '')", "created_at", "updated_at",
	).
		From("news_sources").
		Where(where).
		OrderBy("code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		var s Source
		var createdAt, updatedAt string
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.BaseURL, &s.ListURL, &s.Enabled,
			&s.Config, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}
