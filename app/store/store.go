// Package store deduplicates canonical article records by URL and persists
// new ones.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/database"
)

// ErrStorage wraps persistence failures other than duplicates.
var ErrStorage = errors.New("storage failure")

type Outcome int

const (
	Inserted Outcome = iota
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Persistence is the subset of the article repository the store needs.
type Persistence interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, a article.Stored) (string, error)
}

var _ Persistence = (*database.ArticleRepo)(nil)

type Store struct {
	db  Persistence
	now func() time.Time
}

func New(db Persistence) *Store {
	return &Store{
		db:  db,
		now: time.Now,
	}
}

func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	exists, err := s.db.ExistsByURL(ctx, url)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return exists, nil
}

// Save stores rec under sourceID unless its URL is already known. A
// concurrent insert of the same URL is reported as Skipped.
func (s *Store) Save(ctx context.Context, sourceID int64, rec article.Record) (Outcome, *article.Stored, error) {
	exists, err := s.Exists(ctx, rec.URL)
	if err != nil {
		return Skipped, nil, err
	}
	if exists {
		return Skipped, nil, nil
	}

	stored := article.Stored{
		Record:      rec,
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		CollectedAt: s.now().UTC(),
	}

	if _, err := s.db.Insert(ctx, stored); err != nil {
		if errors.Is(err, database.ErrDuplicateURL) {
			return Skipped, nil, nil
		}
		return Skipped, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return Inserted, &stored, nil
}
