// Package article holds the canonical article record shared by the
// normalizer, the store and the API.
package article

import (
	"time"
)

// Record is a normalized article ready to be stored. Optional text fields
// are nil when absent, never empty strings.
type Record struct {
	URL         string
	SourceCode  string
	Title       *string
	Summary     *string // not populated at ingestion
	Content     string
	PublishedAt *time.Time // UTC
	// PublishedAtAssumedUTC marks dates whose source carried no zone.
	PublishedAtAssumedUTC bool
	Language              string
	Author                *string
}

// Stored is a persisted Record.
type Stored struct {
	Record
	ID          string
	SourceID    int64
	CollectedAt time.Time
	Sentiment   *Sentiment
}

// Sentiment is written by an enrichment job, never by ingestion.
type Sentiment struct {
	Score float64
	Label string
	Model string
}
