package database

import (
	"time"
)

// Source represents a news source record in the database
type Source struct {
	ID        int64
	Code      string // Stable identifier from the sources file
	Name      string
	BaseURL   string
	ListURL   string
	Enabled   bool
	Config    string // Serialized extraction template
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArticleFilter narrows article listings. Zero values mean no restriction.
type ArticleFilter struct {
	SourceCode string
	Sentiment  string // Matches sentiment_label exactly
	Search     string // Substring of title, summary or content
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// SourceStats summarizes stored articles per source.
type SourceStats struct {
	Code     string
	Articles int
	Latest   *time.Time
}
