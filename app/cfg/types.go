package cfg

import "time"

type Cfg struct {
	// Storage and sources
	DBPath     string
	SourcesDir string

	// HTTP surface
	Port         string
	BaseURL      string
	APIAccessKey string

	// Crawl scheduling
	Schedule           string
	RunOnce            bool
	RunTimeout         time.Duration
	SourceConcurrency  int
	ArticleConcurrency int
	MaxErrorsPerSource int

	// Fetching
	FetchTimeout time.Duration
	UserAgent    string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
