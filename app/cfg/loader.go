package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage and sources
	DBPath     string `long:"db-path" env:"DB_PATH" default:"./data/news.db" description:"Path to the SQLite database file"`
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source definition files"`

	// HTTP surface
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseURL      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Crawl scheduling
	Schedule           string        `long:"schedule" env:"SCHEDULE" default:"@every 15m" description:"Cron expression or @every interval for crawl runs"`
	Once               bool          `long:"once" env:"RUN_ONCE" description:"Run a single crawl pass and exit"`
	RunTimeout         time.Duration `long:"run-timeout" env:"RUN_TIMEOUT" default:"10m" description:"Upper bound for a single crawl run"`
	SourceConcurrency  int           `long:"source-concurrency" env:"SOURCE_CONCURRENCY" default:"4" description:"Sources processed in parallel"`
	ArticleConcurrency int           `long:"article-concurrency" env:"ARTICLE_CONCURRENCY" default:"4" description:"Articles fetched in parallel per source"`
	MaxErrors          int           `long:"max-errors" env:"MAX_ERRORS_PER_SOURCE" default:"5" description:"Error messages kept per source in a run report"`

	// Fetching
	FetchTimeout time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Timeout for a single HTTP fetch"`
	UserAgent    string        `long:"user-agent" env:"USER_AGENT" default:"News Comb/1.0" description:"User agent string for HTTP requests"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for log timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load reads flags and environment. It returns nil, nil when help was shown.
func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		SourcesDir:         raw.SourcesDir,
		Port:               raw.Port,
		BaseURL:            raw.BaseURL,
		APIAccessKey:       raw.APIAccessKey,
		Schedule:           raw.Schedule,
		RunOnce:            raw.Once,
		RunTimeout:         raw.RunTimeout,
		SourceConcurrency:  raw.SourceConcurrency,
		ArticleConcurrency: raw.ArticleConcurrency,
		MaxErrorsPerSource: raw.MaxErrors,
		FetchTimeout:       raw.FetchTimeout,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

func (c *Cfg) validate() error {
	if c.DBPath == "" {
		return errors.New("db-path must not be empty")
	}
	if c.SourceConcurrency < 1 {
		return fmt.Errorf("source-concurrency must be at least 1, got %d", c.SourceConcurrency)
	}
	if c.ArticleConcurrency < 1 {
		return fmt.Errorf("article-concurrency must be at least 1, got %d", c.ArticleConcurrency)
	}
	if c.MaxErrorsPerSource < 0 {
		return fmt.Errorf("max-errors must not be negative, got %d", c.MaxErrorsPerSource)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch-timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run-timeout must be positive, got %s", c.RunTimeout)
	}
	return nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
