package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/template"
)

// Repository is the part of the source store the registry writes to.
type Repository interface {
	UpsertSource(ctx context.Context, source database.Source) (int64, bool, error)
	DisableSourcesExcept(ctx context.Context, codes []string) (int64, error)
}

var _ Repository = (*database.SourceRepo)(nil)

// Registry loads one YAML file per source from a directory and keeps the
// result in memory.
type Registry struct {
	sourcesDir string
	cache      map[string]*Source
	mu         sync.RWMutex
}

func NewRegistry(sourcesDir string) *Registry {
	return &Registry{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Source),
	}
}

// Run loads every *.yml and *.yaml file. A missing directory is not an error.
func (r *Registry) Run() error {
	if _, err := os.Stat(r.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(r.sourcesDir, pattern))
		if err != nil {
			return fmt.Errorf("failed to find source files: %w", err)
		}
		files = append(files, matches...)
	}

	loaded := make(map[string]*Source, len(files))
	for _, file := range files {
		code := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if _, dup := loaded[code]; dup {
			return fmt.Errorf("duplicate source code %q in %s", code, r.sourcesDir)
		}

		src, err := loadFile(file, code)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		loaded[code] = src

		slog.Debug("Source loaded", "source", code, "enabled", src.Enabled, "list_url", src.ListURL)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = loaded

	return nil
}

// Sync upserts every loaded source by code, records the assigned IDs and
// disables stored sources that no longer have a file.
func (r *Registry) Sync(ctx context.Context, repo Repository) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, 0, len(r.cache))
	for code, src := range r.cache {
		id, urlChanged, err := repo.UpsertSource(ctx, src.record())
		if err != nil {
			return fmt.Errorf("failed to sync source %s: %w", code, err)
		}
		src.ID = id
		codes = append(codes, code)

		if urlChanged {
			slog.Info("Source URL updated", "source", code, "base_url", src.BaseURL, "list_url", src.ListURL)
		}
	}

	disabled, err := repo.DisableSourcesExcept(ctx, codes)
	if err != nil {
		return fmt.Errorf("failed to disable removed sources: %w", err)
	}

	slog.Info("Sources synced", "total", len(codes), "disabled", disabled)
	return nil
}

func (r *Registry) Get(code string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.cache[code]
	if !ok {
		return Source{}, fmt.Errorf("source '%s' not found", code)
	}
	return *src, nil
}

// All returns every loaded source ordered by code.
func (r *Registry) All() []Source {
	return r.list(func(Source) bool { return true })
}

// Enabled returns the enabled sources ordered by code.
func (r *Registry) Enabled() []Source {
	return r.list(func(s Source) bool { return s.Enabled })
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Registry) list(keep func(Source) bool) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, 0, len(r.cache))
	for _, src := range r.cache {
		if keep(*src) {
			sources = append(sources, *src)
		}
	}
	slices.SortFunc(sources, func(a, b Source) int {
		return strings.Compare(a.Code, b.Code)
	})
	return sources
}

func loadFile(path, code string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config, err := templateBlob(&fc.Template)
	if err != nil {
		return nil, err
	}

	src := &Source{
		Code:        code,
		Name:        strings.TrimSpace(fc.Name),
		BaseURL:     strings.TrimSpace(fc.BaseURL),
		ListURL:     strings.TrimSpace(fc.ListURL),
		Enabled:     fc.Enabled == nil || *fc.Enabled,
		Config:      config,
		Template:    template.Load([]byte(config)),
		Filters:     fc.Filters,
		MaxArticles: fc.Settings.MaxArticles,
	}

	if err := validate(src); err != nil {
		return nil, fmt.Errorf("invalid source config: %w", err)
	}

	return src, nil
}

// templateBlob turns the template field into the serialized form stored in
// the database. It may be written inline as a mapping or as a JSON string.
func templateBlob(node *yaml.Node) (string, error) {
	switch node.Kind {
	case 0:
		return "", nil
	case yaml.ScalarNode:
		return strings.TrimSpace(node.Value), nil
	case yaml.MappingNode:
		out, err := yaml.Marshal(node)
		if err != nil {
			return "", fmt.Errorf("failed to encode template: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("template must be a mapping or a string")
	}
}

func validate(src *Source) error {
	if src.Code == "" {
		return fmt.Errorf("source code is required")
	}

	requiredFields := map[string]string{
		"name":     src.Name,
		"base URL": src.BaseURL,
	}
	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	urlFields := map[string]string{
		"base URL": src.BaseURL,
		"list URL": src.ListURL,
	}
	for fieldName, fieldValue := range urlFields {
		if fieldValue == "" {
			continue
		}
		u, err := url.Parse(fieldValue)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL: %q", fieldName, fieldValue)
		}
	}

	if src.MaxArticles < 0 {
		return fmt.Errorf("max_articles must not be negative, got %d", src.MaxArticles)
	}

	for i, rule := range src.Filters {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i+1, err)
		}
	}

	return nil
}
