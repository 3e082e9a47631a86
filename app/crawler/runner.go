// Package crawler drives one ingestion pass: list fetch, classification, and
// the per-article fetch, extract, normalize and store pipeline.
package crawler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/extractor"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/fetcher"
	"github.com/lysyi3m/news-comb/app/normalize"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/store"
)

const (
	DefaultSourceConcurrency  = 4
	DefaultArticleConcurrency = 4
	DefaultMaxErrorsPerSource = 5
)

var (
	ErrNoListURL   = errors.New("source has no list URL")
	ErrRunCanceled = errors.New("run cancelled")
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Store interface {
	Exists(ctx context.Context, url string) (bool, error)
	Save(ctx context.Context, sourceID int64, rec article.Record) (store.Outcome, *article.Stored, error)
}

var (
	_ Fetcher = (*fetcher.HTTPFetcher)(nil)
	_ Store   = (*store.Store)(nil)
)

type Config struct {
	SourceConcurrency  int
	ArticleConcurrency int
	MaxErrorsPerSource int
}

type Runner struct {
	fetcher   Fetcher
	store     Store
	extractor *extractor.Extractor
	cfg       Config
}

func NewRunner(f Fetcher, s Store, ex *extractor.Extractor, cfg Config) *Runner {
	if ex == nil {
		ex = extractor.New()
	}
	if cfg.SourceConcurrency <= 0 {
		cfg.SourceConcurrency = DefaultSourceConcurrency
	}
	if cfg.ArticleConcurrency <= 0 {
		cfg.ArticleConcurrency = DefaultArticleConcurrency
	}
	if cfg.MaxErrorsPerSource <= 0 {
		cfg.MaxErrorsPerSource = DefaultMaxErrorsPerSource
	}

	return &Runner{
		fetcher:   f,
		store:     s,
		extractor: ex,
		cfg:       cfg,
	}
}

// RunOnce processes every enabled source and returns the aggregated report.
// Failures stay inside the source or article that caused them; RunOnce
// itself never fails. Cancelling ctx stops new fetches.
func (r *Runner) RunOnce(ctx context.Context, sources []source.Source) RunReport {
	report := RunReport{StartedAt: time.Now().UTC()}
	rc := newRunContext(ctx)

	enabled := make([]source.Source, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	results := make([]SourceReport, len(enabled))
	sem := make(chan struct{}, r.cfg.SourceConcurrency)
	var wg sync.WaitGroup

	for i, src := range enabled {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = SourceReport{Code: src.Code, Aborted: true, ErrorCount: 1, Errors: []string{ErrRunCanceled.Error()}}
			continue
		}

		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.runSource(rc, src)
		}(i, src)
	}
	wg.Wait()

	for _, sr := range results {
		report.add(sr)
	}
	report.FinishedAt = time.Now().UTC()

	slog.Info("Run completed",
		"sources", len(enabled),
		"processed", report.SourcesProcessed,
		"failed", report.SourcesFailed,
		"stored", report.ArticlesStored,
		"skipped", report.ArticlesSkipped,
		"filtered", report.ArticlesFiltered,
		"errors", report.Errors,
		"duration", report.Duration())

	return report
}

func (r *Runner) runSource(rc *runContext, src source.Source) (out SourceReport) {
	started := time.Now()
	run := newSourceRun(src.Code, r.cfg.MaxErrorsPerSource)
	var wg sync.WaitGroup

	defer func() {
		p := recover()
		// workers still write to run until they return
		wg.Wait()
		if p != nil {
			slog.Error("Source panicked", "source", src.Code, "panic", p)
			run.abort(fmt.Errorf("panic: %v", p))
		}
		out = run.snapshot()

		slog.Info("Source completed",
			"source", src.Code,
			"duration", time.Since(started),
			"candidates", out.Candidates,
			"stored", out.Stored,
			"skipped", out.Skipped,
			"filtered", out.Filtered,
			"failed", out.Failed,
			"aborted", out.Aborted)
	}()

	candidates, err := r.listCandidates(rc, src)
	if err != nil {
		slog.Warn("Source skipped", "source", src.Code, "error", err)
		run.abort(err)
		return
	}
	if src.MaxArticles > 0 && len(candidates) > src.MaxArticles {
		candidates = candidates[:src.MaxArticles]
	}
	run.report.Candidates = len(candidates)

	filterer := feed.NewFilterer(src.Filters)
	sem := make(chan struct{}, r.cfg.ArticleConcurrency)

	for _, cand := range candidates {
		if filtered, reason := filterer.Candidate(cand.URL); filtered {
			slog.Debug("Candidate filtered", "source", src.Code, "url", cand.URL, "reason", reason)
			run.filtered()
			continue
		}
		if !rc.claim(cand.URL) {
			run.skipped()
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-rc.ctx.Done():
		}
		if rc.cancelled() {
			run.note(ErrRunCanceled)
			break
		}

		wg.Add(1)
		go func(cand feed.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			r.processArticle(rc, src, cand, filterer, run)
		}(cand)
	}

	return
}

// listCandidates fetches the source's list page and classifies it.
func (r *Runner) listCandidates(rc *runContext, src source.Source) ([]feed.Candidate, error) {
	listURL := cmp.Or(src.Template.ListURL, src.ListURL, src.BaseURL)
	if listURL == "" {
		return nil, ErrNoListURL
	}

	if rc.cancelled() {
		return nil, ErrRunCanceled
	}

	body, err := r.fetcher.Fetch(rc.ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list %s: %w", listURL, err)
	}

	var candidates []feed.Candidate
	if feed.IsFeed(body) {
		items, err := feed.NewParser().Run(body)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if abs := absoluteURL(listURL, item.URL); abs != "" {
				item.URL = abs
				candidates = append(candidates, item)
			}
		}
	} else {
		for _, link := range feed.ExtractListLinks(body, src.Template, src.BaseURL) {
			candidates = append(candidates, feed.Candidate{URL: link})
		}
	}

	if len(candidates) == 0 {
		slog.Info("No article links on list page", "source", src.Code, "list_url", listURL)
		return []feed.Candidate{}, nil
	}

	slog.Debug("Candidates found", "source", src.Code, "list_url", listURL, "count", len(candidates))
	return candidates, nil
}

func (r *Runner) processArticle(rc *runContext, src source.Source, cand feed.Candidate, filterer *feed.Filterer, run *sourceRun) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Article panicked", "source", src.Code, "url", cand.URL, "panic", p)
			run.failArticle(fmt.Errorf("%s: panic: %v", cand.URL, p))
		}
	}()

	fail := func(err error) {
		slog.Warn("Article failed", "source", src.Code, "url", cand.URL, "error", err)
		run.failArticle(fmt.Errorf("%s: %w", cand.URL, err))
	}

	exists, err := r.store.Exists(rc.ctx, cand.URL)
	if err != nil {
		fail(err)
		return
	}
	if exists {
		run.skipped()
		return
	}

	if rc.cancelled() {
		run.note(ErrRunCanceled)
		return
	}

	body, err := r.fetcher.Fetch(rc.ctx, cand.URL)
	if err != nil {
		fail(err)
		return
	}

	raw, err := r.extractor.Run(body, src.Template, cand.URL)
	if err != nil {
		fail(err)
		return
	}

	if raw.PublishedAt == nil && cand.DateHint != "" {
		raw.SetDate(cand.DateHint)
	}

	rec := normalize.Article(raw, src.Code, cand.URL)

	if filtered, reason := filterer.Article(rec); filtered {
		slog.Debug("Article filtered", "source", src.Code, "url", cand.URL, "reason", reason)
		run.filtered()
		return
	}

	outcome, stored, err := r.store.Save(rc.ctx, src.ID, rec)
	if err != nil {
		fail(err)
		return
	}

	switch outcome {
	case store.Inserted:
		run.stored()
		slog.Debug("Article stored", "source", src.Code, "url", cand.URL, "id", stored.ID)
	default:
		run.skipped()
		slog.Debug("Article already stored", "source", src.Code, "url", cand.URL)
	}
}

// absoluteURL resolves a feed item link against the feed location and keeps
// only http(s) results.
func absoluteURL(base, link string) string {
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	if b, err := url.Parse(base); err == nil {
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}
