// Package extractor turns an article page into a raw extraction result by
// running an ordered chain of strategies.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/news-comb/app/template"
)

// ErrNoContent is returned when no strategy produced article content.
var ErrNoContent = errors.New("no content extracted")

type Extractor struct {
	strategies []Strategy
}

// DefaultStrategies is the production chain: generic boilerplate removal,
// template selectors, generic heuristics, then the date fallbacks.
func DefaultStrategies() []Strategy {
	return []Strategy{
		Readability{},
		TemplateSelectors{},
		Heuristics{MinContentLength: DefaultMinContentLength},
		DateFallback{},
	}
}

// New builds an extractor running strategies in the given order. With no
// arguments the default chain is used.
func New(strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Extractor{strategies: strategies}
}

func (e *Extractor) Run(data []byte, tmpl template.Template, pageURL string) (Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Result{}, fmt.Errorf("%w: empty page", ErrNoContent)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse page: %w", err)
	}

	page := &Page{
		Body:     data,
		Doc:      doc,
		Template: tmpl,
	}
	if u, err := url.Parse(pageURL); err == nil && u.Scheme != "" {
		page.URL = u
	}

	var res Result
	for _, strategy := range e.strategies {
		if res.complete() {
			break
		}
		strategy.Apply(page, &res)
	}

	res.Title = strings.TrimSpace(res.Title)
	res.Content = strings.TrimSpace(res.Content)
	if res.Content == "" {
		return res, ErrNoContent
	}

	slog.Debug("Article extracted",
		"url", pageURL,
		"title", res.Title,
		"content_length", len(res.Content),
		"has_date", res.PublishedAt != nil)

	return res, nil
}
