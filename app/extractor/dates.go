package extractor

import (
	"log/slog"
	"strings"
)

var fallbackDateMeta = []string{
	"article:published_time",
	"og:updated_time",
}

// DateFallback looks for a publication date in meta tags and the first
// <time> element. Each candidate that fails to parse is skipped.
type DateFallback struct{}

func (DateFallback) Name() string { return "date_fallback" }

func (DateFallback) Apply(page *Page, res *Result) {
	if res.PublishedAt != nil {
		return
	}

	for _, raw := range dateCandidates(page) {
		if res.SetDate(raw) {
			return
		}
		slog.Debug("Skipping unparseable date candidate", "url", page.url(), "value", raw)
	}
}

func dateCandidates(page *Page) []string {
	var out []string

	keys := append([]string{page.Template.DateMeta}, fallbackDateMeta...)
	for _, key := range keys {
		if v := metaContent(page.Doc, key); v != "" {
			out = append(out, v)
		}
	}

	timeTag := page.Doc.Find("time").First()
	if timeTag.Length() > 0 {
		if v := strings.TrimSpace(timeTag.AttrOr("datetime", "")); v != "" {
			out = append(out, v)
		}
		if v := strings.TrimSpace(timeTag.Text()); v != "" {
			out = append(out, v)
		}
	}

	return out
}
