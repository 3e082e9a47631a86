package normalize

import (
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/news-comb/app/article"
	"github.com/lysyi3m/news-comb/app/extractor"
)

const DefaultLanguage = "en"

// Article converts a raw extraction result into a canonical record.
// Collection time and the source reference are assigned by the store.
func Article(raw extractor.Result, sourceCode, url string) article.Record {
	rec := article.Record{
		URL:        strings.TrimSpace(url),
		SourceCode: sourceCode,
		Title:      optional(raw.Title),
		Author:     optional(raw.Author),
		Language:   canonicalLanguage(raw.Language),
	}

	if content := optional(raw.Content); content != nil {
		rec.Content = *content
	}

	if raw.PublishedAt != nil {
		t := raw.PublishedAt.UTC()
		rec.PublishedAt = &t
		rec.PublishedAtAssumedUTC = raw.PublishedNaive
		if raw.PublishedNaive {
			slog.Debug("Published date has no zone, assuming UTC", "url", url, "published_at", t)
		}
	}

	return rec
}

// optional trims and NFC-normalizes s, returning nil for blank input.
func optional(s string) *string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return nil
	}
	return &s
}

func canonicalLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLanguage
	}

	tag, err := language.Parse(raw)
	if err != nil {
		return DefaultLanguage
	}

	base, confidence := tag.Base()
	if confidence == language.No {
		return DefaultLanguage
	}
	return base.String()
}
