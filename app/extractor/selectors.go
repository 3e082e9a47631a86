package extractor

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// TemplateSelectors applies the source template's selectors to fields that
// are still empty.
type TemplateSelectors struct{}

func (TemplateSelectors) Name() string { return "template" }

func (TemplateSelectors) Apply(page *Page, res *Result) {
	tmpl := page.Template

	if res.Title == "" && tmpl.TitleSelector != "" {
		res.Title = firstText(page.Doc, tmpl.TitleSelector)
	}

	if res.Content == "" && tmpl.ContentSelector != "" {
		res.Content = longestBlock(page.Doc, tmpl.ContentSelector)
	}

	if res.PublishedAt == nil && tmpl.DateMeta != "" {
		if raw := metaContent(page.Doc, tmpl.DateMeta); raw != "" && !res.SetDate(raw) {
			slog.Debug("Unparseable template date", "url", page.url(), "meta", tmpl.DateMeta, "value", raw)
		}
	}
}

func firstText(doc *goquery.Document, selector string) string {
	var text string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = strings.Join(strings.Fields(s.Text()), " ")
		return text == ""
	})
	return text
}

// longestBlock returns the longest text block among all nodes matching
// selector.
func longestBlock(doc *goquery.Document, selector string) string {
	var best string
	bestLen := 0

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := blockText(s)
		if n := utf8.RuneCountInString(text); n > bestLen {
			best, bestLen = text, n
		}
	})

	return best
}
