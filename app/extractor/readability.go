package extractor

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
)

// Readability is the generic boilerplate-removal strategy. Besides the
// readability text it reads the publication date from JSON-LD article
// metadata when the page carries any.
type Readability struct{}

func (Readability) Name() string { return "readability" }

func (Readability) Apply(page *Page, res *Result) {
	article, err := readability.FromReader(bytes.NewReader(page.Body), page.URL)
	if err != nil {
		slog.Debug("Readability extraction failed", "url", page.url(), "error", err)
	} else {
		fill(&res.Title, strings.TrimSpace(article.Title))
		fill(&res.Content, strings.TrimSpace(article.TextContent))
		fill(&res.Author, strings.TrimSpace(article.Byline))
		fill(&res.Language, strings.TrimSpace(article.Language))
	}

	if res.PublishedAt == nil {
		for _, raw := range jsonLDDates(page.Doc) {
			if res.SetDate(raw) {
				break
			}
		}
	}
}

var articleTypes = map[string]bool{
	"Article":              true,
	"NewsArticle":          true,
	"BlogPosting":          true,
	"ReportageNewsArticle": true,
}

// jsonLDDates returns datePublished values of article objects in document
// order.
func jsonLDDates(doc *goquery.Document) []string {
	var out []string

	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		var data any
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			return
		}

		var objs []any
		switch v := data.(type) {
		case []any:
			objs = v
		case map[string]any:
			if graph, ok := v["@graph"].([]any); ok {
				objs = graph
			} else {
				objs = []any{v}
			}
		default:
			return
		}

		for _, obj := range objs {
			m, ok := obj.(map[string]any)
			if !ok {
				continue
			}
			typ, _ := m["@type"].(string)
			if !articleTypes[typ] {
				continue
			}
			if published, ok := m["datePublished"].(string); ok && published != "" {
				out = append(out, published)
			}
		}
	})

	return out
}
