package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const DefaultMinContentLength = 100

var headlineSelectors = []string{
	"h1[data-testid='headline']",
	"h1[class*='headline']",
	"h1[class*='title']",
	"h1",
}

var contentContainers = []string{
	"div.article-content",
	"div.article-body",
	"div.at-body",
	"div.at-text",
	"div.post-content",
	"div.entry-content",
	"[role='main']",
	"div[class*='content']",
	"section[class*='content']",
	"main",
}

// Heuristics fills title and content from common page structure when no
// better source was found.
type Heuristics struct {
	// MinContentLength is the rune count a container must exceed to be
	// accepted as content.
	MinContentLength int
}

func (Heuristics) Name() string { return "heuristics" }

func (h Heuristics) Apply(page *Page, res *Result) {
	if res.Title == "" {
		res.Title = heuristicTitle(page.Doc)
	}
	if res.Content == "" {
		res.Content = h.heuristicContent(page.Doc)
	}
}

func heuristicTitle(doc *goquery.Document) string {
	for _, sel := range headlineSelectors {
		if title := firstText(doc, sel); title != "" {
			return title
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func (h Heuristics) heuristicContent(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("article").First().Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := blockText(s); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}

	for _, sel := range contentContainers {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := blockText(node)
		if utf8.RuneCountInString(text) > h.MinContentLength {
			return text
		}
	}

	return ""
}
