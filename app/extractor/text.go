package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// blockText joins the trimmed text nodes under s with newlines, skipping
// script and style content.
func blockText(s *goquery.Selection) string {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range s.Nodes {
		walk(n)
	}

	return strings.Join(parts, "\n")
}

// metaContent returns the content of the first meta tag whose property, name
// or itemprop equals key.
func metaContent(doc *goquery.Document, key string) string {
	if key == "" {
		return ""
	}

	for _, attr := range []string{"property", "name", "itemprop"} {
		sel := doc.Find(fmt.Sprintf("meta[%s=%q]", attr, key))
		if v := strings.TrimSpace(sel.First().AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}
