package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/news-comb/app/article"
)

// Channel describes the source an RSS export is built for.
type Channel struct {
	Code    string
	Name    string
	BaseURL string
}

// Generator renders stored articles as an RSS 2.0 document.
type Generator struct {
	publicURL string
	version   string
}

// NewGenerator takes the public base URL used for the atom self link and the
// version reported in the generator element.
func NewGenerator(publicURL, version string) *Generator {
	return &Generator{
		publicURL: strings.TrimRight(publicURL, "/"),
		version:   cmp.Or(version, "dev"),
	}
}

func (g *Generator) Run(ch Channel, articles []article.Stored) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(ch.Name, ch.Code), 4)
	g.writeElement(&buf, "link", ch.BaseURL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Articles collected from %s", cmp.Or(ch.BaseURL, ch.Code)), 4)

	if g.publicURL != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(fmt.Sprintf("%s/feeds/%s", g.publicURL, ch.Code))))
	}

	lastBuildDate := time.Now().UTC()
	if len(articles) > 0 {
		lastBuildDate = articleDate(articles[0])
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("News-Comb/%s", g.version), 4)

	if len(articles) > 0 && articles[0].Language != "" {
		g.writeElement(&buf, "language", articles[0].Language, 4)
	}

	for _, a := range articles {
		g.writeItem(&buf, a)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, a article.Stored) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"true\">")
	xml.EscapeText(buf, []byte(a.URL))
	buf.WriteString("</guid>\n")

	if a.Title != nil {
		g.writeElement(buf, "title", *a.Title, 6)
	}
	g.writeElement(buf, "link", a.URL, 6)

	description := deref(a.Summary)
	if description == "" {
		description = excerpt(a.Content, 300)
	}
	g.writeElement(buf, "description", cmp.Or(description, "No description available"), 6)

	if a.Content != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(a.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", articleDate(a).Format(time.RFC1123Z), 6)

	if a.Author != nil {
		g.writeElement(buf, "author", *a.Author, 6)
	}
	if a.Sentiment != nil && a.Sentiment.Label != "" {
		g.writeElement(buf, "category", "sentiment:"+a.Sentiment.Label, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// articleDate prefers the publication date and falls back to collection time.
func articleDate(a article.Stored) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CollectedAt
}

// excerpt cuts s to at most n runes on a word boundary.
func excerpt(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
