package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// IsFeed reports whether data is an RSS, RDF, Atom or JSON feed document.
// Only the document itself is inspected, never transport headers.
func IsFeed(data []byte) bool {
	return gofeed.DetectFeedType(bytes.NewReader(data)) != gofeed.FeedTypeUnknown
}

// Run returns the feed items as candidates in document order. Duplicates are
// kept; items without a link are dropped.
func (p *Parser) Run(data []byte) ([]Candidate, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link == "" {
			continue
		}

		candidates = append(candidates, Candidate{
			URL:      link,
			DateHint: strings.TrimSpace(cmp.Or(item.Published, item.Updated)),
		})
	}

	return candidates, nil
}
