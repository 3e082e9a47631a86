package extractor

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/news-comb/app/dates"
	"github.com/lysyi3m/news-comb/app/template"
)

// Result is the raw, unnormalized output of the strategy chain.
type Result struct {
	Title    string
	Content  string
	Author   string
	Language string

	PublishedAt *time.Time
	// PublishedNaive is set when the source date carried no zone.
	PublishedNaive bool
}

func (r *Result) complete() bool {
	return r.Title != "" && r.Content != "" && r.PublishedAt != nil
}

// SetDate parses raw and stores it when no date is set yet. It reports
// whether the result now has a date.
func (r *Result) SetDate(raw string) bool {
	if r.PublishedAt != nil {
		return true
	}

	t, naive, err := dates.Parse(raw)
	if err != nil {
		return false
	}

	r.PublishedAt = &t
	r.PublishedNaive = naive
	return true
}

// Page is the parsed article document shared by all strategies.
type Page struct {
	URL      *url.URL
	Body     []byte
	Doc      *goquery.Document
	Template template.Template
}

func (p *Page) url() string {
	if p.URL == nil {
		return ""
	}
	return p.URL.String()
}

// Strategy fills whichever Result fields are still empty. Strategies must
// never overwrite a field set by an earlier strategy.
type Strategy interface {
	Name() string
	Apply(page *Page, res *Result)
}

func fill(field *string, value string) {
	if *field != "" {
		return
	}
	*field = value
}
