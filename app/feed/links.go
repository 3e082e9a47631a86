package feed

import (
	"bytes"
	"cmp"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/news-comb/app/template"
)

const defaultLinkSelector = "a[href]"

var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// ExtractListLinks selects article links from an HTML list page. Relative
// links are resolved against the template URL prefix, or baseURL when the
// template has none, and links outside that prefix are rejected. The result
// is deduplicated and sorted.
func ExtractListLinks(data []byte, tmpl template.Template, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return []string{}
	}

	prefix := strings.TrimRight(cmp.Or(tmpl.URLPrefix, baseURL), "/")
	selector := cmp.Or(tmpl.ListLinkSelector, defaultLinkSelector)

	var scope *url.URL
	if prefix != "" {
		if u, err := url.Parse(prefix); err == nil && u.Host != "" {
			scope = u
		}
	}

	seen := make(map[string]struct{})
	links := []string{}

	sel := doc.Find(selector)
	sel.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			// selectors may target a wrapper element rather than the anchor
			href, ok = s.Find("a[href]").First().Attr("href")
			if !ok {
				return
			}
		}

		link := resolveLink(href, prefix)
		if link == "" {
			return
		}
		if prefix != "" && !inScope(link, scope) {
			return
		}

		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	slices.Sort(links)
	return links
}

// inScope reports whether link shares the scheme and host of scope and sits
// under its path, compared by whole segments.
func inScope(link string, scope *url.URL) bool {
	if scope == nil {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, scope.Scheme) || !strings.EqualFold(u.Host, scope.Host) {
		return false
	}

	root := strings.TrimRight(scope.Path, "/")
	if root == "" {
		return true
	}
	return u.Path == root || strings.HasPrefix(u.Path, root+"/")
}

func resolveLink(href, prefix string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	// drop the fragment, it never identifies a different article
	if i := strings.Index(href, "#"); i >= 0 {
		href = href[:i]
	}

	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return href
	}

	if strings.HasPrefix(href, "//") {
		scheme := "https"
		if u, err := url.Parse(prefix); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		return scheme + ":" + href
	}

	if prefix == "" {
		return ""
	}

	base, err := url.Parse(prefix + "/")
	if err != nil {
		return prefix + "/" + strings.TrimLeft(href, "/")
	}

	if strings.HasPrefix(href, "/") {
		// root-relative paths hang off the prefix, which may include a path
		return prefix + "/" + strings.TrimLeft(href, "/")
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
