package feed

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lysyi3m/news-comb/app/article"
)

// Rule fields that a source may filter on.
var RuleFields = []string{"url", "title", "summary", "content", "author"}

// Rule keeps or drops articles by case-insensitive substring match on one
// field. Excludes are checked before includes.
type Rule struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (r Rule) Validate() error {
	if !slices.Contains(RuleFields, r.Field) {
		return fmt.Errorf("unknown filter field %q (expected one of %s)", r.Field, strings.Join(RuleFields, ", "))
	}
	if len(r.Includes) == 0 && len(r.Excludes) == 0 {
		return fmt.Errorf("filter on %q has neither includes nor excludes", r.Field)
	}
	return nil
}

type Filterer struct {
	rules []Rule
}

func NewFilterer(rules []Rule) *Filterer {
	return &Filterer{rules: rules}
}

// Candidate applies only the url rules, so a link can be dropped before it
// is fetched.
func (f *Filterer) Candidate(url string) (bool, string) {
	return f.run(map[string]string{"url": url})
}

// Article applies every rule to a normalized record.
func (f *Filterer) Article(rec article.Record) (bool, string) {
	return f.run(map[string]string{
		"url":     rec.URL,
		"title":   deref(rec.Title),
		"summary": deref(rec.Summary),
		"content": rec.Content,
		"author":  deref(rec.Author),
	})
}

// run reports whether the item is filtered out and why. Rules on fields
// missing from values are ignored.
func (f *Filterer) run(values map[string]string) (bool, string) {
	for _, rule := range f.rules {
		value, ok := values[rule.Field]
		if !ok {
			continue
		}

		for _, exclude := range rule.Excludes {
			if f.matches(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", rule.Field, exclude)
			}
		}

		if len(rule.Includes) > 0 {
			matched := false
			for _, include := range rule.Includes {
				if f.matches(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", rule.Field, rule.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matches(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
