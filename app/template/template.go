package template

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Template holds the optional per-source extraction hints. Every field may
// be empty; consumers fall back to generic behaviour when a hint is missing.
type Template struct {
	ListURL          string
	ListLinkSelector string
	URLPrefix        string
	TitleSelector    string
	ContentSelector  string
	DateMeta         string
}

// DateSelector is the legacy name for DateMeta.
func (t Template) DateSelector() string {
	return t.DateMeta
}

// IsZero reports whether no hint is set.
func (t Template) IsZero() bool {
	return t == Template{}
}

// dateKeys lists the accepted spellings of the date hint in priority order.
var dateKeys = []string{
	"date_selector_meta",
	"date_selector",
	"published_time_selector",
	"date_selector_css",
}

// Load decodes a JSON or YAML template blob. Malformed or empty input yields
// the zero Template; Load never fails.
func Load(blob []byte) Template {
	if len(strings.TrimSpace(string(blob))) == 0 {
		return Template{}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(blob, &raw); err != nil || raw == nil {
		return Template{}
	}

	return FromMap(raw)
}

// FromMap builds a Template from an already decoded document.
func FromMap(raw map[string]any) Template {
	tmpl := Template{
		ListURL:          stringValue(raw, "list_url"),
		ListLinkSelector: stringValue(raw, "list_link_selector"),
		URLPrefix:        stringValue(raw, "url_prefix"),
	}

	article, ok := raw["article"].(map[string]any)
	if !ok {
		return tmpl
	}

	tmpl.TitleSelector = stringValue(article, "title_selector")
	tmpl.ContentSelector = stringValue(article, "content_selector")
	for _, key := range dateKeys {
		if v := stringValue(article, key); v != "" {
			tmpl.DateMeta = v
			break
		}
	}

	return tmpl
}

func stringValue(m map[string]any, key string) string {
	s, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
