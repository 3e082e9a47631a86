package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_JSONBlob(t *testing.T) {
	blob := []byte(`{
		"list_url": "https://www.coindesk.com/markets",
		"list_link_selector": "a[href^='/markets/']",
		"url_prefix": "https://www.coindesk.com",
		"article": {
			"title_selector": "h1",
			"content_selector": "div.article-paragraphs, div.at-text",
			"date_selector_meta": "article:published_time"
		}
	}`)

	tmpl := Load(blob)

	assert.Equal(t, "https://www.coindesk.com/markets", tmpl.ListURL)
	assert.Equal(t, "a[href^='/markets/']", tmpl.ListLinkSelector)
	assert.Equal(t, "https://www.coindesk.com", tmpl.URLPrefix)
	assert.Equal(t, "h1", tmpl.TitleSelector)
	assert.Equal(t, "div.article-paragraphs, div.at-text", tmpl.ContentSelector)
	assert.Equal(t, "article:published_time", tmpl.DateMeta)
	assert.Equal(t, tmpl.DateMeta, tmpl.DateSelector())
}

func TestLoad_YAMLBlob(t *testing.T) {
	blob := []byte(`
list_link_selector: "h3 a"
article:
  title_selector: "h1.title"
  date_selector: "og:published"
`)

	tmpl := Load(blob)

	assert.Equal(t, "h3 a", tmpl.ListLinkSelector)
	assert.Equal(t, "h1.title", tmpl.TitleSelector)
	assert.Equal(t, "og:published", tmpl.DateMeta)
}

func TestLoad_DateKeyPriority(t *testing.T) {
	tests := []struct {
		name     string
		blob     string
		expected string
	}{
		{
			name:     "meta wins over everything",
			blob:     `{"article": {"date_selector_css": "time", "date_selector": "b", "date_selector_meta": "a"}}`,
			expected: "a",
		},
		{
			name:     "date_selector before published_time_selector",
			blob:     `{"article": {"published_time_selector": "c", "date_selector": "b"}}`,
			expected: "b",
		},
		{
			name:     "published_time_selector before css",
			blob:     `{"article": {"date_selector_css": "d", "published_time_selector": "c"}}`,
			expected: "c",
		},
		{
			name:     "css only",
			blob:     `{"article": {"date_selector_css": "d"}}`,
			expected: "d",
		},
		{
			name:     "empty alias falls through",
			blob:     `{"article": {"date_selector_meta": "", "date_selector": "b"}}`,
			expected: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := Load([]byte(tt.blob))
			assert.Equal(t, tt.expected, tmpl.DateMeta)
			assert.Equal(t, tt.expected, tmpl.DateSelector())
		})
	}
}

func TestLoad_DegradesToZero(t *testing.T) {
	inputs := map[string]string{
		"empty":      "",
		"whitespace": "   \n",
		"malformed":  `{"list_url": `,
		"scalar":     `"just a string"`,
		"list":       `[1, 2, 3]`,
		"null":       `null`,
	}

	for name, blob := range inputs {
		t.Run(name, func(t *testing.T) {
			tmpl := Load([]byte(blob))
			assert.True(t, tmpl.IsZero(), "expected zero template, got %+v", tmpl)
		})
	}
}

func TestLoad_NonMappingArticleKeepsTopLevel(t *testing.T) {
	tmpl := Load([]byte(`{"list_url": "https://example.com/news", "article": "h1"}`))

	assert.Equal(t, "https://example.com/news", tmpl.ListURL)
	assert.Empty(t, tmpl.TitleSelector)
	assert.Empty(t, tmpl.DateMeta)
}

func TestLoad_IgnoresWrongTypedValues(t *testing.T) {
	tmpl := Load([]byte(`{"list_url": 42, "url_prefix": ["x"], "article": {"title_selector": true, "content_selector": "main"}}`))

	assert.Empty(t, tmpl.ListURL)
	assert.Empty(t, tmpl.URLPrefix)
	assert.Empty(t, tmpl.TitleSelector)
	assert.Equal(t, "main", tmpl.ContentSelector)
}
