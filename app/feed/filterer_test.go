package feed

import (
	"strings"
	"testing"

	"github.com/lysyi3m/news-comb/app/article"
)

func strPtr(s string) *string { return &s }

func TestFilterer_NoRules(t *testing.T) {
	filterer := NewFilterer(nil)

	if filtered, reason := filterer.Candidate("https://example.com/a"); filtered {
		t.Errorf("Expected candidate to pass without rules, got reason: %s", reason)
	}
	if filtered, _ := filterer.Article(article.Record{URL: "https://example.com/a"}); filtered {
		t.Error("Expected article to pass without rules")
	}
}

func TestFilterer_TitleInclude(t *testing.T) {
	filterer := NewFilterer([]Rule{{Field: "title", Includes: []string{"bitcoin", "ETF"}}})

	tests := []struct {
		title    string
		filtered bool
	}{
		{"Bitcoin rallies past resistance", false},
		{"Spot etf inflows slow", false},
		{"Weather report", true},
	}

	for _, tt := range tests {
		filtered, reason := filterer.Article(article.Record{Title: strPtr(tt.title)})
		if filtered != tt.filtered {
			t.Errorf("Title %q: expected filtered=%v, got %v (%s)", tt.title, tt.filtered, filtered, reason)
		}
		if filtered && !strings.Contains(reason, "does not contain") {
			t.Errorf("Title %q: unexpected reason %q", tt.title, reason)
		}
	}
}

func TestFilterer_ExcludeWinsOverInclude(t *testing.T) {
	filterer := NewFilterer([]Rule{{
		Field:    "title",
		Includes: []string{"market"},
		Excludes: []string{"sponsored"},
	}})

	filtered, reason := filterer.Article(article.Record{Title: strPtr("Sponsored: market outlook")})
	if !filtered {
		t.Fatal("Expected sponsored article to be filtered")
	}
	if reason != "Excluded by title filter: contains 'sponsored'" {
		t.Errorf("Unexpected reason: %s", reason)
	}
}

func TestFilterer_CandidateUsesOnlyURLRules(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Field: "url", Excludes: []string{"/video/"}},
		{Field: "title", Includes: []string{"never matches"}},
	})

	if filtered, _ := filterer.Candidate("https://example.com/news/a"); filtered {
		t.Error("Expected news link to pass the url stage")
	}
	if filtered, _ := filterer.Candidate("https://example.com/video/b"); !filtered {
		t.Error("Expected video link to be filtered at the url stage")
	}
	if filtered, _ := filterer.Article(article.Record{URL: "https://example.com/news/a", Title: strPtr("Other")}); !filtered {
		t.Error("Expected title rule to apply to the article")
	}
}

func TestFilterer_MissingOptionalFields(t *testing.T) {
	filterer := NewFilterer([]Rule{{Field: "author", Excludes: []string{"staff"}}})

	if filtered, _ := filterer.Article(article.Record{}); filtered {
		t.Error("Expected article without author to pass an author exclude")
	}
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid", Rule{Field: "title", Includes: []string{"a"}}, false},
		{"unknown field", Rule{Field: "description", Includes: []string{"a"}}, true},
		{"empty rule", Rule{Field: "url"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
