package source

import (
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/template"
)

// Source is a configured news origin. Code is derived from the config file
// name and never changes; ID is assigned once the source is synced.
type Source struct {
	ID       int64
	Code     string
	Name     string
	BaseURL  string
	ListURL  string
	Enabled  bool
	Config   string
	Template template.Template

	// Filters and MaxArticles only come from the source file.
	Filters     []feed.Rule
	MaxArticles int
}

// fileConfig is the on-disk layout of one source file.
type fileConfig struct {
	Name     string    `yaml:"name"`
	BaseURL  string    `yaml:"base_url"`
	ListURL  string    `yaml:"list_url"`
	Enabled  *bool     `yaml:"enabled"`
	Template yaml.Node `yaml:"template"`
	Settings struct {
		MaxArticles int `yaml:"max_articles"`
	} `yaml:"settings"`
	Filters []feed.Rule `yaml:"filters"`
}

// FromRecord rebuilds a Source from its database row.
func FromRecord(rec database.Source) Source {
	return Source{
		ID:       rec.ID,
		Code:     rec.Code,
		Name:     rec.Name,
		BaseURL:  rec.BaseURL,
		ListURL:  rec.ListURL,
		Enabled:  rec.Enabled,
		Config:   rec.Config,
		Template: template.Load([]byte(rec.Config)),
	}
}

func (s Source) record() database.Source {
	return database.Source{
		Code:    s.Code,
		Name:    s.Name,
		BaseURL: s.BaseURL,
		ListURL: s.ListURL,
		Enabled: s.Enabled,
		Config:  s.Config,
	}
}
