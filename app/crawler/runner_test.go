package crawler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/extractor"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/fetcher"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/store"
)

const longParagraph = "Bitcoin climbed above a key resistance level on Tuesday as traders piled into spot products and derivatives desks reported heavy demand."

type stubFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	counts map[string]int

	onFetch func(url string)
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages:  make(map[string]string),
		errs:   make(map[string]error),
		counts: make(map[string]int),
	}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if f.onFetch != nil {
		f.onFetch(url)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[url]++

	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &fetcher.TransientError{URL: url, StatusCode: 404}
	}
	return []byte(body), nil
}

func (f *stubFetcher) fetches(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[url]
}

func (f *stubFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.counts {
		n += c
	}
	return n
}

// titleOnly mimics a generic extractor that finds a title but no body.
type titleOnly struct{}

func (titleOnly) Name() string { return "title_only" }

func (titleOnly) Apply(page *extractor.Page, res *extractor.Result) {
	if res.Title == "" {
		res.Title = strings.TrimSpace(page.Doc.Find("title").First().Text())
	}
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }

func (panicking) Apply(*extractor.Page, *extractor.Result) { panic("boom") }

type testEnv struct {
	db       *database.DB
	articles *database.ArticleRepo
	fetcher  *stubFetcher
}

func createTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "crawler.db"))
	require.NoError(t, err, "should open database")
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err, "should run migrations")

	return &testEnv{
		db:       db,
		articles: database.NewArticleRepository(db),
		fetcher:  newStubFetcher(),
	}
}

func (e *testEnv) runner(strategies ...extractor.Strategy) *Runner {
	return NewRunner(e.fetcher, store.New(e.articles), extractor.New(strategies...), Config{
		SourceConcurrency:  2,
		ArticleConcurrency: 3,
		MaxErrorsPerSource: 5,
	})
}

func (e *testEnv) source(t *testing.T, code, listURL string, tmpl string) source.Source {
	t.Helper()

	rec := database.Source{
		Code:    code,
		Name:    code,
		BaseURL: "https://" + code + ".example.com",
		ListURL: listURL,
		Enabled: true,
		Config:  tmpl,
	}
	id, _, err := database.NewSourceRepository(e.db).UpsertSource(context.Background(), rec)
	require.NoError(t, err)
	rec.ID = id

	return source.FromRecord(rec)
}

func (e *testEnv) count(t *testing.T, code string) int {
	t.Helper()
	n, err := e.articles.CountArticles(context.Background(), database.ArticleFilter{SourceCode: code})
	require.NoError(t, err)
	return n
}

func listPage(links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, l := range links {
		fmt.Fprintf(&b, `<li><a href="%s">story</a></li>`, l)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func articlePage(title, extraHead, body string) string {
	return fmt.Sprintf(`<html><head><title>%s</title>%s</head><body><article><h1 class="tmpl-title">Template Title</h1><div class="story-body"><p>%s</p><p>%s</p></div></article></body></html>`,
		title, extraHead, body, longParagraph)
}

func getByURL(t *testing.T, e *testEnv, code, url string) (found bool, title string, published *time.Time) {
	t.Helper()
	list, err := e.articles.ListArticles(context.Background(), database.ArticleFilter{SourceCode: code})
	require.NoError(t, err)
	for _, a := range list {
		if a.URL == url {
			if a.Title != nil {
				title = *a.Title
			}
			return true, title, a.PublishedAt
		}
	}
	return false, "", nil
}

func TestRunOnce_Idempotent(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news", "")

	env.fetcher.pages["https://a.example.com/news"] = listPage("/news/1", "/news/2", "/news/1", "https://elsewhere.example.org/x")
	env.fetcher.pages["https://a.example.com/news/1"] = articlePage("First Story About Markets", "", "First body paragraph.")
	env.fetcher.pages["https://a.example.com/news/2"] = articlePage("Second Story About Markets", "", "Second body paragraph.")

	runner := env.runner()

	first := runner.RunOnce(context.Background(), []source.Source{src})
	assert.Equal(t, 2, first.ArticlesStored)
	assert.Equal(t, 0, first.Errors)
	assert.Equal(t, 1, first.SourcesProcessed)
	assert.Equal(t, 2, env.count(t, "a"))

	second := runner.RunOnce(context.Background(), []source.Source{src})
	assert.Equal(t, 0, second.ArticlesStored)
	assert.Equal(t, 2, second.ArticlesSkipped)
	assert.Equal(t, 2, env.count(t, "a"))

	assert.Equal(t, 1, env.fetcher.fetches("https://a.example.com/news/1"), "stored articles should not be fetched again")
	assert.Zero(t, env.fetcher.fetches("https://elsewhere.example.org/x"))
}

func TestRunOnce_StrategyPrecedence(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news",
		`{"article": {"title_selector": "h1.tmpl-title", "content_selector": "div.story-body"}}`)

	env.fetcher.pages["https://a.example.com/news"] = listPage("/news/1")
	env.fetcher.pages["https://a.example.com/news/1"] = articlePage("Generic Extractor Title", "", "Body.")

	report := env.runner(titleOnly{}, extractor.TemplateSelectors{}).RunOnce(context.Background(), []source.Source{src})
	require.Equal(t, 1, report.ArticlesStored)

	found, title, _ := getByURL(t, env, "a", "https://a.example.com/news/1")
	require.True(t, found)
	assert.Equal(t, "Generic Extractor Title", title)
}

func TestRunOnce_GracefulDegradation(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news",
		`{"article": {"content_selector": "div.story-body"}}`)

	env.fetcher.pages["https://a.example.com/news"] = listPage("/news/1")
	env.fetcher.pages["https://a.example.com/news/1"] = articlePage("Generic Extractor Title", "", "Template only body.")

	report := env.runner(titleOnly{}, extractor.TemplateSelectors{}).RunOnce(context.Background(), []source.Source{src})
	require.Equal(t, 1, report.ArticlesStored)

	list, err := env.articles.ListArticles(context.Background(), database.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Content, "Template only body.")
	assert.Contains(t, list[0].Content, longParagraph)
}

func TestRunOnce_DateFallbackOrdering(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news",
		`{"article": {"content_selector": "div.story-body", "date_selector_meta": "sailthru.date"}}`)

	env.fetcher.pages["https://a.example.com/news"] = listPage("/news/1")
	env.fetcher.pages["https://a.example.com/news/1"] = articlePage("Dated Story",
		`<meta property="article:published_time" content="2024-03-05T10:00:00+02:00">`, "Body.")

	report := env.runner(extractor.TemplateSelectors{}, extractor.DateFallback{}).RunOnce(context.Background(), []source.Source{src})
	require.Equal(t, 1, report.ArticlesStored)

	_, _, published := getByURL(t, env, "a", "https://a.example.com/news/1")
	require.NotNil(t, published)
	assert.Equal(t, time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), *published)
}

func TestRunOnce_FeedDateHint(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/feed.xml",
		`{"article": {"content_selector": "div.story-body"}}`)

	env.fetcher.pages["https://a.example.com/feed.xml"] = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>A</title>
<item><title>One</title><link>https://a.example.com/news/1</link><pubDate>Tue, 05 Mar 2024 10:00:00 +0200</pubDate></item>
<item><title>Two</title><link>/news/2</link></item>
</channel></rss>`
	env.fetcher.pages["https://a.example.com/news/1"] = articlePage("Undated One", "", "Body one.")
	env.fetcher.pages["https://a.example.com/news/2"] = articlePage("Undated Two", "", "Body two.")

	report := env.runner(extractor.TemplateSelectors{}, extractor.DateFallback{}).RunOnce(context.Background(), []source.Source{src})
	require.Equal(t, 2, report.ArticlesStored)

	_, _, published := getByURL(t, env, "a", "https://a.example.com/news/1")
	require.NotNil(t, published)
	assert.Equal(t, time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), *published)

	found, _, published := getByURL(t, env, "a", "https://a.example.com/news/2")
	assert.True(t, found, "relative feed links should resolve against the feed URL")
	assert.Nil(t, published)
}

func TestRunOnce_SourceIsolation(t *testing.T) {
	env := createTestEnv(t)
	a := env.source(t, "a", "https://a.example.com/news", "")
	b := env.source(t, "b", "https://b.example.com/news", "")
	c := env.source(t, "c", "https://c.example.com/news", "")

	env.fetcher.pages["https://a.example.com/news"] = listPage("/1")
	env.fetcher.pages["https://a.example.com/1"] = articlePage("A One", "", "Body.")
	env.fetcher.errs["https://b.example.com/news"] = &fetcher.TransientError{URL: "https://b.example.com/news", StatusCode: 503}
	env.fetcher.pages["https://c.example.com/news"] = listPage("/1")
	env.fetcher.pages["https://c.example.com/1"] = articlePage("C One", "", "Body.")

	report := env.runner().RunOnce(context.Background(), []source.Source{a, b, c})

	assert.Equal(t, 2, report.SourcesProcessed)
	assert.Equal(t, 1, report.SourcesFailed)
	assert.Equal(t, 2, report.ArticlesStored)
	require.Len(t, report.Sources, 3)

	assert.Equal(t, "a", report.Sources[0].Code)
	assert.Equal(t, 1, report.Sources[0].Stored)

	assert.Equal(t, "b", report.Sources[1].Code)
	assert.True(t, report.Sources[1].Aborted)
	assert.Zero(t, report.Sources[1].Stored)
	require.Len(t, report.Sources[1].Errors, 1)
	assert.Contains(t, report.Sources[1].Errors[0], "HTTP 503")

	assert.Equal(t, 1, report.Sources[2].Stored)
	assert.Zero(t, env.count(t, "b"))
}

func TestRunOnce_URLUniqueness(t *testing.T) {
	env := createTestEnv(t)
	a := env.source(t, "a", "https://shared.example.com/feed-a.xml", `{"article": {"content_selector": "div.story-body"}}`)
	b := env.source(t, "b", "https://shared.example.com/feed-b.xml", `{"article": {"content_selector": "div.story-body"}}`)

	feedXML := `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title>
<item><link>https://shared.example.com/story</link></item>
<item><link>/story</link></item>
<item><link>https://shared.example.com/story#comments</link></item>
</channel></rss>`
	env.fetcher.pages["https://shared.example.com/feed-a.xml"] = feedXML
	env.fetcher.pages["https://shared.example.com/feed-b.xml"] = feedXML
	env.fetcher.pages["https://shared.example.com/story"] = articlePage("Shared", "", "Body.")

	report := env.runner(extractor.TemplateSelectors{}).RunOnce(context.Background(), []source.Source{a, b})

	assert.Equal(t, 1, report.ArticlesStored)
	assert.Equal(t, 5, report.ArticlesSkipped)
	assert.Equal(t, 1, env.fetcher.fetches("https://shared.example.com/story"))

	total, err := env.articles.CountArticles(context.Background(), database.ArticleFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRunOnce_ArticleFailuresAreIsolated(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news", `{"article": {"content_selector": "div.story-body"}}`)

	env.fetcher.pages["https://a.example.com/news"] = listPage("/ok", "/empty", "/missing")
	env.fetcher.pages["https://a.example.com/ok"] = articlePage("Fine", "", "Body.")
	env.fetcher.pages["https://a.example.com/empty"] = `<html><head><title>Nothing</title></head><body></body></html>`

	runner := NewRunner(env.fetcher, store.New(env.articles), extractor.New(extractor.TemplateSelectors{}), Config{MaxErrorsPerSource: 1})
	report := runner.RunOnce(context.Background(), []source.Source{src})

	require.Len(t, report.Sources, 1)
	sr := report.Sources[0]
	assert.False(t, sr.Aborted)
	assert.Equal(t, 3, sr.Candidates)
	assert.Equal(t, 1, sr.Stored)
	assert.Equal(t, 2, sr.Failed)
	assert.Equal(t, 2, sr.ErrorCount)
	assert.Len(t, sr.Errors, 1, "only the first error message is kept")
	assert.Equal(t, 2, report.Errors)
}

func TestRunOnce_FiltersAndCandidateCap(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news", `{"article": {"content_selector": "div.story-body"}}`)
	src.MaxArticles = 3
	src.Filters = []feed.Rule{
		{Field: "url", Excludes: []string{"/video/"}},
		{Field: "title", Includes: []string{"markets"}},
	}

	env.fetcher.pages["https://a.example.com/news"] = listPage("/a/1", "/a/2", "/b/video/3", "/c/4")
	env.fetcher.pages["https://a.example.com/a/1"] = articlePage("Markets Rally", "", "Body.")
	env.fetcher.pages["https://a.example.com/a/2"] = articlePage("Weather Report", "", "Body.")

	report := env.runner(titleOnly{}, extractor.TemplateSelectors{}).RunOnce(context.Background(), []source.Source{src})

	require.Len(t, report.Sources, 1)
	sr := report.Sources[0]
	assert.Equal(t, 3, sr.Candidates)
	assert.Equal(t, 1, sr.Stored)
	assert.Equal(t, 2, sr.Filtered)
	assert.Equal(t, 2, report.ArticlesFiltered)
	assert.Zero(t, sr.ErrorCount)

	assert.Zero(t, env.fetcher.fetches("https://a.example.com/b/video/3"), "url filters apply before fetching")
	assert.Zero(t, env.fetcher.fetches("https://a.example.com/c/4"), "candidates beyond the cap are ignored")

	found, _, _ := getByURL(t, env, "a", "https://a.example.com/a/2")
	assert.False(t, found)
}

func TestRunOnce_EmptyListIsNotAFailure(t *testing.T) {
	env := createTestEnv(t)
	empty := env.source(t, "empty", "https://empty.example.com/news", `{"list_link_selector": "article h2 a"}`)
	a := env.source(t, "a", "https://a.example.com/news", "")

	env.fetcher.pages["https://empty.example.com/news"] = listPage("/1", "/2")
	env.fetcher.pages["https://a.example.com/news"] = listPage("/1")
	env.fetcher.pages["https://a.example.com/1"] = articlePage("A One", "", "Body.")

	report := env.runner().RunOnce(context.Background(), []source.Source{empty, a})

	assert.Equal(t, 2, report.SourcesProcessed)
	assert.Zero(t, report.SourcesFailed)
	assert.Zero(t, report.Errors)
	assert.Equal(t, 1, report.ArticlesStored)

	require.Len(t, report.Sources, 2)
	sr := report.Sources[0]
	assert.Equal(t, "empty", sr.Code)
	assert.False(t, sr.Aborted)
	assert.Zero(t, sr.Candidates)
	assert.Empty(t, sr.Errors)
	assert.Zero(t, env.fetcher.fetches("https://empty.example.com/1"))
}

func TestRunSource_PanicWaitsForWorkers(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news", `{"article": {"content_selector": "div.story-body"}}`)

	for _, p := range []string{"1", "2", "3"} {
		env.fetcher.pages["https://a.example.com/"+p] = articlePage("Story "+p, "", "Body.")
	}
	env.fetcher.pages["https://a.example.com/news"] = listPage("/1", "/2", "/3")

	rc := newRunContext(context.Background())
	env.fetcher.onFetch = func(url string) {
		switch url {
		case "https://a.example.com/news":
		case "https://a.example.com/1":
			// the next claim in the spawn loop panics on the nil map
			rc.mu.Lock()
			rc.seen = nil
			rc.mu.Unlock()
			time.Sleep(50 * time.Millisecond)
		default:
			time.Sleep(50 * time.Millisecond)
		}
	}

	runner := NewRunner(env.fetcher, store.New(env.articles), extractor.New(extractor.TemplateSelectors{}), Config{ArticleConcurrency: 1})
	sr := runner.runSource(rc, src)

	assert.True(t, sr.Aborted)
	require.NotEmpty(t, sr.Errors)
	assert.Contains(t, sr.Errors[0], "panic:")
	assert.GreaterOrEqual(t, sr.Stored, 1)
	assert.Equal(t, env.count(t, "a"), sr.Stored, "report must include every worker started before the panic")
}

func TestRunOnce_RecoversPanics(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news", "")

	env.fetcher.pages["https://a.example.com/news"] = listPage("/1")
	env.fetcher.pages["https://a.example.com/1"] = articlePage("Boom", "", "Body.")

	report := env.runner(panicking{}).RunOnce(context.Background(), []source.Source{src})

	assert.Equal(t, 1, report.ArticlesFailed)
	require.Len(t, report.Sources[0].Errors, 1)
	assert.Contains(t, report.Sources[0].Errors[0], "panic: boom")
}

func TestRunOnce_SkipsDisabledAndMissingListURL(t *testing.T) {
	env := createTestEnv(t)
	disabled := env.source(t, "off", "https://off.example.com/news", "")
	disabled.Enabled = false
	noList := source.Source{Code: "nolist", Enabled: true}

	report := env.runner().RunOnce(context.Background(), []source.Source{disabled, noList})

	require.Len(t, report.Sources, 1)
	assert.Equal(t, "nolist", report.Sources[0].Code)
	assert.True(t, report.Sources[0].Aborted)
	assert.Contains(t, report.Sources[0].Errors[0], ErrNoListURL.Error())
	assert.Zero(t, env.fetcher.total())
}

func TestRunOnce_CancelledStopsFetching(t *testing.T) {
	env := createTestEnv(t)
	src := env.source(t, "a", "https://a.example.com/news", "")
	env.fetcher.pages["https://a.example.com/news"] = listPage("/1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := env.runner().RunOnce(ctx, []source.Source{src})

	assert.Zero(t, env.fetcher.total())
	assert.Zero(t, report.ArticlesStored)
	assert.Equal(t, 1, report.SourcesFailed)
}

func TestRunContext_Claim(t *testing.T) {
	rc := newRunContext(context.Background())

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rc.claim("https://example.com/a") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.True(t, rc.claim("https://example.com/b"))
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://a.example.com/feeds/main.xml"

	assert.Equal(t, "https://a.example.com/news/1", absoluteURL(base, "/news/1"))
	assert.Equal(t, "https://a.example.com/feeds/item", absoluteURL(base, "item"))
	assert.Equal(t, "https://b.example.com/x", absoluteURL(base, "https://b.example.com/x#frag"))
	assert.Empty(t, absoluteURL(base, "mailto:editor@example.com"))
}
