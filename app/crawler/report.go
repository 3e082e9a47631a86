package crawler

import (
	"sync"
	"time"
)

// RunReport summarizes one pass over all enabled sources.
type RunReport struct {
	SourcesProcessed int `json:"sources_processed"`
	SourcesFailed    int `json:"sources_failed"`
	ArticlesStored   int `json:"articles_stored"`
	ArticlesSkipped  int `json:"articles_skipped"`
	ArticlesFiltered int `json:"articles_filtered"`
	ArticlesFailed   int `json:"articles_failed"`
	Errors           int `json:"errors"`

	Sources    []SourceReport `json:"sources"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SourceReport holds the outcome of a single source. Aborted is set when the
// source failed before any article was attempted. Errors keeps only the first
// few messages; ErrorCount counts all of them.
type SourceReport struct {
	Code       string   `json:"code"`
	Candidates int      `json:"candidates"`
	Stored     int      `json:"stored"`
	Skipped    int      `json:"skipped"`
	Filtered   int      `json:"filtered"`
	Failed     int      `json:"failed"`
	Aborted    bool     `json:"aborted"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
}

func (r *RunReport) add(sr SourceReport) {
	r.Sources = append(r.Sources, sr)
	if sr.Aborted {
		r.SourcesFailed++
	} else {
		r.SourcesProcessed++
	}
	r.ArticlesStored += sr.Stored
	r.ArticlesSkipped += sr.Skipped
	r.ArticlesFiltered += sr.Filtered
	r.ArticlesFailed += sr.Failed
	r.Errors += sr.ErrorCount
}

// sourceRun collects article outcomes from concurrent workers.
type sourceRun struct {
	mu        sync.Mutex
	report    SourceReport
	maxErrors int
}

func newSourceRun(code string, maxErrors int) *sourceRun {
	return &sourceRun{
		report:    SourceReport{Code: code},
		maxErrors: maxErrors,
	}
}

func (s *sourceRun) stored() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Stored++
}

func (s *sourceRun) skipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Skipped++
}

func (s *sourceRun) filtered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Filtered++
}

// failArticle records an article-level error.
func (s *sourceRun) failArticle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Failed++
	s.recordError(err)
}

// abort records a source-level error.
func (s *sourceRun) abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Aborted = true
	s.recordError(err)
}

// note records an error without attributing it to an article.
func (s *sourceRun) note(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordError(err)
}

func (s *sourceRun) recordError(err error) {
	s.report.ErrorCount++
	if len(s.report.Errors) < s.maxErrors {
		s.report.Errors = append(s.report.Errors, err.Error())
	}
}

func (s *sourceRun) snapshot() SourceReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.report
	out.Errors = append([]string(nil), s.report.Errors...)
	return out
}
