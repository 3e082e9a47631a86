package feed

// Candidate is an article URL discovered on a list page or in a feed.
// DateHint carries the raw feed publication date, if any.
type Candidate struct {
	URL      string
	DateHint string
}
