package domain

import "time"

// Feed is a registered RSS/Atom source. The pipeline mutates only the
// conditional-GET tokens and LastChecked; everything else is set on creation.
type Feed struct {
	ID           int64
	Outlet       string
	URL          string
	Active       bool
	ETag         string
	LastModified string
	LastChecked  time.Time
}

// Entry is a normalized feed item as produced by the feed fetcher.
// Link is always non-empty; items without a resolvable link or id are
// dropped before an Entry is built.
type Entry struct {
	Link        string
	Title       string
	Author      string
	Summary     string
	PublishedAt *time.Time
}

// FeedState carries conditional-GET tokens observed on a feed response.
type FeedState struct {
	ETag         string
	LastModified string
}

// ExtractedContent is the outcome of one extraction strategy. Both fields
// may be empty when a strategy produced nothing usable.
type ExtractedContent struct {
	Title string
	Body  string
}

// ArticleDraft holds the raw inputs to an insert. The repository derives
// the canonical URL, content hash and truncated body from it.
type ArticleDraft struct {
	FeedID      int64
	Outlet      string
	URL         string
	Title       string
	Summary     string
	Author      string
	PublishedAt *time.Time
	Body        string
	HTMLSHA256  string
	HTMLPath    string
}

// Article is a persisted article row. Immutable from the pipeline's side;
// the tagger appends its own fields later.
type Article struct {
	ID           int64
	Outlet       string
	FeedID       int64
	URL          string
	CanonicalURL string
	Title        string
	Summary      string
	PublishedAt  *time.Time
	Author       string
	HTMLSHA256   string
	HTMLPath     string
	Body         string
	HashSHA256   string
	CreatedAt    time.Time
}

// Tag is the classification a downstream worker writes back onto an article.
type Tag struct {
	Categories []string `json:"categories"`
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// RunReport aggregates per-run outcome counts for observability.
type RunReport struct {
	FeedsProcessed int
	FeedsFailed    int
	Processed      int
	Persisted      int
	Duplicates     int
	Skipped        int
	Failed         int
}

// Add merges another report into r.
func (r *RunReport) Add(other RunReport) {
	r.FeedsProcessed += other.FeedsProcessed
	r.FeedsFailed += other.FeedsFailed
	r.Processed += other.Processed
	r.Persisted += other.Persisted
	r.Duplicates += other.Duplicates
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}
