package ports

import (
	"context"
	"errors"
	"time"

	"newscollector/internal/domain"
)

// ErrDuplicateArticle is the duplicate signal: the storage layer rejected
// an insert because an article with the same canonical URL already exists.
// It is informational, not a failure.
var ErrDuplicateArticle = errors.New("article already exists")

// ArticleRepository persists feeds and articles. Implementations must
// enforce canonical-URL uniqueness at the storage layer so that concurrent
// inserts of the same article resolve to exactly one row.
type ArticleRepository interface {
	// UpsertFeed registers a feed URL once; re-registering is a no-op.
	UpsertFeed(ctx context.Context, outlet, url string) error

	// ListActiveFeeds returns all feeds with active=true.
	ListActiveFeeds(ctx context.Context) ([]domain.Feed, error)

	// UpdateFeedState stores conditional-GET tokens and refreshes
	// last_checked to now.
	UpdateFeedState(ctx context.Context, feedID int64, etag, lastModified string) error

	// InsertArticle derives canonical URL, content hash and the truncated
	// body from the draft and attempts a create. Returns the new id, or
	// ErrDuplicateArticle when the uniqueness constraint fires.
	InsertArticle(ctx context.Context, draft domain.ArticleDraft) (int64, error)
}

// TagRepository is the surface the downstream tagging worker uses. It only
// touches the tag-owned columns, never the ingestion-owned ones.
type TagRepository interface {
	// ListUntagged returns the most recent articles without a sentiment.
	ListUntagged(ctx context.Context, limit int) ([]domain.Article, error)

	// SaveTag writes classification fields back for one article.
	SaveTag(ctx context.Context, articleID int64, tag domain.Tag) error
}

// FeedSource retrieves and parses one feed document into normalized entries.
type FeedSource interface {
	FetchFeed(ctx context.Context, feed domain.Feed) ([]domain.Entry, domain.FeedState, error)
}

// PageFetcher retrieves an article page body over HTTP.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// ContentExtractor turns raw page HTML into article text. ok=false means
// no strategy produced an acceptable body.
type ContentExtractor interface {
	Extract(html, sourceURL string) (domain.ExtractedContent, bool)
}

// HTMLStore keeps raw page HTML on the side, addressed by digest.
type HTMLStore interface {
	// Put stores html and returns its sha256 digest and storage path.
	Put(html string) (digest, path string, err error)
}

// Classifier assigns categories and a sentiment to an article.
type Classifier interface {
	Classify(ctx context.Context, title, body string) (domain.Tag, error)
}

// Observer receives pipeline lifecycle events. All implementations must be
// safe for concurrent use.
type Observer interface {
	FeedStarted(outlet, url string)
	FeedFailed(outlet, url string, err error)
	ArticlePersisted(outlet, canonicalURL string)
	ArticleDuplicate(outlet, canonicalURL string)
	ArticleSkipped(outlet, url string, reason string)
}

// Scheduler controls when collection runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
