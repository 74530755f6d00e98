package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"newscollector/internal/domain"
	"newscollector/internal/fetch"
	"newscollector/internal/ports"
)

// FetchError reports a failed feed retrieval: a network error or a
// non-success status. The pipeline logs it and skips the feed for the cycle.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves a feed document once per call and parses it into
// normalized entries. It holds no per-feed state; conditional-GET tokens
// are returned to the caller rather than consumed here.
type Fetcher struct {
	client *fetch.Client
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ ports.FeedSource = (*Fetcher)(nil)

// NewFetcher wires the shared HTTP client.
func NewFetcher(client *fetch.Client, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// FetchFeed issues one GET for the feed URL and parses the RSS or Atom
// body. Entries without a resolvable link or id are dropped silently.
func (f *Fetcher) FetchFeed(ctx context.Context, fd domain.Feed) ([]domain.Entry, domain.FeedState, error) {
	resp, err := f.client.Get(ctx, fd.URL)
	if err != nil {
		return nil, domain.FeedState{}, &FetchError{URL: fd.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.FeedState{}, &FetchError{URL: fd.URL, Err: fmt.Errorf("status %s", resp.Status)}
	}

	state := domain.FeedState{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, state, &FetchError{URL: fd.URL, Err: fmt.Errorf("parse feed: %w", err)}
	}

	entries := make([]domain.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entry, ok := normalizeItem(item)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	if f.logger != nil {
		f.logger.Debug("feed parsed", "url", fd.URL, "items", len(parsed.Items), "entries", len(entries))
	}

	return entries, state, nil
}

// normalizeItem maps a gofeed item onto a domain entry. The link falls
// back to the item GUID; if both are empty the item is unusable.
func normalizeItem(item *gofeed.Item) (domain.Entry, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" {
		return domain.Entry{}, false
	}

	entry := domain.Entry{
		Link:    link,
		Title:   strings.TrimSpace(item.Title),
		Summary: strings.TrimSpace(item.Description),
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		entry.Author = strings.TrimSpace(item.Authors[0].Name)
	} else if item.Author != nil {
		entry.Author = strings.TrimSpace(item.Author.Name)
	}

	// Published wins; Updated is the fallback when Published is absent
	// or unparsable.
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		entry.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		entry.PublishedAt = &t
	}

	return entry, true
}
