package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"newscollector/internal/domain"
	"newscollector/internal/normalize"
	"newscollector/internal/ports"
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Repository ports.ArticleRepository
	Feeds      ports.FeedSource
	Pages      ports.PageFetcher
	Extractor  ports.ContentExtractor
	HTMLStore  ports.HTMLStore
	Observer   ports.Observer
	Logger     *slog.Logger

	// ArticlesPerFeed caps entries processed per feed per run; 0 means
	// unlimited.
	ArticlesPerFeed int
	LeadChars       int
	FeedWorkers     int
	EntryWorkers    int
}

// Pipeline implements the feed-to-article ingestion workflow. Feeds are
// independent units of work; one feed failing never affects another, and a
// single bad entry never aborts its feed.
type Pipeline struct {
	repo      ports.ArticleRepository
	feeds     ports.FeedSource
	pages     ports.PageFetcher
	extractor ports.ContentExtractor
	htmlStore ports.HTMLStore
	observer  ports.Observer
	logger    *slog.Logger

	articlesPerFeed int
	leadChars       int
	feedWorkers     int
	entryWorkers    int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	feedWorkers := deps.FeedWorkers
	if feedWorkers <= 0 {
		feedWorkers = 1
	}
	entryWorkers := deps.EntryWorkers
	if entryWorkers <= 0 {
		entryWorkers = 1
	}

	return &Pipeline{
		repo:            deps.Repository,
		feeds:           deps.Feeds,
		pages:           deps.Pages,
		extractor:       deps.Extractor,
		htmlStore:       deps.HTMLStore,
		observer:        deps.Observer,
		logger:          deps.Logger,
		articlesPerFeed: deps.ArticlesPerFeed,
		leadChars:       deps.LeadChars,
		feedWorkers:     feedWorkers,
		entryWorkers:    entryWorkers,
	}
}

// Run executes one collection cycle over all active feeds and reports the
// aggregate outcome counts. Only a failure to list feeds is returned as an
// error; everything below feed granularity is absorbed and counted.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	var report domain.RunReport

	feeds, err := p.repo.ListActiveFeeds(ctx)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.feedWorkers)

	for _, fd := range feeds {
		fd := fd
		g.Go(func() error {
			// Stop scheduling new feeds once the run is cancelled.
			if gctx.Err() != nil {
				return nil
			}
			feedReport := p.processFeed(ctx, fd)
			mu.Lock()
			report.Add(feedReport)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	p.info("run finished",
		"feeds", report.FeedsProcessed,
		"feeds_failed", report.FeedsFailed,
		"processed", report.Processed,
		"persisted", report.Persisted,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (p *Pipeline) processFeed(ctx context.Context, fd domain.Feed) domain.RunReport {
	var report domain.RunReport
	report.FeedsProcessed = 1

	if p.observer != nil {
		p.observer.FeedStarted(fd.Outlet, fd.URL)
	}
	p.info("fetch feed", "outlet", fd.Outlet, "url", fd.URL)

	entries, state, err := p.feeds.FetchFeed(ctx, fd)
	if err != nil {
		p.warn("feed fetch failed", "outlet", fd.Outlet, "url", fd.URL, "error", err)
		if p.observer != nil {
			p.observer.FeedFailed(fd.Outlet, fd.URL, err)
		}
		report.FeedsFailed = 1
		return report
	}

	if p.articlesPerFeed > 0 && len(entries) > p.articlesPerFeed {
		entries = entries[:p.articlesPerFeed]
	}
	p.info("feed entries", "outlet", fd.Outlet, "count", len(entries))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.entryWorkers)

	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			outcome, err := p.processEntry(gctx, fd, entry)
			mu.Lock()
			report.Add(outcome)
			mu.Unlock()
			// A storage failure aborts the rest of this feed only.
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		p.warn("feed aborted on storage failure", "outlet", fd.Outlet, "error", err)
	}

	// Refreshes last_checked even when the response carried no tokens.
	if err := p.repo.UpdateFeedState(ctx, fd.ID, state.ETag, state.LastModified); err != nil {
		p.warn("update feed state failed", "outlet", fd.Outlet, "error", err)
	}

	return report
}

// processEntry walks one candidate through fetch, extract, canonicalize
// and persist. Fetch failures are terminal non-errors; only a storage
// failure is returned upward.
func (p *Pipeline) processEntry(ctx context.Context, fd domain.Feed, entry domain.Entry) (domain.RunReport, error) {
	var report domain.RunReport
	report.Processed = 1

	html, err := p.pages.FetchPage(ctx, entry.Link)
	if err != nil {
		p.warn("article fetch failed", "url", entry.Link, "error", err)
		if p.observer != nil {
			p.observer.ArticleSkipped(fd.Outlet, entry.Link, "page-fetch")
		}
		report.Skipped = 1
		return report, nil
	}

	content, extracted := p.extractor.Extract(html, entry.Link)

	body := content.Body
	if !extracted || body == "" {
		// Feed-provided summary, then title, stand in for the page body.
		body = entry.Summary
		if body == "" {
			body = entry.Title
		}
	}

	title := content.Title
	if title == "" {
		title = entry.Title
	}

	lead := normalize.Lead(firstNonEmpty(body, entry.Summary, title), p.leadChars)

	var htmlDigest, htmlPath string
	if p.htmlStore != nil {
		if htmlDigest, htmlPath, err = p.htmlStore.Put(html); err != nil {
			p.warn("html side-store failed", "url", entry.Link, "error", err)
			htmlDigest, htmlPath = "", ""
		}
	}

	id, err := p.repo.InsertArticle(ctx, domain.ArticleDraft{
		FeedID:      fd.ID,
		Outlet:      fd.Outlet,
		URL:         entry.Link,
		Title:       title,
		Summary:     lead,
		Author:      entry.Author,
		PublishedAt: entry.PublishedAt,
		Body:        body,
		HTMLSHA256:  htmlDigest,
		HTMLPath:    htmlPath,
	})

	canonical := normalize.Canonicalize(entry.Link)
	switch {
	case errors.Is(err, ports.ErrDuplicateArticle):
		p.info("duplicate skipped", "url", entry.Link)
		if p.observer != nil {
			p.observer.ArticleDuplicate(fd.Outlet, canonical)
		}
		report.Duplicates = 1
		return report, nil
	case err != nil:
		report.Failed = 1
		return report, err
	default:
		p.info("saved article", "id", id, "title", normalize.Lead(title, 80))
		if p.observer != nil {
			p.observer.ArticlePersisted(fd.Outlet, canonical)
		}
		report.Persisted = 1
		return report, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
