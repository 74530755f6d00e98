package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"newscollector/internal/domain"
	"newscollector/internal/feed"
	"newscollector/internal/fetch"
	"newscollector/internal/normalize"
	"newscollector/internal/ports"
)

// memoryRepo enforces the canonical-URL uniqueness contract in memory so
// pipeline behavior can be tested without a database.
type memoryRepo struct {
	mu        sync.Mutex
	feeds     []domain.Feed
	articles  map[string]int64
	nextID    int64
	failWrite bool
	states    map[int64]domain.FeedState
}

func newMemoryRepo(feeds ...domain.Feed) *memoryRepo {
	return &memoryRepo{
		feeds:    feeds,
		articles: map[string]int64{},
		states:   map[int64]domain.FeedState{},
		nextID:   1,
	}
}

func (m *memoryRepo) UpsertFeed(ctx context.Context, outlet, url string) error { return nil }

func (m *memoryRepo) ListActiveFeeds(ctx context.Context) ([]domain.Feed, error) {
	return m.feeds, nil
}

func (m *memoryRepo) UpdateFeedState(ctx context.Context, feedID int64, etag, lastModified string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[feedID] = domain.FeedState{ETag: etag, LastModified: lastModified}
	return nil
}

func (m *memoryRepo) InsertArticle(ctx context.Context, draft domain.ArticleDraft) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return 0, fmt.Errorf("storage unavailable")
	}
	canonical := normalize.Canonicalize(draft.URL)
	if _, ok := m.articles[canonical]; ok {
		return 0, ports.ErrDuplicateArticle
	}
	id := m.nextID
	m.nextID++
	m.articles[canonical] = id
	return id, nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles)
}

func (m *memoryRepo) state(feedID int64) (domain.FeedState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[feedID]
	return s, ok
}

// markerExtractor pulls the body out of a <article-body> marker so tests
// control extraction outcomes precisely.
type markerExtractor struct{}

func (markerExtractor) Extract(html, sourceURL string) (domain.ExtractedContent, bool) {
	start := strings.Index(html, "<article-body>")
	end := strings.Index(html, "</article-body>")
	if start < 0 || end < 0 {
		return domain.ExtractedContent{}, false
	}
	return domain.ExtractedContent{
		Title: "Extracted Title",
		Body:  html[start+len("<article-body>") : end],
	}, true
}

func feedXML(links ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
	for i, link := range links {
		b.WriteString("<item>")
		fmt.Fprintf(&b, "<title>Entry %d</title>", i+1)
		fmt.Fprintf(&b, "<description>Summary %d</description>", i+1)
		if link != "" {
			fmt.Fprintf(&b, "<link>%s</link>", link)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func newTestPipeline(repo ports.ArticleRepository, timeout time.Duration) *Pipeline {
	client := fetch.NewClient(timeout, 0, "news-collector/test")
	return NewPipeline(PipelineDeps{
		Repository:   repo,
		Feeds:        feed.NewFetcher(client, nil),
		Pages:        client,
		Extractor:    markerExtractor{},
		LeadChars:    240,
		FeedWorkers:  2,
		EntryWorkers: 2,
	})
}

func TestPipelinePersistsAndDropsLinklessEntry(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><article-body>Body for %s</article-body></html>", r.URL.Path)
	}))
	defer pages.Close()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Entry 2 has no link and no guid, so only two are usable.
		_, _ = w.Write([]byte(feedXML(pages.URL+"/a/1", "", pages.URL+"/a/3")))
	}))
	defer feeds.Close()

	repo := newMemoryRepo(domain.Feed{ID: 1, Outlet: "outlet", URL: feeds.URL, Active: true})
	p := newTestPipeline(repo, 5*time.Second)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Processed != 2 {
		t.Fatalf("expected 2 processed entries, got %d", report.Processed)
	}
	if report.Persisted != 2 || repo.count() != 2 {
		t.Fatalf("expected 2 persisted articles, got report=%d stored=%d", report.Persisted, repo.count())
	}
}

func TestPipelineCapsEntriesPerFeed(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><article-body>Body for %s</article-body></html>", r.URL.Path)
	}))
	defer pages.Close()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML(
			pages.URL+"/cap/1", pages.URL+"/cap/2", pages.URL+"/cap/3", pages.URL+"/cap/4",
		)))
	}))
	defer feeds.Close()

	repo := newMemoryRepo(domain.Feed{ID: 1, Outlet: "outlet", URL: feeds.URL, Active: true})
	client := fetch.NewClient(5*time.Second, 0, "news-collector/test")
	p := NewPipeline(PipelineDeps{
		Repository:      repo,
		Feeds:           feed.NewFetcher(client, nil),
		Pages:           client,
		Extractor:       markerExtractor{},
		ArticlesPerFeed: 2,
		LeadChars:       240,
		FeedWorkers:     2,
		EntryWorkers:    2,
	})

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Processed != 2 {
		t.Fatalf("expected the cap to limit processing to 2 entries, got %d", report.Processed)
	}
	if report.Persisted != 2 || repo.count() != 2 {
		t.Fatalf("expected 2 persisted articles, got report=%d stored=%d", report.Persisted, repo.count())
	}
}

func TestPipelinePersistsFeedStateTokens(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><article-body>token body</article-body></html>")
	}))
	defer pages.Close()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v12"`)
		w.Header().Set("Last-Modified", "Mon, 31 Aug 2026 09:00:00 GMT")
		_, _ = w.Write([]byte(feedXML(pages.URL + "/t/1")))
	}))
	defer feeds.Close()

	repo := newMemoryRepo(domain.Feed{ID: 7, Outlet: "outlet", URL: feeds.URL, Active: true})
	p := newTestPipeline(repo, 5*time.Second)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	state, ok := repo.state(7)
	if !ok {
		t.Fatal("feed state was never updated")
	}
	if state.ETag != `"v12"` {
		t.Fatalf("expected etag stored, got %q", state.ETag)
	}
	if state.LastModified != "Mon, 31 Aug 2026 09:00:00 GMT" {
		t.Fatalf("expected last-modified stored, got %q", state.LastModified)
	}
}

func TestPipelineRefreshesFeedStateWithoutTokens(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><article-body>plain body</article-body></html>")
	}))
	defer pages.Close()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML(pages.URL + "/p/1")))
	}))
	defer feeds.Close()

	repo := newMemoryRepo(domain.Feed{ID: 3, Outlet: "outlet", URL: feeds.URL, Active: true})
	p := newTestPipeline(repo, 5*time.Second)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	state, ok := repo.state(3)
	if !ok {
		t.Fatal("poll should refresh feed state even without tokens")
	}
	if state.ETag != "" || state.LastModified != "" {
		t.Fatalf("expected empty tokens, got %+v", state)
	}
}

func TestPipelineSecondRunIsAllDuplicates(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><article-body>Stable body %s</article-body></html>", r.URL.Path)
	}))
	defer pages.Close()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML(pages.URL+"/b/1", pages.URL+"/b/2")))
	}))
	defer feeds.Close()

	repo := newMemoryRepo(domain.Feed{ID: 1, Outlet: "outlet", URL: feeds.URL, Active: true})
	p := newTestPipeline(repo, 5*time.Second)

	first, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Persisted != 2 {
		t.Fatalf("first run should persist 2, got %d", first.Persisted)
	}

	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Persisted != 0 || second.Duplicates != 2 {
		t.Fatalf("second run should be all duplicates, got persisted=%d duplicates=%d",
			second.Persisted, second.Duplicates)
	}
	if repo.count() != 2 {
		t.Fatalf("net-new articles on second run: %d total", repo.count())
	}
}

func TestPipelineFeedFailureIsolated(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><article-body>ok body</article-body></html>")
	}))
	defer pages.Close()

	badFeed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer badFeed.Close()

	goodFeed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML(pages.URL + "/c/1")))
	}))
	defer goodFeed.Close()

	repo := newMemoryRepo(
		domain.Feed{ID: 1, Outlet: "bad", URL: badFeed.URL, Active: true},
		domain.Feed{ID: 2, Outlet: "good", URL: goodFeed.URL, Active: true},
	)
	p := newTestPipeline(repo, 5*time.Second)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.FeedsFailed != 1 {
		t.Fatalf("expected 1 failed feed, got %d", report.FeedsFailed)
	}
	if report.Persisted != 1 || repo.count() != 1 {
		t.Fatalf("good feed should still persist, got %d", report.Persisted)
	}
}

func TestPipelineEntryFetchFailureIsolated(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "slow") {
			time.Sleep(500 * time.Millisecond)
			return
		}
		fmt.Fprint(w, "<html><article-body>fast body</article-body></html>")
	}))
	defer pages.Close()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML(pages.URL+"/slow/1", pages.URL+"/fast/2")))
	}))
	defer feeds.Close()

	repo := newMemoryRepo(domain.Feed{ID: 1, Outlet: "outlet", URL: feeds.URL, Active: true})
	p := newTestPipeline(repo, 100*time.Millisecond)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Skipped != 1 {
		t.Fatalf("expected 1 skipped entry, got %d", report.Skipped)
	}
	if report.Persisted != 1 {
		t.Fatalf("other entry should still persist, got %d", report.Persisted)
	}
}

func TestPipelineFallsBackToFeedSummary(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No article-body marker, so extraction yields nothing.
		fmt.Fprint(w, "<html><p>nav nav nav</p></html>")
	}))
	defer pages.Close()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML(pages.URL + "/d/1")))
	}))
	defer feeds.Close()

	var captured domain.ArticleDraft
	repo := &captureRepo{memoryRepo: newMemoryRepo(domain.Feed{ID: 1, Outlet: "outlet", URL: feeds.URL, Active: true}), captured: &captured}
	p := newTestPipeline(repo, 5*time.Second)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if captured.Body != "Summary 1" {
		t.Fatalf("expected feed summary as body, got %q", captured.Body)
	}
	if captured.Title != "Entry 1" {
		t.Fatalf("expected feed title, got %q", captured.Title)
	}
	if captured.Summary != "Summary 1" {
		t.Fatalf("expected derived lead, got %q", captured.Summary)
	}
}

func TestPipelineStorageFailureAbortsFeedOnly(t *testing.T) {
	t.Parallel()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><article-body>some body</article-body></html>")
	}))
	defer pages.Close()

	feeds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML(pages.URL + "/e/1")))
	}))
	defer feeds.Close()

	repo := newMemoryRepo(domain.Feed{ID: 1, Outlet: "outlet", URL: feeds.URL, Active: true})
	repo.failWrite = true
	p := newTestPipeline(repo, 5*time.Second)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run must not fail as a whole: %v", err)
	}
	if report.Failed != 1 || report.Persisted != 0 {
		t.Fatalf("expected the write failure counted, got %+v", report)
	}
}

// captureRepo records the last draft passed to InsertArticle.
type captureRepo struct {
	*memoryRepo
	captured *domain.ArticleDraft
}

func (c *captureRepo) InsertArticle(ctx context.Context, draft domain.ArticleDraft) (int64, error) {
	*c.captured = draft
	return c.memoryRepo.InsertArticle(ctx, draft)
}

func TestPipelineConcurrentInsertSingleWinner(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	draft := domain.ArticleDraft{URL: "http://news.example/race?x=1"}

	var wg sync.WaitGroup
	var created, duplicate int
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.InsertArticle(context.Background(), draft)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ports.ErrDuplicateArticle) {
				duplicate++
			} else if err == nil {
				created++
			}
		}()
	}
	wg.Wait()

	if created != 1 || duplicate != 7 {
		t.Fatalf("expected exactly one winner, got created=%d duplicate=%d", created, duplicate)
	}
}
