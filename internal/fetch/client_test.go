package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestFetchPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "news-collector/test" {
			t.Errorf("unexpected user agent: %s", got)
		}
		_, _ = w.Write([]byte("<html>page body</html>"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, 0, "news-collector/test")
	body, err := client.FetchPage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchPage error: %v", err)
	}
	if body != "<html>page body</html>" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFetchPageNonSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	client := NewClient(5*time.Second, 0, "news-collector/test")
	if _, err := client.FetchPage(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for non-success status")
	}
}

func TestFetchPageTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(50*time.Millisecond, 0, "news-collector/test")
	if _, err := client.FetchPage(context.Background(), server.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHostLimiterSpacesRequests(t *testing.T) {
	t.Parallel()

	const interval = 100 * time.Millisecond
	lim := newHostLimiter(interval)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lim.wait(context.Background(), "http://same-host.example/a"); err != nil {
				t.Errorf("wait error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Three requests with burst 1 need at least two full intervals.
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Fatalf("requests not spaced: took %v", elapsed)
	}
}

func TestHostLimiterDistinctHostsIndependent(t *testing.T) {
	t.Parallel()

	lim := newHostLimiter(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := lim.wait(ctx, "http://a.example/x"); err != nil {
		t.Fatalf("first host wait: %v", err)
	}
	if err := lim.wait(ctx, "http://b.example/x"); err != nil {
		t.Fatalf("second host should not wait on first host's budget: %v", err)
	}
}
