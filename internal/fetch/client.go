package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client issues outbound HTTP requests with a fixed identity, a bounded
// timeout and a shared per-host rate limit. One instance is built per run
// and passed to every component that touches the network.
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *hostLimiter
}

var _ interface {
	FetchPage(ctx context.Context, url string) (string, error)
} = (*Client)(nil)

// NewClient builds a client. hostInterval is the minimum spacing between
// requests to the same host regardless of worker concurrency; zero disables
// the limiter.
func NewClient(timeout, hostInterval time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		limiter:    newHostLimiter(hostInterval),
	}
}

// Get performs a rate-limited GET and returns the raw response. The caller
// owns the body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.wait(ctx, url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	return resp, nil
}

// FetchPage retrieves an article page and returns its body as text.
// Non-2xx statuses are reported as errors; the entry is then skipped by
// the pipeline, never partially persisted.
func (c *Client) FetchPage(ctx context.Context, url string) (string, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("page %s returned %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read page %s: %w", url, err)
	}
	return string(body), nil
}
