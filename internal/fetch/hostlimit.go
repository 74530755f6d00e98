package fetch

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiter enforces a minimum interval between requests to the same
// host. Limiters are created lazily per host and shared across all workers.
type hostLimiter struct {
	interval time.Duration

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

func newHostLimiter(interval time.Duration) *hostLimiter {
	return &hostLimiter{
		interval: interval,
		hosts:    make(map[string]*rate.Limiter),
	}
}

func (h *hostLimiter) wait(ctx context.Context, rawURL string) error {
	if h == nil || h.interval <= 0 {
		return nil
	}

	host := hostOf(rawURL)
	if host == "" {
		return nil
	}

	h.mu.Lock()
	lim, ok := h.hosts[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(h.interval), 1)
		h.hosts[host] = lim
	}
	h.mu.Unlock()

	return lim.Wait(ctx)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
