package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newscollector/internal/ports"
)

// Serve exposes the default prometheus registry at /metrics on addr. It
// blocks, so callers run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

// PromObserver counts pipeline lifecycle events per outlet.
type PromObserver struct {
	feedsStarted      *prometheus.CounterVec
	feedsFailed       *prometheus.CounterVec
	articlesPersisted *prometheus.CounterVec
	articlesDuplicate *prometheus.CounterVec
	articlesSkipped   *prometheus.CounterVec
}

var _ ports.Observer = (*PromObserver)(nil)

// NewPromObserver registers the collector counters on the default registry.
func NewPromObserver() *PromObserver {
	return &PromObserver{
		feedsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_feeds_started_total",
			Help: "Feed poll attempts started",
		}, []string{"outlet"}),
		feedsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_feeds_failed_total",
			Help: "Feed polls that failed to fetch or parse",
		}, []string{"outlet"}),
		articlesPersisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_articles_persisted_total",
			Help: "Articles newly persisted",
		}, []string{"outlet"}),
		articlesDuplicate: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_articles_duplicate_total",
			Help: "Inserts rejected by the canonical URL constraint",
		}, []string{"outlet"}),
		articlesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_articles_skipped_total",
			Help: "Entries skipped before persistence",
		}, []string{"outlet"}),
	}
}

func (o *PromObserver) FeedStarted(outlet, url string) {
	o.feedsStarted.WithLabelValues(outlet).Inc()
}

func (o *PromObserver) FeedFailed(outlet, url string, err error) {
	o.feedsFailed.WithLabelValues(outlet).Inc()
}

func (o *PromObserver) ArticlePersisted(outlet, canonicalURL string) {
	o.articlesPersisted.WithLabelValues(outlet).Inc()
}

func (o *PromObserver) ArticleDuplicate(outlet, canonicalURL string) {
	o.articlesDuplicate.WithLabelValues(outlet).Inc()
}

func (o *PromObserver) ArticleSkipped(outlet, url, reason string) {
	o.articlesSkipped.WithLabelValues(outlet).Inc()
}

// TaggerMetrics mirrors the tagging worker counters.
type TaggerMetrics struct {
	Processed prometheus.Counter
	Success   prometheus.Counter
	Fail      prometheus.Counter
}

// NewTaggerMetrics registers the tagging counters on the default registry.
func NewTaggerMetrics() *TaggerMetrics {
	return &TaggerMetrics{
		Processed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "articles_processed_total",
			Help: "Total articles processed",
		}),
		Success: promauto.NewCounter(prometheus.CounterOpts{
			Name: "articles_success_total",
			Help: "Articles successfully tagged",
		}),
		Fail: promauto.NewCounter(prometheus.CounterOpts{
			Name: "articles_fail_total",
			Help: "Articles failed to tag",
		}),
	}
}
