package usecase

import (
	"context"
	"log/slog"
	"time"

	"newscollector/internal/ports"
)

// Counter is the minimal metrics surface the tagger needs; a prometheus
// counter satisfies it.
type Counter interface {
	Inc()
}

// TaggerDeps wires the downstream classification worker.
type TaggerDeps struct {
	Repository ports.TagRepository
	Classifier ports.Classifier
	Logger     *slog.Logger

	BatchSize int
	IdleWait  time.Duration

	Processed Counter
	Success   Counter
	Fail      Counter
}

// Tagger drains untagged articles in batches, classifies each one and
// writes the verdict back. It owns only the tag columns.
type Tagger struct {
	repo       ports.TagRepository
	classifier ports.Classifier
	logger     *slog.Logger
	batchSize  int
	idleWait   time.Duration
	processed  Counter
	success    Counter
	fail       Counter
}

// NewTagger constructs the worker.
func NewTagger(deps TaggerDeps) *Tagger {
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 5
	}
	idle := deps.IdleWait
	if idle <= 0 {
		idle = 30 * time.Second
	}

	return &Tagger{
		repo:       deps.Repository,
		classifier: deps.Classifier,
		logger:     deps.Logger,
		batchSize:  batch,
		idleWait:   idle,
		processed:  deps.Processed,
		success:    deps.Success,
		fail:       deps.Fail,
	}
}

// Run loops until the context is cancelled, sleeping when no untagged
// articles remain.
func (t *Tagger) Run(ctx context.Context) error {
	for {
		n, err := t.RunOnce(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}

		t.debug("no untagged articles, waiting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.idleWait):
		}
	}
}

// RunOnce processes a single batch and returns how many articles it saw.
// Classification failures are counted and skipped, never fatal; a storage
// failure on the read side is.
func (t *Tagger) RunOnce(ctx context.Context) (int, error) {
	articles, err := t.repo.ListUntagged(ctx, t.batchSize)
	if err != nil {
		return 0, err
	}

	for _, article := range articles {
		if ctx.Err() != nil {
			return len(articles), ctx.Err()
		}
		t.inc(t.processed)

		tag, err := t.classifier.Classify(ctx, article.Title, article.Body)
		if err != nil {
			t.warn("classify failed", "id", article.ID, "url", article.CanonicalURL, "error", err)
			t.inc(t.fail)
			continue
		}

		if err := t.repo.SaveTag(ctx, article.ID, tag); err != nil {
			t.warn("save tag failed", "id", article.ID, "error", err)
			t.inc(t.fail)
			continue
		}

		t.debug("tagged", "id", article.ID, "sentiment", tag.Sentiment)
		t.inc(t.success)
	}

	return len(articles), nil
}

func (t *Tagger) inc(c Counter) {
	if c != nil {
		c.Inc()
	}
}

func (t *Tagger) debug(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

func (t *Tagger) warn(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}
