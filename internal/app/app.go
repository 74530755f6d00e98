package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"newscollector/internal/config"
	"newscollector/internal/extract"
	"newscollector/internal/feed"
	"newscollector/internal/fetch"
	"newscollector/internal/infrastructure/htmlstore"
	"newscollector/internal/infrastructure/metrics"
	"newscollector/internal/infrastructure/scheduler"
	"newscollector/internal/infrastructure/storage"
	"newscollector/internal/ports"
	"newscollector/internal/usecase"
)

// Store is the combined persistence surface both binaries share.
type Store interface {
	ports.ArticleRepository
	ports.TagRepository
}

// OpenStore builds the repository selected by the database driver and
// returns it with a release func for the underlying handle.
func OpenStore(ctx context.Context, cfg config.Config) (Store, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo, err := storage.NewPostgresRepository(ctx, db, cfg.Collector.MaxBodyChars)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil

	case "sqlite", "":
		repo, err := storage.NewSQLiteRepository(ctx, cfg.Database.DSN, cfg.Collector.MaxBodyChars)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// Application wires configuration into the collection pipeline and its
// lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    Store
	pipeline *usecase.Pipeline
	sched    ports.Scheduler
	release  func()
}

// New builds a runnable collector instance. All network and storage
// handles are acquired here and released by Close.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	store, release, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(cfg.Collector.RequestTimeout, cfg.Collector.HostInterval, config.UserAgent)

	chain := extract.NewChain(
		cfg.Collector.MinBodyChars,
		logger.With("component", "extract"),
		extract.NewOutletExtractor(),
		extract.NewReadabilityExtractor(),
		extract.NewGooseExtractor(),
	)

	var htmlStore ports.HTMLStore
	if cfg.Collector.HTMLDir != "" {
		htmlStore = htmlstore.New(cfg.Collector.HTMLDir)
	}

	var observer ports.Observer
	if cfg.Collector.MetricsAddr != "" {
		observer = metrics.NewPromObserver()
		go func() {
			if err := metrics.Serve(cfg.Collector.MetricsAddr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Repository:      store,
		Feeds:           feed.NewFetcher(client, logger.With("component", "feed")),
		Pages:           client,
		Extractor:       chain,
		HTMLStore:       htmlStore,
		Observer:        observer,
		Logger:          logger.With("component", "pipeline"),
		ArticlesPerFeed: cfg.Collector.ArticlesPerFeed,
		LeadChars:       cfg.Collector.LeadChars,
		FeedWorkers:     cfg.Collector.FeedWorkers,
		EntryWorkers:    cfg.Collector.EntryWorkers,
	})

	return &Application{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		pipeline: pipeline,
		sched:    scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
		release:  release,
	}, nil
}

// RegisterFeeds upserts the configured feed list; existing URLs are no-ops.
func (a *Application) RegisterFeeds(ctx context.Context) error {
	for _, f := range a.cfg.Feeds {
		if err := a.store.UpsertFeed(ctx, f.Outlet, f.URL); err != nil {
			return fmt.Errorf("register feed %s: %w", f.URL, err)
		}
	}
	return nil
}

// RunOnce executes a single collection cycle.
func (a *Application) RunOnce(ctx context.Context) error {
	_, err := a.pipeline.Run(ctx)
	return err
}

// RunLoop schedules recurring cycles until the context is cancelled.
func (a *Application) RunLoop(ctx context.Context) error {
	job := func(t time.Time) {
		if _, err := a.pipeline.Run(ctx); err != nil {
			a.logger.Error("collection run failed", "error", err)
		}
	}

	if err := a.sched.Start(ctx, job); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.sched.Stop(stopCtx)
}

// Close releases storage handles.
func (a *Application) Close() {
	if a.release != nil {
		a.release()
	}
}
