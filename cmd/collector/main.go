package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"newscollector/internal/app"
	"newscollector/internal/config"
	"newscollector/internal/logging"
)

func main() {
	_ = godotenv.Load()

	feedsPath := flag.String("feeds", "", "path to a feeds YAML file overriding the configured list")
	once := flag.Bool("once", false, "run a single collection cycle and exit")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if *feedsPath != "" {
		feeds, err := config.LoadFeeds(*feedsPath)
		if err != nil {
			logger.Error("cannot load feeds file", "path", *feedsPath, "error", err)
			os.Exit(1)
		}
		cfg.Feeds = feeds
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.RegisterFeeds(ctx); err != nil {
		logger.Error("feed registration failed", "error", err)
		os.Exit(1)
	}

	run := application.RunLoop
	if *once {
		run = application.RunOnce
	}

	if err := run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("collector stopped", "error", err)
		os.Exit(1)
	}
}
