package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"newscollector/internal/app"
	"newscollector/internal/config"
	"newscollector/internal/infrastructure/llm"
	"newscollector/internal/infrastructure/metrics"
	"newscollector/internal/logging"
	"newscollector/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if cfg.Tagger.APIKey == "" {
		logger.Error("OPENAI_API_KEY is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, release, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("cannot open store", "error", err)
		os.Exit(1)
	}
	defer release()

	taggerMetrics := metrics.NewTaggerMetrics()
	if addr := cfg.Tagger.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(addr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	tagger := usecase.NewTagger(usecase.TaggerDeps{
		Repository: store,
		Classifier: llm.NewChatGPTClient(cfg.Tagger),
		Logger:     logger,
		BatchSize:  cfg.Tagger.BatchSize,
		IdleWait:   cfg.Tagger.IdleWait,
		Processed:  taggerMetrics.Processed,
		Success:    taggerMetrics.Success,
		Fail:       taggerMetrics.Fail,
	})

	logger.Info("tagging worker started", "model", cfg.Tagger.Model, "batch_size", cfg.Tagger.BatchSize)

	if err := tagger.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("tagging worker stopped", "error", err)
		os.Exit(1)
	}
}
