package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "NEWS_COLLECTOR_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	htmlDirEnv     = "HTML_DIR"
	openAIKeyEnv   = "OPENAI_API_KEY"
	openAIModelEnv = "OPENAI_MODEL"

	// UserAgent identifies every outbound request this collector makes.
	UserAgent = "news-collector/0.2 (+go-http)"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Collector CollectorConfig `yaml:"collector"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Tagger    TaggerConfig    `yaml:"tagger"`
	Logging   LoggingConfig   `yaml:"logging"`
	Feeds     []FeedConfig    `yaml:"feeds"`
}

// DatabaseConfig selects the storage backend and its connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// CollectorConfig tunes the ingestion pipeline.
type CollectorConfig struct {
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	MaxBodyChars    int           `yaml:"maxBodyChars"`
	LeadChars       int           `yaml:"leadChars"`
	MinBodyChars    int           `yaml:"minBodyChars"`
	ArticlesPerFeed int           `yaml:"articlesPerFeed"`
	HostInterval    time.Duration `yaml:"hostInterval"`
	FeedWorkers     int           `yaml:"feedWorkers"`
	EntryWorkers    int           `yaml:"entryWorkers"`
	HTMLDir         string        `yaml:"htmlDir"`
	// MetricsAddr exposes collector counters when non-empty.
	MetricsAddr string `yaml:"metricsAddr"`
}

// SchedulerConfig defines when the collector should run in loop mode.
type SchedulerConfig struct {
	CronExpression string `yaml:"cronExpression"`
	Timezone       string `yaml:"timezone"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

// TaggerConfig defines how the downstream tagging worker contacts its LLM
// and exposes metrics.
type TaggerConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	BatchSize   int           `yaml:"batchSize"`
	IdleWait    time.Duration `yaml:"idleWait"`
	MetricsAddr string        `yaml:"metricsAddr"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// FeedConfig is one (outlet, url) pair to poll.
type FeedConfig struct {
	Outlet string `yaml:"outlet"`
	URL    string `yaml:"url"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg
}

// LoadFeeds reads a standalone feed-list file of the shape
// `feeds: [{outlet: ..., url: ...}, ...]`. Entries without a URL are dropped.
func LoadFeeds(path string) ([]FeedConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var doc struct {
		Feeds []FeedConfig `yaml:"feeds"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}

	feeds := make([]FeedConfig, 0, len(doc.Feeds))
	for _, f := range doc.Feeds {
		if f.URL == "" {
			continue
		}
		if f.Outlet == "" {
			f.Outlet = "unknown"
		}
		feeds = append(feeds, f)
	}
	return feeds, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(htmlDirEnv); v != "" {
		c.Collector.HTMLDir = v
	}
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.Tagger.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.Tagger.Model = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Collector.RequestTimeout != 0 {
		base.Collector.RequestTimeout = override.Collector.RequestTimeout
	}
	if override.Collector.MaxBodyChars != 0 {
		base.Collector.MaxBodyChars = override.Collector.MaxBodyChars
	}
	if override.Collector.LeadChars != 0 {
		base.Collector.LeadChars = override.Collector.LeadChars
	}
	if override.Collector.MinBodyChars != 0 {
		base.Collector.MinBodyChars = override.Collector.MinBodyChars
	}
	if override.Collector.ArticlesPerFeed != 0 {
		base.Collector.ArticlesPerFeed = override.Collector.ArticlesPerFeed
	}
	if override.Collector.HostInterval != 0 {
		base.Collector.HostInterval = override.Collector.HostInterval
	}
	if override.Collector.FeedWorkers != 0 {
		base.Collector.FeedWorkers = override.Collector.FeedWorkers
	}
	if override.Collector.EntryWorkers != 0 {
		base.Collector.EntryWorkers = override.Collector.EntryWorkers
	}
	if override.Collector.HTMLDir != "" {
		base.Collector.HTMLDir = override.Collector.HTMLDir
	}
	if override.Collector.MetricsAddr != "" {
		base.Collector.MetricsAddr = override.Collector.MetricsAddr
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Tagger.Endpoint != "" {
		base.Tagger.Endpoint = override.Tagger.Endpoint
	}
	if override.Tagger.Model != "" {
		base.Tagger.Model = override.Tagger.Model
	}
	if override.Tagger.APIKey != "" {
		base.Tagger.APIKey = override.Tagger.APIKey
	}
	if override.Tagger.BatchSize != 0 {
		base.Tagger.BatchSize = override.Tagger.BatchSize
	}
	if override.Tagger.IdleWait != 0 {
		base.Tagger.IdleWait = override.Tagger.IdleWait
	}
	if override.Tagger.MetricsAddr != "" {
		base.Tagger.MetricsAddr = override.Tagger.MetricsAddr
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "collector.db"},
		Collector: CollectorConfig{
			RequestTimeout:  15 * time.Second,
			MaxBodyChars:    120000,
			LeadChars:       240,
			MinBodyChars:    200,
			ArticlesPerFeed: 0,
			HostInterval:    time.Second,
			FeedWorkers:     4,
			EntryWorkers:    4,
			HTMLDir:         "./data/html",
		},
		Scheduler: SchedulerConfig{CronExpression: "@every 5m", Timezone: "UTC"},
		Tagger: TaggerConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			BatchSize:   5,
			IdleWait:    30 * time.Second,
			MetricsAddr: ":8000",
		},
		Logging: LoggingConfig{Level: "info"},
		Feeds: []FeedConfig{
			{Outlet: "연합뉴스-전체", URL: "https://www.yna.co.kr/rss/news.xml"},
			{Outlet: "연합뉴스-정치", URL: "https://www.yna.co.kr/rss/politics.xml"},
			{Outlet: "연합뉴스-경제", URL: "https://www.yna.co.kr/rss/economy.xml"},
		},
	}
}
