package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/allball/internal/cli"
	"horse.fit/allball/internal/config"
	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/feed"
	"horse.fit/allball/internal/freshness"
	"horse.fit/allball/internal/logging"
	"horse.fit/allball/internal/pipeline"
	"horse.fit/allball/internal/reader"
	"horse.fit/allball/internal/registry"
	"horse.fit/allball/internal/rewrite"
)

// loadConfig applies the .env file, then reads and validates the environment.
func loadConfig(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func connectPool(cfg *config.Config, logger zerolog.Logger, timeout time.Duration) (*db.Pool, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg, logging.Component(logger, "db"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	path := strings.TrimSpace(cfg.SourcesFile)
	if path == "" {
		return registry.Default()
	}
	return registry.Load(path)
}

// newPipeline wires every pipeline collaborator from configuration.
func newPipeline(cfg *config.Config, reg *registry.Registry, store pipeline.Store, logger zerolog.Logger) (*pipeline.Service, error) {
	policy, err := freshness.ParsePolicy(cfg.UndatedPolicy())
	if err != nil {
		return nil, err
	}

	fetcher := feed.NewFetcher(feed.Options{
		Timeout:         cfg.FetchTimeout,
		UserAgent:       cfg.FetchUserAgent,
		NewsAPIKey:      cfg.NewsAPIKey,
		NewsAPIEndpoint: cfg.NewsAPIEndpoint,
	}, logging.Component(logger, "fetcher"))

	adapter := rewrite.New(cfg.AIEnabled, rewrite.OpenAIOptions{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		BaseURL:     cfg.OpenAIBaseURL,
		Timeout:     cfg.AITimeout,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
	}, logging.Component(logger, "rewrite"))

	svc := pipeline.NewService(reg, fetcher, store, adapter, pipeline.Config{
		MaxPerSource:   cfg.MaxPerSource,
		HardLimit:      cfg.HardLimit,
		Freshness:      freshness.New(cfg.FreshnessMaxAgeHours, policy),
		AIEnabled:      cfg.AIEnabled,
		MaxAIArticles:  cfg.MaxAIArticles,
		MaxAIChars:     cfg.MaxAIChars,
		ReaderMinChars: cfg.ReaderMinChars,
	}, logging.Component(logger, "pipeline"))

	if cfg.ReaderExpandEnabled {
		svc.WithReader(reader.New(reader.Options{
			Timeout:   cfg.FetchTimeout,
			UserAgent: cfg.FetchUserAgent,
		}))
	}
	return svc, nil
}

func printRunSummary(res pipeline.RunResult) {
	c := res.Counters
	fmt.Printf(
		"run run_uuid=%s fetched=%d unusable=%d stale=%d undated=%d kept=%d created=%d existing=%d enriched=%d fallback=%d duration=%s\n",
		res.RunUUID,
		c.Fetched,
		c.Unusable,
		c.Stale,
		c.Undated,
		c.Kept,
		c.Created,
		c.Existing,
		c.Enriched,
		c.Fallback,
		res.Duration.Round(time.Millisecond),
	)
}
