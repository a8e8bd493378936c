package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"horse.fit/allball/internal/cli"
	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/memstore"
	"horse.fit/allball/internal/pipeline"
)

func runOnce(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Minute, "Run timeout (0 disables)")
	trigger := fs.String("trigger", pipeline.TriggerManual, "Trigger label recorded on the run")
	dryRun := fs.Bool("dry-run", false, "Run against an in-memory store and print the articles instead of persisting")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run does not accept positional arguments")
		return 2
	}
	if strings.TrimSpace(*trigger) == "" {
		fmt.Fprintln(os.Stderr, "--trigger must not be empty")
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("load sources failed")
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var (
		store     pipeline.Store
		dryStore  *memstore.Store
		closePool func() error
	)
	if *dryRun {
		dryStore = memstore.New()
		store = dryStore
	} else {
		pool, err := connectPool(cfg, logger, 10*time.Second)
		if err != nil {
			logger.Error().Err(err).Msg("run failed to connect to database")
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		store = pool
		closePool = pool.Close
	}
	if closePool != nil {
		defer closePool()
	}

	svc, err := newPipeline(cfg, reg, store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}

	res, err := svc.Run(ctx, pipeline.Options{Trigger: strings.TrimSpace(*trigger)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline run failed: %v\n", err)
		return 1
	}
	printRunSummary(res)

	if dryStore != nil {
		return printDryRunArticles(ctx, dryStore)
	}
	return 0
}

func printDryRunArticles(ctx context.Context, store *memstore.Store) int {
	articles, err := store.ListArticles(ctx, db.ArticleQuery{Limit: max(store.Len(), 1)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list articles: %v\n", err)
		return 1
	}
	if err := writeArticleTable(articles); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
