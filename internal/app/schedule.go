package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"horse.fit/allball/internal/cli"
	"horse.fit/allball/internal/httpapi"
	"horse.fit/allball/internal/logging"
	"horse.fit/allball/internal/pipeline"
	"horse.fit/allball/internal/scheduler"
)

func runSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	serve := fs.Bool("serve", false, "Also serve the article API")
	host := fs.String("host", "0.0.0.0", "Host interface to bind when --serve is set")
	port := fs.Int("port", 8090, "HTTP port when --serve is set")
	interval := fs.Duration("interval", 0, "Override PIPELINE_INTERVAL")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if err := validatePort(*port, "--port"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *interval < 0 {
		fmt.Fprintln(os.Stderr, "--interval must be >= 0")
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *interval > 0 {
		cfg.PipelineInterval = *interval
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("load sources failed")
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	pool, err := connectPool(cfg, logger, 10*time.Second)
	if err != nil {
		logger.Error().Err(err).Msg("schedule failed to connect to database")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	svc, err := newPipeline(cfg, reg, pool, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(ctx, cfg.PipelineInterval, func(runCtx context.Context, trigger string) error {
		_, err := svc.Run(runCtx, pipeline.Options{Trigger: trigger})
		return err
	}, logging.Component(logger, "scheduler"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create scheduler: %v\n", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	if *serve {
		srv := httpapi.NewServer(pool, reg, logging.Component(logger, "http"), httpapi.Options{
			Host:           *host,
			Port:           *port,
			AllowedOrigins: cfg.CORSAllowedOriginsList(),
		})
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	sched.Start()
	if cfg.PipelineRunOnStart {
		g.Go(func() error {
			sched.RunNow()
			return nil
		})
	}

	<-gctx.Done()
	sched.Stop()

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("schedule stopped with error")
		fmt.Fprintf(os.Stderr, "Schedule failed: %v\n", err)
		return 1
	}
	return 0
}
