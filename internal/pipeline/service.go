// Package pipeline runs one ingestion pass: fetch every source, normalize and
// filter the items, resolve them to persisted articles, then enrich.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/enrich"
	"horse.fit/allball/internal/feed"
	"horse.fit/allball/internal/freshness"
	"horse.fit/allball/internal/globaltime"
	"horse.fit/allball/internal/identity"
	"horse.fit/allball/internal/normalize"
	"horse.fit/allball/internal/reader"
	"horse.fit/allball/internal/registry"
)

const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"

	failRunTimeout = 10 * time.Second
)

// Fetcher returns raw items for one source. It never fails; broken upstreams
// contribute nothing. *feed.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, src registry.Source, maxPerSource int) []feed.RawItem
}

// Store is everything a run writes. *db.Pool and *memstore.Store satisfy it.
type Store interface {
	identity.Store
	enrich.Store
	StartRun(ctx context.Context, triggeredBy string, startedAt time.Time) (db.RunRecord, error)
	FinishRun(ctx context.Context, runID int64, counters db.RunCounters, finishedAt time.Time) error
	FailRun(ctx context.Context, runID int64, counters db.RunCounters, cause error, finishedAt time.Time) error
}

// TextReader expands an article body from its source page.
type TextReader interface {
	FetchText(ctx context.Context, pageURL string) (string, error)
}

// Config holds the per-run budgets. Zero or negative MaxPerSource and
// HardLimit mean unlimited; see enrich.NewGate for MaxAIArticles.
type Config struct {
	MaxPerSource   int
	HardLimit      int
	Freshness      freshness.Filter
	AIEnabled      bool
	MaxAIArticles  int
	MaxAIChars     int
	ReaderMinChars int
}

type Options struct {
	Trigger string
}

type RunResult struct {
	RunID    int64
	RunUUID  string
	Counters db.RunCounters
	Skipped  map[enrich.Decision]int
	Duration time.Duration
}

type Service struct {
	registry *registry.Registry
	fetcher  Fetcher
	store    Store
	rewriter enrich.Rewriter
	reader   TextReader
	cfg      Config
	logger   zerolog.Logger
}

func NewService(reg *registry.Registry, fetcher Fetcher, store Store, rewriter enrich.Rewriter, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		registry: reg,
		fetcher:  fetcher,
		store:    store,
		rewriter: rewriter,
		cfg:      cfg,
		logger:   logger,
	}
}

// WithReader turns on body expansion for new articles shorter than
// Config.ReaderMinChars.
func (s *Service) WithReader(r TextReader) *Service {
	s.reader = r
	return s
}

func (s *Service) Run(ctx context.Context, opts Options) (RunResult, error) {
	if s == nil || s.registry == nil || s.fetcher == nil || s.store == nil {
		return RunResult{}, fmt.Errorf("pipeline service is not initialized")
	}

	trigger := strings.TrimSpace(opts.Trigger)
	if trigger == "" {
		trigger = TriggerManual
	}

	startedAt := globaltime.UTC()
	run, err := s.store.StartRun(ctx, trigger, startedAt)
	if err != nil {
		return RunResult{}, fmt.Errorf("start pipeline run: %w", err)
	}

	result := RunResult{
		RunID:   run.RunID,
		RunUUID: run.RunUUID,
		Skipped: make(map[enrich.Decision]int),
	}
	logger := s.logger.With().Str("run_uuid", run.RunUUID).Str("trigger", trigger).Logger()
	logger.Info().Int("sources", s.registry.Len()).Msg("pipeline run started")

	items := s.collect(ctx, &result.Counters, logger)
	if err := ctx.Err(); err != nil {
		return s.fail(ctx, run, result, fmt.Errorf("collect items: %w", err), logger)
	}

	articles, err := s.resolve(ctx, items, &result.Counters, logger)
	if err != nil {
		return s.fail(ctx, run, result, err, logger)
	}

	if err := s.enrich(ctx, articles, &result, logger); err != nil {
		return s.fail(ctx, run, result, err, logger)
	}

	finishedAt := globaltime.UTC()
	if err := s.store.FinishRun(ctx, run.RunID, result.Counters, finishedAt); err != nil {
		return s.fail(ctx, run, result, fmt.Errorf("finish pipeline run: %w", err), logger)
	}
	result.Duration = finishedAt.Sub(startedAt)

	c := result.Counters
	logger.Info().
		Int("fetched", c.Fetched).
		Int("unusable", c.Unusable).
		Int("stale", c.Stale).
		Int("undated", c.Undated).
		Int("kept", c.Kept).
		Int("created", c.Created).
		Int("existing", c.Existing).
		Int("enriched", c.Enriched).
		Int("fallback", c.Fallback).
		Int("budget_skipped", result.Skipped[enrich.SkipBudgetExhausted]).
		Dur("duration", result.Duration).
		Msg("pipeline run completed")

	return result, nil
}

// collect walks the registry in order until the hard limit is reached.
func (s *Service) collect(ctx context.Context, counters *db.RunCounters, logger zerolog.Logger) []normalize.CanonicalItem {
	now := globaltime.UTC()
	items := make([]normalize.CanonicalItem, 0, max(s.cfg.HardLimit, 0))
	seen := make(map[string]struct{})

	for _, src := range s.registry.Sources() {
		if ctx.Err() != nil {
			break
		}

		limit := s.cfg.MaxPerSource
		if s.cfg.HardLimit > 0 {
			remaining := s.cfg.HardLimit - len(items)
			if remaining <= 0 {
				logger.Debug().Str("league", src.LeagueID).Msg("hard limit reached, skipping remaining sources")
				break
			}
			if limit <= 0 || limit > remaining {
				limit = remaining
			}
		}

		raw := s.fetcher.Fetch(ctx, src, limit)
		counters.Fetched += len(raw)

		for _, r := range raw {
			item, err := normalize.Normalize(r, src)
			if err != nil {
				counters.Unusable++
				logger.Debug().Err(err).Str("league", src.LeagueID).Str("upstream", r.Upstream).Msg("unusable item dropped")
				continue
			}

			switch s.cfg.Freshness.Classify(item, now) {
			case freshness.Stale:
				counters.Stale++
			case freshness.Undated:
				counters.Undated++
			}
			if !s.cfg.Freshness.Keep(item, now) {
				continue
			}

			id := identity.ExternalID(item)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			items = append(items, item)
		}
	}

	if s.cfg.HardLimit > 0 && len(items) > s.cfg.HardLimit {
		items = items[:s.cfg.HardLimit]
	}
	counters.Kept = len(items)
	return items
}

func (s *Service) resolve(ctx context.Context, items []normalize.CanonicalItem, counters *db.RunCounters, logger zerolog.Logger) ([]db.ArticleRecord, error) {
	resolver := identity.NewResolver(s.store, logger)
	if s.reader != nil {
		resolver.WithPrepare(s.expand)
	}

	articles := make([]db.ArticleRecord, 0, len(items))
	for _, item := range items {
		res, err := resolver.Resolve(ctx, item)
		if err != nil {
			if errors.Is(err, normalize.ErrUnusable) {
				counters.Unusable++
				continue
			}
			if errors.Is(err, identity.ErrSlugExhausted) {
				counters.Unusable++
				logger.Warn().Err(err).Str("external_id", identity.ExternalID(item)).Msg("no free slug, item skipped")
				continue
			}
			return nil, fmt.Errorf("resolve %q: %w", item.CanonicalLink, err)
		}
		if res.Created {
			counters.Created++
		} else {
			counters.Existing++
		}
		articles = append(articles, res.Article)
	}
	return articles, nil
}

// enrich is strictly sequential so the budget is spent in registry order.
func (s *Service) enrich(ctx context.Context, articles []db.ArticleRecord, result *RunResult, logger zerolog.Logger) error {
	gate := enrich.NewGate(s.cfg.AIEnabled && s.rewriter != nil, s.cfg.MaxAIArticles, s.cfg.MaxAIChars)
	if !gate.Enabled() {
		result.Skipped[enrich.SkipDisabled] += len(articles)
		return nil
	}
	enricher := enrich.NewEnricher(gate, s.rewriter, s.store, logger)

	for _, article := range articles {
		out, err := enricher.Enrich(ctx, article)
		if err != nil {
			return err
		}
		switch {
		case out.Decision != enrich.Allow:
			result.Skipped[out.Decision]++
		case out.Enriched:
			result.Counters.Enriched++
		case out.Fallback:
			result.Counters.Fallback++
		}
	}
	return nil
}

func (s *Service) expand(ctx context.Context, item *normalize.CanonicalItem) {
	if s.cfg.ReaderMinChars > 0 && len([]rune(item.BodyText)) >= s.cfg.ReaderMinChars {
		return
	}

	text, err := s.reader.FetchText(ctx, item.CanonicalLink)
	if err != nil {
		s.logger.Debug().Err(err).Str("url", item.CanonicalLink).Msg("reader expansion failed")
		return
	}
	if text = reader.CleanText(text); len([]rune(text)) > len([]rune(item.BodyText)) {
		item.BodyText = text
	}
}

func (s *Service) fail(ctx context.Context, run db.RunRecord, result RunResult, cause error, logger zerolog.Logger) (RunResult, error) {
	logger.Error().Err(cause).Msg("pipeline run failed")

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failRunTimeout)
	defer cancel()
	if err := s.store.FailRun(markCtx, run.RunID, result.Counters, cause, globaltime.UTC()); err != nil {
		return result, fmt.Errorf("pipeline run failed (%v); failed to mark run failed: %w", cause, err)
	}
	return result, cause
}
