package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/allball/internal/cli"
	"horse.fit/allball/internal/db"
)

func runArticles(args []string) int {
	fs := flag.NewFlagSet("articles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	sport := fs.String("sport", "", "Filter by sport")
	league := fs.String("league", "", "Filter by league id")
	region := fs.String("region", "", "Filter by region")
	sortOrder := fs.String("sort", db.SortNewest, "Sort order: newest or oldest")
	limit := fs.Int("limit", 20, "Maximum articles to return")
	offset := fs.Int("offset", 0, "Articles to skip")
	includeUnpublished := fs.Bool("all", false, "Include unpublished articles")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "articles does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	if *offset < 0 {
		fmt.Fprintln(os.Stderr, "--offset must be >= 0")
		return 2
	}
	order := strings.ToLower(strings.TrimSpace(*sortOrder))
	if order != db.SortNewest && order != db.SortOldest {
		fmt.Fprintln(os.Stderr, "--sort must be newest or oldest")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pool, err := connectPool(cfg, logger, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	articles, err := pool.ListArticles(ctx, db.ArticleQuery{
		Sport:         strings.ToLower(strings.TrimSpace(*sport)),
		LeagueID:      strings.ToLower(strings.TrimSpace(*league)),
		Region:        strings.ToLower(strings.TrimSpace(*region)),
		PublishedOnly: !*includeUnpublished,
		Sort:          order,
		Limit:         *limit,
		Offset:        *offset,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query articles: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(articles); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	if err := writeArticleTable(articles); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func writeArticleTable(articles []db.ArticleRecord) error {
	rows := make([][]string, 0, len(articles))
	for _, article := range articles {
		rows = append(rows, []string{
			strconv.FormatInt(article.ArticleID, 10),
			truncateForTable(article.Slug, 48),
			truncateForTable(article.Title, 72),
			article.LeagueID,
			article.Language,
			strconv.FormatBool(article.EnrichedFlag),
			pointerStringOrEmpty(article.EnrichmentProvider),
			formatUTCTimestampPtr(article.PublishedAt),
		})
	}
	return writeTable(
		[]string{"article_id", "slug", "title", "league", "lang", "enriched", "provider", "published_at"},
		rows,
	)
}

func runRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", 20, "Maximum runs to return")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pool, err := connectPool(cfg, logger, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runs, err := pool.ListRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query runs: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(runs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		c := run.Counters
		rows = append(rows, []string{
			run.RunUUID,
			run.TriggeredBy,
			run.Status,
			formatUTCTimestamp(run.StartedAt),
			formatUTCTimestampPtr(run.FinishedAt),
			fmt.Sprintf("%d/%d/%d", c.Fetched, c.Kept, c.Created),
			fmt.Sprintf("%d/%d", c.Enriched, c.Fallback),
			truncateForTable(pointerStringOrEmpty(run.ErrorMessage), 60),
		})
	}
	if err := writeTable(
		[]string{"run_uuid", "trigger", "status", "started_at", "finished_at", "fetched/kept/created", "enriched/fallback", "error"},
		rows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
