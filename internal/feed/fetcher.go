// Package feed pulls raw headline records from syndication feeds and the
// NewsAPI search endpoint.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/allball/internal/registry"
)

const (
	DefaultTimeout = 15 * time.Second

	maxBodyBytes       = 8 * 1024 * 1024
	maxParallelFetches = 4
	defaultUserAgent   = "allball/1.0 (+https://horse.fit)"
)

// RawItem is one upstream record before normalization. Exactly one of Feed and
// NewsAPI is set.
type RawItem struct {
	Upstream string
	// BaseURL resolves relative item links.
	BaseURL string
	Feed    *gofeed.Item
	NewsAPI *NewsAPIArticle
}

type Options struct {
	Timeout         time.Duration
	UserAgent       string
	HTTPClient      *http.Client
	NewsAPIKey      string
	NewsAPIEndpoint string
}

// Fetcher never fails a whole source: an unhealthy upstream is logged and
// contributes nothing.
type Fetcher struct {
	timeout   time.Duration
	userAgent string
	http      *http.Client
	newsAPI   *NewsAPIClient
	logger    zerolog.Logger
}

func NewFetcher(opts Options, logger zerolog.Logger) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Fetcher{
		timeout:   timeout,
		userAgent: userAgent,
		http:      client,
		newsAPI:   NewNewsAPIClient(opts.NewsAPIEndpoint, opts.NewsAPIKey, userAgent, client),
		logger:    logger,
	}
}

// PerUpstreamLimit splits a per-source cap evenly across upstreams, never
// below one item each. A non-positive cap means unlimited.
func PerUpstreamLimit(maxPerSource, upstreams int) int {
	if maxPerSource <= 0 || upstreams <= 0 {
		return 0
	}
	return max(1, maxPerSource/upstreams)
}

// Fetch collects up to maxPerSource raw items for src. Upstreams are fetched
// concurrently; the result keeps the registry's upstream order.
func (f *Fetcher) Fetch(ctx context.Context, src registry.Source, maxPerSource int) []RawItem {
	if len(src.Upstreams) == 0 {
		return nil
	}

	limit := PerUpstreamLimit(maxPerSource, len(src.Upstreams))
	results := make([][]RawItem, len(src.Upstreams))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, locator := range src.Upstreams {
		g.Go(func() error {
			items, err := f.fetchUpstream(gctx, src, locator, limit)
			if err != nil {
				f.logger.Warn().
					Err(err).
					Str("league", src.LeagueID).
					Str("upstream", locator).
					Msg("upstream fetch failed")
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	out := make([]RawItem, 0, max(maxPerSource, 0))
	for _, items := range results {
		out = append(out, items...)
	}
	if maxPerSource > 0 && len(out) > maxPerSource {
		out = out[:maxPerSource]
	}

	f.logger.Debug().
		Str("league", src.LeagueID).
		Int("upstreams", len(src.Upstreams)).
		Int("items", len(out)).
		Msg("source fetched")

	return out
}

func (f *Fetcher) fetchUpstream(ctx context.Context, src registry.Source, locator string, limit int) ([]RawItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if query, ok := registry.NewsAPIQuery(locator, src); ok {
		return f.fetchNewsAPI(ctx, locator, query, limit)
	}
	return f.fetchFeed(ctx, locator, limit)
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string, limit int) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	baseURL := feedURL
	if link := strings.TrimSpace(parsed.Link); isAbsoluteHTTP(link) {
		baseURL = link
	}

	entries := parsed.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]RawItem, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		items = append(items, RawItem{
			Upstream: feedURL,
			BaseURL:  baseURL,
			Feed:     entry,
		})
	}
	return items, nil
}

func (f *Fetcher) fetchNewsAPI(ctx context.Context, locator, query string, limit int) ([]RawItem, error) {
	if !f.newsAPI.Configured() {
		return nil, fmt.Errorf("NEWSAPI_KEY is not set")
	}

	articles, err := f.newsAPI.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	items := make([]RawItem, 0, len(articles))
	for i := range articles {
		items = append(items, RawItem{
			Upstream: locator,
			BaseURL:  f.newsAPI.endpoint,
			NewsAPI:  &articles[i],
		})
	}
	return items, nil
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
