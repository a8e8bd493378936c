// Package registry holds the immutable catalog of leagues the pipeline pulls
// headlines for and the upstream feeds behind each one.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
)

//go:embed sources.yaml
var defaultSourcesYAML []byte

// NewsAPIPrefix marks an upstream served by the NewsAPI search endpoint
// instead of a syndication feed.
const NewsAPIPrefix = "newsapi"

// Source is one league entry. Upstreams are resolved at load time, so a Source
// never needs the catalog to be interpreted.
type Source struct {
	Sport     string   `json:"sport"`
	LeagueID  string   `json:"league"`
	Region    string   `json:"region"`
	Query     string   `json:"query"`
	Upstreams []string `json:"upstreams"`
}

// Registry is safe for concurrent reads; nothing mutates it after Load.
type Registry struct {
	sources []Source
	byID    map[string]int
}

type document struct {
	Version    int                 `json:"version"`
	SportFeeds map[string][]string `json:"sport_feeds"`
	Sources    []struct {
		Sport     string   `json:"sport"`
		League    string   `json:"league"`
		Region    string   `json:"region"`
		Query     string   `json:"query"`
		Upstreams []string `json:"upstreams"`
	} `json:"sources"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultSourcesYAML)
}

// Load reads the catalog at path, or the embedded one when path is blank.
func Load(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}
	reg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}
	return reg, nil
}

// Parse validates a YAML catalog and resolves every source's upstream list.
func Parse(raw []byte) (*Registry, error) {
	canonical, err := validateDocument(raw)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(canonical, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}

	reg := &Registry{
		sources: make([]Source, 0, len(doc.Sources)),
		byID:    make(map[string]int, len(doc.Sources)),
	}
	for i, entry := range doc.Sources {
		if _, dup := reg.byID[entry.League]; dup {
			return nil, fmt.Errorf("sources[%d]: duplicate league %q", i, entry.League)
		}

		upstreams := entry.Upstreams
		if len(upstreams) == 0 {
			upstreams = doc.SportFeeds[entry.Sport]
		}
		if len(upstreams) == 0 {
			return nil, fmt.Errorf("sources[%d] %s: no upstreams and no feeds for sport %q", i, entry.League, entry.Sport)
		}

		resolved := make([]string, 0, len(upstreams))
		for _, locator := range upstreams {
			if err := validateLocator(locator); err != nil {
				return nil, fmt.Errorf("sources[%d] %s: %w", i, entry.League, err)
			}
			resolved = append(resolved, strings.TrimSpace(locator))
		}

		query := strings.TrimSpace(entry.Query)
		if query == "" {
			query = strings.ReplaceAll(entry.League, "-", " ") + " " + entry.Sport
		}

		reg.byID[entry.League] = len(reg.sources)
		reg.sources = append(reg.sources, Source{
			Sport:     entry.Sport,
			LeagueID:  entry.League,
			Region:    entry.Region,
			Query:     query,
			Upstreams: resolved,
		})
	}

	return reg, nil
}

// Sources returns the catalog in fetch order. The slice is a copy.
func (r *Registry) Sources() []Source {
	if r == nil {
		return nil
	}
	out := make([]Source, len(r.sources))
	for i, src := range r.sources {
		src.Upstreams = append([]string(nil), src.Upstreams...)
		out[i] = src
	}
	return out
}

// Lookup finds a source by league id.
func (r *Registry) Lookup(leagueID string) (Source, bool) {
	if r == nil {
		return Source{}, false
	}
	idx, ok := r.byID[strings.TrimSpace(leagueID)]
	if !ok {
		return Source{}, false
	}
	src := r.sources[idx]
	src.Upstreams = append([]string(nil), src.Upstreams...)
	return src, true
}

// Sports returns the distinct sports in the catalog, sorted.
func (r *Registry) Sports() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, 4)
	for _, src := range r.sources {
		if _, ok := seen[src.Sport]; ok {
			continue
		}
		seen[src.Sport] = struct{}{}
		out = append(out, src.Sport)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.sources)
}

// NewsAPIQuery reports whether locator targets NewsAPI and the search query to
// send. A bare "newsapi" locator searches for the source's own query.
func NewsAPIQuery(locator string, src Source) (string, bool) {
	locator = strings.TrimSpace(locator)
	if locator == NewsAPIPrefix {
		return src.Query, true
	}
	if rest, ok := strings.CutPrefix(locator, NewsAPIPrefix+":"); ok {
		return strings.TrimSpace(rest), true
	}
	return "", false
}

func validateLocator(locator string) error {
	locator = strings.TrimSpace(locator)
	if _, ok := NewsAPIQuery(locator, Source{}); ok {
		return nil
	}
	u, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("upstream %q is not a valid URL: %w", locator, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("upstream %q must be an absolute http(s) URL", locator)
	}
	return nil
}
