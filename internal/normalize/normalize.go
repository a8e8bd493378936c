// Package normalize converts heterogeneous upstream records into one canonical
// item shape.
package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"horse.fit/allball/internal/feed"
	"horse.fit/allball/internal/langdetect"
	"horse.fit/allball/internal/reader"
	"horse.fit/allball/internal/registry"
)

// ErrUnusable marks an item with no title or no resolvable link.
var ErrUnusable = errors.New("unusable item")

// CanonicalItem is a normalized upstream record. It lives for one run.
type CanonicalItem struct {
	Title         string
	Summary       string
	BodyText      string
	BodyHTML      string
	CanonicalLink string
	ImageURL      string
	PublishedAt   *time.Time
	Language      string
	Sport         string
	LeagueID      string
	Region        string
	Upstream      string
}

// HasTimestamp reports whether the item carries a usable publication time.
func (c CanonicalItem) HasTimestamp() bool {
	return c.PublishedAt != nil && !c.PublishedAt.IsZero()
}

var imgSrcPattern = regexp.MustCompile(`(?i)<img[^>]+src\s*=\s*["']([^"']+)["']`)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif"}

// Normalize maps raw into a CanonicalItem tagged with src's classification.
func Normalize(raw feed.RawItem, src registry.Source) (CanonicalItem, error) {
	var (
		item CanonicalItem
		err  error
	)
	switch {
	case raw.Feed != nil:
		item, err = fromFeedItem(raw.Feed, raw.BaseURL)
	case raw.NewsAPI != nil:
		item, err = fromNewsAPI(raw.NewsAPI, raw.BaseURL)
	default:
		return CanonicalItem{}, fmt.Errorf("%w: empty raw item", ErrUnusable)
	}
	if err != nil {
		return CanonicalItem{}, err
	}

	item.Sport = src.Sport
	item.LeagueID = src.LeagueID
	item.Region = src.Region
	item.Upstream = raw.Upstream
	item.Language = langdetect.Detect(strings.TrimSpace(item.Title + ". " + item.Summary))
	return item, nil
}

func fromFeedItem(entry *gofeed.Item, base string) (CanonicalItem, error) {
	title := reader.StripMarkup(entry.Title)
	if title == "" {
		return CanonicalItem{}, fmt.Errorf("%w: missing title", ErrUnusable)
	}

	link := resolveLink(base, entry.Link)
	if link == "" {
		for _, candidate := range entry.Links {
			if link = resolveLink(base, candidate); link != "" {
				break
			}
		}
	}
	if link == "" && isAbsolute(entry.GUID) {
		link = resolveLink("", entry.GUID)
	}
	if link == "" {
		return CanonicalItem{}, fmt.Errorf("%w: no resolvable link for %q", ErrUnusable, title)
	}

	bodyHTML := strings.TrimSpace(entry.Content)
	if bodyHTML == "" {
		bodyHTML = strings.TrimSpace(entry.Description)
	}
	summary := reader.StripMarkup(entry.Description)
	body := reader.StripMarkup(bodyHTML)
	if summary == "" {
		summary = body
	}

	return CanonicalItem{
		Title:         title,
		Summary:       summary,
		BodyText:      body,
		BodyHTML:      bodyHTML,
		CanonicalLink: link,
		ImageURL:      feedImage(entry, base, bodyHTML),
		PublishedAt:   feedTimestamp(entry),
	}, nil
}

func fromNewsAPI(article *feed.NewsAPIArticle, base string) (CanonicalItem, error) {
	title := reader.StripMarkup(article.Title)
	if title == "" || title == "[Removed]" {
		return CanonicalItem{}, fmt.Errorf("%w: missing title", ErrUnusable)
	}
	link := resolveLink(base, article.URL)
	if link == "" {
		return CanonicalItem{}, fmt.Errorf("%w: no resolvable link for %q", ErrUnusable, title)
	}

	bodyHTML := strings.TrimSpace(article.Content)
	if bodyHTML == "" {
		bodyHTML = strings.TrimSpace(article.Description)
	}
	summary := reader.StripMarkup(article.Description)
	body := reader.StripMarkup(bodyHTML)
	if summary == "" {
		summary = body
	}

	image := resolveLink(base, article.URLToImage)
	if image == "" {
		image = scanImgTag(base, bodyHTML)
	}

	return CanonicalItem{
		Title:         title,
		Summary:       summary,
		BodyText:      body,
		BodyHTML:      bodyHTML,
		CanonicalLink: link,
		ImageURL:      image,
		PublishedAt:   parseTimestamp(article.PublishedAt),
	}, nil
}

// feedImage walks the image sources in priority order: explicit media fields,
// image-typed enclosures, image-looking links, then <img> tags in the body.
func feedImage(entry *gofeed.Item, base, bodyHTML string) string {
	for _, candidate := range mediaURLs(entry) {
		if img := resolveLink(base, candidate); img != "" {
			return img
		}
	}
	if entry.Image != nil {
		if img := resolveLink(base, entry.Image.URL); img != "" {
			return img
		}
	}

	for _, enc := range entry.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(enc.Type)), "image/") {
			if img := resolveLink(base, enc.URL); img != "" {
				return img
			}
		}
	}

	candidates := make([]string, 0, len(entry.Enclosures)+len(entry.Links))
	for _, enc := range entry.Enclosures {
		if enc != nil {
			candidates = append(candidates, enc.URL)
		}
	}
	candidates = append(candidates, entry.Links...)
	for _, candidate := range candidates {
		if img := resolveLink(base, candidate); img != "" && hasImageExtension(img) {
			return img
		}
	}

	if img := scanImgTag(base, bodyHTML); img != "" {
		return img
	}
	return scanImgTag(base, entry.Description)
}

// mediaURLs reads media:content then media:thumbnail from the Media RSS
// extension namespace.
func mediaURLs(entry *gofeed.Item) []string {
	media, ok := entry.Extensions["media"]
	if !ok {
		return nil
	}

	var out []string
	for _, name := range []string{"content", "thumbnail"} {
		for _, ext := range media[name] {
			if u := strings.TrimSpace(ext.Attrs["url"]); u != "" {
				if name == "content" && !mediaIsImage(ext.Attrs) {
					continue
				}
				out = append(out, u)
			}
		}
	}
	// media:group wraps media:content in some feeds.
	for _, group := range media["group"] {
		for _, ext := range group.Children["content"] {
			if u := strings.TrimSpace(ext.Attrs["url"]); u != "" && mediaIsImage(ext.Attrs) {
				out = append(out, u)
			}
		}
		for _, ext := range group.Children["thumbnail"] {
			if u := strings.TrimSpace(ext.Attrs["url"]); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

func mediaIsImage(attrs map[string]string) bool {
	medium := strings.ToLower(strings.TrimSpace(attrs["medium"]))
	typ := strings.ToLower(strings.TrimSpace(attrs["type"]))
	switch {
	case medium == "image", strings.HasPrefix(typ, "image/"):
		return true
	case medium != "", typ != "":
		return false
	}
	return true
}

func scanImgTag(base, markup string) string {
	match := imgSrcPattern.FindStringSubmatch(markup)
	if len(match) < 2 {
		return ""
	}
	return resolveLink(base, match[1])
}

func hasImageExtension(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// feedTimestamp prefers structured published, then structured updated, then
// free-text parsing of both strings.
func feedTimestamp(entry *gofeed.Item) *time.Time {
	for _, parsed := range []*time.Time{entry.PublishedParsed, entry.UpdatedParsed} {
		if parsed != nil && !parsed.IsZero() {
			t := parsed.UTC()
			return &t
		}
	}
	if t := parseTimestamp(entry.Published); t != nil {
		return t
	}
	return parseTimestamp(entry.Updated)
}

func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil || parsed.IsZero() {
		return nil
	}
	t := parsed.UTC()
	return &t
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.IsAbs()
}

// resolveLink returns an absolute http(s) URL or "".
func resolveLink(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		baseURL, err := url.Parse(strings.TrimSpace(base))
		if err != nil || !baseURL.IsAbs() {
			return ""
		}
		ref = baseURL.ResolveReference(ref)
	}
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}
