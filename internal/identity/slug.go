package identity

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PlaceholderSlug is used when a title has no slug-safe characters.
const PlaceholderSlug = "article"

const maxSlugRunes = 200

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSeparators = regexp.MustCompile(`[\s-]+`)
)

// Slugify derives a URL-safe slug: accents folded to ASCII, lowercase, only
// [a-z0-9] kept, whitespace and hyphen runs collapsed to one hyphen.
func Slugify(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		title,
	)
	if err != nil {
		folded = title
	}

	slug := slugDisallowed.ReplaceAllString(strings.ToLower(folded), "")
	slug = slugSeparators.ReplaceAllString(strings.TrimSpace(slug), "-")
	slug = strings.Trim(slug, "-")

	if r := []rune(slug); len(r) > maxSlugRunes {
		slug = strings.TrimRight(string(r[:maxSlugRunes]), "-")
	}
	if slug == "" {
		return PlaceholderSlug
	}
	return slug
}

// SlugCandidate returns the n-th candidate for base: base itself, then base-2,
// base-3 and so on.
func SlugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// candidateFor picks the n-th slug for an item. After the first attempt a
// placeholder base carries a tag derived from the external id.
func candidateFor(base, externalID string, n int) string {
	if base != PlaceholderSlug || n <= 1 {
		return SlugCandidate(base, n)
	}
	tag := uuid.NewSHA1(uuid.NameSpaceURL, []byte(externalID)).String()[:8]
	return SlugCandidate(PlaceholderSlug+"-"+tag, n-1)
}
