package identity

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Manchester United 3-2 Liverpool!":    "manchester-united-3-2-liverpool",
		"!!!":                                 "article",
		"":                                    "article",
		"  Atlético   de Madrid -- Sevilla  ": "atletico-de-madrid-sevilla",
		"Real Madrid vs. Barça: 2 – 1":        "real-madrid-vs-barca-2-1",
		"Ligue 1 : PSG s'impose à Marseille":  "ligue-1-psg-simpose-a-marseille",
		"Süper Lig'de Fenerbahçe kazandı":     "super-ligde-fenerbahce-kazand",
		"-leading and trailing-":              "leading-and-trailing",
		"NBA\tFinals\nGame 7":                 "nba-finals-game-7",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	t.Parallel()

	got := Slugify(strings.Repeat("goal ", 100))
	if len(got) > maxSlugRunes {
		t.Fatalf("len(slug) = %d, want <= %d", len(got), maxSlugRunes)
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("slug ends with hyphen: %q", got)
	}
}

func TestSlugCandidate(t *testing.T) {
	t.Parallel()

	for n, want := range map[int]string{0: "x", 1: "x", 2: "x-2", 3: "x-3", 12: "x-12"} {
		if got := SlugCandidate("x", n); got != want {
			t.Fatalf("SlugCandidate(x, %d) = %q, want %q", n, got, want)
		}
	}
}

func TestCandidateForPlaceholderUsesLinkTag(t *testing.T) {
	t.Parallel()

	if got := candidateFor(PlaceholderSlug, "https://ru.example/1", 1); got != PlaceholderSlug {
		t.Fatalf("first placeholder candidate = %q", got)
	}

	second := candidateFor(PlaceholderSlug, "https://ru.example/1", 2)
	if !strings.HasPrefix(second, "article-") || len(second) != len("article-")+8 {
		t.Fatalf("second placeholder candidate = %q", second)
	}
	if again := candidateFor(PlaceholderSlug, "https://ru.example/1", 2); again != second {
		t.Fatalf("candidate not deterministic: %q vs %q", again, second)
	}
	if other := candidateFor(PlaceholderSlug, "https://ru.example/2", 2); other == second {
		t.Fatalf("distinct links share candidate %q", other)
	}
	if third := candidateFor(PlaceholderSlug, "https://ru.example/1", 3); third != second+"-2" {
		t.Fatalf("third placeholder candidate = %q, want %q", third, second+"-2")
	}
	if got := candidateFor("x", "https://a.example/1", 2); got != "x-2" {
		t.Fatalf("regular candidate = %q, want x-2", got)
	}
}
