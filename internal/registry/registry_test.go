package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	t.Parallel()

	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if reg.Len() < 50 {
		t.Fatalf("Len() = %d, expected the full league catalog", reg.Len())
	}

	sources := reg.Sources()
	if sources[0].LeagueID != "england-premier-league" {
		t.Fatalf("first source = %q, want england-premier-league", sources[0].LeagueID)
	}
	if len(sources[0].Upstreams) != 2 {
		t.Fatalf("premier league upstreams = %v, want the two football feeds", sources[0].Upstreams)
	}

	nba, ok := reg.Lookup("nba")
	if !ok {
		t.Fatalf("Lookup(nba) missing")
	}
	if len(nba.Upstreams) != 1 || !strings.Contains(nba.Upstreams[0], "/nba/") {
		t.Fatalf("nba upstreams = %v, want the override feed", nba.Upstreams)
	}

	sports := reg.Sports()
	if len(sports) != 2 || sports[0] != "basketball" || sports[1] != "football" {
		t.Fatalf("Sports() = %v", sports)
	}
}

func TestSourcesReturnsCopies(t *testing.T) {
	t.Parallel()

	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	first := reg.Sources()
	first[0].Upstreams[0] = "https://mutated.example/rss"
	first[0].LeagueID = "mutated"

	again := reg.Sources()
	if again[0].LeagueID != "england-premier-league" || again[0].Upstreams[0] == "https://mutated.example/rss" {
		t.Fatalf("registry was mutated through Sources(): %+v", again[0])
	}
}

func TestParseRejectsDuplicateLeague(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`
version: 1
sources:
  - sport: football
    league: epl
    upstreams: [https://feeds.example/a.xml]
  - sport: football
    league: epl
    upstreams: [https://feeds.example/b.xml]
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate league") {
		t.Fatalf("expected duplicate league error, got %v", err)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad locator": `
version: 1
sources:
  - sport: football
    league: epl
    upstreams: [ftp://feeds.example/a.xml]
`,
		"unknown field": `
version: 1
sources:
  - sport: football
    league: epl
    country: england
    upstreams: [https://feeds.example/a.xml]
`,
		"uppercase league": `
version: 1
sources:
  - sport: football
    league: EPL
    upstreams: [https://feeds.example/a.xml]
`,
		"wrong version": `
version: 2
sources:
  - sport: football
    league: epl
    upstreams: [https://feeds.example/a.xml]
`,
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParseRequiresUpstreams(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`
version: 1
sources:
  - sport: cricket
    league: ipl
`))
	if err == nil || !strings.Contains(err.Error(), "no upstreams") {
		t.Fatalf("expected missing upstream error, got %v", err)
	}
}

func TestLoadFromFileWithNewsAPILocators(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	doc := `
version: 1
sources:
  - sport: basketball
    league: nba
    region: usa
    query: NBA basketball
    upstreams:
      - newsapi
      - "newsapi:NBA trade deadline"
      - https://www.espn.com/espn/rss/nba/news
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write sources: %v", err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	src, _ := reg.Lookup("nba")
	if len(src.Upstreams) != 3 {
		t.Fatalf("upstreams = %v", src.Upstreams)
	}

	if q, ok := NewsAPIQuery(src.Upstreams[0], src); !ok || q != "NBA basketball" {
		t.Fatalf("bare locator query = %q ok=%t", q, ok)
	}
	if q, ok := NewsAPIQuery(src.Upstreams[1], src); !ok || q != "NBA trade deadline" {
		t.Fatalf("custom locator query = %q ok=%t", q, ok)
	}
	if _, ok := NewsAPIQuery(src.Upstreams[2], src); ok {
		t.Fatalf("feed URL must not be treated as NewsAPI")
	}
}

func TestParseDerivesQueryWhenMissing(t *testing.T) {
	t.Parallel()

	reg, err := Parse([]byte(`
version: 1
sources:
  - sport: football
    league: scotland-premiership
    upstreams: [https://feeds.example/spfl.xml]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	src, _ := reg.Lookup("scotland-premiership")
	if src.Query != "scotland premiership football" {
		t.Fatalf("Query = %q", src.Query)
	}
}
