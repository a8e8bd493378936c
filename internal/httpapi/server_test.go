package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/memstore"
	"horse.fit/allball/internal/registry"
)

type decoded struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listData struct {
	Items []db.ArticleRecord `json:"items"`
	Page  struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Count  int `json:"count"`
	} `json:"page"`
}

func newTestServer(t *testing.T, store Store) http.Handler {
	t.Helper()

	reg, err := registry.Parse([]byte(`
version: 1
sources:
  - sport: football
    league: england-premier-league
    region: england
    upstreams: [https://feeds.example/epl.xml]
  - sport: basketball
    league: nba
    region: usa
    upstreams: [https://feeds.example/nba.xml]
`))
	if err != nil {
		t.Fatalf("registry.Parse() error = %v", err)
	}
	return NewServer(store, reg, zerolog.Nop(), Options{}).Handler()
}

func seedStore(t *testing.T) *memstore.Store {
	t.Helper()

	store := memstore.New()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, seed := range []struct{ sport, league, region string }{
		{"football", "england-premier-league", "england"},
		{"football", "england-premier-league", "england"},
		{"basketball", "nba", "usa"},
	} {
		published := base.Add(time.Duration(i) * time.Hour)
		_, _, err := store.InsertArticle(context.Background(), db.NewArticle{
			ExternalID:  fmt.Sprintf("https://news.example/%d", i),
			Slug:        fmt.Sprintf("story-%d", i),
			Title:       fmt.Sprintf("Story %d", i),
			Sport:       seed.sport,
			LeagueID:    seed.league,
			Region:      seed.region,
			SourceURL:   fmt.Sprintf("https://news.example/%d", i),
			PublishedAt: &published,
			CreatedAt:   base,
		})
		if err != nil {
			t.Fatalf("InsertArticle() error = %v", err)
		}
	}
	return store
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, decoded) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body decoded
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v (%s)", target, err, rec.Body.String())
	}
	return rec, body
}

func decodeList(t *testing.T, raw json.RawMessage) listData {
	t.Helper()

	var out listData
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return out
}

func TestArticlesNewestFirstWithFilters(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, seedStore(t))

	rec, body := get(t, h, "/api/v1/articles")
	if rec.Code != http.StatusOK || body.Status != "success" {
		t.Fatalf("status = %d body = %+v", rec.Code, body)
	}
	list := decodeList(t, body.Data)
	if len(list.Items) != 3 || list.Items[0].Slug != "story-2" || list.Page.Limit != 20 {
		t.Fatalf("list = %+v", list)
	}

	_, body = get(t, h, "/api/v1/articles?sport=football&sort=oldest&limit=1&offset=1")
	list = decodeList(t, body.Data)
	if len(list.Items) != 1 || list.Items[0].Slug != "story-1" {
		t.Fatalf("filtered list = %+v", list)
	}

	_, body = get(t, h, "/api/v1/articles?league=unknown-league")
	if list := decodeList(t, body.Data); len(list.Items) != 0 {
		t.Fatalf("unknown league should be empty, got %+v", list)
	}
}

func TestArticlesRejectsBadParameters(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, seedStore(t))
	for _, target := range []string{
		"/api/v1/articles?limit=0",
		"/api/v1/articles?limit=101",
		"/api/v1/articles?offset=-1",
		"/api/v1/articles?sort=popular",
		"/api/v1/articles?published_only=maybe",
	} {
		rec, body := get(t, h, target)
		if rec.Code != http.StatusBadRequest || body.Status != "fail" {
			t.Fatalf("%s: status = %d body = %+v", target, rec.Code, body)
		}
	}
}

func TestArticleBySlug(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, seedStore(t))

	rec, body := get(t, h, "/api/v1/articles/story-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var article db.ArticleRecord
	if err := json.Unmarshal(body.Data, &article); err != nil || article.Title != "Story 1" {
		t.Fatalf("article = %+v err=%v", article, err)
	}

	rec, body = get(t, h, "/api/v1/articles/missing")
	if rec.Code != http.StatusNotFound || body.Message != "Article not found" {
		t.Fatalf("missing: status = %d body = %+v", rec.Code, body)
	}
}

func TestArticlesByLeagueSportAndRecent(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, seedStore(t))

	_, body := get(t, h, "/api/v1/articles/by-league/NBA")
	if list := decodeList(t, body.Data); len(list.Items) != 1 || list.Items[0].LeagueID != "nba" {
		t.Fatalf("by-league = %+v", list)
	}

	_, body = get(t, h, "/api/v1/articles/by-sport/football")
	if list := decodeList(t, body.Data); len(list.Items) != 2 {
		t.Fatalf("by-sport = %+v", list)
	}

	_, body = get(t, h, "/api/v1/articles/recent?limit=2")
	if list := decodeList(t, body.Data); len(list.Items) != 2 || list.Items[0].Slug != "story-2" {
		t.Fatalf("recent = %+v", list)
	}
}

func TestMetaEndpoints(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, memstore.New())

	_, body := get(t, h, "/api/v1/meta/sports")
	var sports struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal(body.Data, &sports); err != nil || strings.Join(sports.Items, ",") != "basketball,football" {
		t.Fatalf("sports = %+v err=%v", sports, err)
	}

	_, body = get(t, h, "/api/v1/meta/leagues?sport=football")
	var leagues struct {
		Items []leagueInfo `json:"items"`
	}
	if err := json.Unmarshal(body.Data, &leagues); err != nil || len(leagues.Items) != 1 || leagues.Items[0].Region != "england" {
		t.Fatalf("leagues = %+v err=%v", leagues, err)
	}
}

func TestRunsEndpoint(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	run, _ := store.StartRun(context.Background(), "manual", time.Now())
	_ = store.FinishRun(context.Background(), run.RunID, db.RunCounters{Fetched: 4, Created: 2}, time.Now())

	_, body := get(t, newTestServer(t, store), "/api/v1/runs?limit=5")
	var data struct {
		Items []db.RunRecord `json:"items"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil || len(data.Items) != 1 {
		t.Fatalf("runs = %+v err=%v", data, err)
	}
	if data.Items[0].Status != db.RunStatusCompleted || data.Items[0].Counters.Created != 2 {
		t.Fatalf("run = %+v", data.Items[0])
	}
}

type brokenStore struct {
	*memstore.Store
}

func (brokenStore) ListArticles(context.Context, db.ArticleQuery) ([]db.ArticleRecord, error) {
	return nil, errors.New("pq: relation does not exist")
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("dial tcp: connection refused")
}

func TestInternalErrorsStayGeneric(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, brokenStore{Store: memstore.New()})

	rec, body := get(t, h, "/api/v1/articles")
	if rec.Code != http.StatusInternalServerError || body.Status != "error" {
		t.Fatalf("status = %d body = %+v", rec.Code, body)
	}
	if strings.Contains(rec.Body.String(), "relation") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}

	_, body = get(t, h, "/api/v1/health")
	if body.Status != "success" || !strings.Contains(string(body.Data), `"database":"unavailable"`) {
		t.Fatalf("health = %s", body.Data)
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	t.Parallel()

	rec, body := get(t, newTestServer(t, memstore.New()), "/api/v1/nope")
	if rec.Code != http.StatusNotFound || body.Status != "fail" {
		t.Fatalf("status = %d body = %+v", rec.Code, body)
	}
}
