package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/globaltime"
	"horse.fit/allball/internal/memstore"
	"horse.fit/allball/internal/normalize"
)

func canonical(title, link string, published *time.Time) normalize.CanonicalItem {
	return normalize.CanonicalItem{
		Title:         title,
		Summary:       "summary of " + title,
		BodyText:      "body of " + title,
		CanonicalLink: link,
		PublishedAt:   published,
		Language:      "en",
		Sport:         "football",
		LeagueID:      "england-premier-league",
		Region:        "england",
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	r := NewResolver(store, zerolog.Nop())
	item := canonical("Manchester United 3-2 Liverpool!", "https://feed.example/mu-liv", nil)

	first, err := r.Resolve(ctx, item)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !first.Created || first.Article.Slug != "manchester-united-3-2-liverpool" {
		t.Fatalf("first resolution = %+v", first)
	}

	second, err := r.Resolve(ctx, item)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if second.Created || second.Article.ArticleID != first.Article.ArticleID {
		t.Fatalf("second resolution should reuse the article: %+v", second)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d articles, want 1", store.Len())
	}
}

func TestResolveSuffixesCollidingSlugs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	r := NewResolver(store, zerolog.Nop())

	want := []string{"x", "x-2", "x-3"}
	for i, link := range []string{"https://a.example/1", "https://b.example/2", "https://c.example/3"} {
		res, err := r.Resolve(ctx, canonical("X", link, nil))
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", link, err)
		}
		if res.Article.Slug != want[i] {
			t.Fatalf("slug[%d] = %q, want %q", i, res.Article.Slug, want[i])
		}
	}
}

func TestResolveBackfillsMissingTimestampOnly(t *testing.T) {
	ctx := context.Background()
	globaltime.SetMockTime(time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := memstore.New()
	r := NewResolver(store, zerolog.Nop())

	created, err := r.Resolve(ctx, canonical("Undated story", "https://a.example/u", nil))
	if err != nil || created.Article.PublishedAt != nil {
		t.Fatalf("create: %+v err=%v", created, err)
	}

	ts := time.Date(2026, time.February, 1, 7, 30, 0, 0, time.UTC)
	again, err := r.Resolve(ctx, canonical("Undated story", "https://a.example/u", &ts))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !again.Backfilled || again.Article.PublishedAt == nil || !again.Article.PublishedAt.Equal(ts) {
		t.Fatalf("expected backfill, got %+v", again)
	}

	later := ts.Add(time.Hour)
	third, err := r.Resolve(ctx, canonical("Undated story", "https://a.example/u", &later))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if third.Backfilled || !third.Article.PublishedAt.Equal(ts) {
		t.Fatalf("stored timestamp must not be overwritten: %+v", third)
	}
}

func TestResolveRunsPrepareOnlyForNewItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	calls := 0
	r := NewResolver(memstore.New(), zerolog.Nop()).WithPrepare(func(_ context.Context, item *normalize.CanonicalItem) {
		calls++
		item.BodyText = "expanded body"
	})

	item := canonical("Prepared", "https://a.example/p", nil)
	res, err := r.Resolve(ctx, item)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Article.BodyContent != "expanded body" {
		t.Fatalf("BodyContent = %q", res.Article.BodyContent)
	}
	if _, err := r.Resolve(ctx, item); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("prepare calls = %d, want 1", calls)
	}
}

// racingStore lets another writer win between the pre-checks and the insert.
type racingStore struct {
	*memstore.Store
	raceSlug     string
	raceExternal string
	fired        bool
}

func (s *racingStore) InsertArticle(ctx context.Context, in db.NewArticle) (*db.ArticleRecord, bool, error) {
	if !s.fired {
		s.fired = true
		competitor := in
		if s.raceSlug != "" {
			competitor.ExternalID = s.raceExternal
		}
		competitor.Title = "competitor"
		if _, ok, err := s.Store.InsertArticle(ctx, competitor); err != nil || !ok {
			return nil, false, errors.New("competitor insert failed")
		}
	}
	return s.Store.InsertArticle(ctx, in)
}

func TestResolveRetriesNextSlugAfterConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &racingStore{Store: memstore.New(), raceSlug: "derby-day", raceExternal: "https://other.example/x"}
	r := NewResolver(store, zerolog.Nop())

	res, err := r.Resolve(ctx, canonical("Derby day", "https://a.example/derby", nil))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Created || res.Article.Slug != "derby-day-2" {
		t.Fatalf("resolution = %+v, want created derby-day-2", res)
	}
}

func TestResolveReturnsConcurrentWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &racingStore{Store: memstore.New()}
	r := NewResolver(store, zerolog.Nop())

	res, err := r.Resolve(ctx, canonical("Derby day", "https://a.example/derby", nil))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Created || res.Article.Title != "competitor" {
		t.Fatalf("resolution = %+v, want the competitor's row", res)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d articles, want 1", store.Len())
	}
}

type failingStore struct {
	*memstore.Store
}

func (failingStore) SlugExists(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	r := NewResolver(failingStore{memstore.New()}, zerolog.Nop())
	if _, err := r.Resolve(context.Background(), canonical("Boom", "https://a.example/boom", nil)); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := r.Resolve(context.Background(), canonical("No link", "", nil)); !errors.Is(err, normalize.ErrUnusable) {
		t.Fatalf("empty link: err = %v, want ErrUnusable", err)
	}
}

func TestResolveNonLatinTitlesDoNotPileOntoPlaceholder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	r := NewResolver(store, zerolog.Nop())

	slugs := make(map[string]struct{})
	titles := []string{"Зенит обыграл Спартак", "Ολυμπιακός νίκησε", "Динамо Київ переміг", "Звезда победила"}
	for i, title := range titles {
		res, err := r.Resolve(ctx, canonical(title, fmt.Sprintf("https://ru.example/%d", i), nil))
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", title, err)
		}
		slugs[res.Article.Slug] = struct{}{}
	}

	if _, ok := slugs[PlaceholderSlug]; !ok {
		t.Fatalf("first non-Latin title should take the bare placeholder: %v", slugs)
	}
	if len(slugs) != len(titles) {
		t.Fatalf("slugs = %v, want %d distinct", slugs, len(titles))
	}
}

type crowdedStore struct {
	*memstore.Store
	probes int
}

func (s *crowdedStore) SlugExists(context.Context, string) (bool, error) {
	s.probes++
	return true, nil
}

func TestResolveGivesUpAfterBoundedAttempts(t *testing.T) {
	t.Parallel()

	store := &crowdedStore{Store: memstore.New()}
	r := NewResolver(store, zerolog.Nop())

	_, err := r.Resolve(context.Background(), canonical("X", "https://a.example/x", nil))
	if !errors.Is(err, ErrSlugExhausted) {
		t.Fatalf("err = %v, want ErrSlugExhausted", err)
	}
	if store.probes != maxSlugAttempts {
		t.Fatalf("probes = %d, want %d", store.probes, maxSlugAttempts)
	}
}
