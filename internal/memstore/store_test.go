package memstore

import (
	"context"
	"testing"
	"time"

	"horse.fit/allball/internal/db"
)

func newArticle(externalID, slug string, created time.Time) db.NewArticle {
	return db.NewArticle{
		ExternalID: externalID,
		Slug:       slug,
		Title:      slug,
		Sport:      "football",
		LeagueID:   "italy-serie-a",
		SourceURL:  externalID,
		CreatedAt:  created,
	}
}

func TestInsertEnforcesUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	now := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

	if _, ok, err := s.InsertArticle(ctx, newArticle("https://a.example/1", "derby", now)); err != nil || !ok {
		t.Fatalf("first insert ok=%t err=%v", ok, err)
	}
	if _, ok, _ := s.InsertArticle(ctx, newArticle("https://a.example/1", "derby-2", now)); ok {
		t.Fatalf("duplicate external_id must be rejected")
	}
	if _, ok, _ := s.InsertArticle(ctx, newArticle("https://a.example/2", "derby", now)); ok {
		t.Fatalf("duplicate slug must be rejected")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestUpdateEnrichmentNeverRegresses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	now := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	rec, _, _ := s.InsertArticle(ctx, newArticle("https://a.example/1", "derby", now))

	if ok, err := s.UpdateEnrichment(ctx, db.EnrichmentUpdate{ArticleID: rec.ArticleID, Content: "fallback", Provider: "local", At: now}); err != nil || !ok {
		t.Fatalf("fallback update ok=%t err=%v", ok, err)
	}
	if ok, _ := s.UpdateEnrichment(ctx, db.EnrichmentUpdate{ArticleID: rec.ArticleID, Content: "rewritten", Provider: "openai", Enriched: true, At: now}); !ok {
		t.Fatalf("real enrichment should apply over fallback")
	}
	if ok, _ := s.UpdateEnrichment(ctx, db.EnrichmentUpdate{ArticleID: rec.ArticleID, Content: "fallback again", Provider: "local", At: now}); ok {
		t.Fatalf("fallback must not replace real enrichment")
	}

	got, _ := s.GetArticleBySlug(ctx, "derby")
	if !got.EnrichedFlag || *got.EnrichedContent != "rewritten" || *got.EnrichmentProvider != "openai" {
		t.Fatalf("article after updates = %+v", got)
	}
	if _, err := s.UpdateEnrichment(ctx, db.EnrichmentUpdate{ArticleID: rec.ArticleID, Content: "  "}); err == nil {
		t.Fatalf("empty content must be rejected")
	}
}

func TestListArticlesSortsAndPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	base := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	for i, slug := range []string{"a", "b", "c"} {
		in := newArticle("https://a.example/"+slug, slug, base)
		published := base.Add(time.Duration(i) * time.Hour)
		in.PublishedAt = &published
		if slug == "b" {
			in.Sport = "basketball"
		}
		if _, ok, err := s.InsertArticle(ctx, in); !ok || err != nil {
			t.Fatalf("insert %s ok=%t err=%v", slug, ok, err)
		}
	}

	newest, _ := s.ListArticles(ctx, db.ArticleQuery{Limit: 10})
	if len(newest) != 3 || newest[0].Slug != "c" || newest[2].Slug != "a" {
		t.Fatalf("newest order = %v", slugs(newest))
	}
	oldest, _ := s.ListArticles(ctx, db.ArticleQuery{Sort: "oldest", Limit: 1, Offset: 1})
	if len(oldest) != 1 || oldest[0].Slug != "b" {
		t.Fatalf("oldest page = %v", slugs(oldest))
	}
	football, _ := s.ListArticles(ctx, db.ArticleQuery{Sport: "football", Limit: 10})
	if len(football) != 2 {
		t.Fatalf("football filter = %v", slugs(football))
	}
	none, _ := s.ListArticles(ctx, db.ArticleQuery{LeagueID: "unknown", Limit: 10})
	if len(none) != 0 {
		t.Fatalf("unknown league should be empty, got %v", slugs(none))
	}
	if _, err := s.ListArticles(ctx, db.ArticleQuery{Sort: "random", Limit: 1}); err == nil {
		t.Fatalf("expected error for unsupported sort")
	}
}

func TestRunLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	now := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

	first, _ := s.StartRun(ctx, "schedule", now)
	second, _ := s.StartRun(ctx, "manual", now.Add(time.Minute))
	if err := s.FinishRun(ctx, first.RunID, db.RunCounters{Created: 2}, now.Add(30*time.Second)); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
	if err := s.FailRun(ctx, second.RunID, db.RunCounters{}, context.DeadlineExceeded, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("FailRun() error = %v", err)
	}

	runs, _ := s.ListRuns(ctx, 5)
	if len(runs) != 2 || runs[0].Status != db.RunStatusFailed || runs[1].Counters.Created != 2 {
		t.Fatalf("runs = %+v", runs)
	}
	if err := s.FinishRun(ctx, 99, db.RunCounters{}, now); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func slugs(recs []db.ArticleRecord) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Slug)
	}
	return out
}
