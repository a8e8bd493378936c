// Package memstore is an in-process article store with the same uniqueness
// and update rules as the Postgres schema. It backs dry runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"horse.fit/allball/internal/db"
)

type Store struct {
	mu         sync.RWMutex
	nextID     int64
	articles   []*db.ArticleRecord
	byExternal map[string]*db.ArticleRecord
	bySlug     map[string]*db.ArticleRecord
	runs       []*db.RunRecord
}

func New() *Store {
	return &Store{
		byExternal: make(map[string]*db.ArticleRecord),
		bySlug:     make(map[string]*db.ArticleRecord),
	}
}

func (s *Store) FindArticleByExternalID(_ context.Context, externalID string) (*db.ArticleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneArticle(s.byExternal[externalID]), nil
}

func (s *Store) GetArticleBySlug(_ context.Context, slug string) (*db.ArticleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneArticle(s.bySlug[strings.TrimSpace(slug)]), nil
}

func (s *Store) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bySlug[slug]
	return ok, nil
}

func (s *Store) InsertArticle(_ context.Context, in db.NewArticle) (*db.ArticleRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byExternal[in.ExternalID]; ok {
		return nil, false, nil
	}
	if _, ok := s.bySlug[in.Slug]; ok {
		return nil, false, nil
	}

	s.nextID++
	language := in.Language
	if language == "" {
		language = "und"
	}
	rec := &db.ArticleRecord{
		ArticleID:   s.nextID,
		ExternalID:  in.ExternalID,
		Slug:        in.Slug,
		Title:       in.Title,
		Sport:       in.Sport,
		LeagueID:    in.LeagueID,
		Region:      in.Region,
		Division:    1,
		Language:    language,
		ImageURL:    cloneString(in.ImageURL),
		SourceURL:   in.SourceURL,
		Summary:     in.Summary,
		BodyContent: in.BodyContent,
		IsPublished: true,
		PublishedAt: cloneTime(in.PublishedAt),
		CreatedAt:   in.CreatedAt.UTC(),
		UpdatedAt:   in.CreatedAt.UTC(),
	}
	s.articles = append(s.articles, rec)
	s.byExternal[rec.ExternalID] = rec
	s.bySlug[rec.Slug] = rec
	return cloneArticle(rec), true, nil
}

func (s *Store) BackfillPublishedAt(_ context.Context, articleID int64, publishedAt time.Time, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(articleID)
	if rec == nil || rec.PublishedAt != nil {
		return false, nil
	}
	ts := publishedAt.UTC()
	rec.PublishedAt = &ts
	rec.UpdatedAt = at.UTC()
	return true, nil
}

func (s *Store) UpdateEnrichment(_ context.Context, in db.EnrichmentUpdate) (bool, error) {
	if strings.TrimSpace(in.Content) == "" {
		return false, fmt.Errorf("enrichment content is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(in.ArticleID)
	if rec == nil || (!in.Enriched && rec.EnrichedFlag) {
		return false, nil
	}
	content := in.Content
	provider := in.Provider
	rec.EnrichedContent = &content
	rec.EnrichmentProvider = &provider
	rec.EnrichedFlag = rec.EnrichedFlag || in.Enriched
	rec.UpdatedAt = in.At.UTC()
	return true, nil
}

func (s *Store) ListArticles(_ context.Context, opts db.ArticleQuery) ([]db.ArticleRecord, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0")
	}
	oldest := false
	switch strings.ToLower(strings.TrimSpace(opts.Sort)) {
	case "", db.SortNewest:
	case db.SortOldest:
		oldest = true
	default:
		return nil, fmt.Errorf("unsupported sort %q", opts.Sort)
	}

	s.mu.RLock()
	matched := make([]db.ArticleRecord, 0, len(s.articles))
	for _, rec := range s.articles {
		if opts.Sport != "" && rec.Sport != opts.Sport {
			continue
		}
		if opts.LeagueID != "" && rec.LeagueID != opts.LeagueID {
			continue
		}
		if opts.Region != "" && rec.Region != opts.Region {
			continue
		}
		if opts.PublishedOnly && !rec.IsPublished {
			continue
		}
		matched = append(matched, *cloneArticle(rec))
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		ti, tj := effectiveTime(matched[i]), effectiveTime(matched[j])
		if !ti.Equal(tj) {
			if oldest {
				return ti.Before(tj)
			}
			return ti.After(tj)
		}
		if oldest {
			return matched[i].ArticleID < matched[j].ArticleID
		}
		return matched[i].ArticleID > matched[j].ArticleID
	})

	if opts.Offset >= len(matched) {
		return []db.ArticleRecord{}, nil
	}
	matched = matched[opts.Offset:]
	if len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (s *Store) StartRun(_ context.Context, triggeredBy string, startedAt time.Time) (db.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &db.RunRecord{
		RunID:       int64(len(s.runs) + 1),
		RunUUID:     uuid.NewString(),
		TriggeredBy: triggeredBy,
		Status:      db.RunStatusRunning,
		StartedAt:   startedAt.UTC(),
	}
	s.runs = append(s.runs, rec)
	return *rec, nil
}

func (s *Store) FinishRun(_ context.Context, runID int64, counters db.RunCounters, finishedAt time.Time) error {
	return s.closeRun(runID, db.RunStatusCompleted, counters, nil, finishedAt)
}

func (s *Store) FailRun(_ context.Context, runID int64, counters db.RunCounters, cause error, finishedAt time.Time) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.closeRun(runID, db.RunStatusFailed, counters, &msg, finishedAt)
}

func (s *Store) ListRuns(_ context.Context, limit int) ([]db.RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]db.RunRecord, 0, min(limit, len(s.runs)))
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.runs[i])
	}
	return out, nil
}

// Len reports how many articles are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

func (s *Store) closeRun(runID int64, status string, counters db.RunCounters, msg *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID < 1 || int(runID) > len(s.runs) {
		return fmt.Errorf("pipeline run %d not found", runID)
	}
	rec := s.runs[runID-1]
	finished := at.UTC()
	rec.Status = status
	rec.Counters = counters
	rec.ErrorMessage = msg
	rec.FinishedAt = &finished
	return nil
}

func (s *Store) find(articleID int64) *db.ArticleRecord {
	for _, rec := range s.articles {
		if rec.ArticleID == articleID {
			return rec
		}
	}
	return nil
}

func effectiveTime(rec db.ArticleRecord) time.Time {
	if rec.PublishedAt != nil {
		return *rec.PublishedAt
	}
	return rec.CreatedAt
}

func cloneArticle(rec *db.ArticleRecord) *db.ArticleRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	out.ImageURL = cloneString(rec.ImageURL)
	out.EnrichedContent = cloneString(rec.EnrichedContent)
	out.EnrichmentProvider = cloneString(rec.EnrichmentProvider)
	out.PublishedAt = cloneTime(rec.PublishedAt)
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil || v.IsZero() {
		return nil
	}
	out := v.UTC()
	return &out
}
