package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Sort orders accepted by ListArticles.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
)

// ArticleRecord is the read shape of allball.articles shared by the pipeline
// and the query API.
type ArticleRecord struct {
	ArticleID          int64      `json:"id"`
	ExternalID         string     `json:"external_id"`
	Slug               string     `json:"slug"`
	Title              string     `json:"title"`
	Sport              string     `json:"sport"`
	LeagueID           string     `json:"league"`
	Region             string     `json:"region"`
	Division           int        `json:"division"`
	Language           string     `json:"language"`
	ImageURL           *string    `json:"image_url,omitempty"`
	SourceURL          string     `json:"source_url"`
	Summary            string     `json:"summary"`
	BodyContent        string     `json:"body_content"`
	EnrichedContent    *string    `json:"enriched_content,omitempty"`
	EnrichedFlag       bool       `json:"enriched"`
	EnrichmentProvider *string    `json:"enrichment_provider,omitempty"`
	IsPublished        bool       `json:"is_published"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewArticle is the insert payload for a freshly resolved item.
type NewArticle struct {
	ExternalID  string
	Slug        string
	Title       string
	Sport       string
	LeagueID    string
	Region      string
	Language    string
	ImageURL    *string
	SourceURL   string
	Summary     string
	BodyContent string
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// EnrichmentUpdate records the outcome of one rewrite attempt.
type EnrichmentUpdate struct {
	ArticleID int64
	Content   string
	Provider  string
	Enriched  bool
	At        time.Time
}

// ArticleQuery filters ListArticles. Empty strings mean "any".
type ArticleQuery struct {
	Sport         string
	LeagueID      string
	Region        string
	PublishedOnly bool
	Sort          string
	Limit         int
	Offset        int
}

const articleColumns = `
	a.article_id,
	a.external_id,
	a.slug,
	a.title,
	a.sport,
	a.league_id,
	a.region,
	a.division,
	a.language,
	a.image_url,
	a.source_url,
	a.summary,
	a.body_content,
	a.enriched_content,
	a.enriched_flag,
	a.enrichment_provider,
	a.is_published,
	a.published_at,
	a.created_at,
	a.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (ArticleRecord, error) {
	var rec ArticleRecord
	err := row.Scan(
		&rec.ArticleID,
		&rec.ExternalID,
		&rec.Slug,
		&rec.Title,
		&rec.Sport,
		&rec.LeagueID,
		&rec.Region,
		&rec.Division,
		&rec.Language,
		&rec.ImageURL,
		&rec.SourceURL,
		&rec.Summary,
		&rec.BodyContent,
		&rec.EnrichedContent,
		&rec.EnrichedFlag,
		&rec.EnrichmentProvider,
		&rec.IsPublished,
		&rec.PublishedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

// FindArticleByExternalID returns nil when no article carries externalID.
func (p *Pool) FindArticleByExternalID(ctx context.Context, externalID string) (*ArticleRecord, error) {
	q := `SELECT` + articleColumns + `
FROM allball.articles a
WHERE a.external_id = $1
`
	rec, err := scanArticle(p.QueryRow(ctx, q, externalID))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query article by external_id: %w", err)
	}
	return &rec, nil
}

// GetArticleBySlug returns nil when the slug is unknown.
func (p *Pool) GetArticleBySlug(ctx context.Context, slug string) (*ArticleRecord, error) {
	q := `SELECT` + articleColumns + `
FROM allball.articles a
WHERE a.slug = $1
`
	rec, err := scanArticle(p.QueryRow(ctx, q, strings.TrimSpace(slug)))
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query article by slug: %w", err)
	}
	return &rec, nil
}

func (p *Pool) SlugExists(ctx context.Context, slug string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM allball.articles WHERE slug = $1)`

	var exists bool
	if err := p.QueryRow(ctx, q, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// InsertArticle inserts a new row and reports false without error when a
// unique constraint (external_id or slug) rejected it.
func (p *Pool) InsertArticle(ctx context.Context, in NewArticle) (*ArticleRecord, bool, error) {
	q := `
INSERT INTO allball.articles AS a (
	external_id,
	slug,
	title,
	sport,
	league_id,
	region,
	language,
	image_url,
	source_url,
	summary,
	body_content,
	published_at,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
ON CONFLICT DO NOTHING
RETURNING` + articleColumns + `
`
	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = "und"
	}

	rec, err := scanArticle(p.QueryRow(
		ctx,
		q,
		in.ExternalID,
		in.Slug,
		in.Title,
		in.Sport,
		in.LeagueID,
		in.Region,
		language,
		in.ImageURL,
		in.SourceURL,
		in.Summary,
		in.BodyContent,
		normalizeNullableTime(in.PublishedAt),
		in.CreatedAt.UTC(),
	))
	if err != nil {
		if IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("insert article: %w", err)
	}
	return &rec, true, nil
}

// BackfillPublishedAt sets published_at only when the stored value is null.
func (p *Pool) BackfillPublishedAt(ctx context.Context, articleID int64, publishedAt time.Time, at time.Time) (bool, error) {
	const q = `
UPDATE allball.articles
SET
	published_at = $2,
	updated_at = $3
WHERE article_id = $1
  AND published_at IS NULL
`
	tag, err := p.Exec(ctx, q, articleID, publishedAt.UTC(), at.UTC())
	if err != nil {
		return false, fmt.Errorf("backfill published_at: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateEnrichment stores rewritten text. A fallback (Enriched=false) never
// replaces content that an earlier real rewrite produced, and enriched_flag
// never goes back to false.
func (p *Pool) UpdateEnrichment(ctx context.Context, in EnrichmentUpdate) (bool, error) {
	if strings.TrimSpace(in.Content) == "" {
		return false, fmt.Errorf("enrichment content is empty")
	}

	const q = `
UPDATE allball.articles
SET
	enriched_content = $2,
	enrichment_provider = $3,
	enriched_flag = enriched_flag OR $4,
	updated_at = $5
WHERE article_id = $1
  AND ($4 OR NOT enriched_flag)
`
	tag, err := p.Exec(ctx, q, in.ArticleID, in.Content, in.Provider, in.Enriched, in.At.UTC())
	if err != nil {
		return false, fmt.Errorf("update enrichment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListArticles pages through articles ordered by effective publish time.
// Unknown filter values simply match nothing.
func (p *Pool) ListArticles(ctx context.Context, opts ArticleQuery) ([]ArticleRecord, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0")
	}

	order := "DESC"
	switch strings.ToLower(strings.TrimSpace(opts.Sort)) {
	case "", SortNewest:
	case SortOldest:
		order = "ASC"
	default:
		return nil, fmt.Errorf("unsupported sort %q", opts.Sort)
	}

	q := `SELECT` + articleColumns + `
FROM allball.articles a
WHERE ($1 = '' OR a.sport = $1)
  AND ($2 = '' OR a.league_id = $2)
  AND ($3 = '' OR a.region = $3)
  AND (NOT $4 OR a.is_published)
ORDER BY COALESCE(a.published_at, a.created_at) ` + order + `, a.article_id ` + order + `
LIMIT $5
OFFSET $6
`

	rows, err := p.Query(
		ctx,
		q,
		strings.TrimSpace(opts.Sport),
		strings.TrimSpace(opts.LeagueID),
		strings.TrimSpace(opts.Region),
		opts.PublishedOnly,
		opts.Limit,
		opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleRecord, 0, opts.Limit)
	for rows.Next() {
		rec, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}

	return items, nil
}

func normalizeNullableTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	normalized := t.UTC()
	return &normalized
}
