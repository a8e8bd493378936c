// Package identity maps canonical items onto persisted articles: one article
// per upstream link, each with a globally unique slug.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/globaltime"
	"horse.fit/allball/internal/normalize"
)

const maxSlugAttempts = 1000

var ErrSlugExhausted = errors.New("no free slug candidate")

// Store is the persistence surface the resolver needs. *db.Pool satisfies it.
type Store interface {
	FindArticleByExternalID(ctx context.Context, externalID string) (*db.ArticleRecord, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	InsertArticle(ctx context.Context, in db.NewArticle) (*db.ArticleRecord, bool, error)
	BackfillPublishedAt(ctx context.Context, articleID int64, publishedAt time.Time, at time.Time) (bool, error)
}

// PrepareFunc may enrich an item right before it is first inserted.
type PrepareFunc func(ctx context.Context, item *normalize.CanonicalItem)

// Resolution is the article an item maps to.
type Resolution struct {
	Article    db.ArticleRecord
	Created    bool
	Backfilled bool
}

type Resolver struct {
	store   Store
	logger  zerolog.Logger
	prepare PrepareFunc
}

func NewResolver(store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// WithPrepare installs a hook that runs only for items about to be created.
func (r *Resolver) WithPrepare(fn PrepareFunc) *Resolver {
	r.prepare = fn
	return r
}

// ExternalID is the stable identity of an item across runs.
func ExternalID(item normalize.CanonicalItem) string {
	return strings.TrimSpace(item.CanonicalLink)
}

// Resolve returns the existing article for item or creates one. The unique
// constraints in the store are authoritative; pre-checks only save round trips.
func (r *Resolver) Resolve(ctx context.Context, item normalize.CanonicalItem) (Resolution, error) {
	if r == nil || r.store == nil {
		return Resolution{}, fmt.Errorf("identity resolver is not initialized")
	}

	externalID := ExternalID(item)
	if externalID == "" {
		return Resolution{}, fmt.Errorf("%w: empty external id", normalize.ErrUnusable)
	}

	existing, err := r.store.FindArticleByExternalID(ctx, externalID)
	if err != nil {
		return Resolution{}, err
	}
	if existing != nil {
		return r.existing(ctx, *existing, item)
	}

	if r.prepare != nil {
		r.prepare(ctx, &item)
	}

	base := Slugify(item.Title)
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		candidate := candidateFor(base, externalID, attempt)

		taken, err := r.store.SlugExists(ctx, candidate)
		if err != nil {
			return Resolution{}, err
		}
		if taken {
			continue
		}

		created, inserted, err := r.store.InsertArticle(ctx, newArticle(item, externalID, candidate))
		if err != nil {
			return Resolution{}, err
		}
		if inserted {
			return Resolution{Article: *created, Created: true}, nil
		}

		// The insert lost a race: either another writer stored this link or
		// someone took the slug between the check and the insert.
		winner, err := r.store.FindArticleByExternalID(ctx, externalID)
		if err != nil {
			return Resolution{}, err
		}
		if winner != nil {
			r.logger.Debug().Str("external_id", externalID).Msg("article inserted concurrently")
			return r.existing(ctx, *winner, item)
		}
		r.logger.Debug().Str("slug", candidate).Msg("slug taken concurrently, trying next candidate")
	}

	return Resolution{}, fmt.Errorf("%w: base %q after %d attempts", ErrSlugExhausted, base, maxSlugAttempts)
}

func (r *Resolver) existing(ctx context.Context, article db.ArticleRecord, item normalize.CanonicalItem) (Resolution, error) {
	res := Resolution{Article: article}
	if article.PublishedAt != nil || !item.HasTimestamp() {
		return res, nil
	}

	updated, err := r.store.BackfillPublishedAt(ctx, article.ArticleID, *item.PublishedAt, globaltime.UTC())
	if err != nil {
		return Resolution{}, err
	}
	if updated {
		ts := item.PublishedAt.UTC()
		res.Article.PublishedAt = &ts
		res.Backfilled = true
	}
	return res, nil
}

func newArticle(item normalize.CanonicalItem, externalID, slug string) db.NewArticle {
	var image *string
	if img := strings.TrimSpace(item.ImageURL); img != "" {
		image = &img
	}
	return db.NewArticle{
		ExternalID:  externalID,
		Slug:        slug,
		Title:       item.Title,
		Sport:       item.Sport,
		LeagueID:    item.LeagueID,
		Region:      item.Region,
		Language:    item.Language,
		ImageURL:    image,
		SourceURL:   item.CanonicalLink,
		Summary:     item.Summary,
		BodyContent: item.BodyText,
		PublishedAt: item.PublishedAt,
		CreatedAt:   globaltime.UTC(),
	}
}
