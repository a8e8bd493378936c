package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/globaltime"
	"horse.fit/allball/internal/rewrite"
)

// Store persists rewrite outcomes. *db.Pool satisfies it.
type Store interface {
	UpdateEnrichment(ctx context.Context, in db.EnrichmentUpdate) (bool, error)
}

// Rewriter is the rewrite capability. *rewrite.Adapter satisfies it.
type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request) rewrite.Result
}

// Outcome describes what happened to one article.
type Outcome struct {
	Decision Decision
	Provider string
	Enriched bool
	Fallback bool
	Updated  bool
}

// Enricher applies the gate, the rewriter and the store to one article at a time.
type Enricher struct {
	gate     *Gate
	rewriter Rewriter
	store    Store
	logger   zerolog.Logger
}

func NewEnricher(gate *Gate, rewriter Rewriter, store Store, logger zerolog.Logger) *Enricher {
	return &Enricher{gate: gate, rewriter: rewriter, store: store, logger: logger}
}

func (e *Enricher) Gate() *Gate {
	return e.gate
}

// Enrich rewrites article when the gate allows it. Only store failures are
// returned; rewrite failures surface as Outcome.Fallback.
func (e *Enricher) Enrich(ctx context.Context, article db.ArticleRecord) (Outcome, error) {
	if e == nil || e.gate == nil || e.rewriter == nil || e.store == nil {
		return Outcome{}, fmt.Errorf("enricher is not initialized")
	}

	decision := e.gate.Decide(article)
	if decision != Allow {
		e.logger.Debug().
			Int64("article_id", article.ArticleID).
			Str("decision", string(decision)).
			Msg("enrichment skipped")
		return Outcome{Decision: decision}, nil
	}

	result := e.rewriter.Rewrite(ctx, rewrite.Request{
		Title:    article.Title,
		Text:     e.gate.BaseText(article),
		Sport:    article.Sport,
		Language: article.Language,
	})
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return Outcome{Decision: SkipNoBaseText}, nil
	}

	out := Outcome{
		Decision: Allow,
		Provider: result.Provider,
		Enriched: !result.Fallback,
		Fallback: result.Fallback,
	}
	if result.Fallback && article.EnrichedContent != nil && strings.TrimSpace(*article.EnrichedContent) == text {
		return out, nil
	}

	updated, err := e.store.UpdateEnrichment(ctx, db.EnrichmentUpdate{
		ArticleID: article.ArticleID,
		Content:   text,
		Provider:  result.Provider,
		Enriched:  out.Enriched,
		At:        globaltime.UTC(),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("store enrichment for article %d: %w", article.ArticleID, err)
	}
	out.Updated = updated
	if out.Enriched {
		e.gate.Consume()
	}
	return out, nil
}
