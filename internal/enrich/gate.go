// Package enrich bounds the rewrite step: a per-run gate decides which
// articles may be rewritten, and the Enricher applies the outcome to the store.
package enrich

import (
	"strings"

	"horse.fit/allball/internal/db"
	"horse.fit/allball/internal/reader"
)

// Decision is the gate verdict for one article.
type Decision string

const (
	Allow               Decision = "allow"
	SkipDisabled        Decision = "disabled"
	SkipAlreadyEnriched Decision = "already_enriched"
	SkipBudgetExhausted Decision = "budget_exhausted"
	SkipNoBaseText      Decision = "no_base_text"
)

// Gate is scoped to one run and is not safe for concurrent use.
type Gate struct {
	enabled   bool
	unlimited bool
	remaining int
	maxChars  int
	consumed  int
}

// NewGate builds a gate. maxArticles < 0 means no budget, 0 means none may be
// rewritten. maxChars <= 0 disables clipping of the base text.
func NewGate(enabled bool, maxArticles, maxChars int) *Gate {
	return &Gate{
		enabled:   enabled,
		unlimited: maxArticles < 0,
		remaining: maxArticles,
		maxChars:  maxChars,
	}
}

func (g *Gate) Decide(article db.ArticleRecord) Decision {
	switch {
	case !g.enabled:
		return SkipDisabled
	case article.EnrichedFlag:
		return SkipAlreadyEnriched
	case g.BaseText(article) == "":
		return SkipNoBaseText
	case !g.unlimited && g.remaining <= 0:
		return SkipBudgetExhausted
	}
	return Allow
}

func (g *Gate) Enabled() bool {
	return g.enabled
}

// Consume spends one unit of budget. Call it only after a real rewrite.
func (g *Gate) Consume() {
	g.consumed++
	if !g.unlimited && g.remaining > 0 {
		g.remaining--
	}
}

// Remaining is the budget left, or -1 when unlimited.
func (g *Gate) Remaining() int {
	if g.unlimited {
		return -1
	}
	return g.remaining
}

func (g *Gate) Consumed() int {
	return g.consumed
}

func (g *Gate) BaseText(article db.ArticleRecord) string {
	return BaseText(article, g.maxChars)
}

// BaseText picks the richest text the article has: body, then summary, then
// title.
func BaseText(article db.ArticleRecord, maxChars int) string {
	for _, candidate := range []string{article.BodyContent, article.Summary, article.Title} {
		if text := strings.TrimSpace(candidate); text != "" {
			return reader.Clip(text, maxChars)
		}
	}
	return ""
}
