package rewrite

import (
	"context"
	"strings"

	"horse.fit/allball/internal/reader"
)

const LocalProviderName = "local"

// LocalProvider is deterministic: title and text joined, markup stripped and
// whitespace collapsed. It never translates.
type LocalProvider struct{}

func (LocalProvider) Name() string {
	return LocalProviderName
}

func (LocalProvider) Rewrite(_ context.Context, req Request) (string, error) {
	return Clean(req.Title, req.Text), nil
}

// Clean is the local fallback text for title and text.
func Clean(title, text string) string {
	joined := strings.TrimSpace(strings.TrimSpace(title) + "\n\n" + strings.TrimSpace(text))
	return reader.StripMarkup(joined)
}
