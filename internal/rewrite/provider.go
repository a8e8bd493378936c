// Package rewrite turns short headlines into long-form English articles, using
// an external chat-completions service when one is configured and a local
// cleanup otherwise.
package rewrite

import (
	"context"
	"strings"
)

// Request is one rewrite job.
type Request struct {
	Title    string
	Text     string
	Sport    string
	Language string
}

// Result is what the adapter produced. Fallback is set when the text came
// from the local provider instead of a real rewrite.
type Result struct {
	Text     string
	Provider string
	Fallback bool
}

// Provider is one rewrite capability.
type Provider interface {
	Name() string
	Rewrite(ctx context.Context, req Request) (string, error)
}

func (r Request) empty() bool {
	return strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Text) == ""
}
