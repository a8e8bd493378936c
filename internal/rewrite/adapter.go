package rewrite

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Adapter picks its provider once at construction and never fails a call:
// any error from the external provider degrades to the local rewrite.
type Adapter struct {
	primary  Provider
	fallback LocalProvider
	logger   zerolog.Logger
}

// NewAdapter wraps primary with the local fallback. A nil primary makes the
// adapter local-only.
func NewAdapter(primary Provider, logger zerolog.Logger) *Adapter {
	return &Adapter{primary: primary, logger: logger}
}

// New builds an adapter from configuration: the OpenAI provider when enabled
// and a key is present, local-only otherwise.
func New(enabled bool, opts OpenAIOptions, logger zerolog.Logger) *Adapter {
	if !enabled || strings.TrimSpace(opts.APIKey) == "" {
		logger.Info().Msg("rewrite service not configured, using local rewrite only")
		return NewAdapter(nil, logger)
	}
	provider, err := NewOpenAIProvider(opts, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("rewrite service unavailable, using local rewrite only")
		return NewAdapter(nil, logger)
	}
	return NewAdapter(provider, logger)
}

// Configured reports whether an external provider is wired.
func (a *Adapter) Configured() bool {
	return a != nil && a.primary != nil
}

// Provider names the primary provider, or the local one.
func (a *Adapter) Provider() string {
	if !a.Configured() {
		return LocalProviderName
	}
	return a.primary.Name()
}

func (a *Adapter) Rewrite(ctx context.Context, req Request) Result {
	if a.Configured() && !req.empty() {
		text, err := a.primary.Rewrite(ctx, req)
		if err == nil && strings.TrimSpace(text) != "" {
			return Result{Text: strings.TrimSpace(text), Provider: a.primary.Name()}
		}
		a.logger.Warn().
			Err(err).
			Str("provider", a.primary.Name()).
			Str("title", req.Title).
			Msg("rewrite failed, using local fallback")
	}

	text, _ := a.fallback.Rewrite(ctx, req)
	return Result{Text: text, Provider: a.fallback.Name(), Fallback: true}
}
