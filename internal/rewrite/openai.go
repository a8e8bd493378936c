package rewrite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const (
	OpenAIProviderName = "openai"

	DefaultModel       = "gpt-4.1-mini"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 900
	DefaultTemperature = 0.5
)

const systemPrompt = `You are a professional sports journalist.
- You ALWAYS write in natural, fluent ENGLISH only.
- You never include sentences in other languages.
- Ignore any HTML tags (like <img>, <br>, <a>) and never copy them.
- Output format MUST be:
  1) First line: English headline, plain text, no quotes, no markdown.
  2) One blank line.
  3) Several paragraphs of article text in English.`

// OpenAIOptions configures the chat-completions provider.
type OpenAIOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// OpenAIProvider rewrites through any OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float32
	logger      zerolog.Logger
}

func NewOpenAIProvider(opts OpenAIOptions, logger zerolog.Logger) (*OpenAIProvider, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.BaseURL = base
	}

	p := &OpenAIProvider{
		client:      openai.NewClientWithConfig(cfg),
		model:       strings.TrimSpace(opts.Model),
		timeout:     opts.Timeout,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		logger:      logger,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.maxTokens <= 0 {
		p.maxTokens = DefaultMaxTokens
	}
	return p, nil
}

func (p *OpenAIProvider) Name() string {
	return OpenAIProviderName
}

// Rewrite returns "headline\n\nbody" or an error; it never returns partial text.
func (p *OpenAIProvider) Rewrite(ctx context.Context, req Request) (string, error) {
	if req.empty() {
		return "", fmt.Errorf("nothing to rewrite")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}

	text, err := normalizeArticle(resp.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}

	p.logger.Debug().
		Str("model", p.model).
		Dur("latency", time.Since(started)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("rewrite completed")

	return text, nil
}

func buildPrompt(req Request) string {
	sport := strings.TrimSpace(req.Sport)
	if sport == "" {
		sport = "sports"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SPORT: %s\n\n", sport)
	fmt.Fprintf(&b, "ORIGINAL TITLE:\n%s\n\n", strings.TrimSpace(req.Title))
	if lang := strings.TrimSpace(req.Language); lang != "" && lang != "und" && lang != "en" {
		fmt.Fprintf(&b, "SOURCE LANGUAGE (detected): %s\n\n", lang)
	}
	b.WriteString("SOURCE TEXT (may contain a different language and some HTML tags):\n")
	b.WriteString(strings.TrimSpace(req.Text))
	b.WriteString("\n\nTASK:\n")
	b.WriteString("- Write a sports news piece in ENGLISH only.\n")
	b.WriteString("- If the original language is not English, translate and rewrite it into English.\n")
	b.WriteString("- DO NOT include any sentences in the original language.\n")
	b.WriteString("- Ignore HTML tags (<img>, <br>, <a>, etc.) and do not copy them.\n")
	b.WriteString("- Output format MUST be:\n")
	b.WriteString("  First line: English headline, no quotes, no markdown.\n")
	b.WriteString("  Then a blank line.\n")
	b.WriteString("  Then 3-6 paragraphs of English article text.\n")
	return b.String()
}

// normalizeArticle enforces the headline / blank line / body layout.
func normalizeArticle(raw string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(raw), "\r\n", "\n"), "\n")

	headline := ""
	rest := 0
	for i, line := range lines {
		if clean := cleanHeadline(line); clean != "" {
			headline = clean
			rest = i + 1
			break
		}
	}
	if headline == "" {
		return "", fmt.Errorf("openai response has no headline")
	}

	paragraphs := make([]string, 0, len(lines))
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = current[:0]
		}
	}
	for _, line := range lines[rest:] {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	if len(paragraphs) == 0 {
		return headline, nil
	}
	return headline + "\n\n" + strings.Join(paragraphs, "\n\n"), nil
}

func cleanHeadline(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "# ")
	line = strings.TrimPrefix(line, "**")
	line = strings.TrimSuffix(line, "**")
	line = strings.Trim(line, `"'“”`)
	return strings.TrimSpace(line)
}
