package reader

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// CleanText normalizes line endings and collapses in-line whitespace, keeping
// blank-line separated paragraphs.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(line), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.Join(paragraphs, "\n\n")
}

// StripMarkup turns an HTML fragment into a single line of text. Entities are
// decoded, every tag becomes a space, script and style bodies are dropped and
// whitespace runs collapse to one space.
func StripMarkup(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var b strings.Builder
	tokenizer := xhtml.NewTokenizer(strings.NewReader(html.UnescapeString(raw)))
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case xhtml.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case xhtml.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		case xhtml.StartTagToken:
			if isRawTextTag(tokenizer) {
				skipDepth++
			}
			b.WriteByte(' ')
		case xhtml.EndTagToken:
			if isRawTextTag(tokenizer) && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(' ')
		}
	}
}

func isRawTextTag(z *xhtml.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "noscript":
		return true
	}
	return false
}

// Clip returns at most maxChars runes of text, cut at a word boundary when one
// is close. maxChars <= 0 disables clipping.
func Clip(text string, maxChars int) string {
	trimmed := strings.TrimSpace(text)
	if maxChars <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed
	}

	cut := string(runes[:maxChars])
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > 0 && len([]rune(cut[:idx])) >= maxChars*4/5 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
