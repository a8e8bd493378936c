// Package langdetect guesses the language of headline text.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Undetermined is the ISO 639-2 code stored when no language can be chosen.
const Undetermined = "und"

const minLetters = 6

// languages covers the regions in the league catalog. Restricting the set keeps
// the detector small and stops short headlines from landing on exotic guesses.
var languages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.French,
	lingua.Italian,
	lingua.German,
	lingua.Dutch,
	lingua.Turkish,
	lingua.Greek,
	lingua.Danish,
	lingua.Swedish,
	lingua.Bokmal,
	lingua.Polish,
	lingua.Czech,
	lingua.Croatian,
	lingua.Serbian,
	lingua.Russian,
	lingua.Ukrainian,
	lingua.Arabic,
	lingua.Japanese,
	lingua.Korean,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Detect returns the ISO 639-1 code of text, or Undetermined.
func Detect(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return Undetermined
	}

	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minLetters {
		return Undetermined
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return Undetermined
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return Undetermined
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			WithMinimumRelativeDistance(0.05).
			Build()
	})
	return detector
}
