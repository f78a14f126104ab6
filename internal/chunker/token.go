package chunker

import (
	"strings"
	"unicode"
)

// EstimateTokens approximates a token count without a tokenizer: each Han
// character counts as one token and other text as ~1.33 tokens per word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	han := 0
	rest := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Han, r) {
			han++
			return ' '
		}
		return r
	}, text)
	tokens := han + int(float64(len(strings.Fields(rest)))*1.33)
	if tokens < 1 && strings.TrimSpace(text) != "" {
		tokens = 1
	}
	return tokens
}
