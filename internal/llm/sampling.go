package llm

import (
	"unicode/utf8"

	"tutord/pkg/types"
)

// sampling is the resolved decoding configuration handed to a runtime.
type sampling struct {
	Temperature float32
	TopK        int
	TopP        float32
	MaxTokens   int
}

// resolveSampling fills unset TopK/TopP/MaxTokens from def. Temperature is
// used as given; 0 is a valid setting and means greedy decoding.
func resolveSampling(p types.GenerationParams, def sampling) sampling {
	out := sampling{Temperature: p.Temperature, TopK: p.TopK, TopP: p.TopP, MaxTokens: p.MaxTokens}
	if out.TopK <= 0 {
		out.TopK = def.TopK
	}
	if out.TopP <= 0 {
		out.TopP = def.TopP
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = max(1, def.MaxTokens)
	}
	return out
}

// tailUTF8 returns at most n bytes from the end of s, starting on a rune
// boundary.
func tailUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
