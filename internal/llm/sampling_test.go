package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"tutord/pkg/types"
)

func TestResolveSamplingKeepsZeroTemperature(t *testing.T) {
	def := sampling{Temperature: 0.8, TopK: 40, TopP: 0.95, MaxTokens: 128}
	got := resolveSampling(types.GenerationParams{Temperature: 0, TopK: 5, TopP: 0.5, MaxTokens: 64}, def)
	assert.Equal(t, sampling{Temperature: 0, TopK: 5, TopP: 0.5, MaxTokens: 64}, got)

	got = resolveSampling(types.GenerationParams{Temperature: 0.3}, def)
	assert.Equal(t, sampling{Temperature: 0.3, TopK: 40, TopP: 0.95, MaxTokens: 128}, got)
}

func TestTailUTF8StartsOnRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", tailUTF8("short", 10))

	s := strings.Repeat("ñ", 10) // 20 bytes
	for n := 1; n < len(s); n++ {
		got := tailUTF8(s, n)
		assert.True(t, utf8.ValidString(got), "n=%d", n)
		assert.LessOrEqual(t, len(got), n)
		assert.True(t, strings.HasSuffix(s, got))
	}
	assert.Equal(t, "ññ", tailUTF8(s, 5))
}
