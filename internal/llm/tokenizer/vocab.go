package tokenizer

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Vocabulary maps token strings to ids and back. The id of a token is its
// 0-based line number in the vocabulary file.
type Vocabulary struct {
	ids    map[string]int32
	tokens []string
}

// NewVocabulary builds a vocabulary from tokens in id order.
func NewVocabulary(tokens []string) *Vocabulary {
	v := &Vocabulary{
		ids:    make(map[string]int32, len(tokens)),
		tokens: append([]string(nil), tokens...),
	}
	for i, tok := range v.tokens {
		// First occurrence wins for duplicate lines.
		if _, dup := v.ids[tok]; !dup {
			v.ids[tok] = int32(i)
		}
	}
	return v
}

// ParseVocabulary reads a line-delimited vocabulary. Trailing "\r" is
// stripped so files written on Windows parse identically.
func ParseVocabulary(r io.Reader) (*Vocabulary, error) {
	var tokens []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return NewVocabulary(tokens), nil
}

// LoadVocabulary extracts the vocabulary file name from the metadata archive
// appended to the model file. A missing archive or entry is not fatal: the
// failure is logged and an empty vocabulary is returned, which maps every
// word to the pad id.
func LoadVocabulary(modelPath, name string, log zerolog.Logger) *Vocabulary {
	if name == "" {
		log.Warn().Str("model", modelPath).Msg("no vocabulary file configured; using empty vocabulary")
		return NewVocabulary(nil)
	}
	v, err := readEmbedded(modelPath, name)
	if err != nil {
		log.Warn().Err(err).Str("model", modelPath).Str("vocab", name).Msg("vocabulary unavailable; using empty vocabulary")
		return NewVocabulary(nil)
	}
	log.Debug().Str("vocab", name).Int("size", v.Len()).Msg("vocabulary loaded")
	return v
}

func readEmbedded(modelPath, name string) (*Vocabulary, error) {
	zr, err := zip.OpenReader(modelPath)
	if err != nil {
		return nil, fmt.Errorf("open model metadata: %w", err)
	}
	defer zr.Close()
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	return ParseVocabulary(f)
}

// Len returns the number of tokens.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// ID returns the id of tok.
func (v *Vocabulary) ID(tok string) (int32, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// Token returns the token for id.
func (v *Vocabulary) Token(id int32) (string, bool) {
	if id < 0 || int(id) >= len(v.tokens) {
		return "", false
	}
	return v.tokens[id], true
}
