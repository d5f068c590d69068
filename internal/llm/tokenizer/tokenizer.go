// Package tokenizer implements the word-level tokenizer used by
// interpreter-backed models.
package tokenizer

import (
	"strings"
	"unicode"
)

// UnknownToken renders ids missing from the vocabulary.
const UnknownToken = "[UNK]"

// Special holds the optional special token ids.
type Special struct {
	Pad *int32
	Bos *int32
	Eos *int32
}

// Tokenizer converts text to fixed-length id sequences and back.
type Tokenizer struct {
	vocab   *Vocabulary
	special Special
}

// New returns a Tokenizer over vocab. A nil vocab behaves as empty.
func New(vocab *Vocabulary, special Special) *Tokenizer {
	if vocab == nil {
		vocab = NewVocabulary(nil)
	}
	return &Tokenizer{vocab: vocab, special: special}
}

// Vocabulary returns the underlying vocabulary.
func (t *Tokenizer) Vocabulary() *Vocabulary { return t.vocab }

// pad is the padding id; unknown words also map to it. Without a configured
// pad id Tokenize pads with 0, but Detokenize does not treat 0 as a stop.
func (t *Tokenizer) pad() int32 {
	if t.special.Pad != nil {
		return *t.special.Pad
	}
	return 0
}

// Words normalizes text the way Tokenize does: lowercase, punctuation and
// symbols dropped (so "don't" reads as "dont"), split on whitespace.
func Words(text string) []string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(text))
	return strings.Fields(clean)
}

// Tokenize returns exactly maxLen ids: optional BOS, one id per word
// (unknown words become the pad id), optional EOS if it fits, then padding.
// Sequences longer than maxLen are truncated.
func (t *Tokenizer) Tokenize(text string, maxLen int) []int32 {
	if maxLen <= 0 {
		return []int32{}
	}
	pad := t.pad()
	words := Words(text)
	seq := make([]int32, 0, len(words)+2)
	if t.special.Bos != nil {
		seq = append(seq, *t.special.Bos)
	}
	for _, w := range words {
		id, ok := t.vocab.ID(w)
		if !ok {
			id = pad
		}
		seq = append(seq, id)
	}
	if t.special.Eos != nil && len(seq) < maxLen {
		seq = append(seq, *t.special.Eos)
	}
	out := make([]int32, maxLen)
	n := copy(out, seq)
	for i := n; i < maxLen; i++ {
		out[i] = pad
	}
	return out
}

// Detokenize maps ids back to words joined by single spaces. Output stops at
// the first configured EOS or pad id; BOS ids are skipped and ids outside the
// vocabulary render as UnknownToken.
func (t *Tokenizer) Detokenize(ids []int32) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if isSet(t.special.Pad, id) || isSet(t.special.Eos, id) {
			break
		}
		if t.special.Bos != nil && id == *t.special.Bos {
			continue
		}
		tok, ok := t.vocab.Token(id)
		if !ok {
			tok = UnknownToken
		}
		words = append(words, tok)
	}
	return strings.Join(words, " ")
}

func isSet(special *int32, id int32) bool {
	return special != nil && *special == id
}
