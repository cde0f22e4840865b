// internal/engine/tokenizer.go
package engine

import (
	"strings"
	"unicode"

	"github.com/mwiater/paragon/internal/checkpoint"
)

// Tokenizer maps between text and the engine's token ids. The vocabulary
// is word-level: runs of letters, digits, apostrophes and hyphens form one
// token, every other non-space rune stands alone. Text is lowercased before
// lookup because the prediction tables are keyed on lowercased tokens;
// anything outside the vocabulary maps to the unknown id.
type Tokenizer struct {
	tokens []string
	ids    map[string]int32
}

// NewTokenizer builds a tokenizer over an engine vocabulary.
func NewTokenizer(vocab []string) *Tokenizer {
	t := &Tokenizer{
		tokens: vocab,
		ids:    make(map[string]int32, len(vocab)),
	}
	for i, token := range vocab {
		if _, ok := t.ids[token]; !ok {
			t.ids[token] = int32(i)
		}
	}
	return t
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-'
}

// Split breaks text into surface tokens without mapping them to ids.
func (t *Tokenizer) Split(text string) []string {
	var out []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isWordRune(r):
			word.WriteRune(r)
		default:
			flush()
			out = append(out, string(r))
		}
	}
	flush()
	return out
}

// Encode maps text to token ids, using the unknown id for any token the
// vocabulary does not carry.
func (t *Tokenizer) Encode(text string) []int32 {
	words := t.Split(text)
	ids := make([]int32, len(words))
	for i, w := range words {
		if id, ok := t.ids[w]; ok {
			ids[i] = id
		} else {
			ids[i] = checkpoint.UnknownTokenID
		}
	}
	return ids
}

// Token returns the surface form of a token id.
func (t *Tokenizer) Token(id int32) string {
	if id < 0 || int(id) >= len(t.tokens) {
		return checkpoint.UnknownToken
	}
	return t.tokens[id]
}

// Decode renders token ids back to text. Tokens are space-separated except
// that closing punctuation attaches to the preceding token.
func (t *Tokenizer) Decode(ids []int32) string {
	var b strings.Builder
	for i, id := range ids {
		token := t.Token(id)
		if i > 0 && !isClosingPunct(token) {
			b.WriteByte(' ')
		}
		b.WriteString(token)
	}
	return b.String()
}

func isClosingPunct(token string) bool {
	if len(token) != 1 {
		return false
	}
	switch token[0] {
	case '.', ',', '!', '?', ';', ':', ')', ']', '}':
		return true
	}
	return false
}
