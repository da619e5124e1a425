package recognizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Reserved vocabulary tokens.
const (
	TokenPAD = "PAD"
	TokenSOS = "SOS"
	TokenEOS = "EOS"
)

// Vocabulary is the bijection between alphabet tokens and model indices.
// It is immutable after construction and safe for concurrent use.
type Vocabulary struct {
	tokens   []string
	index    map[string]int
	sos      int
	eos      int
	pad      int
	maxRunes int
}

// NewVocabulary builds a vocabulary from an ordered token list. Index i maps
// to tokens[i]. Both sentinels must be present and tokens must be unique.
func NewVocabulary(tokens []string) (*Vocabulary, error) {
	if len(tokens) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	v := &Vocabulary{
		tokens: make([]string, len(tokens)),
		index:  make(map[string]int, len(tokens)),
		pad:    -1,
	}
	for i, t := range tokens {
		t = norm.NFC.String(t)
		if t == "" {
			return nil, fmt.Errorf("vocabulary token %d is empty", i)
		}
		if prev, dup := v.index[t]; dup {
			return nil, fmt.Errorf("duplicate vocabulary token %q at %d and %d", t, prev, i)
		}
		v.tokens[i] = t
		v.index[t] = i
		if !isReserved(t) {
			v.maxRunes = max(v.maxRunes, utf8.RuneCountInString(t))
		}
	}

	var ok bool
	if v.sos, ok = v.index[TokenSOS]; !ok {
		return nil, fmt.Errorf("vocabulary has no %s token", TokenSOS)
	}
	if v.eos, ok = v.index[TokenEOS]; !ok {
		return nil, fmt.Errorf("vocabulary has no %s token", TokenEOS)
	}
	if p, ok := v.index[TokenPAD]; ok {
		v.pad = p
	}
	return v, nil
}

func isReserved(t string) bool {
	return t == TokenSOS || t == TokenEOS || t == TokenPAD
}

// Size returns the number of tokens.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// SOS returns the start sentinel index.
func (v *Vocabulary) SOS() int { return v.sos }

// EOS returns the end sentinel index.
func (v *Vocabulary) EOS() int { return v.eos }

// Index looks up the index of a token.
func (v *Vocabulary) Index(token string) (int, bool) {
	i, ok := v.index[norm.NFC.String(token)]
	return i, ok
}

// Token returns the token at index i.
func (v *Vocabulary) Token(i int) (string, bool) {
	if i < 0 || i >= len(v.tokens) {
		return "", false
	}
	return v.tokens[i], true
}

// Tokens returns a copy of the ordered alphabet.
func (v *Vocabulary) Tokens() []string {
	return append([]string(nil), v.tokens...)
}

// Encode maps text to indices using longest-match over non-reserved tokens.
func (v *Vocabulary) Encode(text string) ([]int, error) {
	runes := []rune(norm.NFC.String(text))
	out := make([]int, 0, len(runes))
	for pos := 0; pos < len(runes); {
		matched := false
		for n := min(v.maxRunes, len(runes)-pos); n > 0; n-- {
			cand := string(runes[pos : pos+n])
			if idx, ok := v.index[cand]; ok && !isReserved(cand) {
				out = append(out, idx)
				pos += n
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("character %q at position %d is not in the vocabulary", runes[pos], pos)
		}
	}
	return out, nil
}

// Decode maps indices to text. Emission stops at the first EOS; SOS and
// PAD are dropped and indices outside the vocabulary are ignored.
func (v *Vocabulary) Decode(indices []int) string {
	var b strings.Builder
	for _, i := range indices {
		if i == v.eos {
			break
		}
		if i == v.sos || i == v.pad {
			continue
		}
		if t, ok := v.Token(i); ok {
			b.WriteString(t)
		}
	}
	return norm.NFC.String(b.String())
}
