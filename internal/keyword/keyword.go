// Package keyword derives search keywords from question text.
package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMax caps the keywords stored per question.
const DefaultMax = 10

const minRunes = 2

// particles are trailing Korean postpositions trimmed from tokens, longest first.
var particles = []string{"에서", "으로", "에게", "은", "는", "이", "가", "을", "를", "의", "에", "로", "와", "과", "도"}

// Extractor turns text into a bounded, ordered list of unique tokens.
type Extractor struct {
	stop map[string]struct{}
	max  int
}

// New returns an Extractor. A non-positive max selects DefaultMax.
func New(stopwords []string, max int) *Extractor {
	if max <= 0 {
		max = DefaultMax
	}
	stop := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Extractor{stop: stop, max: max}
}

// Extract returns keywords in order of first appearance.
func (e *Extractor) Extract(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		tok := trimParticle(strings.ToLower(f))
		if utf8.RuneCountInString(tok) < minRunes || isNumeric(tok) {
			continue
		}
		if _, ok := e.stop[tok]; ok {
			continue
		}
		if _, ok := e.stop[strings.ToLower(f)]; ok {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == e.max {
			break
		}
	}
	return out
}

func trimParticle(tok string) string {
	for _, p := range particles {
		if !strings.HasSuffix(tok, p) {
			continue
		}
		stem := strings.TrimSuffix(tok, p)
		if utf8.RuneCountInString(stem) >= minRunes {
			return stem
		}
		return tok
	}
	return tok
}

func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
