// Package textfix repairs known OCR corruption in extracted exam text.
package textfix

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/stemsi/examkb/internal/rules"
)

var markdownMarkers = strings.NewReplacer("**", "", "##", "", "---", "")

// Corrector applies an ordered correction table. It is safe for concurrent use.
type Corrector struct {
	rules []rules.Correction
}

// New copies the given corrections so later changes to the slice have no effect.
func New(corrections []rules.Correction) *Corrector {
	cp := make([]rules.Correction, 0, len(corrections))
	for _, c := range corrections {
		if c.Wrong == "" {
			continue
		}
		cp = append(cp, c)
	}
	return &Corrector{rules: cp}
}

// Correct normalizes text to NFC, applies every correction in table order and
// cleans up markdown markers and whitespace.
func (c *Corrector) Correct(text string) string {
	text = norm.NFC.String(text)
	text = c.Apply(text)
	return Clean(text)
}

// Apply runs only the substitution table, replacing every occurrence.
func (c *Corrector) Apply(text string) string {
	if c == nil {
		return text
	}
	for _, r := range c.rules {
		text = strings.ReplaceAll(text, r.Wrong, r.Correct)
	}
	return text
}

// Len reports the number of active rules.
func (c *Corrector) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// Clean strips **, ## and --- markers, collapses whitespace runs and trims.
func Clean(text string) string {
	text = markdownMarkers.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}
