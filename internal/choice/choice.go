// Package choice maps the ways a choice index is written to 1..5.
package choice

import "strings"

// Max is the highest choice number an exam question carries.
const Max = 5

var glyphs = map[string]int{
	"①": 1, "②": 2, "③": 3, "④": 4, "⑤": 5,
	"➀": 1, "➁": 2, "➂": 3, "➃": 4, "➄": 5,
	"1": 1, "2": 2, "3": 3, "4": 4, "5": 5,
}

// Normalize returns the choice number for token, ignoring surrounding
// whitespace. ok is false for anything that is not a recognized marker.
func Normalize(token string) (n int, ok bool) {
	n, ok = glyphs[strings.TrimSpace(token)]
	return n, ok
}

// IsCircled reports whether r is one of the circled choice glyphs.
func IsCircled(r rune) bool {
	return (r >= '①' && r <= '⑤') || (r >= '➀' && r <= '➄')
}
