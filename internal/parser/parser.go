// Package parser reconstructs exam questions from OCR'd text.
//
// Parsing is line oriented. A question-start line opens a candidate; choice,
// answer and explanation lines fill it in until the next start or the end of
// the document. Malformed input never fails: unrecognized lines are ignored and
// a document without any start line yields no candidates.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stemsi/examkb/internal/choice"
	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/textfix"
)

// Variant selects which question-start patterns are recognized.
type Variant string

const (
	VariantStandard  Variant = "standard"
	VariantNumbered  Variant = "numbered"
	VariantBracketed Variant = "bracketed"
	VariantLabeled   Variant = "labeled"
)

// ErrUnknownVariant is returned for a variant name the parser does not know.
var ErrUnknownVariant = errors.New("unknown parser variant")

var (
	startNumbered   = regexp.MustCompile(`^(\d{1,3})[.)]\s*(.*)$`)
	startLabeled    = regexp.MustCompile(`^문제\s*(\d{1,3})번?(?:[.):]\s*|\s+|$)(.*)$`)
	startQ          = regexp.MustCompile(`^[Qq](\d{1,3})(?:[.):]\s*|\s+|$)(.*)$`)
	startBracket    = regexp.MustCompile(`^\[(\d{1,3})\]\s*(.*)$`)
	startLenticular = regexp.MustCompile(`^【(\d{1,3})】\s*(.*)$`)

	choiceCircled = regexp.MustCompile(`^([①-⑤➀-➄])\s*(.*)$`)
	choiceParen   = regexp.MustCompile(`^\(([1-5])\)\s*(.*)$`)
	choiceDigit   = regexp.MustCompile(`^([1-5])[.)]\s*(.*)$`)

	answerMarker      = regexp.MustCompile(`^(?:\[정답\]|정답\s*[:：]|정답은|답\s*[:：])\s*(.*)$`)
	explanationMarker = regexp.MustCompile(`^(?:\[해설\]|해설\s*[:：]|설명\s*[:：])\s*(.*)$`)
	answerChoice      = regexp.MustCompile(`^\(?([1-5①-⑤➀-➄])\)?(?:번)?(?:[^0-9]|$)`)

	emphasisMarkers = strings.NewReplacer("**", "", "__", "")
)

var variantStarts = map[Variant][]*regexp.Regexp{
	VariantStandard:  {startNumbered, startLabeled, startQ, startBracket, startLenticular},
	VariantNumbered:  {startNumbered},
	VariantBracketed: {startBracket, startLenticular},
	VariantLabeled:   {startLabeled, startQ},
}

// ParseVariant resolves a variant name. The empty string means standard.
func ParseVariant(name string) (Variant, error) {
	if name == "" {
		return VariantStandard, nil
	}
	v := Variant(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := variantStarts[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

// Parser turns a document into candidates. It holds no per-document state and
// is safe for concurrent use.
type Parser struct {
	variant   Variant
	starts    []*regexp.Regexp
	corrector *textfix.Corrector
}

// New returns a parser for the given variant. corrector may be nil, in which
// case only whitespace and markdown cleanup is applied.
func New(corrector *textfix.Corrector, variant Variant) (*Parser, error) {
	if variant == "" {
		variant = VariantStandard
	}
	starts, ok := variantStarts[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	return &Parser{variant: variant, starts: starts, corrector: corrector}, nil
}

// Variant returns the parser's start-pattern variant.
func (p *Parser) Variant() Variant {
	return p.variant
}

// Parse returns the candidates found in text, in document order.
func (p *Parser) Parse(text string) []model.Candidate {
	var (
		out []model.Candidate
		cur *openQuestion
	)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}

		if cur == nil {
			if n, rest, ok := p.matchStart(line); ok {
				cur = newOpenQuestion(n, rest)
			}
			continue
		}

		if cur.consume(line) {
			continue
		}

		if n, rest, ok := p.matchStart(line); ok && !cur.listsInExplanation(n) {
			out = append(out, cur.candidate(p.corrector))
			cur = newOpenQuestion(n, rest)
			continue
		}

		cur.appendText(line)
	}

	if cur != nil {
		out = append(out, cur.candidate(p.corrector))
	}
	return out
}

func (p *Parser) matchStart(line string) (int, string, bool) {
	for _, re := range p.starts {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < model.MinQuestionNumber || n > model.MaxQuestionNumber {
			continue
		}
		return n, m[2], true
	}
	return 0, "", false
}

// cleanLine drops heading hashes, blockquote markers and emphasis.
func cleanLine(raw string) string {
	line := strings.TrimSpace(raw)
	line = strings.TrimLeft(line, "#>")
	line = emphasisMarkers.Replace(line)
	return strings.TrimSpace(line)
}

// ─── Open question state ──────────────────────────────────────────────

type openQuestion struct {
	number        int
	body          []string
	choices       map[int]string
	answer        string
	answerSeen    bool
	explanation   []string
	inExplanation bool
	circledSeen   bool
}

func newOpenQuestion(number int, rest string) *openQuestion {
	q := &openQuestion{number: number}
	if rest = strings.TrimSpace(rest); rest != "" {
		q.body = append(q.body, rest)
	}
	return q
}

// consume handles answer, explanation and choice lines. It reports false when
// the line is none of those.
func (q *openQuestion) consume(line string) bool {
	if m := answerMarker.FindStringSubmatch(line); m != nil {
		q.answer = normalizeAnswer(m[1])
		q.answerSeen = true
		q.inExplanation = false
		return true
	}

	if m := explanationMarker.FindStringSubmatch(line); m != nil {
		q.inExplanation = true
		if rest := strings.TrimSpace(m[1]); rest != "" {
			q.explanation = append(q.explanation, rest)
		}
		return true
	}

	if q.inExplanation || q.answerSeen {
		return false
	}

	if choiceCircled.MatchString(line) {
		for _, seg := range splitCircled(line) {
			q.setChoice(seg.number, seg.text)
		}
		q.circledSeen = true
		return true
	}

	if m := choiceParen.FindStringSubmatch(line); m != nil {
		n, _ := choice.Normalize(m[1])
		q.setChoice(n, m[2])
		return true
	}

	if m := choiceDigit.FindStringSubmatch(line); m != nil {
		n, _ := choice.Normalize(m[1])
		if q.acceptsDigitChoice(n) {
			q.setChoice(n, m[2])
			return true
		}
	}

	return false
}

// acceptsDigitChoice decides whether an "N." or "N)" line is a choice rather
// than the start of the next question.
func (q *openQuestion) acceptsDigitChoice(n int) bool {
	if q.circledSeen || n != len(q.choices)+1 {
		return false
	}
	if len(q.choices) >= 4 && n == q.number+1 {
		return false
	}
	return true
}

// listsInExplanation reports whether a numbered line belongs to an open
// explanation. Questions only move forward, so a number at or below the
// current one is a list item.
func (q *openQuestion) listsInExplanation(n int) bool {
	return q.inExplanation && n <= q.number
}

func (q *openQuestion) setChoice(n int, text string) {
	if q.choices == nil {
		q.choices = make(map[int]string, choice.Max)
	}
	q.choices[n] = strings.TrimSpace(text)
}

func (q *openQuestion) appendText(line string) {
	switch {
	case q.inExplanation:
		q.explanation = append(q.explanation, line)
	case len(q.choices) == 0 && !q.answerSeen:
		q.body = append(q.body, line)
	}
}

func (q *openQuestion) candidate(c *textfix.Corrector) model.Candidate {
	cand := model.Candidate{
		Number:      q.number,
		Body:        c.Correct(strings.Join(q.body, " ")),
		Answer:      q.answer,
		AnswerSeen:  q.answerSeen,
		Explanation: c.Correct(strings.Join(q.explanation, " ")),
	}
	if len(q.choices) > 0 {
		cand.Choices = make(map[int]string, len(q.choices))
		for n, text := range q.choices {
			cand.Choices[n] = c.Correct(text)
		}
	}
	return cand
}

// ─── Helpers ──────────────────────────────────────────────────────────

type segment struct {
	number int
	text   string
}

// splitCircled splits "① a ② b" into one segment per circled marker.
func splitCircled(line string) []segment {
	var (
		segs []segment
		cur  *segment
		buf  strings.Builder
	)
	flush := func() {
		if cur != nil {
			cur.text = strings.TrimSpace(buf.String())
			segs = append(segs, *cur)
		}
		buf.Reset()
	}
	for _, r := range line {
		if choice.IsCircled(r) {
			flush()
			n, _ := choice.Normalize(string(r))
			cur = &segment{number: n}
			continue
		}
		buf.WriteRune(r)
	}
	flush()
	return segs
}

// normalizeAnswer maps a choice marker to "1".."5" and keeps any other token
// as written.
func normalizeAnswer(rest string) string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return ""
	}
	if m := answerChoice.FindStringSubmatch(rest); m != nil {
		if n, ok := choice.Normalize(m[1]); ok {
			return strconv.Itoa(n)
		}
	}
	return strings.TrimRight(strings.Fields(rest)[0], ".,")
}
