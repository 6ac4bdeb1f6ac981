// Package classify assigns exam questions to subject categories.
package classify

import (
	"fmt"
	"regexp"

	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/rules"
)

type pattern struct {
	subject string
	re      *regexp.Regexp
}

// Classifier matches text against ordered subject patterns.
type Classifier struct {
	patterns []pattern
	ranges   []rules.SubjectRange
}

// New compiles the subject patterns in the order given. Ranges are optional.
func New(subjects []rules.SubjectPattern, ranges []rules.SubjectRange) (*Classifier, error) {
	c := &Classifier{
		patterns: make([]pattern, 0, len(subjects)),
		ranges:   append([]rules.SubjectRange(nil), ranges...),
	}
	for _, s := range subjects {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern for %s: %w", s.Subject, err)
		}
		c.patterns = append(c.patterns, pattern{subject: s.Subject, re: re})
	}
	return c, nil
}

// FromRules builds a Classifier from a loaded rule set.
func FromRules(r *rules.Rules) (*Classifier, error) {
	return New(r.Subjects, r.SubjectRanges)
}

// Classify returns the first subject whose pattern matches text, or
// model.SubjectUnclassified.
func (c *Classifier) Classify(text string) string {
	if c == nil {
		return model.SubjectUnclassified
	}
	for _, p := range c.patterns {
		if p.re.MatchString(text) {
			return p.subject
		}
	}
	return model.SubjectUnclassified
}

// ClassifyNumber maps a question number through the configured ranges.
func (c *Classifier) ClassifyNumber(n int) string {
	if c == nil {
		return model.SubjectUnclassified
	}
	for _, r := range c.ranges {
		if n >= r.From && n <= r.To {
			return r.Subject
		}
	}
	return model.SubjectUnclassified
}

// HasRanges reports whether number-range fallback is available.
func (c *Classifier) HasRanges() bool {
	return c != nil && len(c.ranges) > 0
}
