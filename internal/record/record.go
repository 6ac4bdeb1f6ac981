// Package record holds the structural checks a parsed question must pass
// before it is stored as a complete record.
package record

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/stemsi/examkb/internal/model"
)

// Thresholds for a structurally valid question.
const (
	DefaultMinBodyLength = 10
	MinChoices           = 4
	MinChoiceLength      = 2
)

// Reason names a single validation failure.
type Reason string

const (
	ReasonEmptyBody        Reason = "empty_body"
	ReasonShortBody        Reason = "short_body"
	ReasonTooFewChoices    Reason = "too_few_choices"
	ReasonDuplicateChoices Reason = "duplicate_choices"
	ReasonShortChoice      Reason = "short_choice"
	ReasonNumberOutOfRange Reason = "number_out_of_range"
)

// Policy decides what happens to candidates that fail validation.
type Policy string

const (
	// PolicyDrop discards invalid candidates.
	PolicyDrop Policy = "drop"
	// PolicyFlag keeps invalid candidates as incomplete placeholder rows.
	PolicyFlag Policy = "flag"
)

// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names.
var ErrUnknownPolicy = errors.New("unknown invalid-candidate policy")

// ParsePolicy resolves a policy name. The empty string means PolicyDrop.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicyFlag:
		return PolicyFlag, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Validator checks candidates against the structural rules.
type Validator struct {
	MinBodyLength int
}

// NewValidator returns a Validator. A non-positive minBody selects the default.
func NewValidator(minBody int) Validator {
	if minBody <= 0 {
		minBody = DefaultMinBodyLength
	}
	return Validator{MinBodyLength: minBody}
}

// IsValid reports whether c passes every check.
func (v Validator) IsValid(c model.Candidate) bool {
	return len(v.Check(c)) == 0
}

// Check returns every reason c fails validation, or nil.
func (v Validator) Check(c model.Candidate) []Reason {
	var reasons []Reason

	minBody := v.MinBodyLength
	if minBody <= 0 {
		minBody = DefaultMinBodyLength
	}

	body := strings.TrimSpace(c.Body)
	switch {
	case body == "":
		reasons = append(reasons, ReasonEmptyBody)
	case utf8.RuneCountInString(body) < minBody:
		reasons = append(reasons, ReasonShortBody)
	}

	if len(c.Choices) < MinChoices {
		reasons = append(reasons, ReasonTooFewChoices)
	}

	distinct := make(map[string]struct{}, len(c.Choices))
	short := false
	for _, text := range c.Choices {
		text = strings.TrimSpace(text)
		distinct[text] = struct{}{}
		if utf8.RuneCountInString(text) < MinChoiceLength {
			short = true
		}
	}
	if len(c.Choices) >= MinChoices && len(distinct) < MinChoices {
		reasons = append(reasons, ReasonDuplicateChoices)
	}
	if short {
		reasons = append(reasons, ReasonShortChoice)
	}

	if !NumberInRange(c.Number) {
		reasons = append(reasons, ReasonNumberOutOfRange)
	}

	return reasons
}

// NumberInRange reports whether n is a storable question number.
func NumberInRange(n int) bool {
	return n >= model.MinQuestionNumber && n <= model.MaxQuestionNumber
}
