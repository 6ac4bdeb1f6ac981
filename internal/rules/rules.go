// Package rules loads the OCR correction, subject and stopword tables that
// drive the extraction pipeline.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRules []byte

// ErrInvalidRules is returned when a rule file parses but fails validation.
var ErrInvalidRules = errors.New("invalid rules")

// Correction is a single OCR repair: every occurrence of Wrong becomes Correct.
type Correction struct {
	Wrong   string `yaml:"wrong"`
	Correct string `yaml:"correct"`
}

// SubjectPattern maps a subject name to the regular expression that selects it.
type SubjectPattern struct {
	Subject string `yaml:"subject"`
	Pattern string `yaml:"pattern"`
}

// SubjectRange assigns a subject to an inclusive range of question numbers.
type SubjectRange struct {
	Subject string `yaml:"subject"`
	From    int    `yaml:"from"`
	To      int    `yaml:"to"`
}

// Rules is the immutable rule set injected into the extraction pipeline.
// Corrections and Subjects are ordered; earlier entries take priority.
type Rules struct {
	Corrections   []Correction     `yaml:"corrections"`
	Subjects      []SubjectPattern `yaml:"subjects"`
	SubjectRanges []SubjectRange   `yaml:"subject_ranges"`
	Stopwords     []string         `yaml:"stopwords"`
}

// Default returns the embedded rule set.
func Default() (*Rules, error) {
	return Parse(defaultRules)
}

// Load reads rules from path. An empty path yields the embedded defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a YAML rule document.
func Parse(raw []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks every rule for structural problems.
func (r *Rules) Validate() error {
	for i, c := range r.Corrections {
		if c.Wrong == "" {
			return fmt.Errorf("%w: correction %d has empty wrong text", ErrInvalidRules, i)
		}
	}
	for i, s := range r.Subjects {
		if s.Subject == "" || s.Pattern == "" {
			return fmt.Errorf("%w: subject pattern %d is incomplete", ErrInvalidRules, i)
		}
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("%w: subject %s: %v", ErrInvalidRules, s.Subject, err)
		}
	}
	for i, rg := range r.SubjectRanges {
		if rg.Subject == "" || rg.From < 1 || rg.To < rg.From {
			return fmt.Errorf("%w: subject range %d (%s %d-%d)", ErrInvalidRules, i, rg.Subject, rg.From, rg.To)
		}
	}
	return nil
}
