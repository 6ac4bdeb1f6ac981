package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if len(r.Corrections) == 0 || r.Corrections[0].Wrong != "GALLS" || r.Corrections[0].Correct != "혹" {
		t.Errorf("first correction = %+v, want GALLS -> 혹", r.Corrections)
	}

	wantOrder := []string{"수목병리학", "수목해충학", "수목생리학", "수목관리학", "토양학", "산림일반"}
	if len(r.Subjects) != len(wantOrder) {
		t.Fatalf("got %d subjects, want %d", len(r.Subjects), len(wantOrder))
	}
	for i, s := range r.Subjects {
		if s.Subject != wantOrder[i] {
			t.Errorf("subject[%d] = %s, want %s", i, s.Subject, wantOrder[i])
		}
	}
	if len(r.Stopwords) == 0 {
		t.Error("expected stopwords in default rules")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty wrong", "corrections:\n  - wrong: \"\"\n    correct: x\n"},
		{"bad regex", "subjects:\n  - subject: a\n    pattern: \"(\"\n"},
		{"missing subject", "subjects:\n  - pattern: abc\n"},
		{"inverted range", "subject_ranges:\n  - subject: a\n    from: 10\n    to: 2\n"},
		{"zero range start", "subject_ranges:\n  - subject: a\n    from: 0\n    to: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidRules) {
				t.Errorf("Parse() error = %v, want ErrInvalidRules", err)
			}
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("corrections: [")); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		r, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(r.Subjects) == 0 {
			t.Error("expected default subjects")
		}
	})

	t.Run("file override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		doc := "corrections:\n  - wrong: foo\n    correct: bar\nsubjects:\n  - subject: 토양학\n    pattern: 흙\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		r, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(r.Corrections) != 1 || r.Corrections[0].Correct != "bar" {
			t.Errorf("corrections = %+v", r.Corrections)
		}
		if len(r.Subjects) != 1 || r.Subjects[0].Pattern != "흙" {
			t.Errorf("subjects = %+v", r.Subjects)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
