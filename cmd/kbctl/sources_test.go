package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestYearFromName(t *testing.T) {
	tests := []struct {
		path string
		want int
		ok   bool
	}{
		{"2019.md", 2019, true},
		{"/data/제7회_기출.md", 7, true},
		{"exam_12_round2.md", 12, true},
		{"notes.md", 0, false},
		{"000.md", 0, false},
	}
	for _, tt := range tests {
		got, ok := yearFromName(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("yearFromName(%q) = %d, %v; want %d, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDiscoverSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"제8회.md", "제7회.md", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "9.md"), 0o700); err != nil {
		t.Fatal(err)
	}

	got, err := discoverSources(dir, "*.md", 0, 0, "numbered")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sources: %+v", len(got), got)
	}
	if got[0].ExamYear != 7 || got[1].ExamYear != 8 || got[0].Variant != "numbered" || got[0].Name != "제7회.md" {
		t.Errorf("sources = %+v", got)
	}

	fixed, err := discoverSources(dir, "*.md", 2020, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range fixed {
		if s.ExamYear != 2020 || s.ExamRound != 2 {
			t.Errorf("source = %+v, want year 2020 round 2", s)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := discoverSources(dir, "*.md", 0, 0, ""); err == nil {
		t.Error("expected error for a file without a year")
	}
	if _, err := discoverSources(filepath.Join(dir, "missing"), "*.md", 0, 0, ""); err == nil {
		t.Error("expected error for a missing directory")
	}
}
