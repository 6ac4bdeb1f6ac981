package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/stemsi/examkb/internal/model"
)

var firstNumber = regexp.MustCompile(`\d+`)

// yearFromName takes the exam year from the first number in a file's base
// name, so "2019.md" and "제7회_기출.md" map to 2019 and 7.
func yearFromName(path string) (int, bool) {
	m := firstNumber.FindString(filepath.Base(path))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// discoverSources lists the files in dir matching pattern, sorted by name.
// With year > 0 every file is filed under that year.
func discoverSources(dir, pattern string, year, round int, variant string) ([]model.Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	sort.Strings(paths)

	sources := make([]model.Source, 0, len(paths))
	for _, p := range paths {
		if fi, err := os.Stat(p); err != nil || fi.IsDir() {
			continue
		}
		y := year
		if y <= 0 {
			var ok bool
			if y, ok = yearFromName(p); !ok {
				return nil, fmt.Errorf("cannot infer exam year from %s; pass --year", filepath.Base(p))
			}
		}
		sources = append(sources, model.Source{
			ExamYear:  y,
			ExamRound: round,
			Name:      filepath.Base(p),
			Path:      p,
			Variant:   variant,
		})
	}
	return sources, nil
}
