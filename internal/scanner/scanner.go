// Package scanner lists the note files that are candidates for indexing.
package scanner

import (
	"fmt"
	"strings"

	"github.com/starford/almanac/internal/storage"
)

// DefaultExclude lists the path substrings skipped when none are configured.
var DefaultExclude = []string{"templates/", ".zk/"}

// Scanner walks a notes directory and filters out excluded paths.
type Scanner struct {
	store   storage.Provider
	exclude []string
}

// New creates a Scanner. A nil exclude list means DefaultExclude.
func New(store storage.Provider, exclude []string) *Scanner {
	if exclude == nil {
		exclude = DefaultExclude
	}
	return &Scanner{store: store, exclude: exclude}
}

// Scan returns every .md path under the root that contains none of the
// exclusion substrings, in lexicographic order.
func (s *Scanner) Scan() ([]string, error) {
	paths, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	out := paths[:0]
	for _, p := range paths {
		if !s.Excluded(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Excluded reports whether path matches an exclusion substring.
func (s *Scanner) Excluded(path string) bool {
	for _, ex := range s.exclude {
		if ex != "" && strings.Contains(path, ex) {
			return true
		}
	}
	return false
}
