package stopword

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed english.txt
var englishList string

// Set is a read-only set of lower-cased stopwords.
// A Set is safe for concurrent use once loaded.
type Set struct {
	words map[string]struct{}
}

// New returns a Set containing the given words.
func New(words ...string) *Set {
	s := &Set{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		s.add(w)
	}
	return s
}

// Default returns the embedded English stopword list.
func Default() *Set {
	s, err := Load(strings.NewReader(englishList))
	if err != nil {
		// The embedded list is a plain string and cannot fail to scan.
		panic(fmt.Sprintf("stopword: embedded list: %v", err))
	}
	return s
}

// Load reads a newline-delimited stopword list.
func Load(r io.Reader) (*Set, error) {
	s := New()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stopword list: %w", err)
	}
	return s, nil
}

// LoadFile reads a stopword list from path.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open stopword list: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Contains reports whether word is a stopword. The lookup is case-insensitive.
func (s *Set) Contains(word string) bool {
	if s == nil {
		return false
	}
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

// Len returns the number of stopwords.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}

func (s *Set) add(word string) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w != "" {
		s.words[w] = struct{}{}
	}
}
