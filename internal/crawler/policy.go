package crawler

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/nao1215/wordcrawl/internal/model"
)

// Terminator decides whether a run may keep expanding.
//
// The check is not atomic with claiming a URL. A worker reads the index
// size and the visited count, and the URL it goes on to claim is added only
// after the check passed. A claim is admitted at exactly MaxVisited, and up
// to W-1 other workers can pass the same check concurrently, so with W
// workers the visited count ends at most W past MaxVisited. Seed pages are
// claimed without a check and come on top of that. The index can likewise
// grow past MaxWords by the words of every page in flight when the limit
// was reached. Holding a lock across fetch and index would serialize the
// crawl, so the overshoot is accepted.
type Terminator struct {
	MaxWords   int
	MaxVisited int
}

// NewTerminator returns a Terminator for the given limits.
func NewTerminator(limits model.Limits) Terminator {
	return Terminator{MaxWords: limits.MaxWords, MaxVisited: limits.MaxVisited}
}

// Continue reports whether the goal still allows expansion.
// GoalMaxWords holds while indexSize <= MaxWords, GoalMaxVisited while
// visitedSize <= MaxVisited.
func (t Terminator) Continue(goal model.Goal, indexSize, visitedSize int) bool {
	switch goal {
	case model.GoalMaxVisited:
		return visitedSize <= t.MaxVisited
	default:
		return indexSize <= t.MaxWords
	}
}

// LinkFilter restricts which links are followed by URL path patterns.
// The zero value follows everything.
type LinkFilter struct {
	// Ignore patterns skip matching paths (e.g. "/login*", "*.pdf").
	Ignore []string

	// Follow patterns, when set, restrict crawling to matching paths.
	Follow []string
}

// Allow reports whether link should be crawled.
// Ignore patterns are checked first, then a link must match one of the
// Follow patterns if any are set.
func (f LinkFilter) Allow(link string) bool {
	if len(f.Ignore) == 0 && len(f.Follow) == 0 {
		return true
	}

	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.Ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(f.Follow) == 0 {
		return true
	}
	for _, pattern := range f.Follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//   - "/docs/*" matches "/docs" and everything below it
//   - "*.pdf" matches any path ending in .pdf
//   - other patterns use filepath.Match, against the base name too when the
//     pattern has no slash
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
