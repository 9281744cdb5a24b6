package crawler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/wordcrawl/internal/index"
	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/page"
)

// Fetcher downloads and parses one page.
// Errors are per-node: the node is skipped and the crawl continues.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*page.Document, error)
}

// PageScorer rates a page against one query term.
// On error the returned page must still carry a usable class (Low).
type PageScorer interface {
	Score(doc *page.Document, term string) (model.ScoredPage, error)
}

// Observer receives crawl events. *metrics.Metrics implements it.
type Observer interface {
	ObserveFetch(d time.Duration, err error)
	ObserveClass(class model.RelevanceClass)
	ObserveRun(report *model.RunReport)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(time.Duration, error) {}
func (nopObserver) ObserveClass(model.RelevanceClass) {}
func (nopObserver) ObserveRun(*model.RunReport)       {}

// runState is the state shared by every strategy task of one run.
type runState struct {
	fetcher    Fetcher
	scorer     PageScorer
	index      *index.WordIndex
	visited    *VisitedSet
	terms      []string
	goal       model.Goal
	terminator Terminator
	filter     LinkFilter
	observer   Observer
	logger     *slog.Logger

	mu           sync.Mutex
	fingerprints map[[32]byte]struct{}

	indexed     atomic.Int64
	classCounts [3]atomic.Int64
}

// proceed reports whether the termination policy still holds.
func (s *runState) proceed() bool {
	return s.terminator.Continue(s.goal, s.index.Size(), s.visited.Len())
}

// visit claims pageURL and evaluates it. It returns false when the URL is
// filtered, already claimed, could not be fetched, or is not relevant.
func (s *runState) visit(ctx context.Context, pageURL string, depth int) (model.CrawlNode, bool) {
	if !s.filter.Allow(pageURL) || !s.visited.Add(pageURL) {
		return model.CrawlNode{}, false
	}
	return s.evaluate(ctx, pageURL, depth)
}

// evaluate fetches pageURL, scores it for every term, and indexes it once
// when any term finds it relevant.
func (s *runState) evaluate(ctx context.Context, pageURL string, depth int) (model.CrawlNode, bool) {
	start := time.Now()
	doc, err := s.fetcher.Fetch(ctx, pageURL)
	s.observer.ObserveFetch(time.Since(start), err)
	if err != nil {
		s.logger.Debug("page skipped", "url", pageURL, "error", err)
		return model.CrawlNode{}, false
	}

	var best *model.ScoredPage
	for _, term := range s.terms {
		scored, err := s.scorer.Score(doc, term)
		if err != nil {
			s.logger.Debug("classifier failed, treating page as low", "url", pageURL, "term", term, "error", err)
		}
		// An unknown class from a custom scorer is treated as low.
		if err != nil || scored.Class > model.RelevanceHigh || !scored.Class.IsRelevant() {
			continue
		}
		if best == nil || scored.Class > best.Class {
			best = &scored
		}
	}

	class := model.RelevanceLow
	if best != nil {
		class = best.Class
	}
	s.classCounts[class].Add(1)
	s.observer.ObserveClass(class)
	s.logger.Debug("page evaluated", "url", pageURL, "class", class.String(), "depth", depth)

	if best == nil {
		return model.CrawlNode{}, false
	}

	if s.firstSeen(doc) {
		s.index.Index(s.terms, best.Texts()...)
		s.indexed.Add(1)
	} else {
		s.logger.Debug("duplicate content not indexed", "url", pageURL)
	}

	return model.CrawlNode{
		URL:   pageURL,
		Links: doc.Links,
		Class: class,
		Depth: depth,
	}, true
}

// firstSeen records the content fingerprint of doc and reports whether it
// is new. Pages served under several URLs are indexed only once.
func (s *runState) firstSeen(doc *page.Document) bool {
	h := sha3.New256()
	for _, field := range []string{doc.Metadata(), doc.Title, doc.HeadingText(), doc.Body} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	var sum [32]byte
	h.Sum(sum[:0])

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fingerprints[sum]; ok {
		return false
	}
	s.fingerprints[sum] = struct{}{}
	return true
}

// counts returns the number of evaluated pages per class.
func (s *runState) counts() map[model.RelevanceClass]int {
	out := make(map[model.RelevanceClass]int, len(s.classCounts))
	for _, class := range model.RelevanceClasses() {
		out[class] = int(s.classCounts[class].Load())
	}
	return out
}
