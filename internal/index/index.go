package index

import (
	"cmp"
	"hash/maphash"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/stopword"
)

// shardCount is the number of independently locked maps.
const shardCount = 32

// minWordLength is the shortest word that is counted.
const minWordLength = 2

// WordIndex maps words to occurrence counts.
//
// Counts live in shardCount maps, each behind its own mutex, chosen by a
// maphash of the word. Every crawl worker indexes whole pages, so a single
// map lock would be taken thousands of times per page by every worker. The
// number of distinct words is kept in an atomic counter that is incremented
// when a word is first seen; the termination check reads it on every claim
// and must not contend with writers. TopK locks one shard at a time, so its
// result is a consistent snapshot only once writers have stopped.
type WordIndex struct {
	shards    [shardCount]shard
	seed      maphash.Seed
	size      atomic.Int64
	stopwords *stopword.Set
}

type shard struct {
	mu     sync.Mutex
	counts map[string]int
}

// New creates an empty index that ignores the given stopwords.
// A nil set ignores no stopwords.
func New(stopwords *stopword.Set) *WordIndex {
	idx := &WordIndex{
		seed:      maphash.MakeSeed(),
		stopwords: stopwords,
	}
	for i := range idx.shards {
		idx.shards[i].counts = make(map[string]int)
	}
	return idx
}

// Index tokenizes each text and increments the count of every surviving word.
// Words equal to one of terms are skipped.
func (idx *WordIndex) Index(terms []string, texts ...string) {
	for _, text := range texts {
		for _, word := range Tokenize(text) {
			if idx.skip(word, terms) {
				continue
			}
			idx.increment(word)
		}
	}
}

func (idx *WordIndex) skip(word string, terms []string) bool {
	if len([]rune(word)) < minWordLength {
		return true
	}
	if slices.Contains(terms, word) {
		return true
	}
	return idx.stopwords.Contains(word)
}

func (idx *WordIndex) increment(word string) {
	s := idx.shardFor(word)
	s.mu.Lock()
	n := s.counts[word]
	s.counts[word] = n + 1
	if n == 0 {
		idx.size.Add(1)
	}
	s.mu.Unlock()
}

func (idx *WordIndex) shardFor(word string) *shard {
	return &idx.shards[maphash.String(idx.seed, word)%shardCount]
}

// Size returns the number of distinct words. It reads an atomic counter and
// does not take any shard lock.
func (idx *WordIndex) Size() int {
	return int(idx.size.Load())
}

// Count returns the count of word, 0 if it was never indexed.
func (idx *WordIndex) Count(word string) int {
	s := idx.shardFor(word)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[word]
}

// TopK returns at most k words ordered by descending count.
// Words with equal counts are ordered alphabetically.
func (idx *WordIndex) TopK(k int) []model.RankedWord {
	if k <= 0 {
		return []model.RankedWord{}
	}

	all := make([]model.RankedWord, 0, idx.Size())
	for i := range idx.shards {
		s := &idx.shards[i]
		s.mu.Lock()
		for w, c := range s.counts {
			all = append(all, model.RankedWord{Word: w, Count: c})
		}
		s.mu.Unlock()
	}

	slices.SortFunc(all, func(a, b model.RankedWord) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Word, b.Word)
	})

	if len(all) > k {
		all = all[:k]
	}
	return all
}

// Tokenize removes every character that is neither a letter nor whitespace,
// lower-cases the result, and splits it on whitespace.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, text)
	return strings.Fields(cleaned)
}
