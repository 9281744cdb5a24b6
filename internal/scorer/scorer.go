package scorer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/nao1215/wordcrawl/internal/classifier"
	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/page"
)

// ErrClassifier wraps a classifier failure. The page is then treated as Low.
var ErrClassifier = errors.New("classifier failed")

// Defaults of the scoring parameters.
const (
	DefaultMaxDistance = 3
	DefaultWindow      = 3
)

// Weights multiply the match count of each page field.
type Weights struct {
	Metadata float64
	Title    float64
	Headings float64
	Body     float64
}

// DefaultWeights returns meta 100, title 50, headings 10, body 5.
func DefaultWeights() Weights {
	return Weights{Metadata: 100, Title: 50, Headings: 10, Body: 5}
}

// FieldScores are the weighted match scores of one page for one term.
type FieldScores struct {
	Metadata float64
	Title    float64
	Headings float64
	Body     float64
}

// Scorer rates pages. It is immutable and safe for concurrent use.
type Scorer struct {
	classifier  classifier.Classifier
	match       model.MatchMode
	weights     Weights
	maxDistance int
	window      int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the field weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithMaxDistance sets the Levenshtein distance accepted as a match.
func WithMaxDistance(d int) Option {
	return func(s *Scorer) {
		s.maxDistance = d
	}
}

// WithWindow sets how many body words on each side of a match a Medium
// page keeps.
func WithWindow(n int) Option {
	return func(s *Scorer) {
		s.window = n
	}
}

// New creates a Scorer using c to classify and match to compare words.
func New(c classifier.Classifier, match model.MatchMode, opts ...Option) *Scorer {
	s := &Scorer{
		classifier:  c,
		match:       match,
		weights:     DefaultWeights(),
		maxDistance: DefaultMaxDistance,
		window:      DefaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fields returns the weighted match scores of doc for term.
func (s *Scorer) Fields(doc *page.Document, term string) FieldScores {
	term = strings.ToLower(term)
	return FieldScores{
		Metadata: float64(s.count(doc.MetaDescription, term)+s.count(doc.MetaKeywords, term)) * s.weights.Metadata,
		Title:    float64(s.count(doc.Title, term)) * s.weights.Title,
		Headings: float64(s.count(doc.HeadingText(), term)) * s.weights.Headings,
		Body:     float64(s.count(doc.Body, term)) * s.weights.Body,
	}
}

// Score classifies doc for term and returns the text to index.
// When the classifier fails, the page is returned as Low together with an
// error wrapping ErrClassifier.
func (s *Scorer) Score(doc *page.Document, term string) (model.ScoredPage, error) {
	f := s.Fields(doc, term)
	scored := model.ScoredPage{
		Metadata: doc.Metadata(),
		Title:    doc.Title,
		Headings: doc.HeadingText(),
		Body:     doc.Body,
		Class:    model.RelevanceLow,
	}

	class, err := s.classifier.Classify(f.Metadata, f.Title, f.Headings, f.Body)
	if err != nil {
		return scored, fmt.Errorf("%w: %s: %v", ErrClassifier, doc.URL, err)
	}
	// Classifiers are pluggable; a class outside the known range is a
	// classifier failure, not a reason to stop the crawl.
	if class < model.RelevanceLow || class > model.RelevanceHigh {
		return scored, fmt.Errorf("%w: %s: unknown relevance class %d", ErrClassifier, doc.URL, int(class))
	}
	scored.Class = class

	if class == model.RelevanceMedium {
		scored.Body = s.CloseWords(doc.Body, term)
	}
	return scored, nil
}

// CloseWords returns the words of text that lie within the window of any
// word matching term, in their original order. Windows are cut at the ends
// of the text.
func (s *Scorer) CloseWords(text, term string) string {
	term = strings.ToLower(term)
	words := strings.Fields(text)
	keep := make([]bool, len(words))
	for i, w := range words {
		if !s.matches(w, term) {
			continue
		}
		lo := max(0, i-s.window)
		hi := min(len(words)-1, i+s.window)
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}

	kept := make([]string, 0, len(words))
	for i, w := range words {
		if keep[i] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func (s *Scorer) count(text, term string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		if s.matches(w, term) {
			n++
		}
	}
	return n
}

// matches compares a raw page word with a lower-cased term.
func (s *Scorer) matches(word, term string) bool {
	word = trimPunct(word)
	if word == "" {
		return false
	}
	switch s.match {
	case model.MatchLevenshtein:
		return levenshtein.ComputeDistance(strings.ToLower(word), term) <= s.maxDistance
	default:
		return strings.EqualFold(word, term)
	}
}

// trimPunct removes leading and trailing characters that are neither
// letters nor digits.
func trimPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
