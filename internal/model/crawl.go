package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RelevanceClass is the classifier's verdict on a page for one query term.
// The numeric values are ordered: Low < Medium < High.
type RelevanceClass int

const (
	// RelevanceLow marks a page that is not indexed and not expanded.
	RelevanceLow RelevanceClass = iota

	// RelevanceMedium marks a page whose text near the term is indexed.
	RelevanceMedium

	// RelevanceHigh marks a page whose full text is indexed.
	RelevanceHigh
)

// String returns a human-readable representation of the class.
func (c RelevanceClass) String() string {
	switch c {
	case RelevanceLow:
		return "low"
	case RelevanceMedium:
		return "medium"
	case RelevanceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// IsRelevant reports whether the class is Medium or better.
func (c RelevanceClass) IsRelevant() bool {
	return c >= RelevanceMedium
}

// ParseRelevanceClass converts a name or its numeric value into a class.
func ParseRelevanceClass(s string) (RelevanceClass, error) {
	switch normalizeVariant(s) {
	case "low", "0":
		return RelevanceLow, nil
	case "medium", "1":
		return RelevanceMedium, nil
	case "high", "2":
		return RelevanceHigh, nil
	default:
		return 0, fmt.Errorf("%w: relevance class %q", ErrUnknownVariant, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c RelevanceClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *RelevanceClass) UnmarshalText(text []byte) error {
	v, err := ParseRelevanceClass(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// RelevanceClasses lists every class from lowest to highest.
func RelevanceClasses() []RelevanceClass {
	return []RelevanceClass{RelevanceLow, RelevanceMedium, RelevanceHigh}
}

// ScoredPage is the text of a page extracted for one term, together with the
// class the classifier assigned to it.
type ScoredPage struct {
	// Metadata is the meta description and keywords.
	Metadata string

	// Title is the <title> text.
	Title string

	// Headings is the text of h1 to h3 elements.
	Headings string

	// Body is the body text, or only the words near the term for Medium pages.
	Body string

	// Class is the relevance verdict.
	Class RelevanceClass
}

// Texts returns the four text fields in the order they are indexed.
func (p ScoredPage) Texts() []string {
	return []string{p.Metadata, p.Title, p.Headings, p.Body}
}

// CrawlNode is a fetched page as seen by a search strategy.
type CrawlNode struct {
	// URL is the page address.
	URL string

	// Links are the absolute outgoing links in document order.
	Links []string

	// Class is the best class the page received across all query terms.
	Class RelevanceClass

	// Depth is the distance from the seed, 0 for the seed itself.
	Depth int
}

// RankedWord is one entry of the harvested word list.
type RankedWord struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// RunReport is the outcome of one crawl.
type RunReport struct {
	// ID uniquely identifies the run in the history archive.
	ID string `json:"id"`

	// Query is the searched query.
	Query Query `json:"query"`

	// Options are the options the crawl ran with.
	Options RunOptions `json:"options"`

	// Seeds are the start pages obtained from the search listing.
	Seeds []string `json:"seeds"`

	// Words are the most frequent indexed words, highest count first.
	Words []RankedWord `json:"words"`

	// IndexSize is the number of distinct words in the index when harvested.
	IndexSize int `json:"index_size"`

	// PagesVisited is the number of claimed URLs.
	PagesVisited int `json:"pages_visited"`

	// PagesIndexed is the number of relevant pages whose text was indexed.
	PagesIndexed int `json:"pages_indexed"`

	// ClassCounts counts evaluated pages per relevance class.
	ClassCounts map[RelevanceClass]int `json:"class_counts"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the wall-clock duration of the crawl.
	Elapsed time.Duration `json:"elapsed"`

	// TimedOut is true when the deadline ended the crawl before its goal.
	TimedOut bool `json:"timed_out"`

	// Error holds the failure message of a crawl that produced no results.
	Error string `json:"error,omitempty"`
}

// NewRunReport creates an empty report for the given query and options.
func NewRunReport(id string, query Query, opts RunOptions) *RunReport {
	return &RunReport{
		ID:          id,
		Query:       query,
		Options:     opts,
		Seeds:       make([]string, 0),
		Words:       make([]RankedWord, 0),
		ClassCounts: make(map[RelevanceClass]int),
		StartedAt:   time.Now(),
	}
}

// HasResults reports whether any word was harvested.
func (r *RunReport) HasResults() bool {
	return len(r.Words) > 0
}

// Failed reports whether the crawl ended with an error.
func (r *RunReport) Failed() bool {
	return r.Error != ""
}

// Summary returns a one-line description of the run.
func (r *RunReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q: %d words from %d pages (%d visited)",
		r.Query.String(), len(r.Words), r.PagesIndexed, r.PagesVisited)
	if r.TimedOut {
		b.WriteString(", timed out")
	}
	return b.String()
}

// ErrEmptyQuery is returned when a query has no terms.
var ErrEmptyQuery = errors.New("query has no terms")
