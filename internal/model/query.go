package model

import "strings"

// Query is the set of terms a crawl searches for.
// Terms are lower-cased and never empty strings.
type Query struct {
	// Raw is the query exactly as the user entered it.
	Raw string `json:"raw"`

	// Terms are the whitespace-separated, lower-cased words of Raw.
	Terms []string `json:"terms"`
}

// NewQuery splits raw on whitespace and lower-cases every term.
func NewQuery(raw string) Query {
	fields := strings.Fields(raw)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, strings.ToLower(f))
	}
	return Query{Raw: raw, Terms: terms}
}

// IsEmpty reports whether the query has no terms.
func (q Query) IsEmpty() bool {
	return len(q.Terms) == 0
}

// String returns the terms joined by single spaces.
func (q Query) String() string {
	return strings.Join(q.Terms, " ")
}
