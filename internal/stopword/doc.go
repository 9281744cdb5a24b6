// Package stopword loads the set of words the result index never counts.
//
// A list is plain text with one word per line. Blank lines and lines starting
// with '#' are ignored, and words are lower-cased on load.
package stopword
