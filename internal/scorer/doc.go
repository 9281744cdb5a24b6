// Package scorer rates a parsed page against one query term.
//
// Each field of the page (metadata, title, h1 to h3 headings, body) gets a
// match count that is multiplied by the field weight, and the four weighted
// scores are handed to a classifier. Pages classified Medium keep only the
// body words near a match, so that a long page which mentions the term once
// does not flood the index with unrelated words.
package scorer
