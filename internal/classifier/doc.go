// Package classifier maps the four weighted field scores of a page to a
// relevance class.
//
// Two implementations are provided:
//   - Fuzzy: Mamdani inference over a YAML rule base with centroid
//     defuzzification
//   - Centroid: nearest-centroid classification in log space, trained from a
//     YAML table of labelled samples
//
// Both load embedded defaults unless a file path is given in Resources.
// Classifiers are immutable after construction and safe for concurrent use.
package classifier
