// Package index provides the concurrent word-frequency index a crawl fills.
//
// Words are counted per distinct lower-cased token. Query terms, stopwords,
// and tokens shorter than two letters are never counted. Increments from any
// number of goroutines are linearizable, and Size never blocks writers.
package index
