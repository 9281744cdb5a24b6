// Package model defines the data structures shared by the wordcrawl packages.
//
// This package contains the following main types:
//   - Query: The lower-cased search terms of one crawl
//   - RunOptions: The resolved, read-only options of one crawl
//   - CrawlNode and ScoredPage: Per-page results of fetching and scoring
//   - RankedWord and RunReport: The harvested word frequencies of a crawl
//
// Every other package depends on model, and model depends on nothing inside
// the module, which keeps the import graph acyclic.
package model
