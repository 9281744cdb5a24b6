// Package main provides the entry point for the wordcrawl CLI.
//
// wordcrawl searches the web for a query, crawls outward from the result
// pages while a relevance classifier decides which pages are worth reading,
// and reports the most frequent words of the relevant pages.
//
// Usage:
//
//	wordcrawl search <query>
//	wordcrawl search --batch <file>
//	wordcrawl history [query]
//	wordcrawl compare <run-id> <run-id>
//
// See --help for all available options.
package main

// main is the entry point for wordcrawl.
func main() {
	Execute()
}
