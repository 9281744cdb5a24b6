// Package report renders a finished crawl for people and for tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text for terminal display
//   - MarkdownWriter: a shareable document with a class distribution chart
//   - JSONWriter: the RunReport as JSON for tool integration
//
// Writers implement the Writer interface, so they can be used
// interchangeably and composed with MultiWriter.
package report
