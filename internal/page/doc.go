// Package page parses HTML into the fields the scorer weighs: title, meta
// description and keywords, h1 to h3 headings, body text, and outgoing links.
//
// Parsing is lenient. Malformed markup never fails a page; a field that
// cannot be found is left empty.
package page
