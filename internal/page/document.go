package page

import "strings"

// Document is the parsed content of one HTML page.
type Document struct {
	// URL is the address the page was fetched from.
	URL string

	// Title is the text of the <title> element.
	Title string

	// MetaDescription is the content of <meta name="description">.
	MetaDescription string

	// MetaKeywords is the content of <meta name="keywords">.
	MetaKeywords string

	// Headings holds the text of every h1, h2, and h3 element in document order.
	Headings []string

	// Body is the visible text of the <body> element, whitespace-normalized.
	Body string

	// Links are the absolute http(s) targets of <a href> elements,
	// de-duplicated, in document order.
	Links []string
}

// Metadata returns the description and keywords joined by a space.
func (d *Document) Metadata() string {
	return strings.TrimSpace(d.MetaDescription + " " + d.MetaKeywords)
}

// HeadingText returns all headings joined by spaces.
func (d *Document) HeadingText() string {
	return strings.Join(d.Headings, " ")
}
