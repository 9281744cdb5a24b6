// Package seed obtains the start pages of a crawl from a search-results
// listing.
//
// The listing URL is a template with a {query} placeholder. Result links are
// selected with a CSS selector through goquery. DuckDuckGo wraps result links
// in redirects of the form /l/?uddg=<target>; those are unwrapped to the
// target URL.
package seed
