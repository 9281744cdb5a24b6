package page

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// skippedElements hold text that is never shown to a reader.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Parse reads HTML from r and extracts a Document.
// Relative links are resolved against baseURL.
func Parse(baseURL string, r io.Reader) (*Document, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := &parser{
		base:      base,
		doc:       &Document{URL: baseURL, Headings: make([]string, 0), Links: make([]string, 0)},
		seenLinks: make(map[string]bool),
	}
	p.walk(root, false)
	p.doc.Body = normalizeSpace(p.body.String())
	return p.doc, nil
}

type parser struct {
	base      *url.URL
	doc       *Document
	body      strings.Builder
	seenLinks map[string]bool
}

func (p *parser) walk(n *html.Node, inBody bool) {
	switch n.Type {
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
		switch n.Data {
		case "body":
			inBody = true
		case "title":
			if p.doc.Title == "" {
				p.doc.Title = normalizeSpace(textContent(n))
			}
			return
		case "meta":
			p.processMeta(n)
		case "h1", "h2", "h3":
			if text := normalizeSpace(textContent(n)); text != "" {
				p.doc.Headings = append(p.doc.Headings, text)
			}
		case "a":
			p.addLink(getAttr(n, "href"))
		}
	case html.TextNode:
		if inBody {
			p.body.WriteString(n.Data)
			p.body.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, inBody)
	}
}

func (p *parser) processMeta(n *html.Node) {
	content := strings.TrimSpace(getAttr(n, "content"))
	if content == "" {
		return
	}
	switch strings.ToLower(getAttr(n, "name")) {
	case "description":
		if p.doc.MetaDescription == "" {
			p.doc.MetaDescription = content
		}
	case "keywords":
		if p.doc.MetaKeywords == "" {
			p.doc.MetaKeywords = content
		}
	}
}

func (p *parser) addLink(href string) {
	resolved := ResolveURL(p.base, href)
	if resolved == "" || p.seenLinks[resolved] {
		return
	}
	p.seenLinks[resolved] = true
	p.doc.Links = append(p.doc.Links, resolved)
}

// ResolveURL resolves href against base and returns an absolute http(s) URL
// without fragment, or "" when href is not a crawlable link.
func ResolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// textContent returns the concatenated text below n, skipping script-like elements.
func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
