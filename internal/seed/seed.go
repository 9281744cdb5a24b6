package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Defaults for the DuckDuckGo HTML endpoint.
const (
	DefaultURLTemplate = "https://html.duckduckgo.com/html/?q={query}"
	DefaultSelector    = "#links .results_links .links_main a"
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	queryPlaceholder   = "{query}"
	maxListingSize     = 2 * 1024 * 1024
)

// Seed errors. Either one ends the crawl without results.
var (
	// ErrSeedFetch is returned when the listing cannot be downloaded or parsed.
	ErrSeedFetch = errors.New("failed to fetch seed listing")

	// ErrNoSeeds is returned when the listing contains no usable result links.
	ErrNoSeeds = errors.New("seed listing has no results")
)

// SeedError describes a failed seed lookup.
type SeedError struct {
	// Query is the query the listing was requested for.
	Query string

	// Err is ErrNoSeeds or the cause of the fetch failure.
	Err error
}

// Error implements error.
func (e *SeedError) Error() string {
	return fmt.Sprintf("seeds for %q: %v", e.Query, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SeedError) Unwrap() error {
	return e.Err
}

// Is makes every SeedError match ErrSeedFetch.
func (e *SeedError) Is(target error) bool {
	return target == ErrSeedFetch
}

// Source returns up to limit seed URLs for a query.
type Source interface {
	Seeds(ctx context.Context, query string, limit int) ([]string, error)
}

// Listing is a Source backed by a search-results page.
type Listing struct {
	client      *http.Client
	urlTemplate string
	selector    string
	userAgent   string
	logger      *slog.Logger
}

// ListingOption configures a Listing.
type ListingOption func(*Listing)

// WithURLTemplate sets the listing URL template. It must contain {query}.
func WithURLTemplate(template string) ListingOption {
	return func(l *Listing) {
		l.urlTemplate = template
	}
}

// WithSelector sets the CSS selector of result links.
func WithSelector(selector string) ListingOption {
	return func(l *Listing) {
		l.selector = selector
	}
}

// WithUserAgent sets the User-Agent of listing requests.
func WithUserAgent(ua string) ListingOption {
	return func(l *Listing) {
		l.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ListingOption {
	return func(l *Listing) {
		l.logger = logger
	}
}

// NewListing creates a Listing that downloads with client.
// A nil client uses http.DefaultClient.
func NewListing(client *http.Client, opts ...ListingOption) *Listing {
	if client == nil {
		client = http.DefaultClient
	}
	l := &Listing{
		client:      client,
		urlTemplate: DefaultURLTemplate,
		selector:    DefaultSelector,
		userAgent:   DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// ListingURL returns the listing address for query.
func (l *Listing) ListingURL(query string) string {
	return strings.ReplaceAll(l.urlTemplate, queryPlaceholder, url.QueryEscape(query))
}

// Seeds implements Source.
func (l *Listing) Seeds(ctx context.Context, query string, limit int) ([]string, error) {
	listingURL := l.ListingURL(query)
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, &SeedError{Query: query, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, &SeedError{Query: query, Err: err}
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &SeedError{Query: query, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SeedError{Query: query, Err: fmt.Errorf("listing returned status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxListingSize))
	if err != nil {
		return nil, &SeedError{Query: query, Err: err}
	}

	seeds := Extract(doc, base, l.selector, limit)
	if len(seeds) == 0 {
		return nil, &SeedError{Query: query, Err: ErrNoSeeds}
	}
	l.logger.Info("obtained seeds", "query", query, "count", len(seeds))
	return seeds, nil
}

// Extract returns up to limit distinct http(s) result links matched by
// selector, in document order.
func Extract(doc *goquery.Document, base *url.URL, selector string, limit int) []string {
	seeds := make([]string, 0, limit)
	seen := make(map[string]bool)

	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(seeds) >= limit {
			return false
		}
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		target := resolveResultLink(base, href)
		if target == "" || seen[target] {
			return true
		}
		seen[target] = true
		seeds = append(seeds, target)
		return len(seeds) < limit
	})
	return seeds
}

// resolveResultLink resolves href against base and unwraps redirect links
// that carry the target in a uddg parameter.
func resolveResultLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)

	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Path, "/l/") {
		t, err := url.Parse(target)
		if err != nil {
			return ""
		}
		u = t
	}

	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// Static is a Source that always returns the same URLs.
type Static []string

// Seeds implements Source.
func (s Static) Seeds(_ context.Context, query string, limit int) ([]string, error) {
	if len(s) == 0 {
		return nil, &SeedError{Query: query, Err: ErrNoSeeds}
	}
	if limit < len(s) {
		return append([]string(nil), s[:limit]...), nil
	}
	return append([]string(nil), s...), nil
}
