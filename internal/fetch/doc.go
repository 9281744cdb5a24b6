// Package fetch downloads and parses the pages a crawl visits.
//
// A Client combines net/http with the politeness controls a crawler needs:
//   - a global request rate (golang.org/x/time/rate)
//   - a per-host concurrency limit (golang.org/x/sync/semaphore)
//   - robots.txt checks, cached per host and filled once through
//     golang.org/x/sync/singleflight
//   - an optional SOCKS5 proxy (golang.org/x/net/proxy)
//
// Every failure is returned as a *FetchError that matches ErrPageFetch, so
// callers can skip the page and keep crawling.
//
// # Usage
//
//	client, err := fetch.NewClient(fetch.WithUserAgent("wordcrawl/1.0"), fetch.WithRobots(true))
//	doc, err := client.Fetch(ctx, "https://example.com/")
package fetch
