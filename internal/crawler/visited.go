package crawler

import (
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

// VisitedSet records every URL claimed during a run. Entries are never
// removed. It is safe for concurrent use.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
	size atomic.Int64
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Add claims pageURL. It returns false when the canonical form of the URL
// was already claimed.
func (v *VisitedSet) Add(pageURL string) bool {
	key := normalizeURL(pageURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[key]; ok {
		return false
	}
	v.urls[key] = struct{}{}
	v.size.Add(1)
	return true
}

// Contains reports whether pageURL was claimed.
func (v *VisitedSet) Contains(pageURL string) bool {
	key := normalizeURL(pageURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[key]
	return ok
}

// Len returns the number of claimed URLs without taking the lock.
func (v *VisitedSet) Len() int {
	return int(v.size.Load())
}

// normalizeURL returns the canonical form used for membership.
// The fragment is dropped, scheme and host are lower-cased, and an empty
// path becomes "/".
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
