package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// maxRobotsSize limits how much of a robots.txt file is read.
const maxRobotsSize = 512 * 1024

// robotsCache stores parsed robots.txt files per scheme and host.
// Concurrent lookups of an uncached host share one download.
type robotsCache struct {
	client    *http.Client
	userAgent string

	mu    sync.RWMutex
	hosts map[string]*robotstxt.RobotsData
	group singleflight.Group
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		hosts:     make(map[string]*robotstxt.RobotsData),
	}
}

// allowed reports whether u may be fetched. A robots.txt that cannot be
// downloaded allows everything.
func (c *robotsCache) allowed(ctx context.Context, u *url.URL) bool {
	data := c.get(ctx, u)
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, c.userAgent)
}

func (c *robotsCache) get(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	c.mu.RLock()
	data, ok := c.hosts[key]
	c.mu.RUnlock()
	if ok {
		return data
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		data := c.download(ctx, key)
		c.mu.Lock()
		c.hosts[key] = data
		c.mu.Unlock()
		return data, nil
	})
	data, _ = v.(*robotstxt.RobotsData)
	return data
}

func (c *robotsCache) download(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
