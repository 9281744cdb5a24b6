package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/nao1215/wordcrawl/internal/page"
)

// Default client settings.
const (
	DefaultUserAgent    = "wordcrawl/1.0 (+https://github.com/nao1215/wordcrawl)"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodySize  = 5 * 1024 * 1024
	DefaultPerHostLimit = 2
)

// Client fetches pages over HTTP and parses them into documents.
// A Client is safe for concurrent use.
type Client struct {
	// httpClient performs the requests.
	httpClient *http.Client

	// userAgent is sent with every request and used for robots.txt rules.
	userAgent string

	// maxBodySize limits how many bytes of a response body are read.
	maxBodySize int64

	// limiter spaces requests across all hosts. nil means unlimited.
	limiter *rate.Limiter

	// perHostLimit is the number of concurrent requests allowed per host.
	perHostLimit int64

	// hostSems holds one semaphore per host.
	hostSems map[string]*semaphore.Weighted
	mu       sync.Mutex

	// robots is nil when robots.txt is ignored.
	robots *robotsCache

	logger *slog.Logger
}

// clientConfig collects option values before the Client is built.
type clientConfig struct {
	httpClient   *http.Client
	userAgent    string
	timeout      time.Duration
	maxBodySize  int64
	crawlDelay   time.Duration
	perHostLimit int
	respectRobot bool
	proxyAddress string
	cookie       string
	headers      map[string]string
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

// WithHTTPClient uses an existing HTTP client instead of building one.
// Proxy, timeout, cookie, and header options are ignored in that case.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cfg *clientConfig) {
		cfg.userAgent = ua
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.timeout = d
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
func WithMaxBodySize(n int64) Option {
	return func(cfg *clientConfig) {
		cfg.maxBodySize = n
	}
}

// WithCrawlDelay sets the minimum interval between two requests.
// Zero disables rate limiting.
func WithCrawlDelay(d time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.crawlDelay = d
	}
}

// WithPerHostLimit sets how many requests may run against one host at a time.
func WithPerHostLimit(n int) Option {
	return func(cfg *clientConfig) {
		cfg.perHostLimit = n
	}
}

// WithRobots enables robots.txt checks.
func WithRobots(respect bool) Option {
	return func(cfg *clientConfig) {
		cfg.respectRobot = respect
	}
}

// WithProxy routes requests through a SOCKS5 proxy at host:port.
func WithProxy(address string) Option {
	return func(cfg *clientConfig) {
		cfg.proxyAddress = address
	}
}

// WithCookie sends a raw Cookie header with every request.
func WithCookie(cookie string) Option {
	return func(cfg *clientConfig) {
		cfg.cookie = cookie
	}
}

// WithHeaders sends extra headers with every request.
func WithHeaders(headers map[string]string) Option {
	return func(cfg *clientConfig) {
		cfg.headers = headers
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		userAgent:    DefaultUserAgent,
		timeout:      DefaultTimeout,
		maxBodySize:  DefaultMaxBodySize,
		perHostLimit: DefaultPerHostLimit,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.perHostLimit < 1 {
		cfg.perHostLimit = 1
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		transport, err := newTransport(cfg.proxyAddress)
		if err != nil {
			return nil, err
		}
		httpClient = newHTTPClient(transport, cfg.timeout, cfg.cookie, cfg.headers)
	}

	c := &Client{
		httpClient:   httpClient,
		userAgent:    cfg.userAgent,
		maxBodySize:  cfg.maxBodySize,
		perHostLimit: int64(cfg.perHostLimit),
		hostSems:     make(map[string]*semaphore.Weighted),
		logger:       cfg.logger,
	}
	if cfg.crawlDelay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.crawlDelay), 1)
	}
	if cfg.respectRobot {
		c.robots = newRobotsCache(httpClient, cfg.userAgent)
	}
	return c, nil
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// UserAgent returns the User-Agent the client sends.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Fetch downloads pageURL and parses it. Every error is a *FetchError.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*page.Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)}
	}

	if c.robots != nil && !c.robots.allowed(ctx, u) {
		return nil, &FetchError{URL: pageURL, Err: ErrRobotsDisallowed}
	}

	release, err := c.acquire(ctx, u.Host)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer release()

	body, finalURL, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := page.Parse(finalURL, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	c.logger.Debug("fetched page", "url", pageURL, "bytes", len(body), "links", len(doc.Links))
	return doc, nil
}

// acquire waits for the rate limiter and a per-host slot.
func (c *Client) acquire(ctx context.Context, host string) (func(), error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	sem := c.hostSemaphore(host)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

func (c *Client) hostSemaphore(host string) *semaphore.Weighted {
	host = strings.ToLower(host)
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.hostSems[host]
	if !ok {
		sem = semaphore.NewWeighted(c.perHostLimit)
		c.hostSems[host] = sem
	}
	return sem
}

// get performs the request and returns the body and the final URL after redirects.
func (c *Client) get(ctx context.Context, pageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", &FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return nil, "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: ErrNotHTML}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, "", &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return body, finalURL, nil
}

// isHTML reports whether a Content-Type is HTML. A missing type is accepted.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
