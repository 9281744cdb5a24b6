package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/wordcrawl/internal/fetch"
	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/pipeline"
	"github.com/nao1215/wordcrawl/internal/scorer"
	"github.com/nao1215/wordcrawl/internal/seed"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "wordcrawl"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultDeadline bounds a whole crawl. A crawl that reaches it returns
	// the words harvested so far.
	DefaultDeadline = 2 * time.Minute

	// DefaultCrawlDelay spaces consecutive requests. 200ms keeps a crawl of
	// a few hundred pages polite without making it slow.
	DefaultCrawlDelay = 200 * time.Millisecond

	// DefaultUserAgent identifies wordcrawl in HTTP requests.
	DefaultUserAgent = fetch.DefaultUserAgent

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultPerHostLimit is the number of concurrent requests per host.
	DefaultPerHostLimit = fetch.DefaultPerHostLimit

	// DefaultBatchSize is the number of queries crawled at once with --batch.
	DefaultBatchSize = pipeline.DefaultConcurrency

	// DefaultHistoryLimit is the number of runs listed by the history command.
	DefaultHistoryLimit = 20
)

// Config holds all configuration options for wordcrawl.
// It is populated from defaults, the configuration file, and CLI flags, in
// that order, and passed through the application rather than kept global.
type Config struct {
	// Queries are the searches to run. One query per entry.
	Queries []string

	// Strategy, Classifier, Match, and Goal select the crawl variants.
	Strategy   model.Strategy
	Classifier model.ClassifierKind
	Match      model.MatchMode
	Goal       model.Goal

	// ResultCount is the number of ranked words reported.
	ResultCount int

	// Limits are the numeric bounds of a crawl.
	Limits model.Limits

	// Weights multiply the term matches of each page field before
	// classification.
	Weights scorer.Weights

	// MaxDistance is the largest Levenshtein distance that still counts as
	// a match with the levenshtein match mode.
	MaxDistance int

	// Window is the number of body words kept on each side of a match on
	// medium pages.
	Window int

	// Workers is the number of seed tasks run at once. 0 means one per seed.
	Workers int

	// Deadline bounds each crawl. 0 disables it.
	Deadline time.Duration

	// Timeout is the timeout of a single HTTP request.
	Timeout time.Duration

	// CrawlDelay is the minimum interval between two requests.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// 0 selects the fetcher default.
	MaxBodySize int64

	// PerHostLimit is the number of concurrent requests allowed per host.
	PerHostLimit int

	// RespectRobots enables robots.txt checks.
	RespectRobots bool

	// ProxyAddress routes requests through a SOCKS5 proxy at host:port.
	ProxyAddress string

	// Cookie is sent with every page request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string

	// Headers are extra HTTP headers sent with every page request.
	Headers map[string]string

	// SeedURLTemplate is the search listing URL. {query} is replaced by the
	// escaped query.
	SeedURLTemplate string

	// SeedSelector is the CSS selector of result links on the listing.
	SeedSelector string

	// Seeds replaces the search listing with a fixed list of start pages.
	Seeds []string

	// IgnorePatterns are URL path patterns never followed.
	IgnorePatterns []string

	// FollowPatterns restrict followed links to matching paths when set.
	FollowPatterns []string

	// StopwordsFile replaces the embedded stopword list.
	StopwordsFile string

	// FuzzyRulesFile replaces the embedded fuzzy rule base.
	FuzzyRulesFile string

	// TrainingSetFile replaces the embedded centroid training set.
	TrainingSetFile string

	// BatchSize is the number of queries crawled concurrently.
	BatchSize int

	// DBDir is the directory of the run archive.
	DBDir string

	// SaveToDB archives finished runs in DBDir.
	SaveToDB bool

	// MetricsFile receives the Prometheus metrics in text format after a run.
	// Empty disables the export.
	MetricsFile string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// ConfigFilePath is the configuration file given with --config.
	ConfigFilePath string

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	opts := model.DefaultRunOptions()
	return &Config{
		Strategy:        opts.Strategy,
		Classifier:      opts.Classifier,
		Match:           opts.Match,
		Goal:            opts.Goal,
		ResultCount:     opts.ResultCount,
		Limits:          opts.Limits,
		Weights:         scorer.DefaultWeights(),
		MaxDistance:     scorer.DefaultMaxDistance,
		Window:          scorer.DefaultWindow,
		Deadline:        DefaultDeadline,
		Timeout:         DefaultTimeout,
		CrawlDelay:      DefaultCrawlDelay,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		PerHostLimit:    DefaultPerHostLimit,
		RespectRobots:   true,
		SeedURLTemplate: seed.DefaultURLTemplate,
		SeedSelector:    seed.DefaultSelector,
		BatchSize:       DefaultBatchSize,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// RunOptions returns the crawl options described by the configuration.
func (c *Config) RunOptions() model.RunOptions {
	return model.RunOptions{
		Strategy:    c.Strategy,
		Classifier:  c.Classifier,
		Match:       c.Match,
		Goal:        c.Goal,
		ResultCount: c.ResultCount,
		Limits:      c.Limits,
	}
}

// ScorerOptions returns the scoring parameters described by the configuration.
func (c *Config) ScorerOptions() []scorer.Option {
	return []scorer.Option{
		scorer.WithWeights(c.Weights),
		scorer.WithMaxDistance(c.MaxDistance),
		scorer.WithWindow(c.Window),
	}
}

// XDGDataDir returns the XDG data directory for wordcrawl.
// On Linux: ~/.local/share/wordcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wordcrawl.
// On Linux: ~/.config/wordcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Queries) == 0 {
		return ErrNoQuery
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Deadline < 0 {
		return ErrInvalidDeadline
	}

	if c.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.PerHostLimit < 1 {
		return ErrInvalidPerHostLimit
	}

	if !validWeights(c.Weights) {
		return ErrInvalidWeights
	}

	if c.MaxDistance < 0 {
		return ErrInvalidMaxDistance
	}

	if c.Window < 0 {
		return ErrInvalidWindow
	}

	if len(c.Seeds) == 0 && !strings.Contains(c.SeedURLTemplate, "{query}") {
		return ErrInvalidSeedTemplate
	}

	if err := c.RunOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRunOptions, err)
	}

	return nil
}

// validWeights reports whether no weight is negative and at least one is
// positive. With all weights at zero every page would be classified low.
func validWeights(w scorer.Weights) bool {
	for _, v := range []float64{w.Metadata, w.Title, w.Headings, w.Body} {
		if v < 0 {
			return false
		}
	}
	return w.Metadata+w.Title+w.Headings+w.Body > 0
}
