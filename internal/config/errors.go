package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while still getting a human-readable message.
var (
	// ErrNoQuery is returned when neither a positional query nor --batch
	// provides something to search for.
	ErrNoQuery = errors.New("no query specified: provide search terms or use --batch")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDeadline is returned when the crawl deadline is negative.
	// Zero disables the deadline.
	ErrInvalidDeadline = errors.New("invalid deadline: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is negative.
	// Zero selects one worker per seed.
	ErrInvalidWorkers = errors.New("invalid workers: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch concurrency is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidPerHostLimit is returned when fewer than one request per host
	// would be allowed.
	ErrInvalidPerHostLimit = errors.New("invalid per-host limit: must be at least 1")

	// ErrInvalidWeights is returned when a field weight is negative or all
	// weights are zero.
	ErrInvalidWeights = errors.New("invalid field weights: must be non-negative and not all zero")

	// ErrInvalidMaxDistance is returned when the Levenshtein threshold is negative.
	ErrInvalidMaxDistance = errors.New("invalid max distance: must be non-negative")

	// ErrInvalidWindow is returned when the close-word window is negative.
	// Zero keeps only the matching words themselves.
	ErrInvalidWindow = errors.New("invalid window: must be non-negative")

	// ErrInvalidSeedTemplate is returned when the listing URL template has no
	// {query} placeholder and no static seeds are configured.
	ErrInvalidSeedTemplate = errors.New("invalid seed URL template: must contain {query}")

	// ErrInvalidRunOptions wraps a failure of the crawl options themselves.
	ErrInvalidRunOptions = errors.New("invalid run options")
)
