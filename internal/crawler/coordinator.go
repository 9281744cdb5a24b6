package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/wordcrawl/internal/index"
	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/seed"
	"github.com/nao1215/wordcrawl/internal/stopword"
)

// ErrNoSeeds is returned by Run when no seed page could be obtained.
// It is the only condition that ends a crawl without results.
var ErrNoSeeds = errors.New("no seed pages for query")

// Coordinator runs crawls. A Coordinator holds no per-run state and may run
// several queries concurrently; each Run builds a fresh index, VisitedSet,
// and frontier.
type Coordinator struct {
	seeds     seed.Source
	fetcher   Fetcher
	scorer    PageScorer
	options   model.RunOptions
	stopwords *stopword.Set
	workers   int
	deadline  time.Duration
	filter    LinkFilter
	observer  Observer
	logger    *slog.Logger
	newID     func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStopwords sets the words the index discards.
func WithStopwords(set *stopword.Set) Option {
	return func(c *Coordinator) {
		c.stopwords = set
	}
}

// WithWorkers bounds the number of seed tasks running at once.
// The default runs every seed concurrently.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		c.workers = n
	}
}

// WithDeadline bounds the duration of a run. When it expires, Run returns
// whatever the index holds with TimedOut set. Zero means no deadline.
func WithDeadline(d time.Duration) Option {
	return func(c *Coordinator) {
		c.deadline = d
	}
}

// WithLinkFilter restricts which links are followed.
func WithLinkFilter(f LinkFilter) Option {
	return func(c *Coordinator) {
		c.filter = f
	}
}

// WithObserver sets the receiver of crawl events.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIDGenerator overrides how run IDs are created.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewCoordinator creates a Coordinator. opts is validated once and shared
// read-only by every run.
func NewCoordinator(source seed.Source, fetcher Fetcher, scorer PageScorer, opts model.RunOptions, options ...Option) (*Coordinator, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run options: %w", err)
	}

	c := &Coordinator{
		seeds:     source,
		fetcher:   fetcher,
		scorer:    scorer,
		options:   opts,
		stopwords: stopword.Default(),
		workers:   opts.Limits.BranchingFactor,
		observer:  nopObserver{},
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	return c, nil
}

// Options returns the run options.
func (c *Coordinator) Options() model.RunOptions {
	return c.options
}

// Run crawls for query and returns the harvested words.
//
// A failure to obtain seeds returns the report with Error set together with
// an error wrapping ErrNoSeeds. Page-level failures never end the run. When
// the deadline expires or ctx is cancelled, the partial result is returned
// with TimedOut set and a nil error.
func (c *Coordinator) Run(ctx context.Context, query model.Query) (*model.RunReport, error) {
	if query.IsEmpty() {
		return nil, model.ErrEmptyQuery
	}
	report := model.NewRunReport(c.newID(), query, c.options)
	return report, c.Crawl(ctx, report)
}

// Crawl runs the crawl described by report.Query and fills report in place.
// Options are overwritten with the Coordinator's options.
func (c *Coordinator) Crawl(ctx context.Context, report *model.RunReport) error {
	query := report.Query
	if query.IsEmpty() {
		report.Error = model.ErrEmptyQuery.Error()
		return model.ErrEmptyQuery
	}
	report.Options = c.options
	logger := c.logger.With("run_id", report.ID, "query", query.String())

	runCtx := ctx
	if c.deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.deadline)
		defer cancel()
	}

	limit := c.options.Limits.BranchingFactor
	seeds, err := c.seeds.Seeds(runCtx, query.Raw, limit)
	if err == nil && len(seeds) == 0 {
		err = seed.ErrNoSeeds
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrNoSeeds, err)
		report.Error = err.Error()
		report.Elapsed = time.Since(report.StartedAt)
		c.observer.ObserveRun(report)
		logger.Warn("crawl has no seeds", "error", err)
		return err
	}
	if len(seeds) > limit {
		seeds = seeds[:limit]
	}
	report.Seeds = append(report.Seeds[:0], seeds...)

	state := c.newRunState(query.Terms, logger)
	strategy := newStrategy(c.options.Strategy, state, c.options.Limits)

	logger.Info("crawl started",
		"strategy", c.options.Strategy.String(),
		"goal", c.options.Goal.String(),
		"seeds", len(seeds),
	)

	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for _, s := range seeds {
		g.Go(func() error {
			strategy.Run(runCtx, s)
			return nil
		})
	}
	_ = g.Wait()

	if runCtx.Err() != nil {
		report.TimedOut = true
		logger.Warn("crawl stopped before reaching its goal", "reason", runCtx.Err())
	}

	report.Words = state.index.TopK(c.options.ResultCount)
	report.IndexSize = state.index.Size()
	report.PagesVisited = state.visited.Len()
	report.PagesIndexed = int(state.indexed.Load())
	report.ClassCounts = state.counts()
	report.Elapsed = time.Since(report.StartedAt)
	c.observer.ObserveRun(report)

	logger.Info("crawl finished",
		"words", report.IndexSize,
		"visited", report.PagesVisited,
		"indexed", report.PagesIndexed,
		"elapsed", report.Elapsed.Round(time.Millisecond).String(),
	)
	return nil
}

// newRunState builds the state shared by the tasks of one run.
func (c *Coordinator) newRunState(terms []string, logger *slog.Logger) *runState {
	return &runState{
		fetcher:      c.fetcher,
		scorer:       c.scorer,
		index:        index.New(c.stopwords),
		visited:      NewVisitedSet(),
		terms:        terms,
		goal:         c.options.Goal,
		terminator:   NewTerminator(c.options.Limits),
		filter:       c.filter,
		observer:     c.observer,
		logger:       logger,
		fingerprints: make(map[[32]byte]struct{}),
	}
}
