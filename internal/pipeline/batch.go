package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/wordcrawl/internal/model"
)

// DefaultConcurrency is the number of queries crawled at once by default.
const DefaultConcurrency = 2

// BatchProcessor runs several queries concurrently. Every query gets its own
// report and a fresh Pipeline from the factory.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline
	options         model.RunOptions
	concurrency     int
	newID           func() string
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent queries.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithIDGenerator overrides how report IDs are created.
func WithIDGenerator(fn func() string) BatchOption {
	return func(b *BatchProcessor) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. options are recorded in every
// report it creates.
func NewBatchProcessor(pipelineFactory func() *Pipeline, options model.RunOptions, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		options:         options,
		concurrency:     DefaultConcurrency,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls every query and returns the reports in input order.
//
// A failing query records its error in its report and does not stop the
// others. Queries not yet started when ctx is cancelled get a report marked
// TimedOut, and the cancellation error is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, queries []string) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_queries", len(queries),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	results := make([]*model.RunReport, len(queries))
	err := bp.run(ctx, queries, func(report *model.RunReport, index int) {
		results[index] = report
	})

	bp.logger.Info("batch processing complete",
		"total_queries", len(queries),
		"elapsed", time.Since(startTime),
	)
	return results, err
}

// ProcessBatchWithCallback crawls every query and calls callback as soon as
// each report is complete. The callback runs on the worker goroutine and
// must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	queries []string,
	callback func(report *model.RunReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_queries", len(queries),
		"concurrency", bp.concurrency,
	)
	return bp.run(ctx, queries, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, queries []string, done func(*model.RunReport, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, raw := range queries {
		report := model.NewRunReport(bp.newID(), model.NewQuery(raw), bp.options)

		g.Go(func() error {
			select {
			case <-ctx.Done():
				report.TimedOut = true
				report.Error = ctx.Err().Error()
				done(report, i)
				return ctx.Err()
			default:
			}

			bp.logger.Info("crawling query",
				"query", report.Query.String(),
				"index", i+1,
				"total", len(queries),
			)

			if err := bp.pipelineFactory().Execute(ctx, report); err != nil {
				// The error is recorded in the report; other queries go on.
				bp.logger.Warn("query failed",
					"query", report.Query.String(),
					"error", err,
				)
			} else {
				bp.logger.Info("query completed", "summary", report.Summary())
			}
			done(report, i)
			return nil
		})
	}

	return g.Wait()
}
