package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/wordcrawl/internal/metrics"
	"github.com/nao1215/wordcrawl/internal/model"
)

// Crawler fills a report by crawling for its query.
// *crawler.Coordinator implements it.
type Crawler interface {
	Crawl(ctx context.Context, report *model.RunReport) error
}

// RunStore archives finished reports. *database.RunDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, report *model.RunReport) error
}

// CrawlStep runs the crawl.
type CrawlStep struct {
	crawler Crawler
}

// NewCrawlStep creates a CrawlStep.
func NewCrawlStep(c Crawler) *CrawlStep {
	return &CrawlStep{crawler: c}
}

// Name implements Step.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do implements Step.
func (s *CrawlStep) Do(ctx context.Context, report *model.RunReport) error {
	return s.crawler.Crawl(ctx, report)
}

// ArchiveStep stores the report in the run history.
type ArchiveStep struct {
	store  RunStore
	logger *slog.Logger
}

// NewArchiveStep creates an ArchiveStep.
func NewArchiveStep(store RunStore, logger *slog.Logger) *ArchiveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStep{store: store, logger: logger}
}

// Name implements Step.
func (s *ArchiveStep) Name() string {
	return "archive"
}

// Do implements Step.
func (s *ArchiveStep) Do(ctx context.Context, report *model.RunReport) error {
	if err := s.store.SaveRun(ctx, report); err != nil {
		return fmt.Errorf("failed to archive run %s: %w", report.ID, err)
	}
	s.logger.Debug("run archived", "run_id", report.ID)
	return nil
}

// MetricsStep writes the metrics textfile after each run.
type MetricsStep struct {
	metrics *metrics.Metrics
	path    string
}

// NewMetricsStep creates a MetricsStep writing m to path.
func NewMetricsStep(m *metrics.Metrics, path string) *MetricsStep {
	return &MetricsStep{metrics: m, path: path}
}

// Name implements Step.
func (s *MetricsStep) Name() string {
	return "metrics"
}

// Do implements Step.
func (s *MetricsStep) Do(_ context.Context, _ *model.RunReport) error {
	return s.metrics.WriteTextfile(s.path)
}

// DefaultPipelineConfig selects the optional steps of DefaultPipeline.
type DefaultPipelineConfig struct {
	// Store archives each report when set.
	Store RunStore

	// Metrics are exported to MetricsPath when both are set.
	Metrics     *metrics.Metrics
	MetricsPath string

	Logger *slog.Logger
}

// DefaultPipeline returns crawl, then archive and metrics when configured.
// Later steps run even when the crawl fails, so failed runs are archived.
func DefaultPipeline(c Crawler, cfg DefaultPipelineConfig) *Pipeline {
	p := New(WithLogger(cfg.Logger), WithContinueOnError(true))
	p.AddStep(NewCrawlStep(c))
	if cfg.Store != nil {
		p.AddStep(NewArchiveStep(cfg.Store, cfg.Logger))
	}
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		p.AddStep(NewMetricsStep(cfg.Metrics, cfg.MetricsPath))
	}
	return p
}
