package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawl/internal/classifier"
	"github.com/nao1215/wordcrawl/internal/config"
	"github.com/nao1215/wordcrawl/internal/crawler"
	"github.com/nao1215/wordcrawl/internal/database"
	"github.com/nao1215/wordcrawl/internal/fetch"
	"github.com/nao1215/wordcrawl/internal/metrics"
	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/pipeline"
	"github.com/nao1215/wordcrawl/internal/report"
	"github.com/nao1215/wordcrawl/internal/scorer"
	"github.com/nao1215/wordcrawl/internal/seed"
	"github.com/nao1215/wordcrawl/internal/stopword"
)

// errQueriesFailed is returned when at least one query of a search ended
// with an error. The reports are still written.
var errQueriesFailed = errors.New("queries failed")

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	defaults := config.NewConfig()

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Crawl the web for a query and report the most frequent words",
		Long: `Search finds start pages for a query, crawls outward from them, and reports
the most frequent words of the pages judged relevant.

All positional arguments form one query. Use --batch to crawl several
queries, one per line, concurrently.

Strategies:
  best-first  always expand the most relevant page found so far
  dfs         follow each relevant link before its siblings
  beam        keep only the best --beam-width children of every page

Examples:
  # Harvest words about a topic
  wordcrawl search distributed consensus

  # Stop after 200 visited pages using beam search
  wordcrawl search --strategy beam --goal max-visited --max-visited 200 raft

  # Start from fixed pages instead of a search listing
  wordcrawl search --seed https://en.wikipedia.org/wiki/Raft_(algorithm) raft

  # Crawl every query in a file and write Markdown reports
  wordcrawl search --batch queries.txt --markdown -o reports/words.md

  # Output JSON without archiving the run
  wordcrawl search --json --no-save golang generics`,
		Args: cobra.ArbitraryArgs,
		RunE: runSearchCmd,
	}

	flags := cmd.Flags()

	// Crawl variants
	flags.StringP("strategy", "s", defaults.Strategy.String(), "Search strategy: best-first, dfs, or beam")
	flags.String("classifier", defaults.Classifier.String(), "Relevance classifier: fuzzy or centroid")
	flags.String("match", defaults.Match.String(), "Term matching: exact or levenshtein")
	flags.StringP("goal", "g", defaults.Goal.String(), "Termination goal: max-words or max-visited")
	flags.IntP("results", "n", defaults.ResultCount, "Number of ranked words to report")

	// Limits
	flags.Int("max-words", defaults.Limits.MaxWords, "Distinct word limit for the max-words goal")
	flags.Int("max-visited", defaults.Limits.MaxVisited, "Visited URL limit for the max-visited goal")
	flags.Int("beam-width", defaults.Limits.BeamWidth, "Children kept per expansion in beam search")
	flags.Int("branching", defaults.Limits.BranchingFactor, "Maximum number of seed pages")
	flags.Int("max-depth", defaults.Limits.MaxDepth, "Maximum link depth of depth-first search")
	flags.Int("workers", defaults.Workers, "Seed tasks run at once (0 = one per seed)")
	flags.Duration("deadline", defaults.Deadline, "Upper bound of each crawl (0 = none)")

	// Scoring
	flags.Int("max-distance", defaults.MaxDistance, "Largest edit distance matched by --match levenshtein")
	flags.Int("window", defaults.Window, "Body words kept on each side of a match on medium pages")

	// HTTP client
	flags.DurationP("timeout", "t", defaults.Timeout, "Timeout of each HTTP request")
	flags.Duration("crawl-delay", defaults.CrawlDelay, "Minimum interval between requests")
	flags.String("user-agent", defaults.UserAgent, "User-Agent header of every request")
	flags.Int64("max-body-size", defaults.MaxBodySize, "Maximum bytes read per page")
	flags.Int("per-host", defaults.PerHostLimit, "Concurrent requests allowed per host")
	flags.Bool("no-robots", false, "Ignore robots.txt")
	flags.String("proxy", "", "SOCKS5 proxy address (host:port)")
	flags.String("cookie", "", "Cookie header sent with every page request")
	flags.StringToStringP("header", "H", nil, "Extra request header as name=value (repeatable)")

	// Seeds and links
	flags.StringArray("seed", nil, "Start page used instead of the search listing (repeatable)")
	flags.String("seed-url", defaults.SeedURLTemplate, "Search listing URL template containing {query}")
	flags.String("seed-selector", defaults.SeedSelector, "CSS selector of result links on the listing")
	flags.StringSlice("ignore", nil, "URL path patterns never followed")
	flags.StringSlice("follow", nil, "Only follow URL paths matching these patterns")

	// Resources
	flags.String("stopwords", "", "Stopword file replacing the built-in list")
	flags.String("fuzzy-rules", "", "Fuzzy rule base replacing the built-in rules")
	flags.String("training-set", "", "Centroid training set replacing the built-in samples")

	// Batch
	flags.StringP("batch", "b", "", "File with one query per line")
	flags.Int("batch-size", defaults.BatchSize, "Queries crawled concurrently with --batch")

	// Configuration file
	flags.StringP("config", "c", "",
		"Configuration file path (default: .wordcrawl in current directory, XDG config, or home)")

	// Output
	flags.BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	flags.BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	flags.StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	flags.Bool("no-save", false, "Do not archive the run")
	flags.String("db-dir", "", "Archive directory (default: XDG data directory)")
	flags.String("metrics-file", "", "Write Prometheus metrics in text format to this file")

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Handle interrupt signals; the crawl stops and partial results are reported.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runSearch(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from defaults, the configuration file, and
// the flags set on the command line, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit --config must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if len(args) > 0 {
		cfg.Queries = append(cfg.Queries, strings.Join(args, " "))
	}

	batchFile, err := cmd.Flags().GetString("batch")
	if err != nil {
		return nil, err
	}
	if batchFile != "" {
		queries, err := readQueries(batchFile)
		if err != nil {
			return nil, err
		}
		cfg.Queries = append(cfg.Queries, queries...)
	}

	return cfg, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if err := variantFlag(cmd, "strategy", model.ParseStrategy, &cfg.Strategy); err != nil {
		return err
	}
	if err := variantFlag(cmd, "classifier", model.ParseClassifierKind, &cfg.Classifier); err != nil {
		return err
	}
	if err := variantFlag(cmd, "match", model.ParseMatchMode, &cfg.Match); err != nil {
		return err
	}
	if err := variantFlag(cmd, "goal", model.ParseGoal, &cfg.Goal); err != nil {
		return err
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"results", &cfg.ResultCount},
		{"max-words", &cfg.Limits.MaxWords},
		{"max-visited", &cfg.Limits.MaxVisited},
		{"beam-width", &cfg.Limits.BeamWidth},
		{"branching", &cfg.Limits.BranchingFactor},
		{"max-depth", &cfg.Limits.MaxDepth},
		{"workers", &cfg.Workers},
		{"per-host", &cfg.PerHostLimit},
		{"batch-size", &cfg.BatchSize},
		{"max-distance", &cfg.MaxDistance},
		{"window", &cfg.Window},
	}
	for _, f := range ints {
		if err := flagValue(cmd, f.name, flags.GetInt, f.dst); err != nil {
			return err
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"deadline", &cfg.Deadline},
		{"timeout", &cfg.Timeout},
		{"crawl-delay", &cfg.CrawlDelay},
	}
	for _, f := range durations {
		if err := flagValue(cmd, f.name, flags.GetDuration, f.dst); err != nil {
			return err
		}
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"user-agent", &cfg.UserAgent},
		{"proxy", &cfg.ProxyAddress},
		{"cookie", &cfg.Cookie},
		{"seed-url", &cfg.SeedURLTemplate},
		{"seed-selector", &cfg.SeedSelector},
		{"stopwords", &cfg.StopwordsFile},
		{"fuzzy-rules", &cfg.FuzzyRulesFile},
		{"training-set", &cfg.TrainingSetFile},
		{"db-dir", &cfg.DBDir},
		{"metrics-file", &cfg.MetricsFile},
		{"output", &cfg.ReportFile},
	}
	for _, f := range strs {
		if err := flagValue(cmd, f.name, flags.GetString, f.dst); err != nil {
			return err
		}
	}

	if err := flagValue(cmd, "max-body-size", flags.GetInt64, &cfg.MaxBodySize); err != nil {
		return err
	}
	if err := flagValue(cmd, "seed", flags.GetStringArray, &cfg.Seeds); err != nil {
		return err
	}
	if err := flagValue(cmd, "ignore", flags.GetStringSlice, &cfg.IgnorePatterns); err != nil {
		return err
	}
	if err := flagValue(cmd, "follow", flags.GetStringSlice, &cfg.FollowPatterns); err != nil {
		return err
	}
	if err := flagValue(cmd, "json", flags.GetBool, &cfg.JSONReport); err != nil {
		return err
	}
	if err := flagValue(cmd, "markdown", flags.GetBool, &cfg.MarkdownReport); err != nil {
		return err
	}

	if flags.Changed("header") {
		headers, err := flags.GetStringToString("header")
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}

	noRobots, err := flags.GetBool("no-robots")
	if err != nil {
		return err
	}
	if noRobots {
		cfg.RespectRobots = false
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return err
	}
	if noSave {
		cfg.SaveToDB = false
	}

	return nil
}

// flagValue stores the value of the named flag in dst when the user set it.
func flagValue[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// variantFlag parses a named option variant when the user set it.
func variantFlag[T any](cmd *cobra.Command, name string, parse func(string) (T, error), dst *T) error {
	return flagValue(cmd, name, func(n string) (T, error) {
		s, err := cmd.Flags().GetString(n)
		if err != nil {
			var zero T
			return zero, err
		}
		return parse(s)
	}, dst)
}

// readQueries reads one query per line. Blank lines and lines starting
// with # are skipped.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided batch file is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return queries, nil
}

// runSearch crawls every configured query and writes the reports to out.
func runSearch(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	logger.Info("starting search",
		"queries", len(cfg.Queries),
		"strategy", cfg.Strategy.String(),
		"classifier", cfg.Classifier.String(),
		"goal", cfg.Goal.String(),
		"saveToDB", cfg.SaveToDB,
	)

	if cfg.ProxyAddress != "" {
		if err := fetch.CheckProxy(ctx, cfg.ProxyAddress); err != nil {
			return fmt.Errorf("proxy %s is not usable: %w", cfg.ProxyAddress, err)
		}
		logger.Info("proxy reachable", "address", cfg.ProxyAddress)
	}

	fetcher, err := fetch.NewClient(fetchOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	stops, err := loadStopwords(cfg.StopwordsFile)
	if err != nil {
		return err
	}

	cls, err := classifier.New(cfg.Classifier, classifier.Resources{
		FuzzyRules:  cfg.FuzzyRulesFile,
		TrainingSet: cfg.TrainingSetFile,
	})
	if err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}

	m := metrics.New()

	coordOpts := []crawler.Option{
		crawler.WithStopwords(stops),
		crawler.WithDeadline(cfg.Deadline),
		crawler.WithLinkFilter(crawler.LinkFilter{
			Ignore: cfg.IgnorePatterns,
			Follow: cfg.FollowPatterns,
		}),
		crawler.WithObserver(m),
		crawler.WithLogger(logger),
	}
	if cfg.Workers > 0 {
		coordOpts = append(coordOpts, crawler.WithWorkers(cfg.Workers))
	}

	coordinator, err := crawler.NewCoordinator(
		newSeedSource(cfg, fetcher, logger),
		fetcher,
		scorer.New(cls, cfg.Match, cfg.ScorerOptions()...),
		cfg.RunOptions(),
		coordOpts...,
	)
	if err != nil {
		return err
	}

	pipelineCfg := pipeline.DefaultPipelineConfig{
		Metrics:     m,
		MetricsPath: cfg.MetricsFile,
		Logger:      logger,
	}
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		pipelineCfg.Store = db
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(coordinator, pipelineCfg)
		},
		cfg.RunOptions(),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	reports, batchErr, err := crawlAndWrite(ctx, bp, cfg, out)
	logger.Info("search completed", "elapsed", time.Since(startTime).Round(time.Millisecond))
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if batchErr != nil && !errors.Is(batchErr, context.Canceled) {
		return batchErr
	}

	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
			logger.Error("query failed", "query", r.Query.String(), "error", r.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errQueriesFailed, failed, len(reports))
	}
	return nil
}

// fetchOptions translates the configuration into HTTP client options.
func fetchOptions(cfg *config.Config, logger *slog.Logger) []fetch.Option {
	opts := []fetch.Option{
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithCrawlDelay(cfg.CrawlDelay),
		fetch.WithPerHostLimit(cfg.PerHostLimit),
		fetch.WithRobots(cfg.RespectRobots),
		fetch.WithLogger(logger),
	}
	if cfg.MaxBodySize > 0 {
		opts = append(opts, fetch.WithMaxBodySize(cfg.MaxBodySize))
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, fetch.WithProxy(cfg.ProxyAddress))
	}
	if cfg.Cookie != "" {
		opts = append(opts, fetch.WithCookie(cfg.Cookie))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, fetch.WithHeaders(cfg.Headers))
	}
	return opts
}

// newSeedSource returns the static seed list when one is configured and the
// search listing otherwise.
func newSeedSource(cfg *config.Config, fetcher *fetch.Client, logger *slog.Logger) seed.Source {
	if len(cfg.Seeds) > 0 {
		return seed.Static(cfg.Seeds)
	}
	return seed.NewListing(fetcher.HTTPClient(),
		seed.WithURLTemplate(cfg.SeedURLTemplate),
		seed.WithSelector(cfg.SeedSelector),
		seed.WithUserAgent(fetcher.UserAgent()),
		seed.WithLogger(logger),
	)
}

// loadStopwords returns the built-in list unless a file is configured.
func loadStopwords(path string) (*stopword.Set, error) {
	if path == "" {
		return stopword.Default(), nil
	}
	set, err := stopword.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load stopwords: %w", err)
	}
	return set, nil
}

// crawlAndWrite runs the batch and writes its reports.
//
// A JSON document can only be written once every report is known, so JSON
// output waits for the whole batch. Text and Markdown reports are written
// one by one in the order their crawls finish, which lets a long --batch run
// show results while later queries are still crawling.
//
// The first return value holds every report in query order. batchErr is
// the error of the batch itself; err is a failure to write the output.
func crawlAndWrite(ctx context.Context, bp *pipeline.BatchProcessor, cfg *config.Config, stdout io.Writer) (reports []*model.RunReport, batchErr, err error) {
	if cfg.JSONReport {
		reports, batchErr = bp.ProcessBatch(ctx, cfg.Queries)
		return reports, batchErr, outputReports(cfg, reports, stdout)
	}

	output, closeOutput, err := openReportOutput(cfg, stdout)
	if err != nil {
		return nil, nil, err
	}
	defer closeOutput()

	stream := newReportStream(newTextWriter(cfg, output), len(cfg.Queries))
	batchErr = bp.ProcessBatchWithCallback(ctx, cfg.Queries, stream.add)
	return stream.reports, batchErr, stream.err
}

// reportStream writes reports as they arrive from concurrent crawls.
// After the first write error it only collects reports.
type reportStream struct {
	mu      sync.Mutex
	w       report.Writer
	reports []*model.RunReport
	err     error
}

func newReportStream(w report.Writer, n int) *reportStream {
	return &reportStream{w: w, reports: make([]*model.RunReport, n)}
}

func (s *reportStream) add(r *model.RunReport, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[index] = r
	if s.err != nil {
		return
	}
	if _, err := s.w.Write(r); err != nil {
		s.err = err
	}
}

// openReportOutput returns the report file when one is configured and
// stdout otherwise. The returned function closes the file.
func openReportOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newTextWriter returns the Markdown or plain text writer selected by cfg.
func newTextWriter(cfg *config.Config, output io.Writer) report.Writer {
	if cfg.MarkdownReport {
		return report.NewMarkdownWriter(output)
	}
	return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
}

// outputReports writes the reports in the requested format.
func outputReports(cfg *config.Config, reports []*model.RunReport, stdout io.Writer) error {
	output, closeOutput, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	if cfg.JSONReport {
		if len(reports) == 1 {
			_, err := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint()).Write(reports[0])
			return err
		}
		_, err := report.NewJSONWriter(output, report.WithPrettyPrint()).WriteAll(reports)
		return err
	}

	w := newTextWriter(cfg, output)
	for _, r := range reports {
		if _, err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}
