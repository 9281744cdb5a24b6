package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/wordcrawl/internal/config"
	"github.com/nao1215/wordcrawl/internal/fetch"
	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/pipeline"
	"github.com/nao1215/wordcrawl/internal/report"
)

// writeTestConfig writes content to a configuration file in a temp dir.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestNewSearchCmd(t *testing.T) {
	t.Parallel()

	cmd := NewSearchCmd()

	if cmd.Use != "search [query...]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}

	flagsWithShort := map[string]string{
		"strategy": "s",
		"goal":     "g",
		"results":  "n",
		"timeout":  "t",
		"header":   "H",
		"batch":    "b",
		"config":   "c",
		"json":     "j",
		"markdown": "m",
		"output":   "o",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}

	if f := cmd.Flags().Lookup("strategy"); f != nil && f.DefValue != "best-first" {
		t.Errorf("expected strategy default 'best-first', got %q", f.DefValue)
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	emptyConfig := writeTestConfig(t, "search:\n")

	t.Run("joins positional arguments into one query", func(t *testing.T) {
		t.Parallel()

		cmd := NewSearchCmd()
		_ = cmd.Flags().Set("config", emptyConfig)
		cfg, err := buildConfig(cmd, []string{"distributed", "consensus"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Queries) != 1 || cfg.Queries[0] != "distributed consensus" {
			t.Errorf("expected one joined query, got %v", cfg.Queries)
		}
		if cfg.Strategy != model.StrategyBestFirst {
			t.Errorf("expected default strategy, got %v", cfg.Strategy)
		}
		if !cfg.RespectRobots || !cfg.SaveToDB {
			t.Error("expected robots and archiving to be enabled by default")
		}
	})

	t.Run("flags override the configuration file", func(t *testing.T) {
		t.Parallel()

		path := writeTestConfig(t, `search:
  strategy: beam
  workers: 3
  max_visited: 40
scoring:
  weights:
    body: 2
  window: 5
fetch:
  crawl_delay: 1s
  headers:
    Accept-Language: en
`)
		cmd := NewSearchCmd()
		_ = cmd.Flags().Set("config", path)
		_ = cmd.Flags().Set("strategy", "dfs")
		_ = cmd.Flags().Set("max-visited", "9")
		_ = cmd.Flags().Set("header", "X-Trace=abc")
		_ = cmd.Flags().Set("window", "1")

		cfg, err := buildConfig(cmd, []string{"raft"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Strategy != model.StrategyDepthFirst {
			t.Errorf("expected dfs from flag, got %v", cfg.Strategy)
		}
		if cfg.Workers != 3 {
			t.Errorf("expected workers 3 from file, got %d", cfg.Workers)
		}
		if cfg.Limits.MaxVisited != 9 {
			t.Errorf("expected max visited 9 from flag, got %d", cfg.Limits.MaxVisited)
		}
		if cfg.Weights.Body != 2 || cfg.Weights.Title != 50 {
			t.Errorf("expected body weight 2 from file and default title weight, got %+v", cfg.Weights)
		}
		if cfg.Window != 1 {
			t.Errorf("expected window 1 from flag, got %d", cfg.Window)
		}
		if cfg.CrawlDelay != time.Second {
			t.Errorf("expected crawl delay 1s from file, got %v", cfg.CrawlDelay)
		}
		if cfg.Headers["Accept-Language"] != "en" || cfg.Headers["X-Trace"] != "abc" {
			t.Errorf("expected merged headers, got %v", cfg.Headers)
		}
	})

	t.Run("negative flags disable defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewSearchCmd()
		_ = cmd.Flags().Set("config", emptyConfig)
		_ = cmd.Flags().Set("no-robots", "true")
		_ = cmd.Flags().Set("no-save", "true")

		cfg, err := buildConfig(cmd, []string{"raft"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.RespectRobots {
			t.Error("expected RespectRobots to be false")
		}
		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false")
		}
	})

	t.Run("collects seeds and link patterns", func(t *testing.T) {
		t.Parallel()

		cmd := NewSearchCmd()
		_ = cmd.Flags().Set("config", emptyConfig)
		_ = cmd.Flags().Set("seed", "https://example.com/a")
		_ = cmd.Flags().Set("seed", "https://example.com/b")
		_ = cmd.Flags().Set("ignore", "*.pdf,/login*")

		cfg, err := buildConfig(cmd, []string{"raft"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Seeds) != 2 {
			t.Errorf("expected 2 seeds, got %v", cfg.Seeds)
		}
		if len(cfg.IgnorePatterns) != 2 {
			t.Errorf("expected 2 ignore patterns, got %v", cfg.IgnorePatterns)
		}
	})

	t.Run("appends batch file queries", func(t *testing.T) {
		t.Parallel()

		batch := filepath.Join(t.TempDir(), "queries.txt")
		if err := os.WriteFile(batch, []byte("golang generics\n\nrust ownership\n"), 0600); err != nil {
			t.Fatal(err)
		}
		cmd := NewSearchCmd()
		_ = cmd.Flags().Set("config", emptyConfig)
		_ = cmd.Flags().Set("batch", batch)

		cfg, err := buildConfig(cmd, []string{"raft"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := []string{"raft", "golang generics", "rust ownership"}
		if strings.Join(cfg.Queries, "|") != strings.Join(expected, "|") {
			t.Errorf("expected queries %v, got %v", expected, cfg.Queries)
		}
	})

	t.Run("rejects unknown variant", func(t *testing.T) {
		t.Parallel()

		cmd := NewSearchCmd()
		_ = cmd.Flags().Set("config", emptyConfig)
		_ = cmd.Flags().Set("strategy", "random-walk")

		_, err := buildConfig(cmd, []string{"raft"})
		if !errors.Is(err, model.ErrUnknownVariant) {
			t.Errorf("expected ErrUnknownVariant, got %v", err)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewSearchCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml"))

		if _, err := buildConfig(cmd, []string{"raft"}); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestReadQueries(t *testing.T) {
	t.Parallel()

	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "queries.txt")
		content := "# topics\ngolang generics\n\n   \n  rust ownership  \n#skip\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		queries, err := readQueries(path)
		if err != nil {
			t.Fatalf("readQueries() error: %v", err)
		}
		if len(queries) != 2 || queries[0] != "golang generics" || queries[1] != "rust ownership" {
			t.Errorf("unexpected queries: %v", queries)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := readQueries(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func testRunReport(id, query string) *model.RunReport {
	r := model.NewRunReport(id, model.NewQuery(query), model.DefaultRunOptions())
	r.StartedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.Elapsed = 2 * time.Second
	r.Seeds = []string{"https://example.com/"}
	r.Words = []model.RankedWord{{Word: "gopher", Count: 7}, {Word: "channel", Count: 3}}
	r.IndexSize = 42
	r.PagesVisited = 10
	r.PagesIndexed = 4
	r.ClassCounts = map[model.RelevanceClass]int{
		model.RelevanceLow:  6,
		model.RelevanceHigh: 4,
	}
	return r
}

func TestOutputReports(t *testing.T) {
	t.Parallel()

	t.Run("single JSON report includes version and summary", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.JSONReport = true
		var buf bytes.Buffer
		if err := outputReports(cfg, []*model.RunReport{testRunReport("run-1", "golang")}, &buf); err != nil {
			t.Fatalf("outputReports() error: %v", err)
		}

		var got report.JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if got.Version == "" || got.Summary == "" {
			t.Error("expected version and summary")
		}
		if got.Report == nil || got.Report.ID != "run-1" {
			t.Errorf("unexpected report: %+v", got.Report)
		}
	})

	t.Run("several JSON reports form an array", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.JSONReport = true
		var buf bytes.Buffer
		reports := []*model.RunReport{testRunReport("run-1", "golang"), testRunReport("run-2", "rust")}
		if err := outputReports(cfg, reports, &buf); err != nil {
			t.Fatalf("outputReports() error: %v", err)
		}

		var got []model.RunReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 2 || got[1].ID != "run-2" {
			t.Errorf("unexpected reports: %+v", got)
		}
	})

	t.Run("markdown report is written to a file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.MarkdownReport = true
		cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "words.md")
		var stdout bytes.Buffer
		if err := outputReports(cfg, []*model.RunReport{testRunReport("run-1", "golang")}, &stdout); err != nil {
			t.Fatalf("outputReports() error: %v", err)
		}

		if stdout.Len() != 0 {
			t.Error("nothing should be written to stdout")
		}
		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		if !strings.Contains(string(data), "# Wordcrawl Report: Golang") {
			t.Errorf("unexpected markdown:\n%s", data)
		}
	})

	t.Run("simple report is the default", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		var buf bytes.Buffer
		if err := outputReports(cfg, []*model.RunReport{testRunReport("run-1", "golang")}, &buf); err != nil {
			t.Fatalf("outputReports() error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{"TOP WORDS", "gopher"} {
			if !strings.Contains(output, want) {
				t.Errorf("output should contain %q", want)
			}
		}
	})
}

// holdStep blocks the crawl of one query until release is closed.
type holdStep struct {
	query   string
	release <-chan struct{}
}

func (s holdStep) Name() string { return "hold" }

func (s holdStep) Do(ctx context.Context, r *model.RunReport) error {
	if r.Query.String() != s.query {
		return nil
	}
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return errors.New("released query was never written")
	}
}

// signalWriter closes seen once a write contains needle.
type signalWriter struct {
	bytes.Buffer
	needle string
	once   sync.Once
	seen   chan struct{}
}

func (w *signalWriter) Write(p []byte) (int, error) {
	n, err := w.Buffer.Write(p)
	if bytes.Contains(p, []byte(w.needle)) {
		w.once.Do(func() { close(w.seen) })
	}
	return n, err
}

type brokenOutput struct{}

func (brokenOutput) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCrawlAndWrite(t *testing.T) {
	t.Parallel()

	t.Run("text reports are written as crawls finish", func(t *testing.T) {
		t.Parallel()

		out := &signalWriter{needle: "fastquery", seen: make(chan struct{})}
		cfg := config.NewConfig()
		cfg.Queries = []string{"slowquery", "fastquery"}

		bp := pipeline.NewBatchProcessor(
			func() *pipeline.Pipeline {
				p := pipeline.New()
				p.AddStep(holdStep{query: "slowquery", release: out.seen})
				return p
			},
			cfg.RunOptions(),
			pipeline.WithConcurrency(2),
			pipeline.WithBatchLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)

		reports, batchErr, err := crawlAndWrite(context.Background(), bp, cfg, out)
		if err != nil || batchErr != nil {
			t.Fatalf("crawlAndWrite() errors: write %v, batch %v", err, batchErr)
		}
		if len(reports) != 2 || reports[0].Query.String() != "slowquery" || reports[1].Query.String() != "fastquery" {
			t.Fatalf("reports should keep query order, got %v", reports)
		}
		if reports[0].Failed() {
			t.Errorf("slow query failed: %s", reports[0].Error)
		}

		text := out.String()
		fast, slow := strings.Index(text, "fastquery"), strings.Index(text, "slowquery")
		if fast < 0 || slow < 0 || fast > slow {
			t.Errorf("expected the fast report first, got:\n%s", text)
		}
	})

	t.Run("write error keeps collecting reports", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Queries = []string{"alpha", "beta"}
		bp := pipeline.NewBatchProcessor(
			func() *pipeline.Pipeline { return pipeline.New() },
			cfg.RunOptions(),
			pipeline.WithBatchLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)

		reports, batchErr, err := crawlAndWrite(context.Background(), bp, cfg, brokenOutput{})
		if err == nil {
			t.Error("expected the write error")
		}
		if batchErr != nil {
			t.Errorf("unexpected batch error: %v", batchErr)
		}
		for i, r := range reports {
			if r == nil {
				t.Errorf("report %d missing", i)
			}
		}
	})

	t.Run("JSON waits for the whole batch", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.JSONReport = true
		cfg.Queries = []string{"alpha", "beta"}
		bp := pipeline.NewBatchProcessor(
			func() *pipeline.Pipeline { return pipeline.New() },
			cfg.RunOptions(),
			pipeline.WithBatchLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)

		var buf bytes.Buffer
		if _, _, err := crawlAndWrite(context.Background(), bp, cfg, &buf); err != nil {
			t.Fatalf("crawlAndWrite() error: %v", err)
		}
		var got []json.RawMessage
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("expected one JSON array: %v\n%s", err, buf.String())
		}
		if len(got) != 2 {
			t.Errorf("expected 2 reports, got %d", len(got))
		}
	})
}

// newSiteServer serves a small site whose pages all talk about gophers.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Gopher guide %s</title>
<meta name="description" content="Everything about the gopher"></head>
<body><h1>The gopher</h1>
<p>The gopher is the mascot of Go. Every gopher likes channels and every gopher likes goroutines.</p>
<a href="/next%s">next gopher page</a>
</body></html>`, r.URL.Path, strings.TrimPrefix(r.URL.Path, "/"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSearchCommandWithStaticSeeds(t *testing.T) {
	t.Parallel()

	server := newSiteServer(t)
	cfgPath := writeTestConfig(t, "search:\n")

	root := NewRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{
		"search",
		"--config", cfgPath,
		"--seed", server.URL + "/start",
		"--goal", "max-visited",
		"--max-visited", "3",
		"--crawl-delay", "0",
		"--deadline", "30s",
		"--no-robots",
		"--no-save",
		"--json",
		"gopher",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	var got report.JSONReport
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout.String())
	}
	if got.Report == nil {
		t.Fatal("expected a report")
	}
	if got.Report.Query.String() != "gopher" {
		t.Errorf("expected query 'gopher', got %q", got.Report.Query.String())
	}
	if got.Report.Failed() {
		t.Errorf("run should not fail: %s", got.Report.Error)
	}
	if got.Report.PagesVisited < 1 {
		t.Errorf("expected visited pages, got %d", got.Report.PagesVisited)
	}
	if len(got.Report.Seeds) != 1 || got.Report.Seeds[0] != server.URL+"/start" {
		t.Errorf("unexpected seeds: %v", got.Report.Seeds)
	}
}

func TestSearchCommandArchivesRun(t *testing.T) {
	t.Parallel()

	server := newSiteServer(t)
	cfgPath := writeTestConfig(t, "search:\n")
	dbDir := t.TempDir()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{
		"search",
		"--config", cfgPath,
		"--seed", server.URL + "/start",
		"--goal", "max-visited",
		"--max-visited", "2",
		"--crawl-delay", "0",
		"--no-robots",
		"--db-dir", dbDir,
		"gopher",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	db := openTestArchive(t, dbDir)
	runs, err := db.ListRuns(t.Context(), "gopher", 0)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 archived run, got %d", len(runs))
	}
}

func TestSearchCommandFailedListing(t *testing.T) {
	t.Parallel()

	listing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(listing.Close)
	cfgPath := writeTestConfig(t, "search:\n")

	root := NewRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{
		"search",
		"--config", cfgPath,
		"--seed-url", listing.URL + "/html/?q={query}",
		"--crawl-delay", "0",
		"--no-robots",
		"--no-save",
		"gopher",
	})

	err := root.Execute()
	if !errors.Is(err, errQueriesFailed) {
		t.Fatalf("expected errQueriesFailed, got %v", err)
	}
	if !strings.Contains(stdout.String(), "Error") {
		t.Errorf("report should still be written with the error, got:\n%s", stdout.String())
	}
}

func TestRunSearchCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{
			name:    "no query",
			args:    []string{},
			wantErr: config.ErrNoQuery,
		},
		{
			name:    "conflicting formats",
			args:    []string{"--json", "--markdown", "raft"},
			wantErr: config.ErrConflictingReportFormats,
		},
		{
			name:    "negative workers",
			args:    []string{"--workers=-1", "raft"},
			wantErr: config.ErrInvalidWorkers,
		},
		{
			name:    "negative max distance",
			args:    []string{"--max-distance=-1", "raft"},
			wantErr: config.ErrInvalidMaxDistance,
		},
		{
			name:    "seed template without placeholder",
			args:    []string{"--seed-url", "https://example.com/search", "raft"},
			wantErr: config.ErrInvalidSeedTemplate,
		},
	}

	cfgPath := writeTestConfig(t, "search:\n")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := NewRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetArgs(append([]string{"search", "--config", cfgPath, "--no-save"}, tt.args...))

			err := root.Execute()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSearchCommandUnreachableProxy(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	address := ln.Addr().String()
	_ = ln.Close()

	cfgPath := writeTestConfig(t, "search:\n")
	_, err = executeCmd(t, "search",
		"--config", cfgPath,
		"--proxy", address,
		"--seed", "https://example.com/",
		"--no-save",
		"gopher",
	)
	if !errors.Is(err, fetch.ErrProxyUnavailable) {
		t.Errorf("expected ErrProxyUnavailable, got %v", err)
	}
}
