package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/wordcrawl/internal/model"
)

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string {
		return fmt.Sprintf("run-%d", n.Add(1))
	}
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, model.DefaultRunOptions())
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
		if bp.logger == nil || bp.newID == nil {
			t.Error("expected defaults for logger and ID generator")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, model.DefaultRunOptions(),
			WithConcurrency(5),
			WithBatchLogger(nil),
			WithIDGenerator(nil),
		)
		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
		if bp.logger == nil || bp.newID == nil {
			t.Error("nil options should keep defaults")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, model.DefaultRunOptions(), WithConcurrency(0))
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("maintains result order and options", func(t *testing.T) {
		t.Parallel()

		opts := model.DefaultRunOptions()
		opts.Strategy = model.StrategyBeam
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(NewCrawlStep(&fakeCrawler{}))
			return p
		}, opts, WithIDGenerator(sequentialIDs()))

		queries := []string{"first query", "second", "third query here"}
		results, err := bp.ProcessBatch(context.Background(), queries)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		for i, result := range results {
			if result.Query.Raw != queries[i] {
				t.Errorf("result[%d]: got %q, expected %q", i, result.Query.Raw, queries[i])
			}
			if result.Options.Strategy != model.StrategyBeam {
				t.Errorf("result[%d] strategy = %v", i, result.Options.Strategy)
			}
			if result.Words[0].Count != len(result.Query.Terms) {
				t.Errorf("result[%d] was crawled with another query's state", i)
			}
		}
		ids := map[string]bool{}
		for _, r := range results {
			ids[r.ID] = true
		}
		if len(ids) != 3 {
			t.Errorf("expected distinct IDs, got %v", ids)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		var mu sync.Mutex

		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "concurrent-counter",
				doFunc: func(context.Context, *model.RunReport) error {
					n := current.Add(1)
					mu.Lock()
					if n > peak.Load() {
						peak.Store(n)
					}
					mu.Unlock()
					time.Sleep(30 * time.Millisecond)
					current.Add(-1)
					return nil
				},
			})
			return p
		}, model.DefaultRunOptions(), WithConcurrency(2))

		queries := make([]string, 8)
		for i := range queries {
			queries[i] = "go"
		}
		if _, err := bp.ProcessBatch(context.Background(), queries); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("max concurrent was %d, expected <= 2", peak.Load())
		}
	})

	t.Run("continues after individual query failure", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "sometimes-fails",
				doFunc: func(_ context.Context, report *model.RunReport) error {
					processed.Add(1)
					if report.Query.Raw == "fail" {
						return errors.New("simulated crawl failure")
					}
					return nil
				},
			})
			return p
		}, model.DefaultRunOptions())

		results, err := bp.ProcessBatch(context.Background(), []string{"first", "fail", "third"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if processed.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processed.Load())
		}
		if !results[1].Failed() || results[0].Failed() || results[2].Failed() {
			t.Error("only the second report should be failed")
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var started atomic.Int32

		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "slow-step",
				doFunc: func(ctx context.Context, _ *model.RunReport) error {
					started.Add(1)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Second):
						return nil
					}
				},
			})
			return p
		}, model.DefaultRunOptions(), WithConcurrency(2))

		queries := make([]string, 10)
		for i := range queries {
			queries[i] = "go"
		}

		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		results, err := bp.ProcessBatch(ctx, queries)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		//nolint:gosec // len(queries) is small, no overflow risk
		if started.Load() >= int32(len(queries)) {
			t.Error("expected some queries to not start due to cancellation")
		}
		for i, r := range results {
			if r == nil {
				t.Errorf("result[%d] is nil", i)
			}
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests callback-based processing.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	received := make(map[int]string)

	bp := NewBatchProcessor(func() *Pipeline {
		p := New()
		p.AddStep(NewCrawlStep(&fakeCrawler{}))
		return p
	}, model.DefaultRunOptions())

	queries := []string{"alpha", "beta", "gamma"}
	err := bp.ProcessBatchWithCallback(context.Background(), queries,
		func(report *model.RunReport, index int) {
			mu.Lock()
			received[index] = report.Query.Raw
			mu.Unlock()
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(received) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(received))
	}
	for i, q := range queries {
		if received[i] != q {
			t.Errorf("callback %d got %q, expected %q", i, received[i], q)
		}
	}
}
