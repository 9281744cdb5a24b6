// Package metrics defines the Prometheus collectors of a crawl and writes
// them in the node_exporter textfile format.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/wordcrawl/internal/model"
)

const namespace = "wordcrawl"

// Metrics holds the collectors of one process. All methods are safe on a nil
// receiver so callers can pass a nil *Metrics when metrics are disabled.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetchedTotal    *prometheus.CounterVec
	FetchDuration        prometheus.Histogram
	PagesClassifiedTotal *prometheus.CounterVec
	RunsTotal            *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	IndexWords           prometheus.Gauge
	PagesVisited         prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PagesFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Pages fetched by result (ok, error).",
			},
			[]string{"result"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Page fetch latency in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
		),
		PagesClassifiedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_classified_total",
				Help:      "Evaluated pages by relevance class.",
			},
			[]string{"class"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished crawls by strategy and status (ok, timeout, error).",
			},
			[]string{"strategy", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of a crawl in seconds.",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"strategy"},
		),
		IndexWords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_words",
				Help:      "Distinct words in the index of the last finished crawl.",
			},
		),
		PagesVisited: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pages_visited",
				Help:      "URLs claimed by the last finished crawl.",
			},
		),
	}

	m.registry.MustRegister(
		m.PagesFetchedTotal,
		m.FetchDuration,
		m.PagesClassifiedTotal,
		m.RunsTotal,
		m.RunDuration,
		m.IndexWords,
		m.PagesVisited,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch records one page fetch.
func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PagesFetchedTotal.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveClass records the verdict on one evaluated page.
func (m *Metrics) ObserveClass(class model.RelevanceClass) {
	if m == nil {
		return
	}
	m.PagesClassifiedTotal.WithLabelValues(class.String()).Inc()
}

// ObserveRun records a finished crawl.
func (m *Metrics) ObserveRun(report *model.RunReport) {
	if m == nil || report == nil {
		return
	}
	status := "ok"
	switch {
	case report.Failed():
		status = "error"
	case report.TimedOut:
		status = "timeout"
	}
	strategy := report.Options.Strategy.String()
	m.RunsTotal.WithLabelValues(strategy, status).Inc()
	m.RunDuration.WithLabelValues(strategy).Observe(report.Elapsed.Seconds())
	m.IndexWords.Set(float64(report.IndexSize))
	m.PagesVisited.Set(float64(report.PagesVisited))
}

// ErrNoPath is returned by WriteTextfile when no file path is given.
var ErrNoPath = errors.New("metrics file path is empty")

// WriteTextfile writes every collector to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if path == "" {
		return ErrNoPath
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
