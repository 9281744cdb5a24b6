package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/wordcrawl/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)
}

// MultiWriter writes one report to several Writers, for example the
// terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// title turns a hyphenated name such as "best-first" into "Best First".
// A Caser keeps state, so each call builds its own.
func title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "-", " "))
}

// statusText describes how the run ended.
func statusText(report *model.RunReport) string {
	switch {
	case report.Failed():
		return "Error - " + report.Error
	case report.TimedOut:
		return "Timed Out (partial results)"
	default:
		return "Complete"
	}
}

// goalLimit returns the limit that applies to the run's goal.
func goalLimit(opts model.RunOptions) int {
	if opts.Goal == model.GoalMaxVisited {
		return opts.Limits.MaxVisited
	}
	return opts.Limits.MaxWords
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
