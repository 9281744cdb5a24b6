package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/wordcrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// It uses plain ASCII formatting so output can be piped to files or other
// tools unchanged.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether the word section is shown without results.
	showEmpty bool

	// verbose adds the seed list and the crawl limits.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	if w.verbose {
		w.writeSeeds(&sb, report)
	}
	w.writeWords(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run identity and options.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	opts := report.Options

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         WORDCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Query:       %s\n", report.Query.String())
	fmt.Fprintf(sb, "Run ID:      %s\n", report.ID)
	fmt.Fprintf(sb, "Started:     %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:     %s\n", report.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(sb, "Strategy:    %s\n", title(opts.Strategy.String()))
	fmt.Fprintf(sb, "Classifier:  %s\n", title(opts.Classifier.String()))
	fmt.Fprintf(sb, "Match:       %s\n", title(opts.Match.String()))
	fmt.Fprintf(sb, "Goal:        %s (%d)\n", title(opts.Goal.String()), goalLimit(opts))
	fmt.Fprintf(sb, "Status:      %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the crawl counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Seeds:          %d\n", len(report.Seeds))
	fmt.Fprintf(sb, "  Pages visited:  %d\n", report.PagesVisited)
	fmt.Fprintf(sb, "  Pages indexed:  %d\n", report.PagesIndexed)
	fmt.Fprintf(sb, "  Distinct words: %d\n", report.IndexSize)
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  HIGH:   %d\n", report.ClassCounts[model.RelevanceHigh])
	fmt.Fprintf(sb, "  MEDIUM: %d\n", report.ClassCounts[model.RelevanceMedium])
	fmt.Fprintf(sb, "  LOW:    %d\n", report.ClassCounts[model.RelevanceLow])
	sb.WriteString("\n")

	if w.verbose {
		l := report.Options.Limits
		fmt.Fprintf(sb, "  Limits: max words %d, max visited %d, beam width %d, branching %d, max depth %d\n\n",
			l.MaxWords, l.MaxVisited, l.BeamWidth, l.BranchingFactor, l.MaxDepth)
	}
}

// writeSeeds writes the start pages of the crawl.
func (w *SimpleWriter) writeSeeds(sb *strings.Builder, report *model.RunReport) {
	if len(report.Seeds) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SEEDS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Seeds) == 0 {
		sb.WriteString("  No seeds\n")
	}
	for _, seed := range report.Seeds {
		fmt.Fprintf(sb, "  [+] %s\n", seed)
	}
	sb.WriteString("\n")
}

// writeWords writes the ranked word list.
func (w *SimpleWriter) writeWords(sb *strings.Builder, report *model.RunReport) {
	if !report.HasResults() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("TOP WORDS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if !report.HasResults() {
		sb.WriteString("  No words harvested\n\n")
		return
	}

	for i, word := range report.Words {
		fmt.Fprintf(sb, "  %3d. %-30s %d\n", i+1, truncateString(word.Word, 30), word.Count)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by wordcrawl\n")
	sb.WriteString("https://github.com/nao1215/wordcrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
