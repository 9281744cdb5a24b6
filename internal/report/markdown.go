package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/wordcrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing. The class distribution is rendered as a mermaid pie chart.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeWords(md, report)
	w.writeSeeds(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	opts := report.Options

	md.H1("Wordcrawl Report: " + title(report.Query.String()))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Query", "`" + report.Query.String() + "`"},
			{"Run ID", "`" + report.ID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", report.Elapsed.Round(time.Millisecond).String()},
			{"Strategy", title(opts.Strategy.String())},
			{"Classifier", title(opts.Classifier.String())},
			{"Match", title(opts.Match.String())},
			{"Goal", title(opts.Goal.String()) + " (" + strconv.Itoa(goalLimit(opts)) + ")"},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.RunReport) string {
	switch {
	case report.Failed():
		return "❌ " + statusText(report)
	case report.TimedOut:
		return "⚠️ " + statusText(report)
	default:
		return "✅ " + statusText(report)
	}
}

// writeSummary writes the crawl counters and the class distribution.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Crawl Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Measure", "Value"},
		Rows: [][]string{
			{"Seeds", strconv.Itoa(len(report.Seeds))},
			{"Pages Visited", strconv.Itoa(report.PagesVisited)},
			{"Pages Indexed", strconv.Itoa(report.PagesIndexed)},
			{"Distinct Words", strconv.Itoa(report.IndexSize)},
			{"🟢 High", strconv.Itoa(report.ClassCounts[model.RelevanceHigh])},
			{"🟡 Medium", strconv.Itoa(report.ClassCounts[model.RelevanceMedium])},
			{"⚪ Low", strconv.Itoa(report.ClassCounts[model.RelevanceLow])},
		},
	})
	md.PlainText("")

	if classTotal(report) > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for the relevance distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.RunReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Relevance Distribution"),
		piechart.WithShowData(true),
	)

	for _, class := range model.RelevanceClasses() {
		if n := report.ClassCounts[class]; n > 0 {
			chart.LabelAndIntValue(title(class.String()), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	switch {
	case report.Failed():
		md.Cautionf("The crawl failed: %s", report.Error)
	case report.TimedOut:
		md.Warningf(
			"The deadline ended the crawl after %d visited page(s). Results are partial.",
			report.PagesVisited,
		)
	case !report.HasResults():
		md.Note("No relevant pages were found, so no words were harvested.")
	default:
		md.Tip(fmt.Sprintf("Harvested %d word(s) from %d relevant page(s).", len(report.Words), report.PagesIndexed))
	}
	md.PlainText("")
}

// writeWords writes the ranked word table.
func (w *MarkdownWriter) writeWords(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Top Words")
	md.PlainText("")

	if !report.HasResults() {
		md.PlainText("No words harvested.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Words))
	for i, word := range report.Words {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			truncateString(word.Word, 40),
			strconv.Itoa(word.Count),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Word", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSeeds writes the seed pages as a list.
func (w *MarkdownWriter) writeSeeds(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Seeds) == 0 {
		return
	}

	md.H2("Seeds")
	md.PlainText("")
	md.BulletList(report.Seeds...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [wordcrawl](https://github.com/nao1215/wordcrawl)*")
}

// classTotal returns the number of evaluated pages.
func classTotal(report *model.RunReport) int {
	var total int
	for _, n := range report.ClassCounts {
		total += n
	}
	return total
}
