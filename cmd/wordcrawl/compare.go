package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawl/internal/config"
	"github.com/nao1215/wordcrawl/internal/database"
	"github.com/nao1215/wordcrawl/internal/model"
)

// errNoPreviousRun is returned when a run has no earlier run of the same
// query to compare with.
var errNoPreviousRun = errors.New("no earlier run of the same query")

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [run-id] [run-id]",
		Short: "Compare the harvested words of two archived runs",
		Long: `Compare shows how the word list changed between two archived runs:
- New words that entered the ranking
- Dropped words that left the ranking
- Words whose count changed

With two run IDs, the first is treated as the previous run. With one run ID,
it is compared with the preceding run of the same query. With --query, the
latest two runs of that query are compared.

Examples:
  # Compare two runs
  wordcrawl compare 3f2a9c1e 8b7d0a42

  # Compare a run with the run before it
  wordcrawl compare 8b7d0a42

  # Compare the latest two runs of a query
  wordcrawl compare --query "distributed consensus"

  # Output comparison in JSON format
  wordcrawl compare --json 8b7d0a42`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("query", "q", "",
		"Compare the latest two runs of this query")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	addArchiveFlag(cmd)

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	query, err := cmd.Flags().GetString("query")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if len(args) == 0 && strings.TrimSpace(query) == "" {
		return errors.New("run ID or --query is required (use 'wordcrawl history' to list runs)")
	}
	if len(args) > 0 && query != "" {
		return errors.New("--query cannot be combined with run IDs")
	}

	db, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	previous, current, err := selectRuns(commandContext(cmd), db, args, query)
	if err != nil {
		return err
	}

	result := compareRuns(previous, current)
	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return writeJSON(out, result)
	case markdownOutput:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// runArchive is the part of the archive compare needs.
type runArchive interface {
	GetRun(ctx context.Context, id string) (*model.RunReport, error)
	ListRuns(ctx context.Context, query string, limit int) ([]database.RunSummary, error)
}

// selectRuns resolves the previous and current run from the arguments.
func selectRuns(ctx context.Context, db runArchive, args []string, query string) (*model.RunReport, *model.RunReport, error) {
	switch len(args) {
	case 2:
		previous, err := db.GetRun(ctx, args[0])
		if err != nil {
			return nil, nil, err
		}
		current, err := db.GetRun(ctx, args[1])
		if err != nil {
			return nil, nil, err
		}
		return previous, current, nil
	case 1:
		current, err := db.GetRun(ctx, args[0])
		if err != nil {
			return nil, nil, err
		}
		previous, err := previousRun(ctx, db, current)
		if err != nil {
			return nil, nil, err
		}
		return previous, current, nil
	default:
		runs, err := db.ListRuns(ctx, query, 2)
		if err != nil {
			return nil, nil, err
		}
		if len(runs) < 2 {
			return nil, nil, fmt.Errorf("need at least 2 runs of %q to compare, found %d", query, len(runs))
		}
		current, err := db.GetRun(ctx, runs[0].ID)
		if err != nil {
			return nil, nil, err
		}
		previous, err := db.GetRun(ctx, runs[1].ID)
		if err != nil {
			return nil, nil, err
		}
		return previous, current, nil
	}
}

// previousRun returns the run of the same query archived just before current.
func previousRun(ctx context.Context, db runArchive, current *model.RunReport) (*model.RunReport, error) {
	runs, err := db.ListRuns(ctx, current.Query.String(), 0)
	if err != nil {
		return nil, err
	}
	for i, run := range runs {
		if run.ID == current.ID && i+1 < len(runs) {
			return db.GetRun(ctx, runs[i+1].ID)
		}
	}
	return nil, fmt.Errorf("%w: %s", errNoPreviousRun, current.ID)
}

// RunMetadata describes one side of a comparison.
type RunMetadata struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Strategy     string    `json:"strategy"`
	StartedAt    time.Time `json:"started_at"`
	IndexSize    int       `json:"index_size"`
	PagesVisited int       `json:"pages_visited"`
	PagesIndexed int       `json:"pages_indexed"`
	RankedWords  int       `json:"ranked_words"`
}

// WordChange is a ranked word present in both runs with different counts.
type WordChange struct {
	Word     string `json:"word"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
	Delta    int    `json:"delta"`
}

// ComparisonResult holds the difference between two runs.
type ComparisonResult struct {
	PreviousRun RunMetadata `json:"previous_run"`
	CurrentRun  RunMetadata `json:"current_run"`

	// NewWords are ranked in the current run only, highest count first.
	NewWords []model.RankedWord `json:"new_words"`

	// DroppedWords are ranked in the previous run only, highest count first.
	DroppedWords []model.RankedWord `json:"dropped_words"`

	// ChangedWords are ranked in both runs with different counts, largest
	// change first.
	ChangedWords []WordChange `json:"changed_words"`

	// UnchangedCount is the number of words with the same count in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// Overlap is the Jaccard similarity of the two ranked word sets.
	Overlap float64 `json:"overlap"`
}

// compareRuns compares the ranked words of two runs.
func compareRuns(previous, current *model.RunReport) *ComparisonResult {
	result := &ComparisonResult{
		PreviousRun:  runMetadata(previous),
		CurrentRun:   runMetadata(current),
		NewWords:     make([]model.RankedWord, 0),
		DroppedWords: make([]model.RankedWord, 0),
		ChangedWords: make([]WordChange, 0),
	}

	previousCounts := make(map[string]int, len(previous.Words))
	for _, w := range previous.Words {
		previousCounts[w.Word] = w.Count
	}
	currentCounts := make(map[string]int, len(current.Words))
	for _, w := range current.Words {
		currentCounts[w.Word] = w.Count
	}

	for _, w := range current.Words {
		before, ok := previousCounts[w.Word]
		switch {
		case !ok:
			result.NewWords = append(result.NewWords, w)
		case before != w.Count:
			result.ChangedWords = append(result.ChangedWords, WordChange{
				Word:     w.Word,
				Previous: before,
				Current:  w.Count,
				Delta:    w.Count - before,
			})
		default:
			result.UnchangedCount++
		}
	}
	for _, w := range previous.Words {
		if _, ok := currentCounts[w.Word]; !ok {
			result.DroppedWords = append(result.DroppedWords, w)
		}
	}

	byCount := func(a, b model.RankedWord) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Word, b.Word))
	}
	slices.SortFunc(result.NewWords, byCount)
	slices.SortFunc(result.DroppedWords, byCount)
	slices.SortFunc(result.ChangedWords, func(a, b WordChange) int {
		return cmp.Or(cmp.Compare(abs(b.Delta), abs(a.Delta)), strings.Compare(a.Word, b.Word))
	})

	common := len(current.Words) - len(result.NewWords)
	union := len(previous.Words) + len(result.NewWords)
	if union > 0 {
		result.Overlap = float64(common) / float64(union)
	}

	return result
}

func runMetadata(r *model.RunReport) RunMetadata {
	return RunMetadata{
		ID:           r.ID,
		Query:        r.Query.String(),
		Strategy:     r.Options.Strategy.String(),
		StartedAt:    r.StartedAt,
		IndexSize:    r.IndexSize,
		PagesVisited: r.PagesVisited,
		PagesIndexed: r.PagesIndexed,
		RankedWords:  len(r.Words),
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)
	prev, cur := result.PreviousRun, result.CurrentRun

	md.H1("Run Comparison: " + cur.Query)
	md.PlainText("")
	md.PlainTextf("**Word Overlap:** %s", formatOverlap(result.Overlap))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", "`" + shortID(prev.ID) + "`", "`" + shortID(cur.ID) + "`", "-"},
			{"Date", prev.StartedAt.Format("2006-01-02 15:04"), cur.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Strategy", prev.Strategy, cur.Strategy, "-"},
			{"Distinct Words", strconv.Itoa(prev.IndexSize), strconv.Itoa(cur.IndexSize), formatDelta(cur.IndexSize - prev.IndexSize)},
			{"Pages Visited", strconv.Itoa(prev.PagesVisited), strconv.Itoa(cur.PagesVisited), formatDelta(cur.PagesVisited - prev.PagesVisited)},
			{"Pages Indexed", strconv.Itoa(prev.PagesIndexed), strconv.Itoa(cur.PagesIndexed), formatDelta(cur.PagesIndexed - prev.PagesIndexed)},
		},
	})
	md.PlainText("")

	if len(result.NewWords) > 0 {
		md.H2(fmt.Sprintf("New Words (%d)", len(result.NewWords)))
		md.PlainText("")
		md.BulletList(rankedWordItems(result.NewWords, "")...)
		md.PlainText("")
	}

	if len(result.DroppedWords) > 0 {
		md.H2(fmt.Sprintf("Dropped Words (%d)", len(result.DroppedWords)))
		md.PlainText("")
		md.BulletList(rankedWordItems(result.DroppedWords, "~~")...)
		md.PlainText("")
	}

	if len(result.ChangedWords) > 0 {
		md.H2(fmt.Sprintf("Changed Counts (%d)", len(result.ChangedWords)))
		md.PlainText("")
		rows := make([][]string, len(result.ChangedWords))
		for i, c := range result.ChangedWords {
			rows[i] = []string{c.Word, strconv.Itoa(c.Previous), strconv.Itoa(c.Current), formatDelta(c.Delta)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Word", "Previous", "Current", "Change"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d words unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

// rankedWordItems formats words as list items wrapped in mark.
func rankedWordItems(words []model.RankedWord, mark string) []string {
	items := make([]string, len(words))
	for i, w := range words {
		items[i] = fmt.Sprintf("%s**%s** (%d)%s", mark, w.Word, w.Count, mark)
	}
	return items
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	prev, cur := result.PreviousRun, result.CurrentRun

	fmt.Fprintf(out, "Run Comparison: %s\n", cur.Query)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nWord overlap: %s\n", formatOverlap(result.Overlap))

	fmt.Fprintf(out, "\nPrevious run: %s  %s  %s\n", shortID(prev.ID), prev.StartedAt.Format("2006-01-02 15:04:05"), prev.Strategy)
	fmt.Fprintf(out, "Current run:  %s  %s  %s\n", shortID(cur.ID), cur.StartedAt.Format("2006-01-02 15:04:05"), cur.Strategy)

	fmt.Fprintln(out, "\nCrawl Summary:")
	fmt.Fprintf(out, "  %-15s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 50))
	fmt.Fprintf(out, "  %-15s  %-10d  %-10d  %-10s\n", "Distinct words",
		prev.IndexSize, cur.IndexSize, formatDelta(cur.IndexSize-prev.IndexSize))
	fmt.Fprintf(out, "  %-15s  %-10d  %-10d  %-10s\n", "Pages visited",
		prev.PagesVisited, cur.PagesVisited, formatDelta(cur.PagesVisited-prev.PagesVisited))
	fmt.Fprintf(out, "  %-15s  %-10d  %-10d  %-10s\n", "Pages indexed",
		prev.PagesIndexed, cur.PagesIndexed, formatDelta(cur.PagesIndexed-prev.PagesIndexed))

	if len(result.NewWords) > 0 {
		fmt.Fprintf(out, "\nNew Words (%d):\n", len(result.NewWords))
		for _, w := range result.NewWords {
			fmt.Fprintf(out, "  [+] %s (%d)\n", w.Word, w.Count)
		}
	}

	if len(result.DroppedWords) > 0 {
		fmt.Fprintf(out, "\nDropped Words (%d):\n", len(result.DroppedWords))
		for _, w := range result.DroppedWords {
			fmt.Fprintf(out, "  [-] %s (%d)\n", w.Word, w.Count)
		}
	}

	if len(result.ChangedWords) > 0 {
		fmt.Fprintf(out, "\nChanged Counts (%d):\n", len(result.ChangedWords))
		for _, c := range result.ChangedWords {
			fmt.Fprintf(out, "  [~] %s %d -> %d (%s)\n", c.Word, c.Previous, c.Current, formatDelta(c.Delta))
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d words\n", result.UnchangedCount)
	}

	return nil
}

// formatOverlap formats the Jaccard similarity as a percentage.
func formatOverlap(overlap float64) string {
	return strconv.FormatFloat(overlap*100, 'f', 1, 64) + "%"
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
