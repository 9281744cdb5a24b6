package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawl/internal/config"
	"github.com/nao1215/wordcrawl/internal/database"
	"github.com/nao1215/wordcrawl/internal/model"
	"github.com/nao1215/wordcrawl/internal/report"
)

// addArchiveFlag registers the flag selecting the archive directory.
func addArchiveFlag(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", "",
		"Archive directory (default: archive_dir of the config file, else XDG data directory)")
}

// archiveDir returns the --db-dir flag, the archive_dir of the configuration
// file, or the XDG data directory, in that order.
func archiveDir(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return "", err
	}
	if dir != "" {
		return dir, nil
	}

	cfg := config.NewConfig()
	if path := config.FindConfigFile(""); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	}
	return cfg.DBDir, nil
}

// openArchive opens an existing archive for the read-only commands.
func openArchive(cmd *cobra.Command) (*database.RunDB, error) {
	dir, err := archiveDir(cmd)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(dir, database.Options{EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// commandContext returns the command context or a background context.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [query...]",
		Short: "List archived runs",
		Long: `History lists archived runs, newest first.

With a query, only runs of that query are listed. With --words, the words
of all archived runs are summed instead.

Examples:
  # List the 20 most recent runs
  wordcrawl history

  # List runs of one query
  wordcrawl history distributed consensus

  # Show the most frequent words over every archived run
  wordcrawl history --words -n 50`,
		Args: cobra.ArbitraryArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit,
		"Maximum number of entries (0 = all runs)")
	cmd.Flags().BoolP("words", "w", false,
		"Sum the words of every archived run")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	addArchiveFlag(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	words, err := cmd.Flags().GetBool("words")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if words {
		totals, err := db.TopWords(ctx, limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, totals)
		}
		return listWordTotals(out, totals)
	}

	query := model.NewQuery(strings.Join(args, " ")).String()
	runs, err := db.ListRuns(ctx, query, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, runs)
	}
	return listRuns(out, runs, query)
}

// listRuns prints archived runs as a table.
func listRuns(out io.Writer, runs []database.RunSummary, query string) error {
	if len(runs) == 0 {
		if query != "" {
			fmt.Fprintf(out, "No archived runs found for %q\n", query)
		} else {
			fmt.Fprintln(out, "No archived runs found.")
		}
		fmt.Fprintln(out, "\nUse 'wordcrawl search <query>' to run a search.")
		return nil
	}

	fmt.Fprintf(out, "Archived runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-19s  %-10s  %-24s  %s\n", "ID", "Date", "Strategy", "Query", "Result")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 84))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-8s  %-19s  %-10s  %-24s  %s\n",
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Strategy,
			truncate(run.Query, 24),
			formatRunResult(run),
		)
	}

	fmt.Fprintln(out, "\nUse 'wordcrawl show <id>' to see the words of a run.")
	fmt.Fprintln(out, "Use 'wordcrawl compare <id> <id>' to compare two runs.")
	return nil
}

// formatRunResult summarizes how a run ended.
func formatRunResult(run database.RunSummary) string {
	if run.Error != "" {
		return "error: " + run.Error
	}
	s := fmt.Sprintf("%d words, %d/%d pages", run.IndexSize, run.PagesIndexed, run.PagesVisited)
	if run.TimedOut {
		s += " (timed out)"
	}
	return s
}

// listWordTotals prints words summed over the archive.
func listWordTotals(out io.Writer, totals []database.WordTotal) error {
	if len(totals) == 0 {
		fmt.Fprintln(out, "No archived words found.")
		return nil
	}

	fmt.Fprintf(out, "Top words over all archived runs (%d):\n\n", len(totals))
	fmt.Fprintf(out, "  %4s  %-30s  %8s  %s\n", "Rank", "Word", "Count", "Runs")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 54))
	for i, w := range totals {
		fmt.Fprintf(out, "  %4d  %-30s  %8d  %d\n", i+1, truncate(w.Word, 30), w.Count, w.Runs)
	}
	return nil
}

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the report of an archived run",
		Long: `Show prints the full report of an archived run.

The run ID may be abbreviated to any unique prefix, as printed by
'wordcrawl history'.

Examples:
  wordcrawl show 3f2a9c1e
  wordcrawl show --markdown 3f2a9c1e > run.md`,
		Args: cobra.ExactArgs(1),
		RunE: runShowCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	addArchiveFlag(cmd)

	return cmd
}

// runShowCmd executes the show command.
func runShowCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	db, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetRun(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var w report.Writer
	switch {
	case jsonOutput:
		w = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case markdownOutput:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(true), report.WithShowEmpty(true))
	}
	_, err = w.Write(run)
	return err
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete archived runs",
		Long: `Delete removes runs and their words from the archive.

Run IDs may be abbreviated to any unique prefix.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDeleteCmd,
	}
	addArchiveFlag(cmd)
	return cmd
}

// runDeleteCmd executes the delete command.
func runDeleteCmd(cmd *cobra.Command, args []string) error {
	db, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := commandContext(cmd)
	var errs []error
	for _, id := range args {
		run, err := db.GetRun(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := db.DeleteRun(ctx, run.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s (%s)\n", run.ID, run.Query.String())
	}
	return errors.Join(errs...)
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// shortID returns the first eight characters of a run ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to maxLen runes with an ellipsis.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
