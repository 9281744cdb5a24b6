package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	wlog "github.com/nao1215/wordcrawl/internal/log"
)

// NewRootCmd creates the root command for wordcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordcrawl",
		Short: "Relevance-guided web crawler that harvests words for a query",
		Long: `wordcrawl searches the web for a query and crawls outward from the results.

Every fetched page is scored against the query terms and classified as
low, medium, or high relevance. Relevant pages are indexed and their links
are followed; the most frequent indexed words form the result.

Finished runs are archived so they can be listed, shown, and compared later.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewShowCmd())
	cmd.AddCommand(NewDeleteCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a structured logger that masks credentials.
// Logs go to stderr so reports on stdout stay machine-readable.
func setupLogger(verbose bool) *slog.Logger {
	return wlog.NewSecureLogger(os.Stderr, verbose)
}
