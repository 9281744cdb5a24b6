package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawl/internal/config"
)

//go:embed templates/wordcrawl.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new wordcrawl configuration file",
		Long: `Initialize creates a new .wordcrawl configuration file in the current directory.

The generated file documents every setting with its default value:
- Search strategy, classifier, match mode, goal, and limits
- HTTP client settings such as user agent, crawl delay, and proxy
- Seed listing template or a fixed list of start pages
- Replacement stopword, fuzzy rule, and training files
- Archive directory and metrics export

Examples:
  # Create .wordcrawl in current directory
  wordcrawl init

  # Create the file in the XDG config directory
  wordcrawl init -o ~/.config/wordcrawl/config.yaml

  # Force overwrite existing file
  wordcrawl init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/wordcrawl.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - The crawl strategy and its limits")
	fmt.Fprintln(out, "  - The search listing or fixed seed pages")
	fmt.Fprintln(out, "  - Cookies, headers, and a SOCKS5 proxy for requests")

	return nil
}
