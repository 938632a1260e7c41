package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nhuanvd/rag-demo/internal/config"
)

var showCmd = &cobra.Command{
	Use:   "show <ticket-key>",
	Short: "Render a scraped ticket in the terminal",
	Long: `show pretty-prints the scraped Markdown file for a ticket, e.g.

  ragdemo show SL-1234

The file is looked up in the scraper output directory. When stdout is
not a terminal the raw Markdown is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow(args[0])
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(key string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	key = strings.ToUpper(strings.TrimSpace(key))
	path := filepath.Join(cfg.JIRA.OutputDir, key+".txt")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("ticket %s not found in %s (run scrape first)", key, cfg.JIRA.OutputDir)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	fmt.Print(renderMarkdown(string(data)))
	return nil
}

// renderMarkdown converts Markdown to styled terminal output, falling
// back to the raw text when stdout is not a terminal or the renderer
// cannot be built.
func renderMarkdown(markdown string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return markdown
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}

	rendered, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSuffix(rendered, "\n")
}
