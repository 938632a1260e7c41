// Package cmd provides CLI commands for the RAG demo.
//
// Commands:
//   - serve: HTTP question answering API backed by pgvector
//   - ingest: chunk and embed scraped ticket files
//   - scrape: export a range of JIRA tickets to Markdown files
//   - show: render a scraped ticket in the terminal
//
// Signal handling and graceful shutdown are implemented via context
// cancellation for the long-running commands.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhuanvd/rag-demo/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "ragdemo",
	Short: "RAG over JIRA tickets: scrape, ingest, serve",
	Long: `ragdemo builds a question answering service over JIRA tickets.

A typical workflow:

  ragdemo scrape            Export tickets from JIRA into data/jira/
  ragdemo ingest            Chunk and embed the files into Postgres
  ragdemo serve             Start the HTTP QA API

Configuration comes from ~/.ragdemo/config.yaml, ./config.yaml and
environment variables, in increasing priority.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(initLogger())
	},
}

// Execute runs the root command. It is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}

// initLogger builds the process-wide logger. DEBUG in the environment
// switches on debug level; RAG_LOG_JSON switches to JSON output for
// log shippers.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("RAG_LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}
