package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhuanvd/rag-demo/internal/config"
	"github.com/nhuanvd/rag-demo/internal/jira"
)

var scrapeClearSession bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Export a range of JIRA tickets to Markdown files",
	Long: `scrape fetches tickets KEY-<start> through KEY-<end> from the
configured JIRA server and writes one <KEY>.txt Markdown file per
ticket into the output directory.

Authentication uses a saved session cookie when one exists, falling
back to form login with JIRA_USERNAME and JIRA_PASSWORD. Requests are
rate limited and missing ticket numbers are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape()
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeClearSession, "clear-session", false,
		"discard the saved session cookies before scraping")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateScrape(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	auth, err := jira.NewAuthenticator(cfg.JIRA.ServerURL, cfg.JIRA.CookieFile, logger)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}
	auth.SetUserAgent(cfg.JIRA.UserAgent)

	if scrapeClearSession {
		if err = auth.ClearCookies(); err != nil {
			return fmt.Errorf("clearing saved session: %w", err)
		}
	}

	if err = auth.EnsureAuthenticated(ctx, cfg.JIRA.Username, cfg.JIRA.Password); err != nil {
		return fmt.Errorf("authenticating with %s: %w", cfg.JIRA.ServerURL, err)
	}
	if err = auth.SaveCookies(); err != nil {
		logger.Warn("failed to persist session cookies", "error", err)
	}

	client, err := jira.NewClient(auth, logger)
	if err != nil {
		return fmt.Errorf("creating jira client: %w", err)
	}

	crawler, err := jira.NewCrawler(client, jira.CrawlerConfig{
		ProjectKey: cfg.JIRA.ProjectKey,
		StartID:    cfg.JIRA.StartID,
		EndID:      cfg.JIRA.EndID,
		OutputDir:  cfg.JIRA.OutputDir,
		Delay:      time.Duration(cfg.JIRA.DelayMs) * time.Millisecond,
		MaxRetries: cfg.JIRA.MaxRetries,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating crawler: %w", err)
	}

	stats, err := crawler.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("crawling: %w", err)
	}

	fmt.Printf("Crawl complete in %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("  Attempted: %d\n", stats.TotalAttempted)
	fmt.Printf("  Saved:     %d\n", stats.Successful)
	fmt.Printf("  Not found: %d\n", stats.NotFound)
	fmt.Printf("  Failed:    %d\n", stats.Failed)

	return nil
}
