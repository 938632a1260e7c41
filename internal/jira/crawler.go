package jira

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/time/rate"

	"github.com/nhuanvd/rag-demo/internal/log"
)

// CrawlStats summarises a crawl run.
type CrawlStats struct {
	TotalAttempted int
	Successful     int
	Failed         int
	NotFound       int
	Duration       time.Duration
}

// CrawlerConfig controls a ticket range crawl.
type CrawlerConfig struct {
	ProjectKey string
	StartID    int
	EndID      int
	OutputDir  string
	Delay      time.Duration
	MaxRetries int
}

// Crawler walks a numeric ticket range and writes one file per
// existing ticket. Requests are rate limited so the crawl does not
// hammer the server.
type Crawler struct {
	client  *Client
	logger  log.Logger
	cfg     CrawlerConfig
	limiter *rate.Limiter
}

// NewCrawler creates a Crawler.
func NewCrawler(client *Client, cfg CrawlerConfig, logger log.Logger) (*Crawler, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.ProjectKey == "" {
		return nil, fmt.Errorf("project key is required")
	}
	if cfg.StartID < 1 || cfg.EndID < cfg.StartID {
		return nil, fmt.Errorf("invalid ticket range %d..%d", cfg.StartID, cfg.EndID)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}

	return &Crawler{
		client:  client,
		logger:  logger,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
	}, nil
}

// Crawl fetches every ticket in the configured range. A file lock on
// the output directory prevents two crawls from interleaving writes.
// Individual ticket failures are counted, not fatal; context
// cancellation stops the run with partial stats.
func (c *Crawler) Crawl(ctx context.Context) (CrawlStats, error) {
	start := time.Now()
	var stats CrawlStats

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return stats, fmt.Errorf("creating output directory: %w", err)
	}

	lock := flock.New(filepath.Join(c.cfg.OutputDir, ".crawl.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return stats, fmt.Errorf("locking output directory: %w", err)
	}
	if !locked {
		return stats, fmt.Errorf("another crawl is already writing to %s", c.cfg.OutputDir)
	}
	defer lock.Unlock()

	c.logger.Info("starting crawl",
		"project", c.cfg.ProjectKey,
		"range", fmt.Sprintf("%d..%d", c.cfg.StartID, c.cfg.EndID),
		"output", c.cfg.OutputDir)

	for num := c.cfg.StartID; num <= c.cfg.EndID; num++ {
		if err := c.limiter.Wait(ctx); err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("crawl interrupted: %w", err)
		}

		key := fmt.Sprintf("%s-%d", c.cfg.ProjectKey, num)
		stats.TotalAttempted++

		ticket, err := c.fetchWithRetries(ctx, key)
		switch {
		case errors.Is(err, ErrTicketNotFound):
			stats.NotFound++
			continue
		case err != nil:
			c.logger.Error("ticket fetch failed", "key", key, "error", err)
			stats.Failed++
			continue
		}

		if _, err := WriteTicket(c.cfg.OutputDir, ticket); err != nil {
			c.logger.Error("ticket write failed", "key", key, "error", err)
			stats.Failed++
			continue
		}
		stats.Successful++
	}

	stats.Duration = time.Since(start)
	c.logger.Info("crawl complete",
		"attempted", stats.TotalAttempted,
		"successful", stats.Successful,
		"failed", stats.Failed,
		"not_found", stats.NotFound,
		"duration", stats.Duration)
	return stats, nil
}

// fetchWithRetries retries transient fetch failures with a growing
// delay. Not-found and auth errors are final on the first attempt.
func (c *Crawler) fetchWithRetries(ctx context.Context, key string) (*Ticket, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		ticket, err := c.client.FetchTicket(ctx, key)
		if err == nil {
			return ticket, nil
		}
		if errors.Is(err, ErrTicketNotFound) || errors.Is(err, ErrNotAuthenticated) {
			return nil, err
		}
		lastErr = err

		if attempt < c.cfg.MaxRetries {
			c.logger.Warn("retrying ticket fetch", "key", key, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.Delay * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", c.cfg.MaxRetries, lastErr)
}
