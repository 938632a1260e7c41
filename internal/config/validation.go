package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the embedding provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMaxTokens indicates the LLM token budget is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidLLMURL indicates the LLM server URL is invalid.
	ErrInvalidLLMURL = errors.New("invalid LLM server URL")

	// ErrInvalidEmbedderURL indicates the embedding sidecar URL is invalid.
	ErrInvalidEmbedderURL = errors.New("invalid embedder URL")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidJIRAServerURL indicates the JIRA server URL is invalid.
	ErrInvalidJIRAServerURL = errors.New("invalid JIRA server URL")

	// ErrInvalidTicketRange indicates start_id/end_id are inconsistent.
	ErrInvalidTicketRange = errors.New("invalid ticket ID range")
)

// validSSLModes are the PostgreSQL sslmode values accepted by pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks configuration needed by every command.
// Scraper settings are validated separately in ValidateScrape because
// serve/ingest runs don't need a JIRA server at all.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	switch c.Embedder.Provider {
	case ProviderGoogleAI, ProviderLocal:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidProvider, c.Embedder.Provider, ProviderGoogleAI, ProviderLocal)
	}
	if c.Embedder.Dimension < 1 || c.Embedder.Dimension > 4096 {
		return fmt.Errorf("%w: %d (must be 1-4096)", ErrInvalidDimension, c.Embedder.Dimension)
	}
	if c.Embedder.Provider == ProviderLocal {
		if err := validateHTTPURL(c.Embedder.BaseURL); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEmbedderURL, err)
		}
	}

	if err := validateHTTPURL(c.LLM.BaseURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLLMURL, err)
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 32768 {
		return fmt.Errorf("%w: %d (must be 1-32768)", ErrInvalidMaxTokens, c.LLM.MaxTokens)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d (must be 1-100)", ErrInvalidTopK, c.TopK)
	}

	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.Ingest.ChunkOverlap)
	}

	return nil
}

// ValidateServe checks configuration required for the HTTP API server.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Embedder.Provider == ProviderGoogleAI && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY not set (required for provider %q)",
			ErrMissingAPIKey, ProviderGoogleAI)
	}
	return nil
}

// ValidateScrape checks configuration required for the ticket scraper.
func (c *Config) ValidateScrape() error {
	if err := validateHTTPURL(c.JIRA.ServerURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJIRAServerURL, err)
	}
	if strings.TrimSpace(c.JIRA.ProjectKey) == "" {
		return fmt.Errorf("%w: project key must not be empty", ErrInvalidTicketRange)
	}
	if c.JIRA.StartID < 1 || c.JIRA.EndID < c.JIRA.StartID {
		return fmt.Errorf("%w: start_id=%d end_id=%d", ErrInvalidTicketRange, c.JIRA.StartID, c.JIRA.EndID)
	}
	if c.JIRA.MaxRetries < 1 {
		return fmt.Errorf("%w: max_retries must be at least 1", ErrInvalidTicketRange)
	}
	return nil
}

// validateHTTPURL checks that s is an absolute http(s) URL.
func validateHTTPURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("URL must not be empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("parsing URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL host must not be empty")
	}
	return nil
}
