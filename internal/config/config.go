// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragdemo/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Postgres: vector store connection (see storage.go)
//   - Embedder: embedding provider selection (googleai or local sidecar)
//   - LLM: inference server endpoint
//   - API: HTTP listen address and retrieval depth
//   - JIRA: scraper target and crawl behavior
//   - Ingest: data directory and chunking parameters
//   - Observability: OTLP trace export (see observability section)
//
// Sensitive data (passwords) is masked in MarshalJSON and never logged.
// Validation lives in validation.go with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Defaults for retrieval and generation.
const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 6

	// DefaultMaxTokens is the generation budget passed to the LLM server.
	DefaultMaxTokens = 512

	// DefaultChunkSize is the chunk size in characters (token proxy).
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the overlap between adjacent chunks.
	DefaultChunkOverlap = 150

	// DefaultEmbeddingDimension matches the documents table vector column.
	DefaultEmbeddingDimension = 768
)

// Embedding provider identifiers used in EmbedderConfig.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderLocal    = "local"
)

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	// Provider is "googleai" (Gemini API) or "local" (HTTP sidecar).
	Provider string `mapstructure:"provider" json:"provider"`
	// Model is the embedding model identifier.
	Model string `mapstructure:"model" json:"model"`
	// BaseURL is the local embedding sidecar endpoint (provider "local").
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// Dimension is the embedding vector size; must match the database schema.
	Dimension int `mapstructure:"dimension" json:"dimension"`
}

// LLMConfig configures the external llama.cpp-style inference server.
type LLMConfig struct {
	// BaseURL is the inference server (POST /generate, GET /health).
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// MaxTokens is the generation budget per request.
	MaxTokens int `mapstructure:"max_tokens" json:"max_tokens"`
	// TimeoutMs is the per-request timeout in milliseconds.
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// JIRAConfig configures the ticket scraper.
type JIRAConfig struct {
	// ServerURL is the JIRA base URL (e.g. https://issues.example.com).
	ServerURL string `mapstructure:"server_url" json:"server_url"`
	// ProjectKey is the ticket key prefix (e.g. "SL").
	ProjectKey string `mapstructure:"project_key" json:"project_key"`
	// StartID and EndID bound the inclusive numeric ticket range.
	StartID int `mapstructure:"start_id" json:"start_id"`
	EndID   int `mapstructure:"end_id" json:"end_id"`
	// OutputDir receives one <KEY>.txt file per ticket.
	OutputDir string `mapstructure:"output_dir" json:"output_dir"`
	// DelayMs is the minimum delay between requests in milliseconds.
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// MaxRetries is the per-ticket retry budget.
	MaxRetries int `mapstructure:"max_retries" json:"max_retries"`
	// UserAgent is sent on every request.
	UserAgent string `mapstructure:"user_agent" json:"user_agent"`
	// CookieFile persists session cookies between runs.
	CookieFile string `mapstructure:"cookie_file" json:"cookie_file"`
	// Username and Password allow non-interactive form login.
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"` // SENSITIVE: masked in MarshalJSON
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	// DataDir holds the scraped ticket .txt files.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`
	// ChunkSize and ChunkOverlap control text chunking (characters).
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
}

// ObservabilityConfig configures OTLP trace export.
type ObservabilityConfig struct {
	Enabled      bool   `mapstructure:"enabled" json:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding new
// sensitive fields (passwords, API keys), update MarshalJSON.
type Config struct {
	// HTTP API
	APIAddr string `mapstructure:"api_addr" json:"api_addr"`
	TopK    int    `mapstructure:"top_k" json:"top_k"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Embedder      EmbedderConfig      `mapstructure:"embedder" json:"embedder"`
	LLM           LLMConfig           `mapstructure:"llm" json:"llm"`
	JIRA          JIRAConfig          `mapstructure:"jira" json:"jira"`
	Ingest        IngestConfig        `mapstructure:"ingest" json:"ingest"`
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragdemo")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, if set, overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// API defaults (port 8000 per the service contract)
	viper.SetDefault("api_addr", ":8000")
	viper.SetDefault("top_k", DefaultTopK)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "ragdemo")
	viper.SetDefault("postgres_password", "ragdemo_dev_password")
	viper.SetDefault("postgres_db_name", "ragdemo")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Embedder defaults
	viper.SetDefault("embedder.provider", ProviderGoogleAI)
	viper.SetDefault("embedder.model", "gemini-embedding-001")
	viper.SetDefault("embedder.base_url", "http://localhost:5002")
	viper.SetDefault("embedder.dimension", DefaultEmbeddingDimension)

	// LLM server defaults
	viper.SetDefault("llm.base_url", "http://localhost:5001")
	viper.SetDefault("llm.max_tokens", DefaultMaxTokens)
	viper.SetDefault("llm.timeout_ms", 120000)

	// JIRA scraper defaults
	viper.SetDefault("jira.server_url", "")
	viper.SetDefault("jira.project_key", "SL")
	viper.SetDefault("jira.start_id", 1)
	viper.SetDefault("jira.end_id", 1)
	viper.SetDefault("jira.output_dir", "data/jira")
	viper.SetDefault("jira.delay_ms", 1000)
	viper.SetDefault("jira.max_retries", 3)
	viper.SetDefault("jira.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("jira.cookie_file", "")

	// Ingest defaults
	viper.SetDefault("ingest.data_dir", "data/jira")
	viper.SetDefault("ingest.chunk_size", DefaultChunkSize)
	viper.SetDefault("ingest.chunk_overlap", DefaultChunkOverlap)

	// Observability defaults
	viper.SetDefault("observability.enabled", false)
	viper.SetDefault("observability.otlp_endpoint", "localhost:4318")
	viper.SetDefault("observability.service_name", "rag-api")
	viper.SetDefault("observability.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by the genai client, not via Viper;
// validation checks its presence when provider is "googleai".
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("api_addr", "RAG_API_ADDR")
	mustBind("llm.base_url", "LLM_SERVER_URL")
	mustBind("embedder.provider", "RAG_EMBEDDER_PROVIDER")
	mustBind("embedder.base_url", "RAG_EMBEDDER_URL")
	mustBind("jira.server_url", "JIRA_SERVER_URL")
	mustBind("jira.username", "JIRA_USERNAME")
	mustBind("jira.password", "JIRA_PASSWORD")
	mustBind("observability.enabled", "RAG_TRACING_ENABLED")
	mustBind("observability.otlp_endpoint", "OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked; longer ones keep the first and last two characters for
// debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + maskedValue + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.JIRA.Password = maskSecret(a.JIRA.Password)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
