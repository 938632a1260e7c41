package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhuanvd/rag-demo/db"
	"github.com/nhuanvd/rag-demo/internal/ai"
	"github.com/nhuanvd/rag-demo/internal/api"
	"github.com/nhuanvd/rag-demo/internal/config"
	"github.com/nhuanvd/rag-demo/internal/database"
	"github.com/nhuanvd/rag-demo/internal/knowledge"
	"github.com/nhuanvd/rag-demo/internal/llm"
	"github.com/nhuanvd/rag-demo/internal/observability"
	"github.com/nhuanvd/rag-demo/internal/rag"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 3 * time.Minute // generation against a local model can be slow
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP question answering API",
	Long: `serve starts the JSON API on the configured address (default :8000).

Endpoints:
  POST /qa        Answer a question from the indexed tickets
  GET  /search    Raw similarity search
  GET  /tickets   List indexed tickets
  GET  /health    Liveness probe
  GET  /ready     Readiness probe (checks the database)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the full stack and blocks until SIGINT/SIGTERM.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", AppVersion, "addr", cfg.APIAddr)

	if cfg.Observability.Enabled {
		shutdownTracing, tracingErr := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Observability.OTLPEndpoint,
			ServiceName: cfg.Observability.ServiceName,
			Environment: cfg.Observability.Environment,
		}, logger)
		if tracingErr != nil {
			return fmt.Errorf("setting up tracing: %w", tracingErr)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if flushErr := shutdownTracing(flushCtx); flushErr != nil {
				logger.Warn("tracing shutdown error", "error", flushErr)
			}
		}()
	}

	if err = db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	embedder, err := ai.NewEmbedder(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	store, err := knowledge.New(pool, embedder, logger)
	if err != nil {
		return fmt.Errorf("creating knowledge store: %w", err)
	}

	llmClient := llm.NewClient(cfg.LLM.BaseURL, time.Duration(cfg.LLM.TimeoutMs)*time.Millisecond, logger)

	engine, err := rag.NewEngine(store, llmClient, logger, cfg.TopK, cfg.LLM.MaxTokens)
	if err != nil {
		return fmt.Errorf("creating QA engine: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger: logger,
		Engine: engine,
		Store:  store,
		DB:     pool,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.APIAddr,
		"endpoints", "/qa, /search, /tickets",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
