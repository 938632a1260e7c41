package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhuanvd/rag-demo/db"
	"github.com/nhuanvd/rag-demo/internal/ai"
	"github.com/nhuanvd/rag-demo/internal/config"
	"github.com/nhuanvd/rag-demo/internal/database"
	"github.com/nhuanvd/rag-demo/internal/knowledge"
	"github.com/nhuanvd/rag-demo/internal/rag"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Chunk, embed and index scraped ticket files",
	Long: `ingest walks a directory of scraped ticket .txt files, splits each
file into overlapping chunks, embeds the chunks and upserts them into
the Postgres vector store.

Re-running ingest on the same directory replaces each file's chunks,
so it is safe to use as a refresh after a new scrape.

The directory defaults to ingest.data_dir from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		return runIngest(dir)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if dir == "" {
		dir = cfg.Ingest.DataDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

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

	ingestor, err := rag.NewIngestor(store, logger, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	logger.Info("ingesting ticket files", "dir", dir)

	stats, err := ingestor.IngestDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Ingestion complete in %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("  Files processed: %d\n", stats.FilesProcessed)
	fmt.Printf("  Files skipped:   %d\n", stats.FilesSkipped)
	fmt.Printf("  Files failed:    %d\n", stats.FilesFailed)
	fmt.Printf("  Chunks indexed:  %d\n", stats.Chunks)

	if stats.FilesFailed > 0 {
		return fmt.Errorf("%d file(s) failed to ingest, see logs above", stats.FilesFailed)
	}
	return nil
}
