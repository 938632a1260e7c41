package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhuanvd/rag-demo/internal/knowledge"
	"github.com/nhuanvd/rag-demo/internal/log"
)

// documentStore is the slice of the knowledge store ingestion needs.
type documentStore interface {
	AddBatch(ctx context.Context, docs []knowledge.Document) error
	DeleteBySource(ctx context.Context, sourceFile string) (int64, error)
}

// IngestStats summarises an ingestion run.
type IngestStats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	Chunks         int
	Duration       time.Duration
}

// Ingestor loads ticket files from a directory into the knowledge
// store. Re-running it on the same directory replaces each file's
// chunks, so it doubles as a refresh.
type Ingestor struct {
	store        documentStore
	logger       log.Logger
	chunkSize    int
	chunkOverlap int
}

// NewIngestor creates an Ingestor. Zero chunk sizes fall back to the
// package defaults.
func NewIngestor(store documentStore, logger log.Logger, chunkSize, chunkOverlap int) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Ingestor{
		store:        store,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// IngestDir walks dir and ingests every .txt file found. Failures on
// individual files are logged and counted, not fatal; a missing or
// unreadable directory is.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) (IngestStats, error) {
	start := time.Now()
	var stats IngestStats

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".txt") {
			stats.FilesSkipped++
			return nil
		}

		chunks, ingestErr := in.IngestFile(ctx, path)
		if ingestErr != nil {
			in.logger.Error("file ingestion failed", "file", path, "error", ingestErr)
			stats.FilesFailed++
			return nil
		}
		stats.FilesProcessed++
		stats.Chunks += chunks
		return nil
	})
	stats.Duration = time.Since(start)
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", dir, err)
	}

	in.logger.Info("ingestion complete",
		"files", stats.FilesProcessed,
		"chunks", stats.Chunks,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"duration", stats.Duration)
	return stats, nil
}

// IngestFile ingests a single ticket file and returns the number of
// chunks stored. Prior chunks for the same file are removed first so
// a shrunken file leaves no stale chunks behind.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	content := string(raw)
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("file is empty")
	}

	header := ParseTicketHeader(content)
	sourceFile := filepath.Base(path)
	if header.TicketID == "" {
		// Fall back to the filename convention <KEY>.txt.
		header.TicketID = strings.TrimSuffix(sourceFile, ".txt")
	}

	chunks := ChunkTicket(content, in.chunkSize, in.chunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced")
	}

	docs := make([]knowledge.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = knowledge.Document{
			ID:      chunkID(sourceFile, i),
			Content: chunk,
			Metadata: map[string]string{
				knowledge.MetaSourceType: knowledge.SourceTypeTicket,
				knowledge.MetaSource:     sourceFile,
				knowledge.MetaTicketID:   header.TicketID,
				knowledge.MetaTicketType: header.Type,
				knowledge.MetaPriority:   header.Priority,
				knowledge.MetaStatus:     header.Status,
			},
		}
	}

	if _, err := in.store.DeleteBySource(ctx, sourceFile); err != nil {
		return 0, fmt.Errorf("removing previous chunks: %w", err)
	}
	if err := in.store.AddBatch(ctx, docs); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}

	in.logger.Debug("ingested file",
		"file", sourceFile, "ticket_id", header.TicketID, "chunks", len(docs))
	return len(docs), nil
}

// chunkID derives a stable document ID from the source filename and
// chunk index, so re-ingestion upserts instead of duplicating.
func chunkID(sourceFile string, index int) string {
	sum := sha256.Sum256([]byte(sourceFile))
	return fmt.Sprintf("%x|chunk-%d", sum[:8], index)
}
