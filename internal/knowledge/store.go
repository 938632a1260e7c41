// Package knowledge manages document chunks with vector search.
//
// Chunks live in PostgreSQL with a pgvector embedding column; similarity
// search uses the cosine distance operator backed by an HNSW index.
// Embedding generation is delegated to an ai.Embedder.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/nhuanvd/rag-demo/internal/ai"
	"github.com/nhuanvd/rag-demo/internal/log"
)

// querier is the common interface satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertDocumentSQL = `INSERT INTO documents (id, content, embedding, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE
	SET content = EXCLUDED.content,
	    embedding = EXCLUDED.embedding,
	    metadata = EXCLUDED.metadata,
	    created_at = EXCLUDED.created_at`

// Store manages document chunks with vector search capabilities.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       querier
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store. db is typically the application's pgxpool.Pool.
func New(db querier, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{db: db, embedder: embedder, logger: logger}, nil
}

// Add embeds and upserts a single document.
func (s *Store) Add(ctx context.Context, doc Document) error {
	return s.AddBatch(ctx, []Document{doc})
}

// AddBatch embeds all documents in one provider call and upserts them.
// Existing IDs are overwritten, so re-ingestion is idempotent.
func (s *Store) AddBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("generating embeddings: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(docs))
	}

	for i, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
		}

		createdAt := doc.CreateAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		if _, err := s.db.Exec(ctx, upsertDocumentSQL,
			doc.ID, doc.Content, pgvector.NewVector(vectors[i]), metadataJSON, createdAt); err != nil {
			return fmt.Errorf("upserting document %q: %w", doc.ID, err)
		}
	}

	s.logger.Debug("added documents", "count", len(docs))
	return nil
}

// Search performs semantic search and returns documents ordered by
// cosine similarity. A bounded timeout prevents long-running vector
// scans from blocking callers.
//
// The metadata filter is always marshaled with json.Marshal and bound
// as a parameter; the JSONB @> operator never sees raw user input.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vectors, err := s.embedder.Embed(queryCtx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("generating query embedding: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}
	queryVec := pgvector.NewVector(vectors[0])

	var rows pgx.Rows
	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = s.db.Query(queryCtx,
			`SELECT id, content, metadata, created_at, 1 - (embedding <=> $1) AS similarity
			 FROM documents
			 WHERE metadata @> $2
			 ORDER BY embedding <=> $1
			 LIMIT $3`,
			queryVec, filterJSON, cfg.topK)
	} else {
		rows, err = s.db.Query(queryCtx,
			`SELECT id, content, metadata, created_at, 1 - (embedding <=> $1) AS similarity
			 FROM documents
			 ORDER BY embedding <=> $1
			 LIMIT $2`,
			queryVec, cfg.topK)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	return s.scanResults(rows)
}

// scanResults converts search rows into Results.
func (s *Store) scanResults(rows pgx.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var (
			id, content  string
			metadataJSON []byte
			createdAt    time.Time
			similarity   float64
		)
		if err := rows.Scan(&id, &content, &metadataJSON, &createdAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}

		var metadata map[string]string
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "document_id", id, "error", err)
			metadata = make(map[string]string)
		}

		results = append(results, Result{
			Document: Document{
				ID:       id,
				Content:  content,
				Metadata: metadata,
				CreateAt: createdAt,
			},
			Similarity: float32(similarity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}

// Count returns the number of documents matching the filter, or the
// total count when the filter is empty.
func (s *Store) Count(ctx context.Context, filter map[string]string) (int, error) {
	var (
		count int64
		err   error
	)

	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		err = s.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM documents WHERE metadata @> $1`, filterJSON).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}

	// Overflow protection for 32-bit platforms.
	if count > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Delete removes a document by ID.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// DeleteBySource removes all chunks ingested from the given source
// file. Used before re-ingesting a file so stale chunks don't linger
// when the file shrank.
func (s *Store) DeleteBySource(ctx context.Context, sourceFile string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM documents WHERE metadata->>'source' = $1`, sourceFile)
	if err != nil {
		return 0, fmt.Errorf("deleting documents for source %q: %w", sourceFile, err)
	}
	return tag.RowsAffected(), nil
}

// ListTickets returns the distinct tickets present in the store,
// newest first.
func (s *Store) ListTickets(ctx context.Context, limit int) ([]TicketRef, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}

	rows, err := s.db.Query(ctx,
		`SELECT metadata->>'ticket_id', COALESCE(metadata->>'source', ''), MAX(created_at) AS latest
		 FROM documents
		 WHERE metadata->>'ticket_id' IS NOT NULL
		 GROUP BY 1, 2
		 ORDER BY latest DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	defer rows.Close()

	var tickets []TicketRef
	for rows.Next() {
		var (
			ref    TicketRef
			latest time.Time
		)
		if err := rows.Scan(&ref.TicketID, &ref.SourceFile, &latest); err != nil {
			return nil, fmt.Errorf("scanning ticket row: %w", err)
		}
		tickets = append(tickets, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ticket rows: %w", err)
	}
	return tickets, nil
}
