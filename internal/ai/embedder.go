// Package ai provides embedding generation for the RAG pipeline.
//
// Embedding is delegated to an external provider behind the Embedder
// interface: the Gemini API (provider "googleai") or a local HTTP
// sidecar serving a sentence-transformer model (provider "local").
// Both return vectors sized to the documents table schema.
package ai

import (
	"context"
	"fmt"

	"github.com/nhuanvd/rag-demo/internal/config"
	"github.com/nhuanvd/rag-demo/internal/log"
)

// Embedder generates vector embeddings for text.
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns one embedding per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the size of the vectors Embed returns.
	Dimension() int
}

// NewEmbedder creates the embedder selected by the configuration.
func NewEmbedder(ctx context.Context, cfg *config.Config, logger log.Logger) (Embedder, error) {
	switch cfg.Embedder.Provider {
	case config.ProviderGoogleAI:
		return NewGoogleEmbedder(ctx, cfg.Embedder.Model, cfg.Embedder.Dimension, logger)
	case config.ProviderLocal:
		return NewLocalEmbedder(cfg.Embedder.BaseURL, cfg.Embedder.Dimension, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Embedder.Provider)
	}
}

// fitDimension pads or truncates v to dim so vectors always match the
// database schema even when a model's native size differs.
func fitDimension(v []float32, dim int) []float32 {
	if len(v) == dim {
		return v
	}
	if len(v) > dim {
		return v[:dim]
	}
	padded := make([]float32, dim)
	copy(padded, v)
	return padded
}
