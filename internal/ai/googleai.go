package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/nhuanvd/rag-demo/internal/log"
)

// GoogleEmbedder generates embeddings via the Gemini API.
// The API key is read from GEMINI_API_KEY by the genai client.
type GoogleEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
	logger    log.Logger
}

// NewGoogleEmbedder creates a Gemini-backed embedder.
// OutputDimensionality truncates model output to the schema dimension
// (gemini-embedding-001 natively outputs 3072).
func NewGoogleEmbedder(ctx context.Context, model string, dimension int, logger log.Logger) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GoogleEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// Embed implements Embedder.
func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	dim := int32(e.dimension) // #nosec G115 -- dimension validated in config (1-4096)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts with %s: %w", len(texts), e.model, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = fitDimension(emb.Values, e.dimension)
	}

	e.logger.Debug("embedded texts", "count", len(texts), "model", e.model)
	return vectors, nil
}

// Dimension implements Embedder.
func (e *GoogleEmbedder) Dimension() int {
	return e.dimension
}
