package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nhuanvd/rag-demo/internal/log"
)

// maxEmbedResponseSize limits embedding responses to prevent resource
// exhaustion from a misbehaving sidecar.
const maxEmbedResponseSize = 32 * 1024 * 1024 // 32MB

// LocalEmbedder calls an HTTP embedding sidecar that wraps a local
// sentence-transformer model.
//
// Wire contract:
//
//	POST /embed {"texts": ["..."]} -> {"embeddings": [[0.1, ...], ...]}
type LocalEmbedder struct {
	baseURL   string
	dimension int
	client    *http.Client
	logger    log.Logger
}

// NewLocalEmbedder creates an embedder backed by the sidecar at baseURL.
func NewLocalEmbedder(baseURL string, dimension int, logger log.Logger) *LocalEmbedder {
	return &LocalEmbedder{
		baseURL:   baseURL,
		dimension: dimension,
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements Embedder.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding server returned %d: %s", resp.StatusCode, msg)
	}

	var out embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxEmbedResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}

	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(out.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(out.Embeddings))
	for i, v := range out.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = fitDimension(v, e.dimension)
	}

	e.logger.Debug("embedded texts via sidecar", "count", len(texts))
	return vectors, nil
}

// Dimension implements Embedder.
func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}
