// Package llm provides the client for the external inference server.
//
// Model inference runs out of process in a llama.cpp-style HTTP server
// loaded with a GGML/GGUF model. This package only speaks its wire
// contract:
//
//	POST /generate {"prompt": "...", "max_tokens": 512} -> {"text": "..."}
//	GET  /health -> 200
package llm

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

// maxResponseSize limits generation responses (the model can't usefully
// produce more; anything bigger signals a broken server).
const maxResponseSize = 8 * 1024 * 1024 // 8MB

// Client is an HTTP client for the inference server.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	logger  log.Logger
}

// NewClient creates an inference client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger log.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate sends a prompt to the inference server and returns the
// generated text.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return "", fmt.Errorf("marshaling generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("inference server returned %d: %s", resp.StatusCode, msg)
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}

	c.logger.Debug("generation completed",
		"prompt_chars", len(prompt),
		"output_chars", len(out.Text),
		"duration", time.Since(start))

	return out.Text, nil
}

// Health checks the inference server liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference server unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
