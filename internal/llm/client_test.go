package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhuanvd/rag-demo/internal/log"
)

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Why is the sky blue?", req.Prompt)
		assert.Equal(t, 256, req.MaxTokens)

		_ = json.NewEncoder(w).Encode(generateResponse{Text: "Rayleigh scattering."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 10*time.Second, log.NewNop())
	text, err := c.Generate(context.Background(), "Why is the sky blue?", 256)

	require.NoError(t, err)
	assert.Equal(t, "Rayleigh scattering.", text)
}

func TestClient_Generate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 10*time.Second, log.NewNop())
	_, err := c.Generate(context.Background(), "prompt", 64)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "out of memory")
}

func TestClient_Generate_ContextCancelled(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client going away,
		// then park until the client context has expired.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	// Cleanups run last-in first-out: release the handler, then Close.
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, 10*time.Second, log.NewNop())
	_, err := c.Generate(ctx, "prompt", 64)

	require.Error(t, err)
}

func TestClient_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, log.NewNop())
		assert.NoError(t, c.Health(context.Background()))
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second, log.NewNop())
		assert.Error(t, c.Health(context.Background()))
	})
}
