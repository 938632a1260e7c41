package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhuanvd/rag-demo/internal/log"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	auth := newTestAuthenticator(t, server.URL)
	client, err := NewClient(auth, log.NewNop())
	require.NoError(t, err)
	return client
}

func TestFetchTicket(t *testing.T) {
	t.Run("fetches and parses", func(t *testing.T) {
		var gotPath string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			fmt.Fprint(w, sampleExport)
		}))

		ticket, err := client.FetchTicket(context.Background(), "DEMO-42")
		require.NoError(t, err)
		assert.Equal(t, "/si/jira.issueviews:issue-xml/DEMO-42/DEMO-42.xml", gotPath)
		assert.Equal(t, "DEMO-42", ticket.Key)
		assert.Equal(t, "Login page broken", ticket.Title)
	})

	t.Run("not found", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.FetchTicket(context.Background(), "DEMO-999")
		assert.ErrorIs(t, err, ErrTicketNotFound)
	})

	t.Run("session expired", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, err := client.FetchTicket(context.Background(), "DEMO-1")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := client.FetchTicket(context.Background(), "DEMO-1")
		assert.ErrorContains(t, err, "unexpected status 502")
	})

	t.Run("empty key", func(t *testing.T) {
		client := newTestClient(t, http.NewServeMux())
		_, err := client.FetchTicket(context.Background(), "")
		assert.Error(t, err)
	})
}
