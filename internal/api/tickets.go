package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nhuanvd/rag-demo/internal/knowledge"
	"github.com/nhuanvd/rag-demo/internal/log"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
	ticketListLimit    = 1000
)

// ticketStore is the knowledge store surface the read endpoints need.
type ticketStore interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	ListTickets(ctx context.Context, limit int) ([]knowledge.TicketRef, error)
}

type ticketsHandler struct {
	store  ticketStore
	logger log.Logger
}

type searchResult struct {
	Content    string  `json:"content"`
	TicketID   string  `json:"ticket_id"`
	SourceFile string  `json:"source_file"`
	Similarity float32 `json:"similarity"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
	Count   int            `json:"count"`
}

// search answers GET /search?query=&limit=.
func (h *ticketsHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query parameter is required", h.logger)
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", h.logger)
			return
		}
		limit = min(parsed, maxSearchLimit)
	}

	results, err := h.store.Search(r.Context(), query, knowledge.WithTopK(limit))
	if err != nil {
		h.logger.Error("search failed", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "search_failed", "search failed", h.logger)
		return
	}

	out := make([]searchResult, len(results))
	for i, res := range results {
		out[i] = searchResult{
			Content:    res.Content,
			TicketID:   res.Metadata[knowledge.MetaTicketID],
			SourceFile: res.Metadata[knowledge.MetaSource],
			Similarity: res.Similarity,
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: out, Count: len(out)}, h.logger)
}

type ticketsResponse struct {
	Tickets []knowledge.TicketRef `json:"tickets"`
	Count   int                   `json:"count"`
}

// list answers GET /tickets.
func (h *ticketsHandler) list(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.store.ListTickets(r.Context(), ticketListLimit)
	if err != nil {
		h.logger.Error("ticket listing failed", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list tickets", h.logger)
		return
	}
	if tickets == nil {
		tickets = []knowledge.TicketRef{}
	}
	writeJSON(w, http.StatusOK, ticketsResponse{Tickets: tickets, Count: len(tickets)}, h.logger)
}

// root answers GET / with an endpoint listing.
func (h *ticketsHandler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "RAG API",
		"endpoints": map[string]string{
			"qa":      "POST /qa - Ask questions about JIRA tickets",
			"search":  "GET /search?query=... - Search tickets by content",
			"tickets": "GET /tickets - List all available tickets",
			"health":  "GET /health - Health check",
		},
	}, h.logger)
}
