package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nhuanvd/rag-demo/internal/log"
	"github.com/nhuanvd/rag-demo/internal/rag"
)

// maxQuestionBytes caps the /qa request body.
const maxQuestionBytes = 64 << 10

// answerer is the QA engine surface the handler needs.
type answerer interface {
	Ask(ctx context.Context, question string) (rag.Answer, error)
}

type qaHandler struct {
	engine answerer
	logger log.Logger
}

type qaRequest struct {
	Question        string `json:"question"`
	IncludeMetadata *bool  `json:"include_metadata,omitempty"`
}

// ask answers POST /qa. Internal failures still produce a 200 with the
// error folded into the answer field; only malformed requests get an
// error status.
func (h *qaHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req qaRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field", h.logger)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question must not be empty", h.logger)
		return
	}

	answer, err := h.engine.Ask(r.Context(), req.Question)
	if err != nil {
		h.logger.Error("question answering failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusOK, rag.Answer{
			Answer:     "Error processing query: the service is temporarily unavailable, please try again.",
			Sources:    []rag.Source{},
			TicketInfo: rag.TicketInfo{RelevantTickets: []string{}},
		}, h.logger)
		return
	}

	if req.IncludeMetadata != nil && !*req.IncludeMetadata {
		answer.Sources = []rag.Source{}
		answer.TicketInfo = rag.TicketInfo{RelevantTickets: []string{}}
	}
	writeJSON(w, http.StatusOK, answer, h.logger)
}
