package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhuanvd/rag-demo/internal/knowledge"
	"github.com/nhuanvd/rag-demo/internal/log"
)

// snippetLimit caps source excerpts returned to clients.
const snippetLimit = 200

// retriever is the slice of the knowledge store the engine needs.
type retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// generator produces an answer from a prompt.
type generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Source is a retrieved excerpt backing an answer.
type Source struct {
	Content    string  `json:"content"`
	SourceFile string  `json:"source_file"`
	TicketID   string  `json:"ticket_id"`
	Similarity float32 `json:"similarity"`
}

// TicketInfo summarises which tickets contributed to an answer.
type TicketInfo struct {
	RelevantTickets []string `json:"relevant_tickets"`
	TotalTickets    int      `json:"total_tickets"`
}

// Answer is the full result of a question.
type Answer struct {
	Answer     string     `json:"answer"`
	Sources    []Source   `json:"sources"`
	TicketInfo TicketInfo `json:"ticket_info"`
}

// Engine answers questions by retrieving relevant ticket chunks and
// asking the language model to answer from them.
type Engine struct {
	store     retriever
	llm       generator
	logger    log.Logger
	topK      int
	maxTokens int
}

// NewEngine creates a question answering engine.
func NewEngine(store retriever, llm generator, logger log.Logger, topK, maxTokens int) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if llm == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if topK <= 0 {
		topK = 5
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Engine{store: store, llm: llm, logger: logger, topK: topK, maxTokens: maxTokens}, nil
}

// Ask retrieves the most relevant chunks for the question, builds a
// context prompt from them and asks the model. With no matching
// chunks it answers without calling the model.
func (e *Engine) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question is empty")
	}

	results, err := e.store.Search(ctx, question, knowledge.WithTopK(e.topK))
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	if len(results) == 0 {
		return Answer{
			Answer:     "I could not find any relevant tickets for this question.",
			Sources:    []Source{},
			TicketInfo: TicketInfo{RelevantTickets: []string{}},
		}, nil
	}

	prompt := buildPrompt(question, results)
	text, err := e.llm.Generate(ctx, prompt, e.maxTokens)
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	tickets := relevantTickets(results)
	e.logger.Debug("question answered", "chunks", len(results), "tickets", len(tickets))
	return Answer{
		Answer:  strings.TrimSpace(text),
		Sources: buildSources(results),
		TicketInfo: TicketInfo{
			RelevantTickets: tickets,
			TotalTickets:    len(tickets),
		},
	}, nil
}

// buildPrompt assembles a stuff-style prompt: all retrieved chunks
// followed by the question.
func buildPrompt(question string, results []knowledge.Result) string {
	var b strings.Builder
	b.WriteString("You are a support engineer answering questions about JIRA tickets.\n")
	b.WriteString("Answer using only the ticket excerpts below. ")
	b.WriteString("If the excerpts do not contain the answer, say so.\n\n")
	b.WriteString("Ticket excerpts:\n")
	for i, r := range results {
		ticketID := r.Metadata[knowledge.MetaTicketID]
		fmt.Fprintf(&b, "\n--- Excerpt %d (ticket %s) ---\n%s\n", i+1, ticketID, r.Content)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

func buildSources(results []knowledge.Result) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			Content:    truncate(r.Content, snippetLimit),
			SourceFile: r.Metadata[knowledge.MetaSource],
			TicketID:   r.Metadata[knowledge.MetaTicketID],
			Similarity: r.Similarity,
		}
	}
	return sources
}

// relevantTickets returns the distinct ticket IDs in retrieval order.
func relevantTickets(results []knowledge.Result) []string {
	seen := make(map[string]bool, len(results))
	tickets := make([]string, 0, len(results))
	for _, r := range results {
		id := r.Metadata[knowledge.MetaTicketID]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		tickets = append(tickets, id)
	}
	return tickets
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
