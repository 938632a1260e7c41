package knowledge

import "time"

// Source type values stored in document metadata.
const (
	// SourceTypeTicket marks chunks ingested from scraped ticket files.
	SourceTypeTicket = "ticket"
)

// Metadata keys written by ingestion and used for filtering.
const (
	MetaSourceType = "source_type"
	MetaSource     = "source"
	MetaTicketID   = "ticket_id"
	MetaTicketType = "ticket_type"
	MetaPriority   = "priority"
	MetaStatus     = "status"
)

// Document is a stored chunk of text with its metadata.
type Document struct {
	ID       string            // Unique identifier
	Content  string            // Chunk text
	Metadata map[string]string // source, ticket_id, ticket_type, priority, status
	CreateAt time.Time         // Creation timestamp
}

// Result is a single search result with similarity score. Document
// fields are promoted, so callers read r.Content and r.Metadata
// directly.
type Result struct {
	Document
	Similarity float32 // Cosine similarity (0-1)
}

// TicketRef identifies a ticket present in the store.
type TicketRef struct {
	TicketID   string `json:"ticket_id"`
	SourceFile string `json:"source_file"`
}

// SearchOption configures search behavior using functional options.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results to return. Default 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter adds a metadata filter; multiple calls AND together.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the default 10s search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
