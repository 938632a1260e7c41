// Package api exposes the question answering service over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/nhuanvd/rag-demo/internal/log"
)

// ServerConfig contains the dependencies of the API server.
type ServerConfig struct {
	Logger log.Logger
	Engine answerer    // Required
	Store  ticketStore // Required
	DB     pinger      // Optional: nil skips the database readiness probe
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	qh := &qaHandler{engine: cfg.Engine, logger: logger}
	th := &ticketsHandler{store: cfg.Store, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /qa", qh.ask)
	mux.HandleFunc("GET /search", th.search)
	mux.HandleFunc("GET /tickets", th.list)
	mux.HandleFunc("GET /{$}", th.root)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → Routes
	// RequestID runs before Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes stay outside the middleware stack so probe traffic
	// does not pollute request logs.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.DB, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
