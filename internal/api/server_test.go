package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhuanvd/rag-demo/internal/knowledge"
	"github.com/nhuanvd/rag-demo/internal/log"
	"github.com/nhuanvd/rag-demo/internal/rag"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeEngine struct {
	answer rag.Answer
	err    error
	asked  string
}

func (f *fakeEngine) Ask(_ context.Context, question string) (rag.Answer, error) {
	f.asked = question
	return f.answer, f.err
}

type fakeStore struct {
	results   []knowledge.Result
	searchErr error
	tickets   []knowledge.TicketRef
	listErr   error
	gotOpts   int
}

func (f *fakeStore) Search(_ context.Context, _ string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	f.gotOpts = len(opts)
	return f.results, f.searchErr
}

func (f *fakeStore) ListTickets(_ context.Context, _ int) ([]knowledge.TicketRef, error) {
	return f.tickets, f.listErr
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func newTestServer(t *testing.T, engine *fakeEngine, store *fakeStore, db pinger) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger: log.NewNop(),
		Engine: engine,
		Store:  store,
		DB:     db,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// ServeMux writes plain-text bodies for 404/405; only decode JSON.
	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestNewServer(t *testing.T) {
	t.Run("missing engine", func(t *testing.T) {
		_, err := NewServer(ServerConfig{Store: &fakeStore{}})
		assert.Error(t, err)
	})
	t.Run("missing store", func(t *testing.T) {
		_, err := NewServer(ServerConfig{Engine: &fakeEngine{}})
		assert.Error(t, err)
	})
}

func TestQAEndpoint(t *testing.T) {
	answer := rag.Answer{
		Answer: "restart the auth pod",
		Sources: []rag.Source{
			{Content: "auth pod crash...", SourceFile: "DEMO-1.txt", TicketID: "DEMO-1", Similarity: 0.88},
		},
		TicketInfo: rag.TicketInfo{RelevantTickets: []string{"DEMO-1"}, TotalTickets: 1},
	}

	t.Run("answers a question", func(t *testing.T) {
		engine := &fakeEngine{answer: answer}
		handler := newTestServer(t, engine, &fakeStore{}, nil)

		rec, body := doJSON(t, handler, http.MethodPost, "/qa", `{"question":"how to fix login?"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "how to fix login?", engine.asked)
		assert.Equal(t, "restart the auth pod", body["answer"])

		sources := body["sources"].([]any)
		require.Len(t, sources, 1)
		src := sources[0].(map[string]any)
		assert.Equal(t, "DEMO-1", src["ticket_id"])
		assert.Equal(t, "DEMO-1.txt", src["source_file"])

		info := body["ticket_info"].(map[string]any)
		assert.Equal(t, float64(1), info["total_tickets"])
	})

	t.Run("include_metadata false strips sources", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{answer: answer}, &fakeStore{}, nil)

		rec, body := doJSON(t, handler, http.MethodPost, "/qa",
			`{"question":"q","include_metadata":false}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, body["sources"])
		info := body["ticket_info"].(map[string]any)
		assert.Equal(t, float64(0), info["total_tickets"])
	})

	t.Run("engine failure still returns 200", func(t *testing.T) {
		engine := &fakeEngine{err: fmt.Errorf("pg connection refused")}
		handler := newTestServer(t, engine, &fakeStore{}, nil)

		rec, body := doJSON(t, handler, http.MethodPost, "/qa", `{"question":"q"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		answerText := body["answer"].(string)
		assert.Contains(t, answerText, "Error processing query")
		assert.NotContains(t, answerText, "pg connection refused")
	})

	t.Run("empty question", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, nil)
		rec, _ := doJSON(t, handler, http.MethodPost, "/qa", `{"question":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, nil)
		rec, _ := doJSON(t, handler, http.MethodPost, "/qa", `{question`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, nil)
		rec, _ := doJSON(t, handler, http.MethodGet, "/qa", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestSearchEndpoint(t *testing.T) {
	store := &fakeStore{results: []knowledge.Result{
		{
			Document: knowledge.Document{
				Content: "full chunk content",
				Metadata: map[string]string{
					knowledge.MetaTicketID: "DEMO-3",
					knowledge.MetaSource:   "DEMO-3.txt",
				},
			},
			Similarity: 0.7,
		},
	}}

	t.Run("returns results", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, store, nil)
		rec, body := doJSON(t, handler, http.MethodGet, "/search?query=export+hangs&limit=3", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "export hangs", body["query"])
		assert.Equal(t, float64(1), body["count"])
		results := body["results"].([]any)
		first := results[0].(map[string]any)
		assert.Equal(t, "full chunk content", first["content"])
		assert.Equal(t, "DEMO-3", first["ticket_id"])
	})

	t.Run("missing query", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, store, nil)
		rec, _ := doJSON(t, handler, http.MethodGet, "/search", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, store, nil)
		rec, _ := doJSON(t, handler, http.MethodGet, "/search?query=x&limit=zero", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		broken := &fakeStore{searchErr: fmt.Errorf("db down")}
		handler := newTestServer(t, &fakeEngine{}, broken, nil)
		rec, body := doJSON(t, handler, http.MethodGet, "/search?query=x", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		errBody := body["error"].(map[string]any)
		assert.Equal(t, "search_failed", errBody["code"])
	})
}

func TestTicketsEndpoint(t *testing.T) {
	t.Run("lists tickets", func(t *testing.T) {
		store := &fakeStore{tickets: []knowledge.TicketRef{
			{TicketID: "DEMO-1", SourceFile: "DEMO-1.txt"},
			{TicketID: "DEMO-2", SourceFile: "DEMO-2.txt"},
		}}
		handler := newTestServer(t, &fakeEngine{}, store, nil)

		rec, body := doJSON(t, handler, http.MethodGet, "/tickets", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(2), body["count"])
	})

	t.Run("empty store returns empty list not null", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, nil)
		rec, _ := doJSON(t, handler, http.MethodGet, "/tickets", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"tickets":[]`)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, nil)
		rec, body := doJSON(t, handler, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "RAG API", body["service"])
	})

	t.Run("ready with healthy database", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, &fakePinger{})
		rec, _ := doJSON(t, handler, http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ready with unreachable database", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, &fakePinger{err: fmt.Errorf("dial refused")})
		rec, _ := doJSON(t, handler, http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRootEndpoint(t *testing.T) {
	handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, nil)
	rec, body := doJSON(t, handler, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RAG API", body["message"])
	endpoints := body["endpoints"].(map[string]any)
	assert.Contains(t, endpoints, "qa")

	t.Run("unknown path is 404", func(t *testing.T) {
		rec, _ := doJSON(t, handler, http.MethodGet, "/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("request id header set", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, nil)
		rec, _ := doJSON(t, handler, http.MethodGet, "/", "")
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("incoming request id preserved", func(t *testing.T) {
		handler := newTestServer(t, &fakeEngine{}, &fakeStore{}, nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-from-proxy")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "req-from-proxy", rec.Header().Get("X-Request-ID"))
	})

	t.Run("panic becomes 500", func(t *testing.T) {
		logger := log.NewNop()
		panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})
		handler := recoveryMiddleware(logger)(panicky)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "internal_error")
	})
}
