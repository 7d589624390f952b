package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/embedq/embedq"
	v1 "github.com/embedq/embedq/infrastructure/api/v1"
	"github.com/embedq/embedq/infrastructure/embedder"
	"github.com/embedq/embedq/internal/database"
)

// TestServer wraps the API surface for e2e testing: a real client backed by
// SQLite, the v1 routes served over httptest, and a database handle for
// seeding source rows.
type TestServer struct {
	t          *testing.T
	client     *embedq.Client
	db         database.Database
	httpServer *httptest.Server
}

// NewTestServer creates a test server with all dependencies wired up. The
// embedding backend is replaced by a deterministic in-process fake.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	client, err := embedq.New(ctx,
		embedq.WithSQLite(dbPath),
		embedq.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		embedq.WithEmbedder(fakeEmbedder()),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	router := chi.NewRouter()
	router.Mount("/api/v1/vectorizers", v1.NewVectorizersRouter(client).Routes())
	httpServer := httptest.NewServer(router)

	ts := &TestServer{
		t:          t,
		client:     client,
		db:         client.Database(),
		httpServer: httpServer,
	}
	t.Cleanup(ts.close)
	return ts
}

func (ts *TestServer) close() {
	ts.httpServer.Close()
	_ = ts.client.Close()
}

// fakeEmbedder returns vectors derived from the text length, so tests can
// run without an embedding provider.
func fakeEmbedder() embedder.Func {
	return embedder.Func{
		Dims: 3,
		EmbedFunc: func(_ context.Context, texts []string) ([][]float64, error) {
			out := make([][]float64, len(texts))
			for i := range texts {
				out[i] = []float64{float64(len(texts[i])), 0, 1}
			}
			return out, nil
		},
	}
}

// Exec runs a SQL statement against the test database.
func (ts *TestServer) Exec(sql string, args ...any) {
	ts.t.Helper()
	if err := ts.db.Session(context.Background()).Exec(sql, args...).Error; err != nil {
		ts.t.Fatalf("exec %q: %v", sql, err)
	}
}

// Count returns the single integer the query yields.
func (ts *TestServer) Count(sql string, args ...any) int64 {
	ts.t.Helper()
	var n int64
	if err := ts.db.Session(context.Background()).Raw(sql, args...).Scan(&n).Error; err != nil {
		ts.t.Fatalf("count %q: %v", sql, err)
	}
	return n
}

// Do performs an HTTP request against the test server and decodes the JSON
// response body into out when it is non-nil.
func (ts *TestServer) Do(method, path string, body any, out any) *http.Response {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.httpServer.URL+path, reader)
	if err != nil {
		ts.t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatalf("read response: %v", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			ts.t.Fatalf("decode response %q: %v", string(data), err)
		}
	}
	return resp
}
