package e2e_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

type vectorizerDTO struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	SourceTable      string          `json:"source_table"`
	TriggerName      string          `json:"trigger_name"`
	QueueTable       string          `json:"queue_table"`
	FailedQueueTable string          `json:"failed_queue_table"`
	Enabled          bool            `json:"enabled"`
	Config           json.RawMessage `json:"config"`
}

type statusDTO struct {
	Vectorizer vectorizerDTO `json:"vectorizer"`
	Pending    int64         `json:"pending"`
	Overflow   bool          `json:"pending_overflow"`
	Failed     int64         `json:"failed"`
}

func createBody(name string) map[string]any {
	return map[string]any{
		"name":         name,
		"source_table": "articles",
		"config": map[string]any{
			"version": "1.0",
			"loading": map[string]any{
				"config_type":    "loading",
				"implementation": "column",
				"column_name":    "body",
			},
			"embedding": map[string]any{
				"config_type":    "embedding",
				"implementation": "openai",
				"model":          "text-embedding-3-small",
				"dimensions":     3,
			},
		},
	}
}

func TestVectorizerAPILifecycle(t *testing.T) {
	ts := NewTestServer(t)
	ts.Exec(`CREATE TABLE articles (id INTEGER PRIMARY KEY, title TEXT, body TEXT)`)
	ts.Exec(`INSERT INTO articles (id, title, body) VALUES (1, 'one', 'first body'), (2, 'two', 'second body')`)

	// Unknown vectorizers are a 404.
	resp := ts.Do(http.MethodGet, "/api/v1/vectorizers/missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	// Create.
	var created vectorizerDTO
	resp = ts.Do(http.MethodPost, "/api/v1/vectorizers", createBody("articles-embeddings"), &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if created.ID == 0 || created.QueueTable == "" || !created.Enabled {
		t.Fatalf("unexpected create response: %+v", created)
	}

	// Creating the same name again conflicts.
	resp = ts.Do(http.MethodPost, "/api/v1/vectorizers", createBody("articles-embeddings"), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	// List.
	var list struct {
		Data []vectorizerDTO `json:"data"`
	}
	resp = ts.Do(http.MethodGet, "/api/v1/vectorizers", nil, &list)
	if resp.StatusCode != http.StatusOK || len(list.Data) != 1 {
		t.Fatalf("expected one vectorizer, got %d (status %d)", len(list.Data), resp.StatusCode)
	}

	// The backfill is visible through status.
	var status statusDTO
	resp = ts.Do(http.MethodGet, "/api/v1/vectorizers/articles-embeddings/status", nil, &status)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if status.Pending != 2 || status.Failed != 0 || status.Overflow {
		t.Fatalf("unexpected status: %+v", status)
	}

	// Manual run drains the queue into the destination.
	var run struct {
		Processed int `json:"processed"`
	}
	resp = ts.Do(http.MethodPost, "/api/v1/vectorizers/articles-embeddings/run", nil, &run)
	if resp.StatusCode != http.StatusOK || run.Processed != 2 {
		t.Fatalf("expected 2 processed, got %d (status %d)", run.Processed, resp.StatusCode)
	}
	if n := ts.Count(`SELECT COUNT(*) FROM articles_embedding`); n != 2 {
		t.Fatalf("expected 2 embedding rows, got %d", n)
	}

	// Queue depth reads zero after the run.
	var depth struct {
		Depth int64 `json:"depth"`
		Exact bool  `json:"exact"`
	}
	resp = ts.Do(http.MethodGet, "/api/v1/vectorizers/articles-embeddings/queue-depth?exact=true", nil, &depth)
	if resp.StatusCode != http.StatusOK || depth.Depth != 0 || !depth.Exact {
		t.Fatalf("unexpected queue depth: %+v (status %d)", depth, resp.StatusCode)
	}

	// Disable and enable.
	resp = ts.Do(http.MethodPost, "/api/v1/vectorizers/articles-embeddings/disable", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	var got vectorizerDTO
	_ = ts.Do(http.MethodGet, "/api/v1/vectorizers/articles-embeddings", nil, &got)
	if got.Enabled {
		t.Fatal("expected vectorizer to be disabled")
	}
	resp = ts.Do(http.MethodPost, "/api/v1/vectorizers/articles-embeddings/enable", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	// Delete keeps the destination unless asked otherwise.
	resp = ts.Do(http.MethodDelete, "/api/v1/vectorizers/articles-embeddings", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = ts.Do(http.MethodGet, "/api/v1/vectorizers/articles-embeddings", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
	if n := ts.Count(`SELECT COUNT(*) FROM articles_embedding_store`); n != 2 {
		t.Fatalf("expected destination to survive delete, got %d rows", n)
	}
}

func TestVectorizerAPIBadRequests(t *testing.T) {
	ts := NewTestServer(t)
	ts.Exec(`CREATE TABLE articles (id INTEGER PRIMARY KEY, body TEXT)`)

	// Broken JSON body.
	req, _ := http.NewRequest(http.MethodPost, ts.httpServer.URL+"/api/v1/vectorizers", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	// Unknown source table.
	body := createBody("v")
	body["source_table"] = "missing_table"
	resp = ts.Do(http.MethodPost, "/api/v1/vectorizers", body, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	// Invalid pipeline config.
	body = createBody("v")
	body["config"].(map[string]any)["loading"].(map[string]any)["column_name"] = "nope"
	resp = ts.Do(http.MethodPost, "/api/v1/vectorizers", body, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
