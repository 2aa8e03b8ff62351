package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type embeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_ReturnsVectorsInInputOrder(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}

		// Answer out of order; the client must reorder by index.
		json.NewEncoder(w).Encode(embeddingResponse{
			Object: "list",
			Data: []embeddingData{
				{Object: "embedding", Index: 1, Embedding: []float32{0, 1}},
				{Object: "embedding", Index: 0, Embedding: []float32{1, 0}},
			},
			Model: "text-embedding-3-small",
		})
	})

	c := New("test-key", "", srv.URL+"/v1")
	vecs, err := c.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not reordered by index: %v", vecs)
	}
}

func TestEmbed_EmptyInputSkipsAPI(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called for empty input")
	})

	c := New("test-key", "", srv.URL+"/v1")
	vecs, err := c.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil vectors, got %v", vecs)
	}
}

func TestEmbed_VectorCountMismatch(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Object: "list",
			Data:   []embeddingData{{Object: "embedding", Index: 0, Embedding: []float32{1}}},
		})
	})

	c := New("test-key", "", srv.URL+"/v1")
	if _, err := c.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error on vector count mismatch")
	}
}

func TestEmbed_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	c := New("test-key", "", srv.URL+"/v1")
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if _, err := c.Embed(ctx, []string{"x"}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	// The sixth call must be rejected by the open breaker without
	// reaching the upstream.
	if got := hits.Load(); got != 5 {
		t.Errorf("expected 5 upstream calls, got %d", got)
	}
}
