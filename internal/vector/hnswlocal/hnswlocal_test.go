package hnswlocal

import (
	"context"
	"fmt"
	"testing"

	"github.com/verba-dev/verba/internal/vector"
)

// stubEmbedder maps known texts to fixed vectors.
type stubEmbedder struct {
	vecs map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := s.vecs[t]
		if !ok {
			return nil, fmt.Errorf("no stub vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Name() string { return "stub" }

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	emb := &stubEmbedder{vecs: map[string][]float32{
		"good morning": {1, 0, 0},
		"good evening": {0.9, 0.1, 0},
		"the weather":  {0, 1, 0},
		"buonasera":    {0, 0, 1},
	}}
	return New(emb)
}

func store(t *testing.T, idx *Index, id, content string, meta map[string]string) {
	t.Helper()
	if err := idx.Store(context.Background(), vector.Document{ID: id, Content: content, Metadata: meta}); err != nil {
		t.Fatalf("Store(%s): %v", id, err)
	}
}

func TestQuery_ExactTextRanksFirst(t *testing.T) {
	idx := newTestIndex(t)
	store(t, idx, "1", "good morning", map[string]string{"source_language": "en"})
	store(t, idx, "2", "good evening", map[string]string{"source_language": "en"})
	store(t, idx, "3", "the weather", map[string]string{"source_language": "en"})

	hits, err := idx.Query(context.Background(), "good morning", 2, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "1" {
		t.Errorf("expected exact match first, got %s", hits[0].ID)
	}
	if hits[1].ID != "2" {
		t.Errorf("expected nearest neighbor second, got %s", hits[1].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits out of similarity order")
	}
}

func TestQuery_FilterRestrictsByMetadata(t *testing.T) {
	idx := newTestIndex(t)
	store(t, idx, "en1", "good morning", map[string]string{"source_language": "en", "target_language": "it"})
	store(t, idx, "it1", "buonasera", map[string]string{"source_language": "it", "target_language": "en"})

	hits, err := idx.Query(context.Background(), "good morning", 4, map[string]string{
		"source_language": "it",
		"target_language": "en",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "it1" {
		t.Errorf("expected only the it>en document, got %v", hits)
	}
}

func TestQuery_EmptyIndex(t *testing.T) {
	idx := newTestIndex(t)

	hits, err := idx.Query(context.Background(), "good morning", 4, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %v", hits)
	}
}

func TestQuery_NonPositiveK(t *testing.T) {
	idx := newTestIndex(t)
	store(t, idx, "1", "good morning", nil)

	hits, err := idx.Query(context.Background(), "good morning", 0, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for k=0, got %v", hits)
	}
}

func TestStore_EmbedderFailurePropagates(t *testing.T) {
	idx := New(&stubEmbedder{vecs: map[string][]float32{}})

	err := idx.Store(context.Background(), vector.Document{ID: "1", Content: "unknown text"})
	if err == nil {
		t.Fatal("expected embedding failure to propagate")
	}
}
