// Package hnswlocal provides an in-process vector.Index backed by an HNSW
// graph. It keeps everything in memory, so it suits local development and
// tests; production deployments use the qdrant backend.
package hnswlocal

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/verba-dev/verba/internal/embed"
	"github.com/verba-dev/verba/internal/observability"
	"github.com/verba-dev/verba/internal/vector"
)

// Index implements vector.Index over a coder/hnsw graph. Metadata lives in
// a side map keyed by document ID; the graph only knows keys and vectors.
type Index struct {
	mu       sync.Mutex
	graph    *hnsw.Graph[string]
	docs     map[string]vector.Document
	provider embed.Provider
}

// New creates an empty in-memory index.
func New(provider embed.Provider) *Index {
	return &Index{
		graph:    hnsw.NewGraph[string](),
		docs:     make(map[string]vector.Document),
		provider: provider,
	}
}

func (x *Index) Store(ctx context.Context, doc vector.Document) error {
	ctx, span := observability.StartIndexSpan(ctx, "hnswlocal", "store")
	defer span.End()

	vecs, err := x.provider.Embed(ctx, []string{doc.Content})
	if err != nil {
		err = fmt.Errorf("embedding document: %w", err)
		observability.RecordError(span, err)
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph.Add(hnsw.MakeNode(doc.ID, vecs[0]))
	x.docs[doc.ID] = doc
	return nil
}

func (x *Index) Query(ctx context.Context, text string, k int, filter map[string]string) ([]vector.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	ctx, span := observability.StartIndexSpan(ctx, "hnswlocal", "query")
	defer span.End()

	vecs, err := x.provider.Embed(ctx, []string{text})
	if err != nil {
		err = fmt.Errorf("embedding query: %w", err)
		observability.RecordError(span, err)
		return nil, err
	}
	q := vecs[0]

	x.mu.Lock()
	defer x.mu.Unlock()

	// The graph cannot filter during traversal, so oversample and apply
	// the metadata predicate afterwards. With few distinct directions per
	// deployment this stays cheap.
	sample := k * 4
	if len(filter) > 0 && sample < k+16 {
		sample = k + 16
	}
	if total := x.graph.Len(); sample > total {
		sample = total
	}
	if sample == 0 {
		return nil, nil
	}

	var hits []vector.Hit
	for _, node := range x.graph.Search(q, sample) {
		doc, ok := x.docs[node.Key]
		if !ok || !matches(doc.Metadata, filter) {
			continue
		}
		hits = append(hits, vector.Hit{
			ID:       doc.ID,
			Score:    float32(cosineSimilarity(q, node.Value)),
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (x *Index) Close() error { return nil }

func matches(metadata, filter map[string]string) bool {
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ vector.Index = (*Index)(nil)
