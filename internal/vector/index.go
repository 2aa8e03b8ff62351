package vector

import "context"

// Document is a piece of text stored in the index with its metadata.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Hit is a single match from a similarity query.
type Hit struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Index provides document storage and metadata-filtered similarity search.
// Any backend satisfying this contract (atomic per-document writes,
// read-after-write visibility for subsequent queries) is substitutable.
type Index interface {
	// Store writes one document under its ID.
	Store(ctx context.Context, doc Document) error
	// Query returns the top-k documents most similar to text, restricted
	// to documents whose metadata exactly matches every filter entry.
	// Results are ordered by the backend's own similarity metric.
	Query(ctx context.Context, text string, k int, filter map[string]string) ([]Hit, error)
	// Close releases resources.
	Close() error
}
