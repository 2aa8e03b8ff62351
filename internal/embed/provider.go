// Package embed abstracts text-to-vector embedding providers.
package embed

import "context"

// Provider is the interface all embedding backends must implement.
type Provider interface {
	// Embed returns one embedding vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "openai").
	Name() string
}
