package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/verba-dev/verba/internal/embed"
)

const defaultModel = "text-embedding-3-small"

// Client implements embed.Provider for OpenAI-compatible embedding APIs.
// Calls go through a circuit breaker so a flapping upstream fails fast
// instead of stalling every request.
type Client struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	breaker *gobreaker.CircuitBreaker
}

// New creates an OpenAI-compatible embedding provider. baseURL may point
// at any endpoint speaking the OpenAI embeddings API; empty means the
// official one.
func New(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = defaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openai-embeddings",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		client:  openai.NewClientWithConfig(cfg),
		model:   openai.EmbeddingModel(model),
		breaker: cb,
	}
}

func (c *Client) Name() string { return "openai" }

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: c.model,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	resp := out.(openai.EmbeddingResponse)
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

var _ embed.Provider = (*Client)(nil)
