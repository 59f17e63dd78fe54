package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder implements discovery.Embedder via the OpenAI embeddings
// endpoint, separate from commonllm.Client's chat-completions surface
// since embeddings have their own request/response shape.
type Embedder struct {
	client openai.Client
	model  string
}

// EmbedderConfig configures an Embedder.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewEmbedder constructs an Embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Embedder{client: openai.NewClient(opts...), model: model}, nil
}

// Embed returns the embedding vector for one short text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedder: no embedding returned")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
