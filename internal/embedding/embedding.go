package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"policy-rag/internal/config"
)

// Provider maps text to unit-normalized vectors through an OpenAI-compatible
// embedding endpoint. Construct it once and reuse it; the underlying client is
// stateless after initialization and safe for concurrent use.
type Provider struct {
	embedder *embeddings.EmbedderImpl
}

func NewProvider(cfg *config.LLMConfig) (*Provider, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Provider{embedder: embedder}, nil
}

// EmbedDocuments embeds texts in order, one vector per input.
func (p *Provider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d vectors for %d texts", len(vectors), len(texts))
	}
	for i := range vectors {
		vectors[i] = Normalize(vectors[i])
	}
	return vectors, nil
}

func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return Normalize(vector), nil
}

// Normalize scales a vector to unit length so that inner product equals
// cosine similarity. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
