package memory

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingProvider generates vector embeddings from text
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// OpenAIProvider implements EmbeddingProvider using the OpenAI API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIProvider creates a new OpenAI embedding provider. Extra
// request options let callers point at a compatible self-hosted endpoint.
func NewOpenAIProvider(apiKey, model string, opts ...option.RequestOption) *OpenAIProvider {
	dimension := 1536 // text-embedding-3-small / ada-002
	if model == "text-embedding-3-large" {
		dimension = 3072
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
	}
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *OpenAIProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}
