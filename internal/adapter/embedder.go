package adapter

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"ai4u-memory/pkg/logger"
)

// Embedder issues batched embedding calls against the shared proxy client.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	logger *zap.Logger
}

// NewEmbedder creates an embedder for the configured model
func NewEmbedder(client *openai.Client, model string) *Embedder {
	return &Embedder{
		client: client,
		model:  openai.EmbeddingModel(model),
		logger: logger.Get(),
	}
}

// Embed returns one vector per input text, in input order. An empty input
// makes no network call.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= len(vectors) {
			idx = i
		}
		vectors[idx] = item.Embedding
	}

	e.logger.Debug("Embedded batch",
		zap.String("model", string(e.model)),
		zap.Int("count", len(texts)),
	)

	return vectors, nil
}
