package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ai4u-memory/pkg/logger"
)

// Reranker scores retrieved passages against a query. It rides on the
// structured-completion shim rather than a dedicated cross-encoder endpoint,
// since the proxy only exposes chat completions.
type Reranker struct {
	shim   *CompletionShim
	model  string
	logger *zap.Logger
}

// NewReranker creates a reranker using the given model through the shim
func NewReranker(shim *CompletionShim, model string) *Reranker {
	return &Reranker{
		shim:   shim,
		model:  model,
		logger: logger.Get(),
	}
}

var rerankSchema = Schema{
	Name: "passage_scores",
	Definition: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"scores": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":    "number",
					"minimum": 0,
					"maximum": 1,
				},
			},
		},
		"required": []string{"scores"},
	},
}

// RerankPassages returns one relevance score in [0,1] per passage, in
// passage order. Scores the model fails to produce default to 0.
func (r *Reranker) RerankPassages(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nPassages:\n", query)
	for i, p := range passages {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
	}
	sb.WriteString("\nReturn a JSON object with a \"scores\" array holding one relevance score per passage, in order.")

	result, err := r.shim.StructuredComplete(ctx, StructuredRequest{
		Model: r.model,
		Messages: []Message{
			{
				Role:    "system",
				Content: "You score how relevant each passage is to a query, from 0.0 (unrelated) to 1.0 (directly answers it).",
			},
			{
				Role:    "user",
				Content: sb.String(),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode rerank scores: %w", err)
	}

	scores := make([]float64, len(passages))
	copy(scores, payload.Scores)

	r.logger.Debug("Reranked passages",
		zap.String("model", r.model),
		zap.Int("passages", len(passages)),
		zap.Int("scored", len(payload.Scores)),
	)

	return scores, nil
}
