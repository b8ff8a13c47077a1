// Package engine runs the temporal knowledge graph pipeline: episode
// ingestion with LLM extraction, and hybrid retrieval with rank fusion
// and reranking.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ai4u-memory/internal/adapter"
	"ai4u-memory/internal/graph"
	"ai4u-memory/pkg/logger"
)

// CompletionClient produces schema-constrained LLM completions.
type CompletionClient interface {
	StructuredComplete(ctx context.Context, req adapter.StructuredRequest) (*adapter.StructuredResult, error)
}

// EmbeddingClient turns text into vectors.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// RerankClient scores passages for relevance against a query.
type RerankClient interface {
	RerankPassages(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Engine owns the ingestion and retrieval pipelines over the graph.
type Engine struct {
	repo        *graph.Repository
	completions CompletionClient
	embeddings  EmbeddingClient
	reranker    RerankClient
	llmModel    string
	logger      *zap.Logger
}

// New creates a memory engine backed by the given graph repository and
// model clients.
func New(repo *graph.Repository, completions CompletionClient, embeddings EmbeddingClient, reranker RerankClient, llmModel string) *Engine {
	return &Engine{
		repo:        repo,
		completions: completions,
		embeddings:  embeddings,
		reranker:    reranker,
		llmModel:    llmModel,
		logger:      logger.Get(),
	}
}

// EpisodeInput describes one unit of content to ingest.
type EpisodeInput struct {
	GroupID           string
	Name              string
	Content           string
	Source            string
	SourceDescription string
	SessionID         string
	ReferenceTime     time.Time
}

// AddEpisodeResult reports what ingestion persisted.
type AddEpisodeResult struct {
	Episode graph.Episode
	Nodes   []graph.EntityNode
	Edges   []graph.EntityEdge
}

// SearchInput describes a retrieval request across one or more scopes.
type SearchInput struct {
	Groups []string
	Query  string
	Limit  int
}

// SearchResult carries the fused retrieval output. Scores are positional:
// EdgeScores[i] belongs to Edges[i].
type SearchResult struct {
	Edges       []graph.EntityEdge
	EdgeScores  []float64
	Nodes       []graph.EntityNode
	NodeScores  []float64
	Episodes    []graph.Episode
	Communities []graph.Community
}

// RetrieveEpisodes returns the most recent raw episodes in the given scopes.
func (e *Engine) RetrieveEpisodes(ctx context.Context, groups []string, limit int) ([]graph.Episode, error) {
	return e.repo.ListEpisodes(ctx, groups, limit)
}

// ListEntities returns the most recently created entities in the given scopes.
func (e *Engine) ListEntities(ctx context.Context, groups []string, limit int) ([]graph.EntityNode, error) {
	return e.repo.ListEntities(ctx, groups, limit)
}

// GetEntity fetches a single entity by uuid.
func (e *Engine) GetEntity(ctx context.Context, uuid string) (*graph.EntityNode, error) {
	return e.repo.GetEntity(ctx, uuid)
}

// ClearScope deletes everything stored under the given scope. Returns the
// number of nodes removed.
func (e *Engine) ClearScope(ctx context.Context, groupID string) (int, error) {
	return e.repo.ClearScope(ctx, groupID)
}
