package gateway

import (
	"context"
	"time"

	"ai4u-memory/internal/engine"
	"ai4u-memory/internal/graph"
	"ai4u-memory/internal/salience"
)

// Memory is the slice of the engine the gateways consume. Declared here so
// handlers can be tested against a fake pipeline.
type Memory interface {
	AddEpisode(ctx context.Context, input engine.EpisodeInput) (*engine.AddEpisodeResult, error)
	Search(ctx context.Context, input engine.SearchInput) (*engine.SearchResult, error)
	RetrieveEpisodes(ctx context.Context, groups []string, limit int) ([]graph.Episode, error)
	ListEntities(ctx context.Context, groups []string, limit int) ([]graph.EntityNode, error)
	GetEntity(ctx context.Context, uuid string) (*graph.EntityNode, error)
	ClearScope(ctx context.Context, groupID string) (int, error)
}

// IngestRequest is the payload for POST /v1/ingest.
type IngestRequest struct {
	Content       string `json:"content" binding:"required"`
	UserID        string `json:"user_id" binding:"required"`
	AgentID       string `json:"agent_id"`
	SessionID     string `json:"session_id"`
	Source        string `json:"source" binding:"omitempty,oneof=message text json"`
	ReferenceTime string `json:"reference_time"`
}

// BulkIngestRequest is the payload for POST /v1/ingest/bulk.
type BulkIngestRequest struct {
	Episodes []IngestRequest `json:"episodes" binding:"required,dive"`
}

// EntitySummary is the caller-facing shape of an extracted entity.
type EntitySummary struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	GroupID string `json:"group_id"`
}

// EdgeSummary is the caller-facing shape of an extracted fact edge.
type EdgeSummary struct {
	UUID       string     `json:"uuid"`
	Fact       string     `json:"fact"`
	SourceNode string     `json:"source_node"`
	TargetNode string     `json:"target_node"`
	ValidAt    *time.Time `json:"valid_at"`
	InvalidAt  *time.Time `json:"invalid_at"`
}

// IngestResponse reports what one ingest call persisted.
type IngestResponse struct {
	Status            string          `json:"status"`
	Episode           string          `json:"episode"`
	EntitiesExtracted int             `json:"entities_extracted"`
	EdgesExtracted    int             `json:"edges_extracted"`
	Entities          []EntitySummary `json:"entities"`
	Edges             []EdgeSummary   `json:"edges"`
}

// BulkItemResult is one per-episode outcome in a bulk ingest. Successful
// items carry counts; failed items carry the error instead.
type BulkItemResult struct {
	Episode  string `json:"episode"`
	Entities *int   `json:"entities,omitempty"`
	Edges    *int   `json:"edges,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// BulkIngestResponse reports per-item outcomes in submission order.
type BulkIngestResponse struct {
	Status  string           `json:"status"`
	Results []BulkItemResult `json:"results"`
}

// RecallRequest is the payload for POST /v1/recall.
type RecallRequest struct {
	Query       string `json:"query" binding:"required"`
	UserID      string `json:"user_id" binding:"required"`
	AgentID     string `json:"agent_id"`
	Limit       int    `json:"limit" binding:"omitempty,min=1,max=100"`
	MinSalience *int   `json:"min_salience" binding:"omitempty,min=1,max=10"`
}

// NodeResult is one recalled entity.
type NodeResult struct {
	UUID    string  `json:"uuid"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

// EpisodeResult is one recalled episode.
type EpisodeResult struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CommunityResult is one recalled community summary.
type CommunityResult struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// RecallResponse is the hybrid search result for POST /v1/recall.
type RecallResponse struct {
	Status      string            `json:"status"`
	Query       string            `json:"query"`
	Edges       []salience.Edge   `json:"edges"`
	Nodes       []NodeResult      `json:"nodes"`
	Episodes    []EpisodeResult   `json:"episodes"`
	Communities []CommunityResult `json:"communities"`
}

// EntityDetail is the full view of a stored entity.
type EntityDetail struct {
	UUID       string                 `json:"uuid"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Summary    string                 `json:"summary"`
	GroupID    string                 `json:"group_id"`
	Salience   *int                   `json:"salience,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// EntityListItem is one row of GET /v1/entities.
type EntityListItem struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
	GroupID string `json:"group_id"`
}

// EntitiesResponse lists entities in a scope.
type EntitiesResponse struct {
	Status   string           `json:"status"`
	Entities []EntityListItem `json:"entities"`
}

// EpisodeListItem is one row of GET /v1/episodes.
type EpisodeListItem struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	GroupID   string    `json:"group_id"`
}

// EpisodesResponse lists recent episodes in a scope.
type EpisodesResponse struct {
	Status   string            `json:"status"`
	Episodes []EpisodeListItem `json:"episodes"`
}

// ForgetResponse reports a scope wipe.
type ForgetResponse struct {
	Status       string `json:"status"`
	DeletedScope string `json:"deleted_scope"`
}
