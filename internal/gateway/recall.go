package gateway

import (
	"context"

	"go.uber.org/zap"

	"ai4u-memory/internal/engine"
	"ai4u-memory/internal/salience"
	"ai4u-memory/internal/scope"
	pkgerrors "ai4u-memory/pkg/errors"
	"ai4u-memory/pkg/logger"
)

const defaultRecallLimit = 10

// RecallGateway serves retrieval and scope maintenance requests.
type RecallGateway struct {
	memory Memory
	logger *zap.Logger
}

// NewRecallGateway creates a recall gateway over the memory engine.
func NewRecallGateway(memory Memory) *RecallGateway {
	return &RecallGateway{
		memory: memory,
		logger: logger.Get(),
	}
}

// Recall runs hybrid search across the caller's scopes, ranks fact edges by
// salience and truncates each category to the requested limit. Communities
// are returned whole; they are already scope-level summaries.
func (g *RecallGateway) Recall(ctx context.Context, req RecallRequest) (*RecallResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultRecallLimit
	}

	result, err := g.memory.Search(ctx, engine.SearchInput{
		Groups: scope.Group(req.UserID, req.AgentID),
		Query:  req.Query,
		Limit:  limit,
	})
	if err != nil {
		return nil, pkgerrors.NewUpstreamFailure("recall", err)
	}

	edges := make([]salience.Edge, 0, len(result.Edges))
	for i, edge := range result.Edges {
		var score float64
		if i < len(result.EdgeScores) {
			score = result.EdgeScores[i]
		}
		edges = append(edges, salience.Edge{
			UUID:       edge.UUID,
			Fact:       edge.Fact,
			SourceNode: edge.SourceUUID,
			TargetNode: edge.TargetUUID,
			ValidAt:    edge.ValidAt,
			InvalidAt:  edge.InvalidAt,
			Score:      score,
			Salience:   edge.Salience(),
		})
	}
	ranked := salience.Rank(edges, req.MinSalience)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	nodes := make([]NodeResult, 0, len(result.Nodes))
	for i, node := range result.Nodes {
		if i == limit {
			break
		}
		var score float64
		if i < len(result.NodeScores) {
			score = result.NodeScores[i]
		}
		nodes = append(nodes, NodeResult{
			UUID:    node.UUID,
			Name:    node.Name,
			Type:    node.Type,
			Summary: node.Summary,
			Score:   score,
		})
	}

	episodes := make([]EpisodeResult, 0, len(result.Episodes))
	for i, episode := range result.Episodes {
		if i == limit {
			break
		}
		episodes = append(episodes, EpisodeResult{
			UUID:      episode.UUID,
			Name:      episode.Name,
			Content:   episode.Content,
			CreatedAt: episode.CreatedAt,
		})
	}

	communities := make([]CommunityResult, 0, len(result.Communities))
	for _, community := range result.Communities {
		communities = append(communities, CommunityResult{
			UUID:    community.UUID,
			Name:    community.Name,
			Summary: community.Summary,
		})
	}

	g.logger.Debug("Recall served",
		zap.String("query", req.Query),
		zap.Int("edges", len(ranked)),
		zap.Int("nodes", len(nodes)),
		zap.Int("episodes", len(episodes)),
	)

	return &RecallResponse{
		Status:      "ok",
		Query:       req.Query,
		Edges:       ranked,
		Nodes:       nodes,
		Episodes:    episodes,
		Communities: communities,
	}, nil
}

// ListEntities returns entities visible to the caller's scopes.
func (g *RecallGateway) ListEntities(ctx context.Context, userID, agentID string, limit int) (*EntitiesResponse, error) {
	nodes, err := g.memory.ListEntities(ctx, scope.Group(userID, agentID), limit)
	if err != nil {
		return nil, pkgerrors.NewUpstreamFailure("list entities", err)
	}

	entities := make([]EntityListItem, 0, len(nodes))
	for _, node := range nodes {
		entities = append(entities, EntityListItem{
			UUID:    node.UUID,
			Name:    node.Name,
			Type:    node.Type,
			Summary: node.Summary,
			GroupID: node.GroupID,
		})
	}
	return &EntitiesResponse{Status: "ok", Entities: entities}, nil
}

// GetEntity returns the full stored view of one entity.
func (g *RecallGateway) GetEntity(ctx context.Context, uuid string) (*EntityDetail, error) {
	node, err := g.memory.GetEntity(ctx, uuid)
	if err != nil {
		return nil, pkgerrors.NewUpstreamFailure("get entity", err)
	}

	return &EntityDetail{
		UUID:       node.UUID,
		Name:       node.Name,
		Type:       node.Type,
		Summary:    node.Summary,
		GroupID:    node.GroupID,
		Salience:   node.Salience,
		Attributes: node.Attributes,
		CreatedAt:  node.CreatedAt,
	}, nil
}

// ListEpisodes returns recent raw episodes, newest first.
func (g *RecallGateway) ListEpisodes(ctx context.Context, userID, agentID string, limit int) (*EpisodesResponse, error) {
	recent, err := g.memory.RetrieveEpisodes(ctx, scope.Group(userID, agentID), limit)
	if err != nil {
		return nil, pkgerrors.NewUpstreamFailure("list episodes", err)
	}

	episodes := make([]EpisodeListItem, 0, len(recent))
	for _, episode := range recent {
		episodes = append(episodes, EpisodeListItem{
			UUID:      episode.UUID,
			Name:      episode.Name,
			Content:   episode.Content,
			CreatedAt: episode.CreatedAt,
			GroupID:   episode.GroupID,
		})
	}
	return &EpisodesResponse{Status: "ok", Episodes: episodes}, nil
}

// Forget irreversibly wipes everything stored under the caller's scope.
func (g *RecallGateway) Forget(ctx context.Context, userID, agentID string) (*ForgetResponse, error) {
	key := scope.Key(userID, agentID)

	deleted, err := g.memory.ClearScope(ctx, key)
	if err != nil {
		return nil, pkgerrors.NewUpstreamFailure("forget", err)
	}

	g.logger.Info("Scope forgotten",
		zap.String("scope", key),
		zap.Int("nodes_deleted", deleted),
	)
	return &ForgetResponse{Status: "ok", DeletedScope: key}, nil
}
