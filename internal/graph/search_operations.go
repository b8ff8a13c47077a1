package graph

import (
	"context"
	"math"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	pkgerrors "ai4u-memory/pkg/errors"
)

// embeddingCandidateLimit caps how many stored vectors a similarity scan
// pulls back for in-process scoring.
const embeddingCandidateLimit = 512

// SearchEdgesFulltext finds facts whose name or text matches the query,
// best lexical match first.
func (r *Repository) SearchEdgesFulltext(ctx context.Context, groupIDs []string, query string, limit int) ([]EntityEdge, error) {
	cleaned := sanitizeFulltext(query)
	if cleaned == "" {
		return nil, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `
		CALL db.index.fulltext.queryRelationships('edge_fact_ft', $query)
		YIELD relationship AS r, score
		WHERE r.group_id IN $group_ids
		WITH r, score, startNode(r) AS a, endNode(r) AS b
		RETURN r.uuid AS uuid,
		       r.name AS name,
		       r.fact AS fact,
		       r.group_id AS group_id,
		       r.episodes AS episodes,
		       r.created_at AS created_at,
		       r.valid_at AS valid_at,
		       r.invalid_at AS invalid_at,
		       a.uuid AS source_uuid,
		       b.uuid AS target_uuid,
		       a.salience AS source_salience,
		       b.salience AS target_salience
		ORDER BY score DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, cypher, map[string]interface{}{
		"query":     cleaned,
		"group_ids": groupIDs,
		"limit":     limit,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}

	var edges []EntityEdge
	for result.Next(ctx) {
		edges = append(edges, edgeFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}
	return edges, nil
}

// SearchNodesFulltext finds entities whose name or summary matches the query.
func (r *Repository) SearchNodesFulltext(ctx context.Context, groupIDs []string, query string, limit int) ([]EntityNode, error) {
	cleaned := sanitizeFulltext(query)
	if cleaned == "" {
		return nil, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `
		CALL db.index.fulltext.queryNodes('entity_name_ft', $query)
		YIELD node AS n, score
		WHERE n.group_id IN $group_ids
		RETURN properties(n) AS props
		ORDER BY score DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, cypher, map[string]interface{}{
		"query":     cleaned,
		"group_ids": groupIDs,
		"limit":     limit,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}

	var nodes []EntityNode
	for result.Next(ctx) {
		props, ok := result.Record().Get("props")
		if !ok {
			continue
		}
		propsMap, ok := props.(map[string]interface{})
		if !ok {
			continue
		}
		nodes = append(nodes, nodeFromProps(propsMap))
	}
	if err := result.Err(); err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}
	return nodes, nil
}

// SearchEpisodesFulltext finds raw episodes whose content matches the query.
func (r *Repository) SearchEpisodesFulltext(ctx context.Context, groupIDs []string, query string, limit int) ([]Episode, error) {
	cleaned := sanitizeFulltext(query)
	if cleaned == "" {
		return nil, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `
		CALL db.index.fulltext.queryNodes('episode_content_ft', $query)
		YIELD node AS e, score
		WHERE e.group_id IN $group_ids
		RETURN e.uuid AS uuid,
		       e.name AS name,
		       e.content AS content,
		       e.source AS source,
		       e.source_description AS source_description,
		       e.group_id AS group_id,
		       e.session_id AS session_id,
		       e.created_at AS created_at,
		       e.valid_at AS valid_at
		ORDER BY score DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, cypher, map[string]interface{}{
		"query":     cleaned,
		"group_ids": groupIDs,
		"limit":     limit,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}

	var episodes []Episode
	for result.Next(ctx) {
		episodes = append(episodes, episodeFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}
	return episodes, nil
}

// SearchEdgesByEmbedding ranks stored facts by cosine similarity against the
// query vector. Vectors are scored in process over a bounded candidate set.
func (r *Repository) SearchEdgesByEmbedding(ctx context.Context, groupIDs []string, embedding []float32, limit int) ([]EntityEdge, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `
		MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
		WHERE r.group_id IN $group_ids AND r.fact_embedding IS NOT NULL
		RETURN r.uuid AS uuid,
		       r.name AS name,
		       r.fact AS fact,
		       r.group_id AS group_id,
		       r.fact_embedding AS fact_embedding,
		       r.episodes AS episodes,
		       r.created_at AS created_at,
		       r.valid_at AS valid_at,
		       r.invalid_at AS invalid_at,
		       a.uuid AS source_uuid,
		       b.uuid AS target_uuid,
		       a.salience AS source_salience,
		       b.salience AS target_salience
		LIMIT $candidate_limit
	`

	result, err := session.Run(ctx, cypher, map[string]interface{}{
		"group_ids":       groupIDs,
		"candidate_limit": embeddingCandidateLimit,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}

	type scoredEdge struct {
		edge  EntityEdge
		score float64
	}
	var scored []scoredEdge
	for result.Next(ctx) {
		record := result.Record()
		stored := getFloat32Slice(record, "fact_embedding")
		if len(stored) == 0 {
			continue
		}
		scored = append(scored, scoredEdge{
			edge:  edgeFromRecord(record),
			score: cosineSimilarity(embedding, stored),
		})
	}
	if err := result.Err(); err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	edges := make([]EntityEdge, 0, len(scored))
	for _, s := range scored {
		edges = append(edges, s.edge)
	}
	return edges, nil
}

// SearchNodesByEmbedding ranks entities by cosine similarity of their name
// embeddings against the query vector.
func (r *Repository) SearchNodesByEmbedding(ctx context.Context, groupIDs []string, embedding []float32, limit int) ([]EntityNode, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `
		MATCH (n:Entity)
		WHERE n.group_id IN $group_ids AND n.name_embedding IS NOT NULL
		RETURN properties(n) AS props
		LIMIT $candidate_limit
	`

	result, err := session.Run(ctx, cypher, map[string]interface{}{
		"group_ids":       groupIDs,
		"candidate_limit": embeddingCandidateLimit,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}

	type scoredNode struct {
		node  EntityNode
		score float64
	}
	var scored []scoredNode
	for result.Next(ctx) {
		props, ok := result.Record().Get("props")
		if !ok {
			continue
		}
		propsMap, ok := props.(map[string]interface{})
		if !ok {
			continue
		}
		stored := getFloat32SliceFromMap(propsMap, "name_embedding")
		if len(stored) == 0 {
			continue
		}
		scored = append(scored, scoredNode{
			node:  nodeFromProps(propsMap),
			score: cosineSimilarity(embedding, stored),
		})
	}
	if err := result.Err(); err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	nodes := make([]EntityNode, 0, len(scored))
	for _, s := range scored {
		nodes = append(nodes, s.node)
	}
	return nodes, nil
}

// ListCommunities returns community summaries for the given scopes.
func (r *Repository) ListCommunities(ctx context.Context, groupIDs []string, limit int) ([]Community, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `
		MATCH (c:Community)
		WHERE c.group_id IN $group_ids
		RETURN c.uuid AS uuid,
		       c.name AS name,
		       c.summary AS summary,
		       c.group_id AS group_id
		LIMIT $limit
	`

	result, err := session.Run(ctx, cypher, map[string]interface{}{
		"group_ids": groupIDs,
		"limit":     limit,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}

	var communities []Community
	for result.Next(ctx) {
		communities = append(communities, communityFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(cypher, err)
	}
	return communities, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
