package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	pkgerrors "ai4u-memory/pkg/errors"
)

// CreateEntityEdge records a fact between two entities. Any still-current
// edge of the same name between the same pair is invalidated first, so the
// newest statement of a relationship wins while history stays queryable.
func (r *Repository) CreateEntityEdge(ctx context.Context, edge EntityEdge) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	invalidate := `
		MATCH (a:Entity {uuid: $source_uuid})-[r:RELATES_TO {group_id: $group_id, name: $name}]->(b:Entity {uuid: $target_uuid})
		WHERE r.invalid_at IS NULL
		SET r.invalid_at = datetime($now)
	`

	_, err := session.Run(ctx, invalidate, map[string]interface{}{
		"source_uuid": edge.SourceUUID,
		"target_uuid": edge.TargetUUID,
		"group_id":    edge.GroupID,
		"name":        edge.Name,
		"now":         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return pkgerrors.NewGraphQueryFailed(invalidate, err)
	}

	create := `
		MATCH (a:Entity {uuid: $source_uuid})
		MATCH (b:Entity {uuid: $target_uuid})
		CREATE (a)-[r:RELATES_TO {
			uuid: $uuid,
			name: $name,
			fact: $fact,
			group_id: $group_id,
			fact_embedding: $fact_embedding,
			episodes: $episodes,
			created_at: datetime($created_at)
		}]->(b)
		SET r.valid_at = CASE WHEN $valid_at IS NULL THEN NULL ELSE datetime($valid_at) END
	`

	params := map[string]interface{}{
		"source_uuid": edge.SourceUUID,
		"target_uuid": edge.TargetUUID,
		"uuid":        edge.UUID,
		"name":        edge.Name,
		"fact":        edge.Fact,
		"group_id":    edge.GroupID,
		"episodes":    edge.Episodes,
		"created_at":  edge.CreatedAt.Format(time.RFC3339),
	}
	if len(edge.FactEmbedding) > 0 {
		params["fact_embedding"] = float64Slice(edge.FactEmbedding)
	} else {
		params["fact_embedding"] = nil
	}
	if edge.ValidAt != nil {
		params["valid_at"] = edge.ValidAt.Format(time.RFC3339)
	} else {
		params["valid_at"] = nil
	}
	if edge.Episodes == nil {
		params["episodes"] = []string{}
	}

	_, err = session.Run(ctx, create, params)
	if err != nil {
		return pkgerrors.NewGraphQueryFailed(create, err)
	}

	r.logger.Debug("Entity edge created",
		zap.String("uuid", edge.UUID),
		zap.String("name", edge.Name),
		zap.String("source", edge.SourceUUID),
		zap.String("target", edge.TargetUUID),
	)
	return nil
}
