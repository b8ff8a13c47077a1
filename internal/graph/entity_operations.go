package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	pkgerrors "ai4u-memory/pkg/errors"
)

// UpsertEntity merges an entity node by (group_id, name). When the node
// already exists its uuid is kept and the fresh summary, salience and
// attributes overwrite the old ones. Returns the canonical uuid.
func (r *Repository) UpsertEntity(ctx context.Context, node EntityNode) (string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (n:Entity {group_id: $group_id, name: $name})
		ON CREATE SET n.uuid = $uuid,
		              n.created_at = datetime($created_at)
		SET n.type = $type,
		    n.summary = $summary,
		    n.salience = $salience,
		    n.name_embedding = $name_embedding,
		    n += $attributes
		RETURN n.uuid AS uuid
	`

	params := map[string]interface{}{
		"group_id":   node.GroupID,
		"name":       node.Name,
		"uuid":       node.UUID,
		"created_at": node.CreatedAt.Format(time.RFC3339),
		"type":       node.Type,
		"summary":    node.Summary,
		"attributes": node.Attributes,
	}
	if node.Salience != nil {
		params["salience"] = *node.Salience
	} else {
		params["salience"] = nil
	}
	if len(node.NameEmbedding) > 0 {
		params["name_embedding"] = float64Slice(node.NameEmbedding)
	} else {
		params["name_embedding"] = nil
	}
	if node.Attributes == nil {
		params["attributes"] = map[string]interface{}{}
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return "", pkgerrors.NewGraphQueryFailed(query, err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return "", pkgerrors.NewGraphQueryFailed(query, err)
	}
	uuid := getString(record, "uuid", node.UUID)

	r.logger.Debug("Entity upserted",
		zap.String("uuid", uuid),
		zap.String("name", node.Name),
		zap.String("type", node.Type),
	)
	return uuid, nil
}

// GetEntity fetches a single entity by uuid.
func (r *Repository) GetEntity(ctx context.Context, uuid string) (*EntityNode, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (n:Entity {uuid: $uuid})
		RETURN properties(n) AS props
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"uuid": uuid,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(query, err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, pkgerrors.NewGraphQueryFailed(query, err)
		}
		return nil, ErrEntityNotFound{UUID: uuid}
	}

	props, ok := result.Record().Get("props")
	if !ok {
		return nil, ErrEntityNotFound{UUID: uuid}
	}
	propsMap, ok := props.(map[string]interface{})
	if !ok {
		return nil, ErrEntityNotFound{UUID: uuid}
	}

	node := nodeFromProps(propsMap)
	return &node, nil
}

// ListEntities returns the most recently created entities across the given
// scopes.
func (r *Repository) ListEntities(ctx context.Context, groupIDs []string, limit int) ([]EntityNode, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (n:Entity)
		WHERE n.group_id IN $group_ids
		RETURN properties(n) AS props
		ORDER BY n.created_at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"group_ids": groupIDs,
		"limit":     limit,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(query, err)
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
		return nil, pkgerrors.NewGraphQueryFailed(query, err)
	}
	return nodes, nil
}
