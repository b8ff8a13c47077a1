package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	pkgerrors "ai4u-memory/pkg/errors"
)

// CreateEpisode persists a raw episodic node. The full source content is
// stored so extraction can be replayed or audited later.
func (r *Repository) CreateEpisode(ctx context.Context, episode Episode) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		CREATE (e:Episodic {
			uuid: $uuid,
			name: $name,
			content: $content,
			source: $source,
			source_description: $source_description,
			group_id: $group_id,
			session_id: $session_id,
			created_at: datetime($created_at),
			valid_at: datetime($valid_at)
		})
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"uuid":               episode.UUID,
		"name":               episode.Name,
		"content":            episode.Content,
		"source":             episode.Source,
		"source_description": episode.SourceDescription,
		"group_id":           episode.GroupID,
		"session_id":         episode.SessionID,
		"created_at":         episode.CreatedAt.Format(time.RFC3339),
		"valid_at":           episode.ValidAt.Format(time.RFC3339),
	})
	if err != nil {
		return pkgerrors.NewGraphQueryFailed(query, err)
	}

	r.logger.Debug("Episode created",
		zap.String("uuid", episode.UUID),
		zap.String("group_id", episode.GroupID),
	)
	return nil
}

// LinkMentions connects an episode to the entities extracted from it.
func (r *Repository) LinkMentions(ctx context.Context, episodeUUID string, entityUUIDs []string) error {
	if len(entityUUIDs) == 0 {
		return nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (e:Episodic {uuid: $episode_uuid})
		MATCH (n:Entity)
		WHERE n.uuid IN $entity_uuids
		MERGE (e)-[:MENTIONS]->(n)
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"episode_uuid": episodeUUID,
		"entity_uuids": entityUUIDs,
	})
	if err != nil {
		return pkgerrors.NewGraphQueryFailed(query, err)
	}
	return nil
}

// ListEpisodes returns the most recent episodes across the given scopes,
// newest first.
func (r *Repository) ListEpisodes(ctx context.Context, groupIDs []string, limit int) ([]Episode, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Episodic)
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
		ORDER BY e.valid_at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"group_ids": groupIDs,
		"limit":     limit,
	})
	if err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(query, err)
	}

	var episodes []Episode
	for result.Next(ctx) {
		episodes = append(episodes, episodeFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, pkgerrors.NewGraphQueryFailed(query, err)
	}
	return episodes, nil
}
