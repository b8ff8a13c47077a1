package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	pkgerrors "ai4u-memory/pkg/errors"
	"ai4u-memory/pkg/logger"
)

// Repository handles all Neo4j operations for the memory graph
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// EnsureSchema creates the constraints and indexes the memory graph relies
// on. Statements are idempotent; individual failures are logged and skipped
// so a partially provisioned database still comes up.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		// Uniqueness
		"CREATE CONSTRAINT entity_uuid_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.uuid IS UNIQUE",
		"CREATE CONSTRAINT episodic_uuid_unique IF NOT EXISTS FOR (n:Episodic) REQUIRE n.uuid IS UNIQUE",
		"CREATE CONSTRAINT community_uuid_unique IF NOT EXISTS FOR (n:Community) REQUIRE n.uuid IS UNIQUE",

		// Scope lookups
		"CREATE INDEX entity_group IF NOT EXISTS FOR (n:Entity) ON (n.group_id)",
		"CREATE INDEX episodic_group IF NOT EXISTS FOR (n:Episodic) ON (n.group_id)",
		"CREATE INDEX community_group IF NOT EXISTS FOR (n:Community) ON (n.group_id)",
		"CREATE INDEX entity_name IF NOT EXISTS FOR (n:Entity) ON (n.name)",

		// Lexical retrieval legs
		"CREATE FULLTEXT INDEX entity_name_ft IF NOT EXISTS FOR (n:Entity) ON EACH [n.name, n.summary]",
		"CREATE FULLTEXT INDEX episode_content_ft IF NOT EXISTS FOR (n:Episodic) ON EACH [n.name, n.content]",
		"CREATE FULLTEXT INDEX edge_fact_ft IF NOT EXISTS FOR ()-[r:RELATES_TO]-() ON EACH [r.name, r.fact]",
	}

	var failed int
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			failed++
			r.logger.Warn("Schema statement failed (may already exist)",
				zap.String("statement", stmt),
				zap.Error(err),
			)
		}
	}
	if failed == len(statements) {
		return fmt.Errorf("all %d schema statements failed", failed)
	}

	r.logger.Info("Graph schema ensured",
		zap.Int("statements", len(statements)),
		zap.Int("failed", failed),
	)
	return nil
}

// ClearScope removes every node and relationship tagged with the given
// partition key. Irreversible; returns the number of nodes deleted.
func (r *Repository) ClearScope(ctx context.Context, groupID string) (int, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (n {group_id: $group_id})
		DETACH DELETE n
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"group_id": groupID,
	})
	if err != nil {
		return 0, pkgerrors.NewGraphQueryFailed(query, err)
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return 0, pkgerrors.NewGraphQueryFailed(query, err)
	}
	deleted := summary.Counters().NodesDeleted()

	r.logger.Info("Scope cleared",
		zap.String("group_id", groupID),
		zap.Int("nodes_deleted", deleted),
	)
	return deleted, nil
}

// ErrEntityNotFound is returned when an entity uuid has no node
type ErrEntityNotFound struct {
	UUID string
}

func (e ErrEntityNotFound) Error() string {
	return fmt.Sprintf("entity not found: %s", e.UUID)
}

// Record builders shared by the operation files.

func episodeFromRecord(record *neo4j.Record) Episode {
	return Episode{
		UUID:              getString(record, "uuid", ""),
		Name:              getString(record, "name", ""),
		Content:           getString(record, "content", ""),
		Source:            getString(record, "source", ""),
		SourceDescription: getString(record, "source_description", ""),
		GroupID:           getString(record, "group_id", ""),
		SessionID:         getString(record, "session_id", ""),
		CreatedAt:         getTime(record, "created_at", time.Time{}),
		ValidAt:           getTime(record, "valid_at", time.Time{}),
	}
}

func edgeFromRecord(record *neo4j.Record) EntityEdge {
	return EntityEdge{
		UUID:           getString(record, "uuid", ""),
		Name:           getString(record, "name", ""),
		Fact:           getString(record, "fact", ""),
		GroupID:        getString(record, "group_id", ""),
		SourceUUID:     getString(record, "source_uuid", ""),
		TargetUUID:     getString(record, "target_uuid", ""),
		SourceSalience: getOptionalInt(record, "source_salience"),
		TargetSalience: getOptionalInt(record, "target_salience"),
		Episodes:       getStringSlice(record, "episodes"),
		CreatedAt:      getTime(record, "created_at", time.Time{}),
		ValidAt:        getOptionalTime(record, "valid_at"),
		InvalidAt:      getOptionalTime(record, "invalid_at"),
	}
}

// entityPropKeys are node properties owned by EntityNode itself; everything
// else in the property map is a type-specific attribute.
var entityPropKeys = map[string]bool{
	"uuid":           true,
	"name":           true,
	"group_id":       true,
	"type":           true,
	"summary":        true,
	"salience":       true,
	"name_embedding": true,
	"created_at":     true,
}

func nodeFromProps(props map[string]interface{}) EntityNode {
	node := EntityNode{
		UUID:      getStringFromMap(props, "uuid", ""),
		Name:      getStringFromMap(props, "name", ""),
		GroupID:   getStringFromMap(props, "group_id", ""),
		Type:      getStringFromMap(props, "type", "Entity"),
		Summary:   getStringFromMap(props, "summary", ""),
		Salience:  getOptionalIntFromMap(props, "salience"),
		CreatedAt: getTimeFromMap(props, "created_at", time.Time{}),
	}

	attrs := make(map[string]interface{})
	for key, val := range props {
		if !entityPropKeys[key] {
			attrs[key] = val
		}
	}
	if len(attrs) > 0 {
		node.Attributes = attrs
	}
	return node
}

func communityFromRecord(record *neo4j.Record) Community {
	return Community{
		UUID:    getString(record, "uuid", ""),
		Name:    getString(record, "name", ""),
		Summary: getString(record, "summary", ""),
		GroupID: getString(record, "group_id", ""),
	}
}

// sanitizeFulltext strips Lucene query syntax from user text so a query
// containing operators cannot break the fulltext call.
func sanitizeFulltext(query string) string {
	replacer := strings.NewReplacer(
		"+", " ", "-", " ", "&&", " ", "||", " ", "!", " ",
		"(", " ", ")", " ", "{", " ", "}", " ", "[", " ", "]", " ",
		"^", " ", "\"", " ", "~", " ", "*", " ", "?", " ",
		":", " ", "\\", " ", "/", " ",
	)
	return strings.TrimSpace(replacer.Replace(query))
}
