package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"ai4u-memory/internal/graph"
	"ai4u-memory/internal/scope"
	"ai4u-memory/pkg/config"
	"ai4u-memory/pkg/logger"
)

func main() {
	wipe := flag.Bool("wipe", false, "Delete ALL data before provisioning")
	demo := flag.Bool("demo", false, "Seed a demo scope with sample memories")
	skipConfirm := flag.Bool("y", false, "Skip confirmation prompt")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting graph provisioning...")

	// Warning prompt
	if *wipe && !*skipConfirm {
		log.Warn("⚠️  WARNING: This will DELETE ALL DATA from Neo4j!")
		log.Warn("This action cannot be undone.")
		// Use fmt.Print for user input prompt (needs to go to stdout)
		fmt.Print("Are you sure you want to continue? (yes/no): ")
		var response string
		fmt.Scanln(&response)
		if response != "yes" && response != "y" {
			log.Info("Aborted.")
			os.Exit(0)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	if *wipe {
		log.Info("Step 1: Deleting all data from Neo4j...")
		if err := deleteAllData(ctx, driver); err != nil {
			log.Fatal("Failed to delete all data", zap.Error(err))
		}
		log.Info("All data deleted successfully")
	}

	repo := graph.NewRepository(driver)

	log.Info("Step 2: Provisioning constraints and indexes...")
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to provision schema", zap.Error(err))
	}
	log.Info("Constraints and indexes provisioned")

	if *demo {
		group := scope.Key("demo", "assistant")
		log.Info("Step 3: Seeding demo scope", zap.String("group_id", group))
		if err := seedDemoScope(ctx, repo, group); err != nil {
			log.Fatal("Failed to seed demo scope", zap.Error(err))
		}

		// Verify creation
		entities, err := repo.ListEntities(ctx, []string{group}, 50)
		if err != nil {
			log.Fatal("Failed to verify demo scope", zap.Error(err))
		}
		episodes, err := repo.ListEpisodes(ctx, []string{group}, 50)
		if err != nil {
			log.Fatal("Failed to verify demo scope", zap.Error(err))
		}

		log.Info("Demo scope seeded",
			zap.String("group_id", group),
			zap.Int("entities", len(entities)),
			zap.Int("episodes", len(episodes)),
		)
	}

	log.Info("✅ Graph provisioning completed successfully!")
}

// deleteAllData deletes all nodes and relationships from Neo4j
func deleteAllData(ctx context.Context, driver neo4j.DriverWithContext) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (n)
		DETACH DELETE n
	`

	_, err := session.Run(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("failed to delete all data: %w", err)
	}

	return nil
}

// seedDemoScope writes one episode with a few typed memories and fact edges
// into the given scope, so recall has something to return on a fresh install.
func seedDemoScope(ctx context.Context, repo *graph.Repository, group string) error {
	now := time.Now().UTC()

	episode := graph.Episode{
		UUID:              uuid.New().String(),
		Name:              fmt.Sprintf("memory_demo_%s", now.Format("20060102_150405")),
		Content:           "We adopted pgvector for embedding storage after the connection pool exhaustion incident. Postgres stays the primary datastore.",
		Source:            "text",
		SourceDescription: "Agent memory for demo",
		GroupID:           group,
		CreatedAt:         now,
		ValidAt:           now,
	}
	if err := repo.CreateEpisode(ctx, episode); err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}

	factSalience, decisionSalience, failureSalience := 5, 8, 9
	seeds := []graph.EntityNode{
		{
			UUID:      uuid.New().String(),
			Name:      "Postgres",
			GroupID:   group,
			Type:      "Fact",
			Summary:   "Primary datastore for the demo stack",
			Salience:  &factSalience,
			CreatedAt: now,
		},
		{
			UUID:     uuid.New().String(),
			Name:     "Adopt pgvector",
			GroupID:  group,
			Type:     "Decision",
			Summary:  "Store embeddings in Postgres using pgvector",
			Salience: &decisionSalience,
			Attributes: map[string]interface{}{
				"reasoning": "Keeps vectors next to the relational data they describe",
				"outcome":   "pending",
			},
			CreatedAt: now,
		},
		{
			UUID:     uuid.New().String(),
			Name:     "Connection pool exhaustion",
			GroupID:  group,
			Type:     "Failure",
			Summary:  "Worker fan-out exhausted the Postgres connection pool",
			Salience: &failureSalience,
			Attributes: map[string]interface{}{
				"root_cause": "Unbounded goroutines each opening their own session",
				"severity":   7,
			},
			CreatedAt: now,
		},
	}

	uuidByName := make(map[string]string, len(seeds))
	for _, node := range seeds {
		id, err := repo.UpsertEntity(ctx, node)
		if err != nil {
			return fmt.Errorf("failed to upsert entity %q: %w", node.Name, err)
		}
		uuidByName[node.Name] = id
	}

	edges := []graph.EntityEdge{
		{
			UUID:       uuid.New().String(),
			Name:       "stores_embeddings_in",
			Fact:       "The demo stack stores embeddings in Postgres using pgvector",
			GroupID:    group,
			SourceUUID: uuidByName["Adopt pgvector"],
			TargetUUID: uuidByName["Postgres"],
			Episodes:   []string{episode.UUID},
			CreatedAt:  now,
			ValidAt:    &now,
		},
		{
			UUID:       uuid.New().String(),
			Name:       "caused_by",
			Fact:       "The connection pool exhaustion was caused by unbounded goroutines hitting Postgres",
			GroupID:    group,
			SourceUUID: uuidByName["Connection pool exhaustion"],
			TargetUUID: uuidByName["Postgres"],
			Episodes:   []string{episode.UUID},
			CreatedAt:  now,
			ValidAt:    &now,
		},
	}
	for _, edge := range edges {
		if err := repo.CreateEntityEdge(ctx, edge); err != nil {
			return fmt.Errorf("failed to create edge %q: %w", edge.Name, err)
		}
	}

	mentioned := make([]string, 0, len(uuidByName))
	for _, id := range uuidByName {
		mentioned = append(mentioned, id)
	}
	return repo.LinkMentions(ctx, episode.UUID, mentioned)
}
