package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"ai4u-memory/internal/adapter"
	"ai4u-memory/internal/engine"
	"ai4u-memory/internal/gateway"
	"ai4u-memory/internal/graph"
	"ai4u-memory/internal/server"
	"ai4u-memory/pkg/config"
	"ai4u-memory/pkg/errors"
	"ai4u-memory/pkg/logger"
)

func main() {
	// Load configuration first so the logger knows the environment
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting memory service...",
		zap.String("env", cfg.Env),
		zap.String("addr", cfg.Addr()),
	)

	// The graph backend is allowed to be down at startup: the service
	// comes up in degraded mode (503 on /v1) instead of crash-looping,
	// and liveness checks keep passing.
	var ingestSvc server.IngestService
	var recallSvc server.RecallService

	ctx := context.Background()
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Error("Failed to create Neo4j driver, starting degraded",
			zap.Error(errors.NewGraphConnectionFailed(cfg.Neo4jURI, err)),
		)
		driver = nil
	} else if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Error("Failed to verify Neo4j connectivity, starting degraded",
			zap.Error(errors.NewGraphConnectionFailed(cfg.Neo4jURI, err)),
		)
		driver.Close(ctx)
		driver = nil
	}

	if driver != nil {
		defer driver.Close(context.Background())

		repo := graph.NewRepository(driver)
		// Constraint provisioning failures are logged, not fatal: the
		// statements are idempotent and usually already applied.
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Error("Schema provisioning failed", zap.Error(err))
		}

		client := adapter.NewOpenAIClient(cfg.LLMAPIBase, cfg.LLMAPIKey)
		shim := adapter.NewCompletionShim(client)
		embedder := adapter.NewEmbedder(client, cfg.EmbeddingModel)
		reranker := adapter.NewReranker(shim, cfg.RerankerModel)

		memory := engine.New(repo, shim, embedder, reranker, cfg.LLMModel)
		ingestSvc = gateway.NewIngestGateway(memory)
		recallSvc = gateway.NewRecallGateway(memory)

		log.Info("Memory engine initialized",
			zap.String("llm_model", cfg.LLMModel),
			zap.String("embedding_model", cfg.EmbeddingModel),
			zap.String("reranker_model", cfg.RerankerModel),
		)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.New(ingestSvc, recallSvc, cfg.APIKey).Router()

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("addr", cfg.Addr()),
		zap.Bool("auth_enabled", cfg.APIKey != ""),
		zap.Bool("degraded", ingestSvc == nil),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
