// Package server wires the HTTP surface: routes, auth, CORS and the
// translation of gateway errors into status codes.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai4u-memory/internal/gateway"
	"ai4u-memory/pkg/logger"
)

const (
	serviceName    = "memory.ai4u.now"
	serviceVersion = "0.2.0"
)

// IngestService is the write side of the API.
type IngestService interface {
	Ingest(ctx context.Context, req gateway.IngestRequest) (*gateway.IngestResponse, error)
	IngestBulk(ctx context.Context, req gateway.BulkIngestRequest) (*gateway.BulkIngestResponse, error)
}

// RecallService is the read and maintenance side of the API.
type RecallService interface {
	Recall(ctx context.Context, req gateway.RecallRequest) (*gateway.RecallResponse, error)
	ListEntities(ctx context.Context, userID, agentID string, limit int) (*gateway.EntitiesResponse, error)
	GetEntity(ctx context.Context, uuid string) (*gateway.EntityDetail, error)
	ListEpisodes(ctx context.Context, userID, agentID string, limit int) (*gateway.EpisodesResponse, error)
	Forget(ctx context.Context, userID, agentID string) (*gateway.ForgetResponse, error)
}

// Server holds the HTTP dependencies. Nil gateways put the API into
// degraded mode: health and service info keep answering while /v1 routes
// return 503, so a broken storage backend never takes down liveness.
type Server struct {
	ingest IngestService
	recall RecallService
	apiKey string
	logger *zap.Logger
}

// New creates the HTTP server. apiKey may be empty for open mode.
func New(ingest IngestService, recall RecallService, apiKey string) *Server {
	return &Server{
		ingest: ingest,
		recall: recall,
		apiKey: apiKey,
		logger: logger.Get(),
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(s.requestLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", s.handleHealth)
	router.GET("/", s.handleRoot)

	v1 := router.Group("/v1")
	v1.Use(s.apiKeyAuth())
	{
		v1.POST("/ingest", s.handleIngest)
		v1.POST("/ingest/bulk", s.handleIngestBulk)
		v1.POST("/recall", s.handleRecall)
		v1.GET("/entities", s.handleListEntities)
		v1.GET("/entities/:uuid", s.handleGetEntity)
		v1.GET("/episodes", s.handleListEpisodes)
		v1.DELETE("/entities", s.handleForget)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": serviceVersion,
		"stack":   "temporal knowledge graph + Neo4j",
		"endpoints": gin.H{
			"health":   "/health",
			"ingest":   "/v1/ingest",
			"recall":   "/v1/recall",
			"entities": "/v1/entities",
			"episodes": "/v1/episodes",
		},
	})
}
