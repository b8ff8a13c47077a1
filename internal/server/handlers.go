package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai4u-memory/internal/gateway"
	"ai4u-memory/internal/graph"
	pkgerrors "ai4u-memory/pkg/errors"
)

func (s *Server) handleIngest(c *gin.Context) {
	if s.ingest == nil {
		s.serviceUnavailable(c)
		return
	}

	var req gateway.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	resp, err := s.ingest.Ingest(c.Request.Context(), req)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleIngestBulk(c *gin.Context) {
	if s.ingest == nil {
		s.serviceUnavailable(c)
		return
	}

	var req gateway.BulkIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	resp, err := s.ingest.IngestBulk(c.Request.Context(), req)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRecall(c *gin.Context) {
	if s.recall == nil {
		s.serviceUnavailable(c)
		return
	}

	var req gateway.RecallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	resp, err := s.recall.Recall(c.Request.Context(), req)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListEntities(c *gin.Context) {
	if s.recall == nil {
		s.serviceUnavailable(c)
		return
	}

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c, 50, 500)
	if !ok {
		return
	}

	resp, err := s.recall.ListEntities(c.Request.Context(), userID, c.Query("agent_id"), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetEntity(c *gin.Context) {
	if s.recall == nil {
		s.serviceUnavailable(c)
		return
	}

	resp, err := s.recall.GetEntity(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		var notFound graph.ErrEntityNotFound
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": notFound.Error()})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListEpisodes(c *gin.Context) {
	if s.recall == nil {
		s.serviceUnavailable(c)
		return
	}

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c, 20, 200)
	if !ok {
		return
	}

	resp, err := s.recall.ListEpisodes(c.Request.Context(), userID, c.Query("agent_id"), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleForget(c *gin.Context) {
	if s.recall == nil {
		s.serviceUnavailable(c)
		return
	}

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	resp, err := s.recall.Forget(c.Request.Context(), userID, c.Query("agent_id"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) serviceUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"detail": pkgerrors.ErrEngineUnavailable.Message})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
}

func requireUserID(c *gin.Context) (string, bool) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id is required"})
		return "", false
	}
	return userID, true
}

// parseLimit reads the limit query parameter with a default and an upper
// bound. Out-of-range or non-numeric values fail the request.
func parseLimit(c *gin.Context, def, max int) (int, bool) {
	raw := c.DefaultQuery("limit", strconv.Itoa(def))
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": fmt.Sprintf("limit must be an integer between 1 and %d", max),
		})
		return 0, false
	}
	return limit, true
}
