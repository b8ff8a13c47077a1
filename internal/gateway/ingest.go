// Package gateway adapts HTTP-facing requests onto the memory engine:
// scope resolution, timestamp leniency, response shaping and salience
// ranking live here, keeping handlers thin.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ai4u-memory/internal/engine"
	"ai4u-memory/internal/scope"
	pkgerrors "ai4u-memory/pkg/errors"
	"ai4u-memory/pkg/logger"
)

// referenceTimeLayouts are accepted for caller-supplied reference_time
// values, most specific first. Layouts without a zone parse as UTC.
var referenceTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseReferenceTime resolves a caller-supplied timestamp. Malformed input
// falls back to the current time so bad timestamps never block ingestion of
// otherwise valid content.
func parseReferenceTime(value string) time.Time {
	for _, layout := range referenceTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// IngestGateway turns ingest requests into engine episodes.
type IngestGateway struct {
	memory Memory
	logger *zap.Logger
}

// NewIngestGateway creates an ingest gateway over the memory engine.
func NewIngestGateway(memory Memory) *IngestGateway {
	return &IngestGateway{
		memory: memory,
		logger: logger.Get(),
	}
}

// Ingest stores one episode and reports the knowledge extracted from it.
func (g *IngestGateway) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	result, err := g.memory.AddEpisode(ctx, episodeInput(req))
	if err != nil {
		return nil, pkgerrors.NewUpstreamFailure("ingest", err)
	}
	return buildIngestResponse(result), nil
}

// IngestBulk processes episodes strictly sequentially in submission order.
// Temporal edge resolution depends on episodes being applied in order, so
// items are never fanned out. One item failing does not abort the rest.
func (g *IngestGateway) IngestBulk(ctx context.Context, req BulkIngestRequest) (*BulkIngestResponse, error) {
	results := make([]BulkItemResult, 0, len(req.Episodes))
	for _, item := range req.Episodes {
		input := episodeInput(item)

		result, err := g.memory.AddEpisode(ctx, input)
		if err != nil {
			batchErr := pkgerrors.NewBatchItemFailed(input.Name, err)
			g.logger.Warn("Bulk ingest item failed",
				zap.String("episode", input.Name),
				zap.Error(batchErr),
			)
			results = append(results, BulkItemResult{
				Episode: input.Name,
				Status:  "error",
				Error:   err.Error(),
			})
			continue
		}

		entities := len(result.Nodes)
		edges := len(result.Edges)
		results = append(results, BulkItemResult{
			Episode:  result.Episode.Name,
			Entities: &entities,
			Edges:    &edges,
			Status:   "ok",
		})
	}

	return &BulkIngestResponse{Status: "ok", Results: results}, nil
}

// episodeInput maps one request onto the engine's input: scope key,
// resolved reference time and a deterministic per-second episode name.
func episodeInput(req IngestRequest) engine.EpisodeInput {
	referenceTime := parseReferenceTime(req.ReferenceTime)

	source := req.Source
	if source == "" {
		source = "message"
	}

	return engine.EpisodeInput{
		GroupID:           scope.Key(req.UserID, req.AgentID),
		Name:              fmt.Sprintf("memory_%s_%s", req.UserID, time.Now().UTC().Format("20060102_150405")),
		Content:           req.Content,
		Source:            source,
		SourceDescription: fmt.Sprintf("Agent memory for %s", req.UserID),
		SessionID:         req.SessionID,
		ReferenceTime:     referenceTime,
	}
}

func buildIngestResponse(result *engine.AddEpisodeResult) *IngestResponse {
	entities := make([]EntitySummary, 0, len(result.Nodes))
	for _, node := range result.Nodes {
		entities = append(entities, EntitySummary{
			UUID:    node.UUID,
			Name:    node.Name,
			Type:    node.Type,
			GroupID: node.GroupID,
		})
	}

	edges := make([]EdgeSummary, 0, len(result.Edges))
	for _, edge := range result.Edges {
		edges = append(edges, EdgeSummary{
			UUID:       edge.UUID,
			Fact:       edge.Fact,
			SourceNode: edge.SourceUUID,
			TargetNode: edge.TargetUUID,
			ValidAt:    edge.ValidAt,
			InvalidAt:  edge.InvalidAt,
		})
	}

	return &IngestResponse{
		Status:            "ok",
		Episode:           result.Episode.Name,
		EntitiesExtracted: len(entities),
		EdgesExtracted:    len(edges),
		Entities:          entities,
		Edges:             edges,
	}
}
