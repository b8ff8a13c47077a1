package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ai4u-memory/internal/adapter"
	"ai4u-memory/internal/entity"
	"ai4u-memory/internal/graph"
)

// timeLayouts are accepted for timestamps produced by the extractor, most
// specific first. Layouts without a zone parse as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// extractedEdge is one relationship proposed by the extractor. Source and
// target reference entities from the same reply by exact name.
type extractedEdge struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Name    string `json:"name"`
	Fact    string `json:"fact"`
	ValidAt string `json:"valid_at"`
}

// extractionPayload is the extractor's reply. Entities stay as raw maps so
// type-specific attributes (reasoning, severity, pattern) survive decoding.
type extractionPayload struct {
	Entities []map[string]interface{} `json:"entities"`
	Edges    []extractedEdge          `json:"edges"`
}

// AddEpisode persists the raw episode, extracts entities and relationships
// from it, embeds and stores them, and links the episode to everything it
// mentioned. An episode the extractor finds nothing in is still stored.
func (e *Engine) AddEpisode(ctx context.Context, input EpisodeInput) (*AddEpisodeResult, error) {
	now := time.Now().UTC()
	episode := graph.Episode{
		UUID:              uuid.New().String(),
		Name:              input.Name,
		Content:           input.Content,
		Source:            input.Source,
		SourceDescription: input.SourceDescription,
		GroupID:           input.GroupID,
		SessionID:         input.SessionID,
		CreatedAt:         now,
		ValidAt:           input.ReferenceTime,
	}

	if err := e.repo.CreateEpisode(ctx, episode); err != nil {
		return nil, err
	}

	payload, err := e.extractKnowledge(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(payload.Entities) == 0 {
		e.logger.Debug("Extractor found nothing to persist",
			zap.String("episode", episode.UUID),
		)
		return &AddEpisodeResult{Episode: episode}, nil
	}

	nodes := normalizeEntities(input.GroupID, payload.Entities, now)

	// One embedding round trip covers entity names and edge facts.
	texts := make([]string, 0, len(nodes)+len(payload.Edges))
	for _, node := range nodes {
		texts = append(texts, node.Name)
	}
	for _, edge := range payload.Edges {
		texts = append(texts, edge.Fact)
	}
	vectors, err := e.embeddings.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed extraction: %w", err)
	}

	uuidByName := make(map[string]string, len(nodes))
	salienceByName := make(map[string]*int, len(nodes))
	for i := range nodes {
		if i < len(vectors) {
			nodes[i].NameEmbedding = vectors[i]
		}
		canonical, err := e.repo.UpsertEntity(ctx, nodes[i])
		if err != nil {
			return nil, err
		}
		nodes[i].UUID = canonical
		uuidByName[nodes[i].Name] = canonical
		salienceByName[nodes[i].Name] = nodes[i].Salience
	}

	edges := make([]graph.EntityEdge, 0, len(payload.Edges))
	for i, extracted := range payload.Edges {
		sourceUUID, okSource := uuidByName[extracted.Source]
		targetUUID, okTarget := uuidByName[extracted.Target]
		if !okSource || !okTarget {
			e.logger.Warn("Extracted edge references unknown entity",
				zap.String("source", extracted.Source),
				zap.String("target", extracted.Target),
				zap.String("name", extracted.Name),
			)
			continue
		}

		validAt := input.ReferenceTime
		if t, ok := parseTime(extracted.ValidAt); ok {
			validAt = t
		}

		edge := graph.EntityEdge{
			UUID:           uuid.New().String(),
			Name:           extracted.Name,
			Fact:           extracted.Fact,
			GroupID:        input.GroupID,
			SourceUUID:     sourceUUID,
			TargetUUID:     targetUUID,
			SourceSalience: salienceByName[extracted.Source],
			TargetSalience: salienceByName[extracted.Target],
			Episodes:       []string{episode.UUID},
			CreatedAt:      now,
			ValidAt:        &validAt,
		}
		if idx := len(nodes) + i; idx < len(vectors) {
			edge.FactEmbedding = vectors[idx]
		}

		if err := e.repo.CreateEntityEdge(ctx, edge); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	entityUUIDs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		entityUUIDs = append(entityUUIDs, node.UUID)
	}
	if err := e.repo.LinkMentions(ctx, episode.UUID, entityUUIDs); err != nil {
		return nil, err
	}

	e.logger.Info("Episode ingested",
		zap.String("episode", episode.UUID),
		zap.String("group_id", input.GroupID),
		zap.Int("entities", len(nodes)),
		zap.Int("edges", len(edges)),
	)

	return &AddEpisodeResult{Episode: episode, Nodes: nodes, Edges: edges}, nil
}

// extractKnowledge runs one structured completion over the episode content.
func (e *Engine) extractKnowledge(ctx context.Context, input EpisodeInput) (*extractionPayload, error) {
	result, err := e.completions.StructuredComplete(ctx, adapter.StructuredRequest{
		Model: e.llmModel,
		Messages: []adapter.Message{
			{Role: "system", Content: extractionSystemPrompt()},
			{Role: "user", Content: extractionUserPrompt(input)},
		},
		Schema:      extractionSchema(),
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}

	var payload extractionPayload
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}

	e.logger.Debug("Extraction complete",
		zap.Int("entities", len(payload.Entities)),
		zap.Int("edges", len(payload.Edges)),
		zap.Int("input_tokens", result.Usage.InputTokens),
		zap.Int("output_tokens", result.Usage.OutputTokens),
	)
	return &payload, nil
}

// normalizeEntities turns raw extractor maps into graph nodes with type
// defaults applied. Entities without a usable name are dropped.
func normalizeEntities(groupID string, raw []map[string]interface{}, now time.Time) []graph.EntityNode {
	nodes := make([]graph.EntityNode, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, item := range raw {
		name := stringField(item, "name")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		typeName := stringField(item, "type")
		if typeName == "" {
			typeName = entity.TypeFact
		}

		attrs := make(map[string]interface{})
		for key, val := range item {
			switch key {
			case "name", "type", "summary", "salience":
			default:
				attrs[key] = val
			}
		}

		salience, attrs := entity.Normalize(typeName, intField(item, "salience"), attrs)

		nodes = append(nodes, graph.EntityNode{
			UUID:       uuid.New().String(),
			Name:       name,
			GroupID:    groupID,
			Type:       typeName,
			Summary:    stringField(item, "summary"),
			Salience:   &salience,
			Attributes: attrs,
			CreatedAt:  now,
		})
	}
	return nodes
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func intField(m map[string]interface{}, key string) *int {
	switch n := m[key].(type) {
	case float64:
		v := int(n)
		return &v
	case int:
		v := n
		return &v
	}
	return nil
}

// extractionSchema declares the reply shape enforced on the extractor.
// Type-specific attributes come straight from the entity templates.
func extractionSchema() adapter.Schema {
	entityProps := map[string]interface{}{
		"name": map[string]interface{}{
			"type":        "string",
			"description": "Canonical name of the entity.",
		},
		"type": map[string]interface{}{
			"type":        "string",
			"description": "One of: Fact, Decision, Failure, Reflection.",
		},
		"summary": map[string]interface{}{
			"type":        "string",
			"description": "One sentence describing the entity.",
		},
		"salience": map[string]interface{}{
			"type":        "integer",
			"minimum":     1,
			"maximum":     10,
			"description": "Importance for future recall, 1 (trivial) to 10 (critical).",
		},
	}
	for _, tpl := range entity.Templates() {
		for field, schema := range tpl.Fields {
			if _, exists := entityProps[field]; !exists {
				entityProps[field] = schema
			}
		}
	}

	return adapter.Schema{
		Name: "knowledge_extraction",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"entities": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":       "object",
						"properties": entityProps,
						"required":   []string{"name", "type"},
					},
				},
				"edges": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"source": map[string]interface{}{
								"type":        "string",
								"description": "Name of the source entity, exactly as listed in entities.",
							},
							"target": map[string]interface{}{
								"type":        "string",
								"description": "Name of the target entity, exactly as listed in entities.",
							},
							"name": map[string]interface{}{
								"type":        "string",
								"description": "Short relationship label, e.g. USES or DECIDED_ON.",
							},
							"fact": map[string]interface{}{
								"type":        "string",
								"description": "The relationship stated as a standalone sentence.",
							},
							"valid_at": map[string]interface{}{
								"type":        "string",
								"description": "ISO 8601 time the fact became true, only when the content states it.",
							},
						},
						"required": []string{"source", "target", "name", "fact"},
					},
				},
			},
			"required": []string{"entities", "edges"},
		},
	}
}

func extractionSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a knowledge extraction system for an AI agent's long-term memory. ")
	b.WriteString("Extract entities and the relationships between them from the episode.\n\n")
	b.WriteString("Entity types:\n")
	for _, tpl := range entity.Templates() {
		fmt.Fprintf(&b, "- %s: %s", tpl.Name, tpl.Description)
		if len(tpl.Fields) > 0 {
			fields := make([]string, 0, len(tpl.Fields))
			for field := range tpl.Fields {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			fmt.Fprintf(&b, " Extra fields: %s.", strings.Join(fields, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Rules:
- Extract only what the episode actually states. Never invent details.
- Entity names must be short, canonical and reusable across episodes.
- Assign salience 1-10: routine detail is low, decisions and hard lessons are high.
- Every edge must reference entities from this reply by their exact name.
- Set valid_at only when the episode says when the fact became true.
- An episode with nothing worth remembering yields empty arrays.`)
	return b.String()
}

func extractionUserPrompt(input EpisodeInput) string {
	return fmt.Sprintf("Reference time: %s\n\nEpisode:\n%s",
		input.ReferenceTime.Format(time.RFC3339), input.Content)
}
