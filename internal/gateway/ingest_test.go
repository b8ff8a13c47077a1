package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai4u-memory/internal/engine"
	"ai4u-memory/internal/graph"
	pkgerrors "ai4u-memory/pkg/errors"
)

// memoryMock implements Memory with overridable call handlers.
type memoryMock struct {
	addEpisode       func(ctx context.Context, input engine.EpisodeInput) (*engine.AddEpisodeResult, error)
	search           func(ctx context.Context, input engine.SearchInput) (*engine.SearchResult, error)
	retrieveEpisodes func(ctx context.Context, groups []string, limit int) ([]graph.Episode, error)
	listEntities     func(ctx context.Context, groups []string, limit int) ([]graph.EntityNode, error)
	getEntity        func(ctx context.Context, uuid string) (*graph.EntityNode, error)
	clearScope       func(ctx context.Context, groupID string) (int, error)
}

func (m *memoryMock) AddEpisode(ctx context.Context, input engine.EpisodeInput) (*engine.AddEpisodeResult, error) {
	return m.addEpisode(ctx, input)
}

func (m *memoryMock) Search(ctx context.Context, input engine.SearchInput) (*engine.SearchResult, error) {
	return m.search(ctx, input)
}

func (m *memoryMock) RetrieveEpisodes(ctx context.Context, groups []string, limit int) ([]graph.Episode, error) {
	return m.retrieveEpisodes(ctx, groups, limit)
}

func (m *memoryMock) ListEntities(ctx context.Context, groups []string, limit int) ([]graph.EntityNode, error) {
	return m.listEntities(ctx, groups, limit)
}

func (m *memoryMock) GetEntity(ctx context.Context, uuid string) (*graph.EntityNode, error) {
	return m.getEntity(ctx, uuid)
}

func (m *memoryMock) ClearScope(ctx context.Context, groupID string) (int, error) {
	return m.clearScope(ctx, groupID)
}

func emptyResult(input engine.EpisodeInput) *engine.AddEpisodeResult {
	return &engine.AddEpisodeResult{
		Episode: graph.Episode{Name: input.Name, GroupID: input.GroupID},
	}
}

func TestIngest_BuildsScopedEpisode(t *testing.T) {
	var captured engine.EpisodeInput
	mock := &memoryMock{
		addEpisode: func(_ context.Context, input engine.EpisodeInput) (*engine.AddEpisodeResult, error) {
			captured = input
			return emptyResult(input), nil
		},
	}
	gw := NewIngestGateway(mock)

	_, err := gw.Ingest(context.Background(), IngestRequest{
		Content:       "Chose Postgres over MySQL",
		UserID:        "user/1",
		AgentID:       "coder",
		SessionID:     "sess-42",
		ReferenceTime: "2026-01-02T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if captured.GroupID != "user_1_coder" {
		t.Errorf("Expected scope user_1_coder, got %s", captured.GroupID)
	}
	// Episode names embed the raw user id, not the sanitized scope.
	if !strings.HasPrefix(captured.Name, "memory_user/1_") {
		t.Errorf("Expected episode name prefixed memory_user/1_, got %s", captured.Name)
	}
	if captured.Source != "message" {
		t.Errorf("Expected source to default to message, got %s", captured.Source)
	}
	if captured.SourceDescription != "Agent memory for user/1" {
		t.Errorf("Expected computed source description, got %s", captured.SourceDescription)
	}
	if captured.SessionID != "sess-42" {
		t.Errorf("Expected session id passthrough, got %s", captured.SessionID)
	}
	want := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	if !captured.ReferenceTime.Equal(want) {
		t.Errorf("Expected reference time %v, got %v", want, captured.ReferenceTime)
	}
}

func TestIngest_BadReferenceTimeFallsBackToNow(t *testing.T) {
	var captured engine.EpisodeInput
	mock := &memoryMock{
		addEpisode: func(_ context.Context, input engine.EpisodeInput) (*engine.AddEpisodeResult, error) {
			captured = input
			return emptyResult(input), nil
		},
	}
	gw := NewIngestGateway(mock)

	before := time.Now().UTC()
	_, err := gw.Ingest(context.Background(), IngestRequest{
		Content:       "hello",
		UserID:        "u",
		ReferenceTime: "last tuesday",
	})
	after := time.Now().UTC()
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if captured.ReferenceTime.Before(before) || captured.ReferenceTime.After(after) {
		t.Errorf("Expected fallback to current time, got %v", captured.ReferenceTime)
	}
}

func TestIngest_ShapesResponse(t *testing.T) {
	validAt := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	salience := 8
	mock := &memoryMock{
		addEpisode: func(_ context.Context, input engine.EpisodeInput) (*engine.AddEpisodeResult, error) {
			return &engine.AddEpisodeResult{
				Episode: graph.Episode{Name: input.Name, GroupID: input.GroupID},
				Nodes: []graph.EntityNode{
					{UUID: "n1", Name: "Postgres", Type: "Decision", GroupID: input.GroupID, Salience: &salience},
					{UUID: "n2", Name: "backend", Type: "Fact", GroupID: input.GroupID},
				},
				Edges: []graph.EntityEdge{
					{UUID: "e1", Fact: "backend uses Postgres", SourceUUID: "n2", TargetUUID: "n1", ValidAt: &validAt},
				},
			}, nil
		},
	}
	gw := NewIngestGateway(mock)

	resp, err := gw.Ingest(context.Background(), IngestRequest{Content: "c", UserID: "u"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("Expected status ok, got %s", resp.Status)
	}
	if resp.EntitiesExtracted != 2 || resp.EdgesExtracted != 1 {
		t.Errorf("Expected counts 2/1, got %d/%d", resp.EntitiesExtracted, resp.EdgesExtracted)
	}
	if !strings.HasPrefix(resp.Episode, "memory_u_") {
		t.Errorf("Expected episode name in response, got %s", resp.Episode)
	}
	if resp.Entities[0].UUID != "n1" || resp.Entities[0].Type != "Decision" {
		t.Errorf("Unexpected entity summary: %+v", resp.Entities[0])
	}
	edge := resp.Edges[0]
	if edge.SourceNode != "n2" || edge.TargetNode != "n1" {
		t.Errorf("Expected edge endpoints n2->n1, got %s->%s", edge.SourceNode, edge.TargetNode)
	}
	if edge.ValidAt == nil || !edge.ValidAt.Equal(validAt) {
		t.Errorf("Expected valid_at %v, got %v", validAt, edge.ValidAt)
	}
	if edge.InvalidAt != nil {
		t.Errorf("Expected nil invalid_at on fresh edge, got %v", edge.InvalidAt)
	}
}

func TestIngest_WrapsEngineError(t *testing.T) {
	mock := &memoryMock{
		addEpisode: func(_ context.Context, _ engine.EpisodeInput) (*engine.AddEpisodeResult, error) {
			return nil, errors.New("extraction blew up")
		},
	}
	gw := NewIngestGateway(mock)

	_, err := gw.Ingest(context.Background(), IngestRequest{Content: "c", UserID: "u"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !pkgerrors.IsErrorType(err, pkgerrors.ErrorTypeEngine) {
		t.Errorf("Expected engine error category, got %v", err)
	}
	var upstream *pkgerrors.ErrUpstreamFailure
	if !errors.As(err, &upstream) || upstream.Operation != "ingest" {
		t.Errorf("Expected upstream failure for ingest, got %v", err)
	}
}

func TestIngestBulk_SequentialWithPartialFailure(t *testing.T) {
	var order []string
	mock := &memoryMock{
		addEpisode: func(_ context.Context, input engine.EpisodeInput) (*engine.AddEpisodeResult, error) {
			order = append(order, input.Content)
			if input.Content == "second" {
				return nil, errors.New("boom")
			}
			result := emptyResult(input)
			result.Nodes = []graph.EntityNode{{UUID: "n"}}
			return result, nil
		},
	}
	gw := NewIngestGateway(mock)

	resp, err := gw.IngestBulk(context.Background(), BulkIngestRequest{
		Episodes: []IngestRequest{
			{Content: "first", UserID: "u"},
			{Content: "second", UserID: "u"},
			{Content: "third", UserID: "u"},
		},
	})
	if err != nil {
		t.Fatalf("IngestBulk failed: %v", err)
	}

	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Errorf("Expected sequential submission order, got %v", order)
	}
	if resp.Status != "ok" {
		t.Errorf("Expected batch status ok despite item failure, got %s", resp.Status)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(resp.Results))
	}

	first := resp.Results[0]
	if first.Status != "ok" || first.Entities == nil || *first.Entities != 1 || first.Error != "" {
		t.Errorf("Unexpected first result: %+v", first)
	}

	second := resp.Results[1]
	if second.Status != "error" || second.Error == "" {
		t.Errorf("Expected error slot for second item, got %+v", second)
	}
	if second.Entities != nil || second.Edges != nil {
		t.Errorf("Expected no counts on failed item, got %+v", second)
	}

	third := resp.Results[2]
	if third.Status != "ok" {
		t.Errorf("Expected third item to run despite second failing, got %+v", third)
	}
}

func TestIngestBulk_Empty(t *testing.T) {
	mock := &memoryMock{
		addEpisode: func(_ context.Context, _ engine.EpisodeInput) (*engine.AddEpisodeResult, error) {
			t.Fatal("AddEpisode should not be called for an empty batch")
			return nil, nil
		},
	}
	gw := NewIngestGateway(mock)

	resp, err := gw.IngestBulk(context.Background(), BulkIngestRequest{})
	if err != nil {
		t.Fatalf("IngestBulk failed: %v", err)
	}
	if resp.Status != "ok" || len(resp.Results) != 0 {
		t.Errorf("Expected empty ok batch, got %+v", resp)
	}
}

func TestParseReferenceTime(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"2026-01-02T10:00:00Z", time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"2026-01-02T10:00:00+01:00", time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)},
		{"2026-01-02T10:00:00", time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"2026-01-02", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := parseReferenceTime(tc.input)
		if !got.Equal(tc.want) {
			t.Errorf("parseReferenceTime(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
