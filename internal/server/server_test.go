package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai4u-memory/internal/gateway"
	"ai4u-memory/internal/graph"
	pkgerrors "ai4u-memory/pkg/errors"
)

type fakeIngest struct {
	ingest     func(ctx context.Context, req gateway.IngestRequest) (*gateway.IngestResponse, error)
	ingestBulk func(ctx context.Context, req gateway.BulkIngestRequest) (*gateway.BulkIngestResponse, error)
}

func (f *fakeIngest) Ingest(ctx context.Context, req gateway.IngestRequest) (*gateway.IngestResponse, error) {
	return f.ingest(ctx, req)
}

func (f *fakeIngest) IngestBulk(ctx context.Context, req gateway.BulkIngestRequest) (*gateway.BulkIngestResponse, error) {
	return f.ingestBulk(ctx, req)
}

type fakeRecall struct {
	recall       func(ctx context.Context, req gateway.RecallRequest) (*gateway.RecallResponse, error)
	listEntities func(ctx context.Context, userID, agentID string, limit int) (*gateway.EntitiesResponse, error)
	getEntity    func(ctx context.Context, uuid string) (*gateway.EntityDetail, error)
	listEpisodes func(ctx context.Context, userID, agentID string, limit int) (*gateway.EpisodesResponse, error)
	forget       func(ctx context.Context, userID, agentID string) (*gateway.ForgetResponse, error)
}

func (f *fakeRecall) Recall(ctx context.Context, req gateway.RecallRequest) (*gateway.RecallResponse, error) {
	return f.recall(ctx, req)
}

func (f *fakeRecall) ListEntities(ctx context.Context, userID, agentID string, limit int) (*gateway.EntitiesResponse, error) {
	return f.listEntities(ctx, userID, agentID, limit)
}

func (f *fakeRecall) GetEntity(ctx context.Context, uuid string) (*gateway.EntityDetail, error) {
	return f.getEntity(ctx, uuid)
}

func (f *fakeRecall) ListEpisodes(ctx context.Context, userID, agentID string, limit int) (*gateway.EpisodesResponse, error) {
	return f.listEpisodes(ctx, userID, agentID, limit)
}

func (f *fakeRecall) Forget(ctx context.Context, userID, agentID string) (*gateway.ForgetResponse, error) {
	return f.forget(ctx, userID, agentID)
}

func perform(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := New(nil, nil, "").Router()

	w := perform(router, "GET", "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "memory.ai4u.now", response["service"])
	assert.Equal(t, "0.2.0", response["version"])
}

func TestRootEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := New(nil, nil, "").Router()

	w := perform(router, "GET", "/", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	endpoints := response["endpoints"].(map[string]interface{})
	assert.Equal(t, "/v1/ingest", endpoints["ingest"])
	assert.Equal(t, "/v1/recall", endpoints["recall"])
}

func TestDegradedMode_Returns503(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := New(nil, nil, "").Router()

	for _, tc := range []struct {
		method string
		path   string
		body   interface{}
	}{
		{"POST", "/v1/ingest", gin.H{"content": "c", "user_id": "u"}},
		{"POST", "/v1/ingest/bulk", gin.H{"episodes": []gin.H{}}},
		{"POST", "/v1/recall", gin.H{"query": "q", "user_id": "u"}},
		{"GET", "/v1/entities?user_id=u", nil},
		{"GET", "/v1/entities/some-uuid", nil},
		{"GET", "/v1/episodes?user_id=u", nil},
		{"DELETE", "/v1/entities?user_id=u", nil},
	} {
		w := perform(router, tc.method, tc.path, tc.body, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Memory service not initialized", decode(t, w)["detail"])
	}
}

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recall := &fakeRecall{
		listEntities: func(_ context.Context, _, _ string, _ int) (*gateway.EntitiesResponse, error) {
			return &gateway.EntitiesResponse{Status: "ok", Entities: []gateway.EntityListItem{}}, nil
		},
	}
	router := New(nil, recall, "secret").Router()

	// Missing key
	w := perform(router, "GET", "/v1/entities?user_id=u", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or missing API key", decode(t, w)["detail"])

	// Wrong key
	w = perform(router, "GET", "/v1/entities?user_id=u", nil, map[string]string{"X-API-Key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Correct key
	w = perform(router, "GET", "/v1/entities?user_id=u", nil, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open
	w = perform(router, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth_OpenMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recall := &fakeRecall{
		listEntities: func(_ context.Context, _, _ string, _ int) (*gateway.EntitiesResponse, error) {
			return &gateway.EntitiesResponse{Status: "ok"}, nil
		},
	}
	router := New(nil, recall, "").Router()

	w := perform(router, "GET", "/v1/entities?user_id=u", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIngestEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ingest := &fakeIngest{
		ingest: func(_ context.Context, req gateway.IngestRequest) (*gateway.IngestResponse, error) {
			return &gateway.IngestResponse{
				Status:            "ok",
				Episode:           "memory_u_20260101_000000",
				EntitiesExtracted: 2,
				EdgesExtracted:    1,
				Entities:          []gateway.EntitySummary{},
				Edges:             []gateway.EdgeSummary{},
			}, nil
		},
	}
	router := New(ingest, nil, "").Router()

	w := perform(router, "POST", "/v1/ingest", gin.H{
		"content": "Chose Postgres", "user_id": "u",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "memory_u_20260101_000000", response["episode"])
	assert.Equal(t, float64(2), response["entities_extracted"])
	assert.Equal(t, float64(1), response["edges_extracted"])
}

func TestIngestEndpoint_MissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ingest := &fakeIngest{
		ingest: func(_ context.Context, _ gateway.IngestRequest) (*gateway.IngestResponse, error) {
			return &gateway.IngestResponse{Status: "ok"}, nil
		},
	}
	router := New(ingest, nil, "").Router()

	// No content
	w := perform(router, "POST", "/v1/ingest", gin.H{"user_id": "u"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// No user_id
	w = perform(router, "POST", "/v1/ingest", gin.H{"content": "c"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Bad source value
	w = perform(router, "POST", "/v1/ingest", gin.H{"content": "c", "user_id": "u", "source": "carrier_pigeon"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestEndpoint_UpstreamFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ingest := &fakeIngest{
		ingest: func(_ context.Context, _ gateway.IngestRequest) (*gateway.IngestResponse, error) {
			return nil, pkgerrors.NewUpstreamFailure("ingest", errors.New("pipeline down"))
		},
	}
	router := New(ingest, nil, "").Router()

	w := perform(router, "POST", "/v1/ingest", gin.H{"content": "c", "user_id": "u"}, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "ingest failed")
}

func TestBulkIngestEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	entities := 3
	edges := 1
	ingest := &fakeIngest{
		ingestBulk: func(_ context.Context, req gateway.BulkIngestRequest) (*gateway.BulkIngestResponse, error) {
			return &gateway.BulkIngestResponse{
				Status: "ok",
				Results: []gateway.BulkItemResult{
					{Episode: "ep1", Entities: &entities, Edges: &edges, Status: "ok"},
					{Episode: "ep2", Status: "error", Error: "boom"},
				},
			}, nil
		},
	}
	router := New(ingest, nil, "").Router()

	w := perform(router, "POST", "/v1/ingest/bulk", gin.H{
		"episodes": []gin.H{
			{"content": "a", "user_id": "u"},
			{"content": "b", "user_id": "u"},
		},
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	results := response["results"].([]interface{})
	require.Len(t, results, 2)

	ok := results[0].(map[string]interface{})
	assert.Equal(t, float64(3), ok["entities"])
	assert.Equal(t, "ok", ok["status"])
	_, hasError := ok["error"]
	assert.False(t, hasError, "successful item must not carry an error field")

	failed := results[1].(map[string]interface{})
	assert.Equal(t, "error", failed["status"])
	assert.Equal(t, "boom", failed["error"])
	_, hasCounts := failed["entities"]
	assert.False(t, hasCounts, "failed item must not carry counts")
}

func TestBulkIngestEndpoint_RejectsInvalidItems(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ingest := &fakeIngest{
		ingestBulk: func(_ context.Context, _ gateway.BulkIngestRequest) (*gateway.BulkIngestResponse, error) {
			return &gateway.BulkIngestResponse{Status: "ok"}, nil
		},
	}
	router := New(ingest, nil, "").Router()

	// Item missing user_id fails validation before any processing.
	w := perform(router, "POST", "/v1/ingest/bulk", gin.H{
		"episodes": []gin.H{{"content": "a"}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecallEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recall := &fakeRecall{
		recall: func(_ context.Context, req gateway.RecallRequest) (*gateway.RecallResponse, error) {
			return &gateway.RecallResponse{
				Status:      "ok",
				Query:       req.Query,
				Edges:       nil,
				Nodes:       []gateway.NodeResult{{UUID: "n1", Name: "Postgres", Score: 0.9}},
				Episodes:    []gateway.EpisodeResult{},
				Communities: []gateway.CommunityResult{},
			}, nil
		},
	}
	router := New(nil, recall, "").Router()

	w := perform(router, "POST", "/v1/recall", gin.H{
		"query": "postgres", "user_id": "u", "limit": 5,
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "postgres", response["query"])
	nodes := response["nodes"].([]interface{})
	require.Len(t, nodes, 1)
	assert.Equal(t, 0.9, nodes[0].(map[string]interface{})["score"])
}

func TestRecallEndpoint_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recall := &fakeRecall{
		recall: func(_ context.Context, _ gateway.RecallRequest) (*gateway.RecallResponse, error) {
			return &gateway.RecallResponse{Status: "ok"}, nil
		},
	}
	router := New(nil, recall, "").Router()

	// Missing query
	w := perform(router, "POST", "/v1/recall", gin.H{"user_id": "u"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Limit above cap
	w = perform(router, "POST", "/v1/recall", gin.H{"query": "q", "user_id": "u", "limit": 101}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// min_salience outside 1-10
	w = perform(router, "POST", "/v1/recall", gin.H{"query": "q", "user_id": "u", "min_salience": 11}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEntitiesEndpoint_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recall := &fakeRecall{
		listEntities: func(_ context.Context, _, _ string, _ int) (*gateway.EntitiesResponse, error) {
			return &gateway.EntitiesResponse{Status: "ok"}, nil
		},
	}
	router := New(nil, recall, "").Router()

	// user_id required
	w := perform(router, "GET", "/v1/entities", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// limit out of range
	w = perform(router, "GET", "/v1/entities?user_id=u&limit=9999", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// limit not a number
	w = perform(router, "GET", "/v1/entities?user_id=u&limit=lots", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEntitiesEndpoint_PassesScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotUser, gotAgent string
	var gotLimit int
	recall := &fakeRecall{
		listEntities: func(_ context.Context, userID, agentID string, limit int) (*gateway.EntitiesResponse, error) {
			gotUser, gotAgent, gotLimit = userID, agentID, limit
			return &gateway.EntitiesResponse{Status: "ok"}, nil
		},
	}
	router := New(nil, recall, "").Router()

	w := perform(router, "GET", "/v1/entities?user_id=u&agent_id=coder&limit=7", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u", gotUser)
	assert.Equal(t, "coder", gotAgent)
	assert.Equal(t, 7, gotLimit)
}

func TestGetEntityEndpoint_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recall := &fakeRecall{
		getEntity: func(_ context.Context, uuid string) (*gateway.EntityDetail, error) {
			// The live gateway wraps storage errors; 404 detection must
			// survive the wrap.
			return nil, pkgerrors.NewUpstreamFailure("get entity", graph.ErrEntityNotFound{UUID: uuid})
		},
	}
	router := New(nil, recall, "").Router()

	w := perform(router, "GET", "/v1/entities/missing-uuid", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "missing-uuid")
}

func TestForgetEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recall := &fakeRecall{
		forget: func(_ context.Context, userID, agentID string) (*gateway.ForgetResponse, error) {
			return &gateway.ForgetResponse{Status: "ok", DeletedScope: "u_coder"}, nil
		},
	}
	router := New(nil, recall, "").Router()

	w := perform(router, "DELETE", "/v1/entities?user_id=u&agent_id=coder", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "u_coder", response["deleted_scope"])
}

func TestEpisodesEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recall := &fakeRecall{
		listEpisodes: func(_ context.Context, userID, agentID string, limit int) (*gateway.EpisodesResponse, error) {
			assert.Equal(t, 20, limit, "default limit")
			return &gateway.EpisodesResponse{
				Status:   "ok",
				Episodes: []gateway.EpisodeListItem{{UUID: "ep1", Name: "memory_u_x", Content: "hello", GroupID: "u"}},
			}, nil
		},
	}
	router := New(nil, recall, "").Router()

	w := perform(router, "GET", "/v1/episodes?user_id=u", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	episodes := response["episodes"].([]interface{})
	require.Len(t, episodes, 1)
	assert.Equal(t, "hello", episodes[0].(map[string]interface{})["content"])
}
