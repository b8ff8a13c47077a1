package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEmbedderServer(t *testing.T, vectors [][]float32) *Embedder {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]interface{}, len(vectors))
		for i, v := range vectors {
			data[i] = map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": v,
			}
		}
		resp := map[string]interface{}{
			"object": "list",
			"model":  "text-embedding-004",
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 4, "total_tokens": 4},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encoding fake response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	return NewEmbedder(NewOpenAIClient(srv.URL, "test-key"), "text-embedding-004")
}

func TestEmbedder_Embed(t *testing.T) {
	embedder := newEmbedderServer(t, [][]float32{
		{0.1, 0.2},
		{0.3, 0.4},
	})

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][1] != 0.4 {
		t.Errorf("vectors out of order: %v", vectors)
	}
}

func TestEmbedder_EmbedEmptyInput(t *testing.T) {
	embedder := newEmbedderServer(t, nil)

	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vectors != nil {
		t.Errorf("got %v, want nil for empty input", vectors)
	}
}

func TestEmbedder_EmbedCountMismatch(t *testing.T) {
	embedder := newEmbedderServer(t, [][]float32{{0.1}})

	_, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error when provider returns fewer vectors than inputs")
	}
}
