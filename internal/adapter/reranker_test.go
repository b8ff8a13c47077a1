package adapter

import (
	"context"
	"testing"
)

func TestReranker_RerankPassages(t *testing.T) {
	shim := newShim(t, `{"scores": [0.9, 0.1, 0.5]}`, true, nil)
	reranker := NewReranker(shim, "gpt-4o-mini")

	scores, err := reranker.RerankPassages(context.Background(), "deploy failures",
		[]string{"the deploy failed", "user likes jazz", "auth broke during deploy"})
	if err != nil {
		t.Fatalf("RerankPassages failed: %v", err)
	}
	want := []float64{0.9, 0.1, 0.5}
	if len(scores) != len(want) {
		t.Fatalf("got %d scores, want %d", len(scores), len(want))
	}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("score[%d] = %v, want %v", i, scores[i], want[i])
		}
	}
}

func TestReranker_PadsMissingScores(t *testing.T) {
	// Model returned fewer scores than passages: missing slots default to 0.
	shim := newShim(t, `{"scores": [0.7]}`, true, nil)
	reranker := NewReranker(shim, "gpt-4o-mini")

	scores, err := reranker.RerankPassages(context.Background(), "q",
		[]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("RerankPassages failed: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("got %d scores, want 3", len(scores))
	}
	if scores[0] != 0.7 || scores[1] != 0 || scores[2] != 0 {
		t.Errorf("scores = %v, want [0.7 0 0]", scores)
	}
}

func TestReranker_EmptyPassages(t *testing.T) {
	shim := newShim(t, `{"scores": []}`, true, nil)
	reranker := NewReranker(shim, "gpt-4o-mini")

	scores, err := reranker.RerankPassages(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("RerankPassages failed: %v", err)
	}
	if scores != nil {
		t.Errorf("got %v, want nil without passages", scores)
	}
}
