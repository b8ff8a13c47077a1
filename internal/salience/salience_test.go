package salience

import "testing"

func intPtr(v int) *int { return &v }

func TestRankEmpty(t *testing.T) {
	got := Rank(nil, nil)
	if len(got) != 0 {
		t.Errorf("Rank(nil) returned %d edges, want 0", len(got))
	}

	got = Rank([]Edge{}, intPtr(5))
	if len(got) != 0 {
		t.Errorf("Rank(empty, 5) returned %d edges, want 0", len(got))
	}
}

func TestRankSortsByScoreDescending(t *testing.T) {
	edges := []Edge{
		{UUID: "1", Score: 0.3},
		{UUID: "2", Score: 0.9},
		{UUID: "3", Score: 0.6},
	}

	got := Rank(edges, nil)

	want := []string{"2", "3", "1"}
	if len(got) != len(want) {
		t.Fatalf("got %d edges, want %d", len(got), len(want))
	}
	for i, uuid := range want {
		if got[i].UUID != uuid {
			t.Errorf("position %d: got %s, want %s", i, got[i].UUID, uuid)
		}
	}
}

func TestRankStableOnTies(t *testing.T) {
	edges := []Edge{
		{UUID: "a", Score: 0.5},
		{UUID: "b", Score: 0.5},
		{UUID: "c", Score: 0.5},
	}

	got := Rank(edges, nil)

	for i, uuid := range []string{"a", "b", "c"} {
		if got[i].UUID != uuid {
			t.Errorf("tie order broken at %d: got %s, want %s", i, got[i].UUID, uuid)
		}
	}
}

func TestRankFiltersByMinSalience(t *testing.T) {
	edges := []Edge{
		{UUID: "1", Salience: intPtr(3), Score: 0.3},
		{UUID: "2", Salience: intPtr(9), Score: 0.9},
		{UUID: "3", Salience: intPtr(6), Score: 0.6},
	}

	got := Rank(edges, intPtr(5))

	want := []string{"2", "3"}
	if len(got) != len(want) {
		t.Fatalf("got %d edges, want %d", len(got), len(want))
	}
	for i, uuid := range want {
		if got[i].UUID != uuid {
			t.Errorf("position %d: got %s, want %s", i, got[i].UUID, uuid)
		}
	}
}

func TestRankFallsBackToScore(t *testing.T) {
	// No salience attached: the reranker score stands in for it.
	edges := []Edge{{UUID: "1", Score: 7}}

	got := Rank(edges, intPtr(5))
	if len(got) != 1 {
		t.Fatalf("got %d edges, want 1 (score 7 >= min 5)", len(got))
	}

	got = Rank([]Edge{{UUID: "2", Score: 0.4}}, intPtr(5))
	if len(got) != 0 {
		t.Errorf("got %d edges, want 0 (score 0.4 < min 5)", len(got))
	}
}

func TestRankDefaultImportanceWhenUnscored(t *testing.T) {
	// Neither salience nor a reranker score: the fixed default of 5 applies.
	edges := []Edge{{UUID: "1"}}

	got := Rank(edges, intPtr(5))
	if len(got) != 1 {
		t.Fatalf("got %d edges, want 1 (default importance 5 >= min 5)", len(got))
	}

	got = Rank(edges, intPtr(6))
	if len(got) != 0 {
		t.Errorf("got %d edges, want 0 (default importance 5 < min 6)", len(got))
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	edges := []Edge{
		{UUID: "1", Score: 0.1},
		{UUID: "2", Score: 0.9},
	}

	_ = Rank(edges, nil)

	if edges[0].UUID != "1" || edges[1].UUID != "2" {
		t.Error("input slice order was mutated")
	}
}

func TestRankAllFiltered(t *testing.T) {
	edges := []Edge{
		{UUID: "1", Salience: intPtr(2), Score: 0.9},
		{UUID: "2", Salience: intPtr(1), Score: 0.8},
	}

	got := Rank(edges, intPtr(8))
	if len(got) != 0 {
		t.Errorf("got %d edges, want 0 when every edge falls below the threshold", len(got))
	}
}
