// Package salience orders recalled fact edges for progressive disclosure:
// high-salience memories (failures, decisions) surface first, routine facts
// last.
package salience

import (
	"sort"
	"time"
)

// Edge is one scored fact edge as surfaced by recall. Score is the
// cross-encoder reranker score and is always stamped (0.0 when the reranker
// produced none). Salience is an optional enrichment carried over from the
// entities the edge connects.
type Edge struct {
	UUID       string     `json:"uuid"`
	Fact       string     `json:"fact"`
	SourceNode string     `json:"source_node"`
	TargetNode string     `json:"target_node"`
	ValidAt    *time.Time `json:"valid_at"`
	InvalidAt  *time.Time `json:"invalid_at"`
	Score      float64    `json:"score"`
	Salience   *int       `json:"salience,omitempty"`
}

// defaultImportance stands in when an edge carries neither salience nor a
// reranker score, so unenriched facts are not silently dropped by filtering.
const defaultImportance = 5

// effectiveImportance is the value minSalience filters against: the edge's
// salience when attached, else its reranker score, else a fixed default. A
// zero score counts as absent (scores are stamped 0.0 when the reranker
// produced none).
func effectiveImportance(e Edge) float64 {
	if e.Salience != nil {
		return float64(*e.Salience)
	}
	if e.Score != 0 {
		return e.Score
	}
	return defaultImportance
}

// Rank filters out edges whose effective importance falls below minSalience
// (when set) and sorts the rest by score descending. The sort is stable:
// equal scores keep their original relative order. The input slice is never
// mutated; a new slice is returned.
func Rank(edges []Edge, minSalience *int) []Edge {
	ranked := make([]Edge, 0, len(edges))
	if minSalience == nil {
		ranked = append(ranked, edges...)
	} else {
		threshold := float64(*minSalience)
		for _, e := range edges {
			if effectiveImportance(e) >= threshold {
				ranked = append(ranked, e)
			}
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
