package engine

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ai4u-memory/internal/graph"
)

const (
	// rrfRankConstant dampens the weight of rank position in reciprocal
	// rank fusion. 60 is the value from the original RRF paper.
	rrfRankConstant = 60

	// minLegFetch is the floor on per-leg candidate counts so fusion has
	// something to work with at small limits.
	minLegFetch = 20
)

func legLimit(limit int) int {
	if n := limit * 2; n > minLegFetch {
		return n
	}
	return minLegFetch
}

// Search runs hybrid retrieval: lexical and vector legs in parallel per
// category, reciprocal rank fusion to merge them, then a reranker pass to
// score the survivors against the query. A reranker outage degrades to
// fusion order instead of failing the request.
func (e *Engine) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	fetch := legLimit(input.Limit)

	vectors, err := e.embeddings.Embed(ctx, []string{input.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	var queryVector []float32
	if len(vectors) > 0 {
		queryVector = vectors[0]
	}

	var (
		edgesLexical  []graph.EntityEdge
		edgesSemantic []graph.EntityEdge
		nodesLexical  []graph.EntityNode
		nodesSemantic []graph.EntityNode
		episodes      []graph.Episode
		communities   []graph.Community
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		edgesLexical, err = e.repo.SearchEdgesFulltext(gctx, input.Groups, input.Query, fetch)
		return err
	})
	g.Go(func() error {
		var err error
		edgesSemantic, err = e.repo.SearchEdgesByEmbedding(gctx, input.Groups, queryVector, fetch)
		return err
	})
	g.Go(func() error {
		var err error
		nodesLexical, err = e.repo.SearchNodesFulltext(gctx, input.Groups, input.Query, fetch)
		return err
	})
	g.Go(func() error {
		var err error
		nodesSemantic, err = e.repo.SearchNodesByEmbedding(gctx, input.Groups, queryVector, fetch)
		return err
	})
	g.Go(func() error {
		var err error
		episodes, err = e.repo.SearchEpisodesFulltext(gctx, input.Groups, input.Query, fetch)
		return err
	})
	g.Go(func() error {
		var err error
		communities, err = e.repo.ListCommunities(gctx, input.Groups, fetch)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	edges := fuseEdges(edgesLexical, edgesSemantic)
	nodes := fuseNodes(nodesLexical, nodesSemantic)

	edgeScores := e.rerank(ctx, input.Query, edgePassages(edges))
	nodeScores := e.rerank(ctx, input.Query, nodePassages(nodes))
	sortByScore(len(edges), edgeScores, func(i, j int) { edges[i], edges[j] = edges[j], edges[i] })
	sortByScore(len(nodes), nodeScores, func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

	e.logger.Debug("Search complete",
		zap.String("query", input.Query),
		zap.Int("edges", len(edges)),
		zap.Int("nodes", len(nodes)),
		zap.Int("episodes", len(episodes)),
		zap.Int("communities", len(communities)),
	)

	return &SearchResult{
		Edges:       edges,
		EdgeScores:  edgeScores,
		Nodes:       nodes,
		NodeScores:  nodeScores,
		Episodes:    episodes,
		Communities: communities,
	}, nil
}

// rrfScores accumulates reciprocal rank fusion scores across result legs,
// keyed by item uuid.
func rrfScores(legs ...[]string) map[string]float64 {
	scores := make(map[string]float64)
	for _, leg := range legs {
		for rank, id := range leg {
			scores[id] += 1.0 / float64(rank+rrfRankConstant)
		}
	}
	return scores
}

func fuseEdges(legs ...[]graph.EntityEdge) []graph.EntityEdge {
	byUUID := make(map[string]graph.EntityEdge)
	var order []string
	idLegs := make([][]string, 0, len(legs))
	for _, leg := range legs {
		ids := make([]string, 0, len(leg))
		for _, edge := range leg {
			ids = append(ids, edge.UUID)
			if _, seen := byUUID[edge.UUID]; !seen {
				byUUID[edge.UUID] = edge
				order = append(order, edge.UUID)
			}
		}
		idLegs = append(idLegs, ids)
	}

	scores := rrfScores(idLegs...)
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	fused := make([]graph.EntityEdge, 0, len(order))
	for _, id := range order {
		fused = append(fused, byUUID[id])
	}
	return fused
}

func fuseNodes(legs ...[]graph.EntityNode) []graph.EntityNode {
	byUUID := make(map[string]graph.EntityNode)
	var order []string
	idLegs := make([][]string, 0, len(legs))
	for _, leg := range legs {
		ids := make([]string, 0, len(leg))
		for _, node := range leg {
			ids = append(ids, node.UUID)
			if _, seen := byUUID[node.UUID]; !seen {
				byUUID[node.UUID] = node
				order = append(order, node.UUID)
			}
		}
		idLegs = append(idLegs, ids)
	}

	scores := rrfScores(idLegs...)
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	fused := make([]graph.EntityNode, 0, len(order))
	for _, id := range order {
		fused = append(fused, byUUID[id])
	}
	return fused
}

func edgePassages(edges []graph.EntityEdge) []string {
	passages := make([]string, 0, len(edges))
	for _, edge := range edges {
		passages = append(passages, edge.Fact)
	}
	return passages
}

func nodePassages(nodes []graph.EntityNode) []string {
	passages := make([]string, 0, len(nodes))
	for _, node := range nodes {
		passage := node.Name
		if node.Summary != "" {
			passage += ": " + node.Summary
		}
		passages = append(passages, passage)
	}
	return passages
}

// rerank scores passages against the query. On reranker failure every
// passage scores zero, which keeps the incoming fusion order under a
// stable sort.
func (e *Engine) rerank(ctx context.Context, query string, passages []string) []float64 {
	if len(passages) == 0 {
		return nil
	}
	scores, err := e.reranker.RerankPassages(ctx, query, passages)
	if err != nil {
		e.logger.Warn("Reranker unavailable, keeping fusion order",
			zap.Int("passages", len(passages)),
			zap.Error(err),
		)
		return make([]float64, len(passages))
	}
	return scores
}

// sortByScore sorts a parallel slice pair by descending score, keeping the
// existing order on ties. swap exchanges items i and j in the companion
// slice; scores are swapped here.
func sortByScore(n int, scores []float64, swap func(i, j int)) {
	if len(scores) != n {
		return
	}
	sort.Stable(sortPair{n: n, scores: scores, swapItems: swap})
}

type sortPair struct {
	n         int
	scores    []float64
	swapItems func(i, j int)
}

func (p sortPair) Len() int { return p.n }
func (p sortPair) Less(i, j int) bool {
	return p.scores[i] > p.scores[j]
}
func (p sortPair) Swap(i, j int) {
	p.scores[i], p.scores[j] = p.scores[j], p.scores[i]
	p.swapItems(i, j)
}
