// Package linkpred ranks absent edges by embedding similarity.
package linkpred

import (
	"math"
	"sort"

	"fraudgraph/backend/internal/graph"
	"fraudgraph/backend/internal/node2vec"
	apperrors "fraudgraph/backend/pkg/errors"
)

// epsilon keeps the cosine denominator away from zero
const epsilon = 1e-6

// Link is a candidate edge. Source < Target.
type Link struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Score  float64 `json:"score"`
}

// Rank scores every unordered pair of distinct, embedded, non-adjacent
// nodes by cosine similarity and returns the k best, highest first.
// Equal scores keep the order pairs were met in, walking g's nodes in order.
//
// The scan is quadratic in the number of nodes. It is meant for graphs of
// up to a few hundred nodes; callers cap input size accordingly.
func Rank(g *graph.Graph, emb *node2vec.Embeddings, k int) ([]Link, error) {
	if k < 0 {
		return nil, apperrors.NewInvalidConfiguration("top_k", "must not be negative")
	}
	if k == 0 {
		return []Link{}, nil
	}

	nodes := g.Nodes()
	type entry struct {
		id   int
		vec  []float64
		norm float64
	}
	embedded := make([]entry, 0, len(nodes))
	for _, id := range nodes {
		vec, ok := emb.Get(id)
		if !ok {
			continue
		}
		embedded = append(embedded, entry{id: id, vec: vec, norm: norm(vec)})
	}

	var links []Link
	for i, a := range embedded {
		for _, b := range embedded[i+1:] {
			if g.HasEdge(a.id, b.id) {
				continue
			}
			score := dot(a.vec, b.vec) / (a.norm*b.norm + epsilon)
			src, dst := a.id, b.id
			if src > dst {
				src, dst = dst, src
			}
			links = append(links, Link{Source: src, Target: dst, Score: score})
		}
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Score > links[j].Score
	})

	if len(links) > k {
		links = links[:k]
	}
	if links == nil {
		links = []Link{}
	}
	return links, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}
