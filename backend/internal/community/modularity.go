package community

import (
	"fraudgraph/backend/internal/graph"
)

// Modularity scores a partition of g.
//
//	Q = Σ_c [(l_c / m) - (d_c / 2m)²]
//
// where m is the edge count, l_c the edges inside community c and d_c the
// total degree of its members. Values above roughly 0.3 indicate real
// community structure. Returns 0 for a graph without edges.
func Modularity(g *graph.Graph, labels map[int]int) float64 {
	m := float64(g.EdgeCount())
	if m == 0 {
		return 0
	}

	internal := make(map[int]float64)
	degree := make(map[int]float64)

	for _, e := range g.Edges() {
		cs, ct := labels[e.Source], labels[e.Target]
		degree[cs]++
		degree[ct]++
		if cs == ct {
			internal[cs]++
		}
	}

	var q float64
	for c, d := range degree {
		share := d / (2 * m)
		q += internal[c]/m - share*share
	}
	return q
}
