package graph

import (
	apperrors "fraudgraph/backend/pkg/errors"
)

// Edge is an undirected edge. Source and Target keep the order the edge was
// added in; use Key for an order-independent identity.
type Edge struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Key returns the edge with its endpoints in ascending order
func (e Edge) Key() Edge {
	if e.Source > e.Target {
		return Edge{Source: e.Target, Target: e.Source}
	}
	return e
}

// Graph is an undirected simple graph over integer node ids.
// Node and neighbor enumeration follow insertion order, which keeps seeded
// walks reproducible. A Graph is not safe for concurrent mutation; once
// built it may be read from any number of goroutines.
type Graph struct {
	nodes []int
	adj   map[int][]int
	edges []Edge
	index map[Edge]struct{}
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		adj:   make(map[int][]int),
		index: make(map[Edge]struct{}),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(id int) {
	if _, ok := g.adj[id]; ok {
		return
	}
	g.adj[id] = nil
	g.nodes = append(g.nodes, id)
}

// AddEdge connects a and b, adding either endpoint if missing.
// Self-loops are rejected; repeated edges are ignored.
func (g *Graph) AddEdge(a, b int) error {
	if a == b {
		return apperrors.NewInvalidConfiguration("edge", "self-loops are not allowed")
	}
	g.AddNode(a)
	g.AddNode(b)

	key := Edge{Source: a, Target: b}.Key()
	if _, ok := g.index[key]; ok {
		return nil
	}
	g.index[key] = struct{}{}
	g.edges = append(g.edges, Edge{Source: a, Target: b})
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
	return nil
}

// Contains reports whether id is a node of the graph
func (g *Graph) Contains(id int) bool {
	_, ok := g.adj[id]
	return ok
}

// Neighbors returns the neighbors of id in insertion order.
// The returned slice must not be modified.
func (g *Graph) Neighbors(id int) ([]int, error) {
	nbs, ok := g.adj[id]
	if !ok {
		return nil, apperrors.NewNodeNotFound(id)
	}
	return nbs, nil
}

// Degree returns the number of neighbors of id
func (g *Graph) Degree(id int) (int, error) {
	nbs, ok := g.adj[id]
	if !ok {
		return 0, apperrors.NewNodeNotFound(id)
	}
	return len(nbs), nil
}

// HasEdge reports whether a and b are adjacent. Symmetric; false for
// unknown nodes.
func (g *Graph) HasEdge(a, b int) bool {
	_, ok := g.index[Edge{Source: a, Target: b}.Key()]
	return ok
}

// Nodes returns a copy of the node ids in insertion order
func (g *Graph) Nodes() []int {
	out := make([]int, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of the edges in insertion order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Density returns 2E / (N(N-1)), or 0 when fewer than two nodes exist.
func (g *Graph) Density() float64 {
	n := len(g.nodes)
	if n < 2 {
		return 0
	}
	return 2 * float64(len(g.edges)) / (float64(n) * float64(n-1))
}

// AverageDegree returns the mean node degree, 0 for an empty graph
func (g *Graph) AverageDegree() float64 {
	if len(g.nodes) == 0 {
		return 0
	}
	return 2 * float64(len(g.edges)) / float64(len(g.nodes))
}

// FromEdges builds a graph from explicit nodes and edges. Nodes listed only
// through edges are added in first-seen order after the explicit ones.
func FromEdges(nodes []int, edges []Edge) (*Graph, error) {
	g := New()
	for _, id := range nodes {
		g.AddNode(id)
	}
	for _, e := range edges {
		if err := g.AddEdge(e.Source, e.Target); err != nil {
			return nil, err
		}
	}
	return g, nil
}
