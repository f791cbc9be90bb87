package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fraudgraph/backend/pkg/errors"
)

func TestGraph_AddEdge(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge(0, 1))
	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(1, 0)) // duplicate, reversed

	assert.Equal(t, []int{0, 1, 2}, g.Nodes())
	assert.Equal(t, 2, g.EdgeCount())
	assert.True(t, g.HasEdge(0, 1))
	assert.True(t, g.HasEdge(1, 0))
	assert.False(t, g.HasEdge(0, 2))
	assert.False(t, g.HasEdge(7, 8))

	nbs, err := g.Neighbors(1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, nbs)
}

func TestGraph_SelfLoopRejected(t *testing.T) {
	g := New()
	err := g.AddEdge(3, 3)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidConfiguration(err))
	assert.Equal(t, 0, g.NodeCount())
}

func TestGraph_NotFound(t *testing.T) {
	g := New()
	g.AddNode(1)

	_, err := g.Neighbors(42)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = g.Degree(42)
	assert.True(t, apperrors.IsNotFound(err))

	nbs, err := g.Neighbors(1)
	require.NoError(t, err)
	assert.Empty(t, nbs)
}

func TestGraph_Density(t *testing.T) {
	tests := []struct {
		name  string
		nodes []int
		edges []Edge
		want  float64
	}{
		{name: "empty", want: 0},
		{name: "single node", nodes: []int{0}, want: 0},
		{name: "two nodes no edge", nodes: []int{0, 1}, want: 0},
		{name: "path of four", edges: []Edge{{0, 1}, {1, 2}, {2, 3}}, want: 0.5},
		{name: "triangle", edges: []Edge{{0, 1}, {1, 2}, {0, 2}}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := FromEdges(tt.nodes, tt.edges)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, g.Density(), 1e-12)
		})
	}
}

func TestGraph_DegreeAndAverage(t *testing.T) {
	g, err := FromEdges([]int{9}, []Edge{{0, 1}, {0, 2}, {0, 3}})
	require.NoError(t, err)

	d, err := g.Degree(0)
	require.NoError(t, err)
	assert.Equal(t, 3, d)

	d, err = g.Degree(9)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	assert.InDelta(t, 6.0/5.0, g.AverageDegree(), 1e-12)
	assert.Equal(t, 0.0, New().AverageDegree())
}

func TestGraph_CopiesAreIndependent(t *testing.T) {
	g, err := FromEdges(nil, []Edge{{0, 1}})
	require.NoError(t, err)

	nodes := g.Nodes()
	nodes[0] = 99
	edges := g.Edges()
	edges[0].Source = 99

	assert.Equal(t, []int{0, 1}, g.Nodes())
	assert.Equal(t, Edge{Source: 0, Target: 1}, g.Edges()[0])
}

func TestEdge_Key(t *testing.T) {
	assert.Equal(t, Edge{Source: 1, Target: 5}, Edge{Source: 5, Target: 1}.Key())
	assert.Equal(t, Edge{Source: 1, Target: 5}, Edge{Source: 1, Target: 5}.Key())
}

func TestReadEdgeList(t *testing.T) {
	input := `# transactions
0 1
1 2 0.75

2	0
7
`
	g, err := ReadEdgeList(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 7}, g.Nodes())
	assert.Equal(t, 3, g.EdgeCount())
	assert.True(t, g.HasEdge(2, 0))
}

func TestReadEdgeList_Errors(t *testing.T) {
	_, err := ReadEdgeList(strings.NewReader("0 1\nx 2\n"))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidConfiguration(err))
	assert.Contains(t, err.Error(), "line 2")

	_, err = ReadEdgeList(strings.NewReader("3 3\n"))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidConfiguration(err))
}
