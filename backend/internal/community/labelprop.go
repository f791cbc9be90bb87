// Package community assigns nodes to communities by greedy label
// propagation.
package community

import (
	"sort"

	"fraudgraph/backend/internal/graph"
	apperrors "fraudgraph/backend/pkg/errors"
)

// DefaultMaxIterations bounds the number of propagation passes
const DefaultMaxIterations = 10

// Result is the outcome of one assignment run
type Result struct {
	// Labels maps every node to its community id, which is always the id
	// some node started with.
	Labels map[int]int
	// Iterations is the number of passes performed
	Iterations int
	// Converged is true when the last pass changed nothing. A converged
	// assignment is stable, not modularity-optimal.
	Converged bool
}

// Assign runs label propagation over g for at most maxIterations passes.
//
// Every node starts in its own community. In each pass nodes are visited
// in graph order and take the label most common among their neighbors;
// among equally common labels the one met first in neighbor order wins.
// Updates apply immediately, so later nodes in the same pass see them.
func Assign(g *graph.Graph, maxIterations int) (*Result, error) {
	if maxIterations < 0 {
		return nil, apperrors.NewInvalidConfiguration("max_iterations", "must not be negative")
	}

	nodes := g.Nodes()
	labels := make(map[int]int, len(nodes))
	for _, id := range nodes {
		labels[id] = id
	}

	res := &Result{Labels: labels, Converged: len(nodes) == 0}
	tally := make(map[int]int)
	var order []int

	for res.Iterations < maxIterations {
		res.Iterations++
		changed := false

		for _, id := range nodes {
			nbs, err := g.Neighbors(id)
			if err != nil {
				return nil, err
			}
			if len(nbs) == 0 {
				continue
			}

			clear(tally)
			order = order[:0]
			for _, nb := range nbs {
				label := labels[nb]
				if _, seen := tally[label]; !seen {
					order = append(order, label)
				}
				tally[label]++
			}

			best, bestCount := order[0], tally[order[0]]
			for _, label := range order[1:] {
				if tally[label] > bestCount {
					best, bestCount = label, tally[label]
				}
			}

			if best != labels[id] {
				labels[id] = best
				changed = true
			}
		}

		if !changed {
			res.Converged = true
			break
		}
	}

	return res, nil
}

// Count returns the number of distinct communities
func Count(labels map[int]int) int {
	seen := make(map[int]struct{}, len(labels))
	for _, c := range labels {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// Group is one community and its members
type Group struct {
	ID      int   `json:"id"`
	Members []int `json:"members"`
}

// Groups returns the communities ordered by size, largest first, ties by
// id. Members are sorted ascending.
func Groups(labels map[int]int) []Group {
	byID := make(map[int][]int)
	for node, c := range labels {
		byID[c] = append(byID[c], node)
	}

	groups := make([]Group, 0, len(byID))
	for id, members := range byID {
		sort.Ints(members)
		groups = append(groups, Group{ID: id, Members: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Members) != len(groups[j].Members) {
			return len(groups[i].Members) > len(groups[j].Members)
		}
		return groups[i].ID < groups[j].ID
	})
	return groups
}
