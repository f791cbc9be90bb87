package node2vec

import (
	"context"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"fraudgraph/backend/internal/graph"
	apperrors "fraudgraph/backend/pkg/errors"
)

// Walk is an ordered sequence of node ids starting at its anchor
type Walk []int

// initialWalkCap bounds the capacity reserved up front for one walk. Walks
// that stop at a dead end never touch the rest of the configured length.
const initialWalkCap = 64

// SampleWalks generates opts.WalksPerNode walks for every node of g.
//
// Walks are returned repetition-major, then in node order. Each walk draws
// from its own random source derived from seed and its position in that
// order, so the corpus does not depend on opts.Workers.
func SampleWalks(ctx context.Context, g *graph.Graph, opts Options, seed int64) ([]Walk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	nodes := g.Nodes()
	if len(nodes) > 0 && opts.WalksPerNode > math.MaxInt/len(nodes) {
		return nil, apperrors.NewInvalidConfiguration("walks_per_node", "walk count overflows for this graph")
	}
	total := opts.WalksPerNode * len(nodes)
	walks := make([]Walk, total)
	if total == 0 {
		return walks, nil
	}

	w := &walker{g: g, length: opts.WalkLength, invP: 1 / opts.P, invQ: 1 / opts.Q}

	sample := func(i int) error {
		rng := rand.New(rand.NewSource(walkSeed(seed, i)))
		walk, err := w.walk(nodes[i%len(nodes)], rng)
		if err != nil {
			return err
		}
		walks[i] = walk
		return nil
	}

	if opts.Workers <= 1 {
		for i := 0; i < total; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := sample(i); err != nil {
				return nil, err
			}
		}
		return walks, nil
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i := 0; i < total; i++ {
		idx := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return sample(idx)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return walks, nil
}

type walker struct {
	g      *graph.Graph
	length int
	invP   float64
	invQ   float64
}

// walk performs one second-order walk from start. It reads the graph only.
func (w *walker) walk(start int, rng *rand.Rand) (Walk, error) {
	walk := make(Walk, 1, min(w.length, initialWalkCap))
	walk[0] = start

	var weights []float64
	for len(walk) < w.length {
		cur := walk[len(walk)-1]
		nbs, err := w.g.Neighbors(cur)
		if err != nil {
			return nil, err
		}
		if len(nbs) == 0 {
			break
		}

		if len(walk) == 1 {
			walk = append(walk, nbs[rng.Intn(len(nbs))])
			continue
		}

		prev := walk[len(walk)-2]
		weights = weights[:0]
		var sum float64
		for _, nb := range nbs {
			var weight float64
			switch {
			case nb == prev:
				weight = w.invP
			case w.g.HasEdge(nb, prev):
				weight = 1.0
			default:
				weight = w.invQ
			}
			weights = append(weights, weight)
			sum += weight
		}
		walk = append(walk, nbs[pick(weights, sum, rng)])
	}
	return walk, nil
}

// pick samples an index proportionally to weights, which sum to sum
func pick(weights []float64, sum float64, rng *rand.Rand) int {
	target := rng.Float64() * sum
	var acc float64
	for i, weight := range weights {
		acc += weight
		if target < acc {
			return i
		}
	}
	// Rounding can leave target just past the last bucket
	return len(weights) - 1
}

// walkSeed mixes the run seed with a walk index (splitmix64 finalizer) so
// neighboring walks get unrelated streams.
func walkSeed(seed int64, index int) int64 {
	z := uint64(seed) + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z)
}
