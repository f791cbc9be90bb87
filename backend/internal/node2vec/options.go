// Package node2vec computes per-node embeddings from biased second-order
// random walks.
//
// The embedding is a closed-form aggregation, not a trained skip-gram model:
// each node sums sinusoidal fingerprints of the nodes that surround it in
// the sampled walks, weighted by walk position, and the sum is L2
// normalized. Given the same graph, options and seed the result is
// bit-for-bit reproducible.
package node2vec

import (
	apperrors "fraudgraph/backend/pkg/errors"
)

// ContextWindow is the number of positions on each side of a walk position
// that contribute to its embedding.
const ContextWindow = 2

// Options controls walk sampling and aggregation
type Options struct {
	Dimensions   int     `json:"embedding_dim"`
	WalksPerNode int     `json:"walks_per_node"`
	WalkLength   int     `json:"walk_length"`
	P            float64 `json:"p"` // return parameter; lower favors revisiting the previous node
	Q            float64 `json:"q"` // in-out parameter; lower favors moving outward
	Workers      int     `json:"workers"`
}

// DefaultOptions returns the settings used by the fraud and social analyses
func DefaultOptions() Options {
	return Options{
		Dimensions:   32,
		WalksPerNode: 5,
		WalkLength:   40,
		P:            1.0,
		Q:            1.0,
		Workers:      1,
	}
}

// Validate rejects options the sampler or aggregator cannot run with
func (o Options) Validate() error {
	if o.Dimensions <= 0 {
		return apperrors.NewInvalidConfiguration("embedding_dim", "must be positive")
	}
	if o.WalkLength <= 0 {
		return apperrors.NewInvalidConfiguration("walk_length", "must be positive")
	}
	if o.WalksPerNode < 0 {
		return apperrors.NewInvalidConfiguration("walks_per_node", "must not be negative")
	}
	if !(o.P > 0) {
		return apperrors.NewInvalidConfiguration("p", "must be positive")
	}
	if !(o.Q > 0) {
		return apperrors.NewInvalidConfiguration("q", "must be positive")
	}
	if o.Workers < 0 {
		return apperrors.NewInvalidConfiguration("workers", "must not be negative")
	}
	return nil
}
