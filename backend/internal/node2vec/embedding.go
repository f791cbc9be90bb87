package node2vec

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"fraudgraph/backend/internal/graph"
)

// Embeddings maps node ids to unit-length vectors. A node is present only
// if it received at least one non-zero contribution; there is no zero
// vector fallback.
type Embeddings struct {
	dim     int
	vectors map[int][]float64
}

// NewEmbeddings wraps precomputed vectors. Vectors are used as given.
func NewEmbeddings(dim int, vectors map[int][]float64) *Embeddings {
	if vectors == nil {
		vectors = make(map[int][]float64)
	}
	return &Embeddings{dim: dim, vectors: vectors}
}

// Dim returns the vector length
func (e *Embeddings) Dim() int { return e.dim }

// Len returns the number of embedded nodes
func (e *Embeddings) Len() int { return len(e.vectors) }

// Get returns the vector for id. The slice must not be modified.
func (e *Embeddings) Get(id int) ([]float64, bool) {
	v, ok := e.vectors[id]
	return v, ok
}

// Has reports whether id has an embedding
func (e *Embeddings) Has(id int) bool {
	_, ok := e.vectors[id]
	return ok
}

// Nodes returns the embedded node ids in ascending order
func (e *Embeddings) Nodes() []int {
	ids := make([]int, 0, len(e.vectors))
	for id := range e.vectors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MarshalJSON encodes the embeddings as an object keyed by node id
func (e *Embeddings) MarshalJSON() ([]byte, error) {
	out := make(map[string][]float64, len(e.vectors))
	for id, v := range e.vectors {
		out[strconv.Itoa(id)] = v
	}
	return json.Marshal(out)
}

// Aggregate folds a walk corpus into embeddings of dimension dim.
//
// For position i of a walk, every node within ContextWindow positions adds
// w * sin(k * (neighbor + 1)) to component k, where
// w = exp(-|i - L/2| / (L/4)) and L is walkLength, the configured length,
// even when a walk ended early. The sum is order-insensitive.
func Aggregate(walks []Walk, walkLength, dim int) *Embeddings {
	acc := make(map[int][]float64)
	fingerprints := make(map[int][]float64)
	half := float64(walkLength) / 2
	quarter := float64(walkLength) / 4

	for _, walk := range walks {
		for i, node := range walk {
			lo := max(0, i-ContextWindow)
			hi := min(len(walk), i+ContextWindow+1)
			if hi-lo < 2 {
				continue
			}

			w := math.Exp(-math.Abs(float64(i)-half) / quarter)
			vec, ok := acc[node]
			if !ok {
				vec = make([]float64, dim)
				acc[node] = vec
			}
			for j := lo; j < hi; j++ {
				if j == i {
					continue
				}
				fp := fingerprint(fingerprints, walk[j], dim)
				for k := range vec {
					vec[k] += w * fp[k]
				}
			}
		}
	}

	vectors := make(map[int][]float64, len(acc))
	for node, vec := range acc {
		norm := l2(vec)
		if norm == 0 {
			continue
		}
		for k := range vec {
			vec[k] /= norm
		}
		vectors[node] = vec
	}
	return &Embeddings{dim: dim, vectors: vectors}
}

// Train samples walks over g and aggregates them in one call
func Train(ctx context.Context, g *graph.Graph, opts Options, seed int64) (*Embeddings, error) {
	walks, err := SampleWalks(ctx, g, opts, seed)
	if err != nil {
		return nil, err
	}
	return Aggregate(walks, opts.WalkLength, opts.Dimensions), nil
}

// fingerprint returns sin(k * (id + 1)) for k in [0, dim), memoized per id
func fingerprint(cache map[int][]float64, id, dim int) []float64 {
	if fp, ok := cache[id]; ok {
		return fp
	}
	fp := make([]float64, dim)
	f := float64(id + 1)
	for k := range fp {
		fp[k] = math.Sin(float64(k) * f)
	}
	cache[id] = fp
	return fp
}

func l2(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
