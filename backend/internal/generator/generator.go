// Package generator builds synthetic graphs with planted structure for demos
// and tests: dense fraud rings, and influencer-centred social networks.
package generator

import (
	"math/rand"

	"fraudgraph/backend/internal/graph"
	apperrors "fraudgraph/backend/pkg/errors"
)

const (
	ringEdgeProbability       = 0.6
	crossRingAttemptRatio     = 0.1
	influencerEdgeProbability = 0.7
	influencerBaseScore       = 0.9
	regularMaxBaseScore       = 0.5
	maxInfluencersFollowed    = 3
	maxPeerAttempts           = 4
)

// FraudRings returns a graph on nodes 0..numNodes-1 split into numRings
// consecutive rings, the last taking any remainder. Pairs inside a ring are
// connected with probability 0.6 and both ends are then labelled with the
// ring id; nodes never connected inside their ring stay unlabelled. A few
// random cross links are added on top.
func FraudRings(rng *rand.Rand, numNodes, numRings int) (*graph.Graph, map[int]int, error) {
	if numNodes <= 0 {
		return nil, nil, apperrors.NewInvalidConfiguration("nodes", "must be positive")
	}
	if numRings <= 0 {
		return nil, nil, apperrors.NewInvalidConfiguration("rings", "must be positive")
	}

	g := graph.New()
	for id := 0; id < numNodes; id++ {
		g.AddNode(id)
	}

	labels := make(map[int]int)
	perRing := numNodes / numRings
	for ring := 0; ring < numRings; ring++ {
		start := ring * perRing
		end := start + perRing
		if ring == numRings-1 {
			end = numNodes
		}
		for a := start; a < end; a++ {
			for b := a + 1; b < end; b++ {
				if rng.Float64() >= ringEdgeProbability {
					continue
				}
				if err := g.AddEdge(a, b); err != nil {
					return nil, nil, err
				}
				labels[a] = ring
				labels[b] = ring
			}
		}
	}

	if err := addRandomLinks(g, rng, numNodes, int(float64(numNodes)*crossRingAttemptRatio)); err != nil {
		return nil, nil, err
	}
	return g, labels, nil
}

// Profile is the generated standing of one social network member
type Profile struct {
	IsInfluencer bool
	// BaseInfluence is the score before follower credit is added
	BaseInfluence float64
	// Followers lists who followed this member, possibly with repeats
	Followers []int
}

// SocialInfluence returns a graph on nodes 0..numNodes-1 where
// numInfluencers randomly chosen members form a loose clique and every
// other member follows one to three of them plus a few random peers.
func SocialInfluence(rng *rand.Rand, numNodes, numInfluencers int) (*graph.Graph, map[int]*Profile, error) {
	if numNodes <= 0 {
		return nil, nil, apperrors.NewInvalidConfiguration("nodes", "must be positive")
	}
	if numInfluencers <= 0 || numInfluencers > numNodes {
		return nil, nil, apperrors.NewInvalidConfiguration("influencers", "must be between 1 and the node count")
	}

	g := graph.New()
	for id := 0; id < numNodes; id++ {
		g.AddNode(id)
	}

	influencers := rng.Perm(numNodes)[:numInfluencers]
	isInfluencer := make(map[int]bool, numInfluencers)
	for _, id := range influencers {
		isInfluencer[id] = true
	}

	profiles := make(map[int]*Profile, numNodes)
	for id := 0; id < numNodes; id++ {
		p := &Profile{IsInfluencer: isInfluencer[id]}
		if p.IsInfluencer {
			p.BaseInfluence = influencerBaseScore
		} else {
			p.BaseInfluence = rng.Float64() * regularMaxBaseScore
		}
		profiles[id] = p
	}

	for i, a := range influencers {
		for _, b := range influencers[i+1:] {
			if rng.Float64() < influencerEdgeProbability {
				if err := g.AddEdge(a, b); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	pool := make([]int, len(influencers))
	for id := 0; id < numNodes; id++ {
		if isInfluencer[id] {
			continue
		}

		copy(pool, influencers)
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		follow := 1 + rng.Intn(min(maxInfluencersFollowed, numInfluencers))
		for _, inf := range pool[:follow] {
			if err := g.AddEdge(id, inf); err != nil {
				return nil, nil, err
			}
			profiles[inf].Followers = append(profiles[inf].Followers, id)
		}

		for attempts := 1 + rng.Intn(maxPeerAttempts); attempts > 0; attempts-- {
			other := rng.Intn(numNodes)
			if other == id || g.HasEdge(id, other) {
				continue
			}
			if err := g.AddEdge(id, other); err != nil {
				return nil, nil, err
			}
		}
	}

	return g, profiles, nil
}

// DistinctFollowers counts the unique followers of p
func (p *Profile) DistinctFollowers() int {
	seen := make(map[int]struct{}, len(p.Followers))
	for _, f := range p.Followers {
		seen[f] = struct{}{}
	}
	return len(seen)
}

func addRandomLinks(g *graph.Graph, rng *rand.Rand, numNodes, attempts int) error {
	for ; attempts > 0; attempts-- {
		a, b := rng.Intn(numNodes), rng.Intn(numNodes)
		if a == b || g.HasEdge(a, b) {
			continue
		}
		if err := g.AddEdge(a, b); err != nil {
			return err
		}
	}
	return nil
}
