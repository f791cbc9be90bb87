package analysis

import (
	"fraudgraph/backend/internal/accounts"
	"fraudgraph/backend/internal/community"
	"fraudgraph/backend/internal/constants"
	"fraudgraph/backend/internal/graph"
	"fraudgraph/backend/internal/insights"
	"fraudgraph/backend/internal/linkpred"
	"fraudgraph/backend/internal/node2vec"
)

// Metrics summarizes a graph and its community structure
type Metrics struct {
	TotalNodes           int     `json:"total_nodes"`
	TotalEdges           int     `json:"total_edges"`
	AvgDegree            float64 `json:"avg_degree"`
	Density              float64 `json:"density"`
	NumCommunities       int     `json:"num_communities"`
	Modularity           float64 `json:"modularity"`
	CommunityIterations  int     `json:"community_iterations"`
	CommunitiesConverged bool    `json:"communities_converged"`
	EmbeddedNodes        int     `json:"embedded_nodes"`
}

// SocialMetrics adds influence figures to Metrics
type SocialMetrics struct {
	Metrics
	NumInfluencers int     `json:"num_influencers"`
	AvgInfluence   float64 `json:"avg_influence"`
}

// Node is the per-node record shared by all flavors
type Node struct {
	ID        int `json:"id"`
	Degree    int `json:"degree"`
	Community int `json:"community"`
}

// FraudNode carries the ground-truth ring, -1 when unknown
type FraudNode struct {
	Node
	Label int `json:"label"`
}

// SocialNode carries a member's influence standing
type SocialNode struct {
	Node
	IsInfluencer   bool    `json:"is_influencer"`
	InfluenceScore float64 `json:"influence_score"`
	FollowersCount int     `json:"followers_count"`
}

// Report holds the parts every result shares
type Report struct {
	RunID       string               `json:"run_id"`
	DurationMS  int64                `json:"duration_ms"`
	Edges       []graph.Edge         `json:"edges"`
	Embeddings  *node2vec.Embeddings `json:"embeddings"`
	Communities map[int]int          `json:"communities"`
	Insights    string               `json:"insights,omitempty"`
}

// Result is a generic analysis
type Result struct {
	Report
	Nodes       []Node          `json:"nodes"`
	RankedLinks []linkpred.Link `json:"ranked_links"`
	Metrics     Metrics         `json:"metrics"`
}

// FraudResult is a fraud ring analysis
type FraudResult struct {
	Report
	Nodes           []FraudNode     `json:"nodes"`
	SuspiciousLinks []linkpred.Link `json:"suspicious_links"`
	Metrics         Metrics         `json:"metrics"`
}

// SocialResult is a social influence analysis
type SocialResult struct {
	Report
	Nodes                []SocialNode    `json:"nodes"`
	PotentialConnections []linkpred.Link `json:"potential_connections"`
	Metrics              SocialMetrics   `json:"metrics"`
}

// AccountResult is a fraud analysis of account records linked by shared
// identifiers. Node ids are record positions and node labels are ring ids.
type AccountResult struct {
	*FraudResult
	Accounts       []accounts.Risk  `json:"accounts"`
	Rings          []accounts.Ring  `json:"rings"`
	AccountMetrics accounts.Summary `json:"account_metrics"`
}

// Brief condenses r for the insights narrator
func (r *Result) Brief() insights.Brief {
	return brief(FlavorGeneric, r.Metrics, r.Communities, r.RankedLinks, nil)
}

// Brief condenses r for the insights narrator
func (r *FraudResult) Brief() insights.Brief {
	return brief(FlavorFraud, r.Metrics, r.Communities, r.SuspiciousLinks, nil)
}

// Brief condenses r for the insights narrator
func (r *SocialResult) Brief() insights.Brief {
	return brief(FlavorSocial, r.Metrics.Metrics, r.Communities, r.PotentialConnections, map[string]float64{
		"num_influencers": float64(r.Metrics.NumInfluencers),
		"avg_influence":   r.Metrics.AvgInfluence,
	})
}

// Brief condenses r for the insights narrator
func (r *AccountResult) Brief() insights.Brief {
	return brief(FlavorFraud, r.Metrics, r.Communities, r.SuspiciousLinks, map[string]float64{
		"high_risk_accounts": float64(r.AccountMetrics.HighRisk),
		"rings_detected":     float64(r.AccountMetrics.RingsDetected),
		"avg_risk_score":     r.AccountMetrics.AvgRiskScore,
	})
}

func brief(flavor Flavor, m Metrics, labels map[int]int, links []linkpred.Link, extra map[string]float64) insights.Brief {
	groups := community.Groups(labels)
	if len(groups) > constants.BriefCommunities {
		groups = groups[:constants.BriefCommunities]
	}
	if len(links) > constants.BriefLinks {
		links = links[:constants.BriefLinks]
	}
	return insights.Brief{
		Flavor:         string(flavor),
		TotalNodes:     m.TotalNodes,
		TotalEdges:     m.TotalEdges,
		AvgDegree:      m.AvgDegree,
		Density:        m.Density,
		NumCommunities: m.NumCommunities,
		Modularity:     m.Modularity,
		Communities:    groups,
		Links:          links,
		Extra:          extra,
	}
}
