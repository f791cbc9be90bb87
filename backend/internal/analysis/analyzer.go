// Package analysis runs the full pipeline over one graph: walk sampling,
// embeddings, community assignment and link ranking, and assembles the
// fraud, social or generic result.
package analysis

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"fraudgraph/backend/internal/accounts"
	"fraudgraph/backend/internal/community"
	"fraudgraph/backend/internal/generator"
	"fraudgraph/backend/internal/graph"
	"fraudgraph/backend/internal/linkpred"
	"fraudgraph/backend/internal/node2vec"
	"fraudgraph/backend/internal/observability"
	"fraudgraph/backend/pkg/logger"
)

const (
	unknownRing   = -1
	maxInfluence  = 0.99
	followerBonus = 0.01
)

// Analyzer runs analyses. It holds no per-run state and is safe for
// concurrent use.
type Analyzer struct {
	metrics *observability.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewAnalyzer creates an analyzer reporting to metrics, which may be nil
func NewAnalyzer(metrics *observability.Collector) *Analyzer {
	return &Analyzer{
		metrics: metrics,
		tracer:  observability.Tracer(),
		logger:  logger.Named("analysis"),
	}
}

// outcome is what the shared pipeline produces for any flavor
type outcome struct {
	runID       string
	duration    time.Duration
	embeddings  *node2vec.Embeddings
	communities *community.Result
	links       []linkpred.Link
	metrics     Metrics
}

func (o *outcome) report(g *graph.Graph) Report {
	return Report{
		RunID:       o.runID,
		DurationMS:  o.duration.Milliseconds(),
		Edges:       g.Edges(),
		Embeddings:  o.embeddings,
		Communities: o.communities.Labels,
	}
}

func (o *outcome) node(g *graph.Graph, id int) (Node, error) {
	deg, err := g.Degree(id)
	if err != nil {
		return Node{}, err
	}
	return Node{ID: id, Degree: deg, Community: o.communities.Labels[id]}, nil
}

// Analyze runs a generic analysis of g
func (a *Analyzer) Analyze(ctx context.Context, g *graph.Graph, opts Options) (*Result, error) {
	out, err := a.run(ctx, FlavorGeneric, g, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Report:      out.report(g),
		Nodes:       make([]Node, 0, g.NodeCount()),
		RankedLinks: out.links,
		Metrics:     out.metrics,
	}
	for _, id := range g.Nodes() {
		n, err := out.node(g, id)
		if err != nil {
			return nil, err
		}
		res.Nodes = append(res.Nodes, n)
	}
	return res, nil
}

// AnalyzeFraud analyzes a transaction graph. rings maps nodes to their
// known fraud ring; nodes absent from it are reported with label -1.
func (a *Analyzer) AnalyzeFraud(ctx context.Context, g *graph.Graph, rings map[int]int, opts Options) (*FraudResult, error) {
	out, err := a.run(ctx, FlavorFraud, g, opts)
	if err != nil {
		return nil, err
	}

	res := &FraudResult{
		Report:          out.report(g),
		Nodes:           make([]FraudNode, 0, g.NodeCount()),
		SuspiciousLinks: out.links,
		Metrics:         out.metrics,
	}
	for _, id := range g.Nodes() {
		n, err := out.node(g, id)
		if err != nil {
			return nil, err
		}
		label, ok := rings[id]
		if !ok {
			label = unknownRing
		}
		res.Nodes = append(res.Nodes, FraudNode{Node: n, Label: label})
	}
	return res, nil
}

// AnalyzeSocial analyzes a follower graph. A member's influence score is
// its base influence plus 0.01 per distinct follower, capped at 0.99.
// Nodes without a profile count as regular members with no base influence.
func (a *Analyzer) AnalyzeSocial(ctx context.Context, g *graph.Graph, profiles map[int]*generator.Profile, opts Options) (*SocialResult, error) {
	out, err := a.run(ctx, FlavorSocial, g, opts)
	if err != nil {
		return nil, err
	}

	res := &SocialResult{
		Report:               out.report(g),
		Nodes:                make([]SocialNode, 0, g.NodeCount()),
		PotentialConnections: out.links,
		Metrics:              SocialMetrics{Metrics: out.metrics},
	}

	var total float64
	for _, id := range g.Nodes() {
		n, err := out.node(g, id)
		if err != nil {
			return nil, err
		}
		sn := SocialNode{Node: n}
		if p, ok := profiles[id]; ok {
			sn.IsInfluencer = p.IsInfluencer
			sn.FollowersCount = p.DistinctFollowers()
			sn.InfluenceScore = min(maxInfluence, p.BaseInfluence+followerBonus*float64(sn.FollowersCount))
		}
		if sn.IsInfluencer {
			res.Metrics.NumInfluencers++
		}
		total += sn.InfluenceScore
		res.Nodes = append(res.Nodes, sn)
	}
	if len(res.Nodes) > 0 {
		res.Metrics.AvgInfluence = total / float64(len(res.Nodes))
	}
	return res, nil
}

// AnalyzeAccounts links records through shared identifiers, scores every
// account and groups rings, then runs the fraud analysis over the linked
// graph with ring ids as node labels.
func (a *Analyzer) AnalyzeAccounts(ctx context.Context, records []accounts.Record, opts Options) (*AccountResult, error) {
	g, err := accounts.Graph(records)
	if err != nil {
		return nil, err
	}
	risks := accounts.Score(records)
	rings := accounts.Rings(records, risks)

	res, err := a.AnalyzeFraud(ctx, g, accounts.RingLabels(rings), opts)
	if err != nil {
		return nil, err
	}
	return &AccountResult{
		FraudResult:    res,
		Accounts:       risks,
		Rings:          rings,
		AccountMetrics: accounts.Summarize(risks, rings),
	}, nil
}

// SimulateFraud generates a fraud ring graph from opts.Seed and analyzes it
func (a *Analyzer) SimulateFraud(ctx context.Context, numNodes, numRings int, opts Options) (*FraudResult, error) {
	g, rings, err := generator.FraudRings(rand.New(rand.NewSource(opts.Seed)), numNodes, numRings)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeFraud(ctx, g, rings, opts)
}

// SimulateSocial generates a social graph from opts.Seed and analyzes it
func (a *Analyzer) SimulateSocial(ctx context.Context, numNodes, numInfluencers int, opts Options) (*SocialResult, error) {
	g, profiles, err := generator.SocialInfluence(rand.New(rand.NewSource(opts.Seed)), numNodes, numInfluencers)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeSocial(ctx, g, profiles, opts)
}

func (a *Analyzer) run(ctx context.Context, flavor Flavor, g *graph.Graph, opts Options) (*outcome, error) {
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, a.tracer, "analysis."+string(flavor),
		attribute.Int("graph.nodes", g.NodeCount()),
		attribute.Int("graph.edges", g.EdgeCount()),
		attribute.Int64("analysis.seed", opts.Seed),
	)
	out, err := a.pipeline(ctx, g, opts)
	observability.EndSpan(span, err)
	a.metrics.RecordRun(string(flavor), g.NodeCount(), err)

	if err != nil {
		a.logger.Warn("Analysis failed",
			zap.String("flavor", string(flavor)),
			zap.Int("nodes", g.NodeCount()),
			zap.Error(err),
		)
		return nil, err
	}

	out.runID = uuid.NewString()
	out.duration = time.Since(start)

	a.logger.Info("Analysis completed",
		zap.String("run_id", out.runID),
		zap.String("flavor", string(flavor)),
		zap.Int("nodes", out.metrics.TotalNodes),
		zap.Int("edges", out.metrics.TotalEdges),
		zap.Int("communities", out.metrics.NumCommunities),
		zap.Int("links", len(out.links)),
		zap.Duration("duration", out.duration),
	)
	return out, nil
}

func (a *Analyzer) pipeline(ctx context.Context, g *graph.Graph, opts Options) (*outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	out := &outcome{}

	var walks []node2vec.Walk
	err := a.stage(ctx, observability.StageWalks, func(ctx context.Context) error {
		var err error
		walks, err = node2vec.SampleWalks(ctx, g, opts.Options, opts.Seed)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, observability.StageEmbeddings, func(ctx context.Context) error {
		out.embeddings = node2vec.Aggregate(walks, opts.WalkLength, opts.Dimensions)
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, observability.StageCommunity, func(ctx context.Context) error {
		var err error
		out.communities, err = community.Assign(g, opts.MaxIterations)
		if err != nil {
			return err
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, observability.StageLinks, func(ctx context.Context) error {
		var err error
		out.links, err = linkpred.Rank(g, out.embeddings, opts.TopK)
		if err != nil {
			return err
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	out.metrics = Metrics{
		TotalNodes:           g.NodeCount(),
		TotalEdges:           g.EdgeCount(),
		AvgDegree:            g.AverageDegree(),
		Density:              g.Density(),
		NumCommunities:       community.Count(out.communities.Labels),
		Modularity:           community.Modularity(g, out.communities.Labels),
		CommunityIterations:  out.communities.Iterations,
		CommunitiesConverged: out.communities.Converged,
		EmbeddedNodes:        out.embeddings.Len(),
	}
	return out, nil
}

// stage runs fn inside its own span and stage timer
func (a *Analyzer) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := observability.StartSpan(ctx, a.tracer, "analysis.stage."+name)
	stop := a.metrics.TimeStage(name)
	start := time.Now()

	err := fn(ctx)

	stop()
	observability.EndSpan(span, err)
	a.logger.Debug("Analysis stage finished",
		zap.String("stage", name),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return err
}
