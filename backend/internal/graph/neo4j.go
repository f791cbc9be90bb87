package graph

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "fraudgraph/backend/pkg/errors"
	"fraudgraph/backend/pkg/logger"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// GraphQuery selects the subgraph a Neo4jStore reads or writes: nodes with
// NodeLabel keyed by the integer property IDProperty, joined by
// relationships of RelType. Direction is ignored when loading.
type GraphQuery struct {
	NodeLabel  string `json:"label"`
	RelType    string `json:"rel"`
	IDProperty string `json:"id_property"`
}

// DefaultGraphQuery is the layout written by the seeding script
func DefaultGraphQuery() GraphQuery {
	return GraphQuery{NodeLabel: "Account", RelType: "TRANSACTED_WITH", IDProperty: "id"}
}

// Validate checks that all names are safe to splice into Cypher; labels and
// relationship types cannot be passed as parameters.
func (q GraphQuery) Validate() error {
	for field, v := range map[string]string{"label": q.NodeLabel, "rel": q.RelType, "id_property": q.IDProperty} {
		if !identifierPattern.MatchString(v) {
			return apperrors.NewInvalidConfiguration(field, fmt.Sprintf("%q is not a valid identifier", v))
		}
	}
	return nil
}

// Neo4jStore loads analysis graphs from Neo4j and writes results back.
// Every round trip goes through a circuit breaker so a dead database fails
// requests fast instead of stacking up timeouts.
type Neo4jStore struct {
	driver  neo4j.DriverWithContext
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewNeo4jStore creates a new Neo4j-backed graph store
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	log := logger.Named("neo4j")
	return &Neo4jStore{
		driver:  driver,
		breaker: newBreaker("neo4j", log),
		logger:  log,
	}
}

func newBreaker(name string, log *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Close closes the Neo4j driver connection
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Load reads the subgraph selected by q. Nodes come back ordered by id so
// repeated loads of the same data produce the same Graph.
func (s *Neo4jStore) Load(ctx context.Context, q GraphQuery) (*Graph, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	nodeQuery := fmt.Sprintf(`
		MATCH (n:%[1]s)
		WHERE n.%[2]s IS NOT NULL
		RETURN n.%[2]s AS id
		ORDER BY id
	`, q.NodeLabel, q.IDProperty)

	edgeQuery := fmt.Sprintf(`
		MATCH (a:%[1]s)-[:%[2]s]-(b:%[1]s)
		WHERE a.%[3]s < b.%[3]s
		RETURN a.%[3]s AS source, b.%[3]s AS target
		ORDER BY source, target
	`, q.NodeLabel, q.RelType, q.IDProperty)

	g := New()

	nodeRecords, err := s.read(ctx, nodeQuery, nil)
	if err != nil {
		return nil, err
	}
	for _, record := range nodeRecords {
		id, ok := getInt64FromRecord(record, "id")
		if !ok {
			continue
		}
		g.AddNode(int(id))
	}

	edgeRecords, err := s.read(ctx, edgeQuery, nil)
	if err != nil {
		return nil, err
	}
	for _, record := range edgeRecords {
		source, okS := getInt64FromRecord(record, "source")
		target, okT := getInt64FromRecord(record, "target")
		if !okS || !okT {
			continue
		}
		if err := g.AddEdge(int(source), int(target)); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Graph loaded from Neo4j",
		zap.String("label", q.NodeLabel),
		zap.String("rel", q.RelType),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()),
	)
	return g, nil
}

// SaveGraph writes g under q, merging on the id property. rings, when
// non-nil, is stored as a ground-truth "ring" property.
func (s *Neo4jStore) SaveGraph(ctx context.Context, q GraphQuery, g *Graph, rings map[int]int) error {
	if err := q.Validate(); err != nil {
		return err
	}

	nodes := make([]map[string]interface{}, 0, g.NodeCount())
	for _, id := range g.Nodes() {
		ring, ok := rings[id]
		if !ok {
			ring = -1
		}
		nodes = append(nodes, map[string]interface{}{"id": int64(id), "ring": int64(ring)})
	}

	edges := make([]map[string]interface{}, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		edges = append(edges, map[string]interface{}{"source": int64(e.Source), "target": int64(e.Target)})
	}

	nodeQuery := fmt.Sprintf(`
		UNWIND $nodes AS row
		MERGE (n:%[1]s {%[2]s: row.id})
		SET n.ring = row.ring
	`, q.NodeLabel, q.IDProperty)

	edgeQuery := fmt.Sprintf(`
		UNWIND $edges AS row
		MATCH (a:%[1]s {%[3]s: row.source})
		MATCH (b:%[1]s {%[3]s: row.target})
		MERGE (a)-[:%[2]s]->(b)
	`, q.NodeLabel, q.RelType, q.IDProperty)

	if err := s.write(ctx, nodeQuery, map[string]interface{}{"nodes": nodes}); err != nil {
		return err
	}
	if err := s.write(ctx, edgeQuery, map[string]interface{}{"edges": edges}); err != nil {
		return err
	}

	s.logger.Info("Graph written to Neo4j",
		zap.String("label", q.NodeLabel),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
	)
	return nil
}

// SaveCommunities stores each node's community id as a "community" property
func (s *Neo4jStore) SaveCommunities(ctx context.Context, q GraphQuery, communities map[int]int) error {
	if err := q.Validate(); err != nil {
		return err
	}

	rows := make([]map[string]interface{}, 0, len(communities))
	for id, community := range communities {
		rows = append(rows, map[string]interface{}{"id": int64(id), "community": int64(community)})
	}

	query := fmt.Sprintf(`
		UNWIND $rows AS row
		MATCH (n:%[1]s {%[2]s: row.id})
		SET n.community = row.community
	`, q.NodeLabel, q.IDProperty)

	if err := s.write(ctx, query, map[string]interface{}{"rows": rows}); err != nil {
		return err
	}

	s.logger.Info("Communities written to Neo4j",
		zap.String("label", q.NodeLabel),
		zap.Int("nodes", len(rows)),
	)
	return nil
}

// EnsureSchema creates a uniqueness constraint on the id property and an
// index on the community property. Both are idempotent.
func (s *Neo4jStore) EnsureSchema(ctx context.Context, q GraphQuery) error {
	if err := q.Validate(); err != nil {
		return err
	}

	statements := []string{
		fmt.Sprintf("CREATE CONSTRAINT %[1]s_%[2]s_unique IF NOT EXISTS FOR (n:%[1]s) REQUIRE n.%[2]s IS UNIQUE",
			q.NodeLabel, q.IDProperty),
		fmt.Sprintf("CREATE INDEX %[1]s_community IF NOT EXISTS FOR (n:%[1]s) ON (n.community)", q.NodeLabel),
	}
	for _, stmt := range statements {
		if err := s.write(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

// Clear deletes every node with q's label and its relationships
func (s *Neo4jStore) Clear(ctx context.Context, q GraphQuery) error {
	if err := q.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		MATCH (n:%s)
		DETACH DELETE n
	`, q.NodeLabel)

	if err := s.write(ctx, query, nil); err != nil {
		return err
	}

	s.logger.Info("Graph cleared", zap.String("label", q.NodeLabel))
	return nil
}

func (s *Neo4jStore) read(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
		defer session.Close(ctx)

		result, err := session.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, apperrors.NewSourceQueryFailed(summarize(query), err)
	}
	return out.([]*neo4j.Record), nil
}

func (s *Neo4jStore) write(ctx context.Context, query string, params map[string]interface{}) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		result, err := session.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return apperrors.NewSourceQueryFailed(summarize(query), err)
	}
	return nil
}
