package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"fraudgraph/backend/internal/constants"
	"fraudgraph/backend/internal/generator"
	"fraudgraph/backend/internal/graph"
	"fraudgraph/backend/pkg/config"
	apperrors "fraudgraph/backend/pkg/errors"
	"fraudgraph/backend/pkg/logger"
)

func main() {
	nodes := flag.Int("nodes", constants.DefaultFraudNodes, "Number of accounts to generate")
	rings := flag.Int("rings", constants.DefaultFraudRings, "Number of fraud rings to plant")
	seed := flag.Int64("seed", constants.DefaultSeed, "Random seed")
	label := flag.String("label", "Account", "Node label to write")
	rel := flag.String("rel", "TRANSACTED_WITH", "Relationship type to write")
	reset := flag.Bool("reset", false, "Delete existing nodes with the label first")
	attempts := flag.Int("attempts", 3, "Attempts per write when Neo4j is unavailable")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting graph seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if !cfg.Neo4jEnabled() {
		log.Fatal("NEO4J_URI is not set")
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	store := graph.NewNeo4jStore(driver)
	q := graph.GraphQuery{NodeLabel: *label, RelType: *rel, IDProperty: "id"}
	if err := q.Validate(); err != nil {
		log.Fatal("Invalid graph layout", zap.Error(err))
	}

	if *reset {
		log.Warn("Deleting existing graph", zap.String("label", q.NodeLabel))
		if err := retry(ctx, log, *attempts, func() error { return store.Clear(ctx, q) }); err != nil {
			log.Fatal("Failed to clear graph", zap.Error(err))
		}
	}

	log.Info("Creating constraints and indexes...")
	if err := retry(ctx, log, *attempts, func() error { return store.EnsureSchema(ctx, q) }); err != nil {
		log.Warn("Failed to create schema (may already exist)", zap.Error(err))
	}

	g, ringLabels, err := generator.FraudRings(rand.New(rand.NewSource(*seed)), *nodes, *rings)
	if err != nil {
		log.Fatal("Failed to generate graph", zap.Error(err))
	}

	if err := retry(ctx, log, *attempts, func() error { return store.SaveGraph(ctx, q, g, ringLabels) }); err != nil {
		log.Fatal("Failed to write graph", zap.Error(err))
	}

	log.Info("Seeding completed",
		zap.String("label", q.NodeLabel),
		zap.String("rel", q.RelType),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()),
		zap.Int("labelled", len(ringLabels)),
	)
	fmt.Fprintf(os.Stdout, "Seeded %d accounts and %d transactions. Analyze with GET /api/analyze-neo4j?label=%s&rel=%s\n",
		g.NodeCount(), g.EdgeCount(), q.NodeLabel, q.RelType)
}

// retry runs fn until it succeeds, fails with a non-retryable error, or
// runs out of attempts
func retry(ctx context.Context, log *zap.Logger, attempts int, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil || !apperrors.IsRetryable(err) {
			return err
		}
		backoff := time.Duration(attempt) * time.Second
		log.Warn("Neo4j write failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
