package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"fraudgraph/backend/internal/analysis"
	"fraudgraph/backend/internal/api"
	"fraudgraph/backend/internal/constants"
	"fraudgraph/backend/internal/graph"
	"fraudgraph/backend/internal/insights"
	"fraudgraph/backend/internal/observability"
	"fraudgraph/backend/pkg/config"
	apperrors "fraudgraph/backend/pkg/errors"
	"fraudgraph/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting analysis API server...")

	profile, err := config.LoadProfile(cfg.AnalysisProfile)
	if err != nil {
		log.Fatal("Failed to load analysis profile", zap.String("path", cfg.AnalysisProfile), zap.Error(err))
	}

	collector := observability.NewCollector(constants.MetricsNamespace)
	deps := api.Deps{
		Analyzer:        analysis.NewAnalyzer(collector),
		Metrics:         collector,
		Profile:         profile,
		MaxGraphNodes:   cfg.MaxGraphNodes,
		WalkWorkers:     cfg.WalkWorkers,
		MaxWalkLength:   cfg.MaxWalkLength,
		MaxWalksPerNode: cfg.MaxWalksPerNode,
		MaxEmbeddingDim: cfg.MaxEmbeddingDim,
		MaxIterations:   cfg.MaxIterations,
	}

	// Optional Neo4j graph source
	if cfg.Neo4jEnabled() {
		store, err := connectNeo4j(cfg)
		if err != nil {
			log.Fatal("Failed to connect to Neo4j", zap.Error(err))
		}
		defer store.Close(context.Background())
		deps.Source = store
		log.Info("Neo4j graph source enabled", zap.String("uri", cfg.Neo4jURI))
	}

	// Optional narrative insights
	if cfg.InsightsEnabled() {
		narrator := insights.NewNarrator(cfg.LLMURL, cfg.LLMAPIKey, cfg.ModelID)
		deps.Narrator = narrator
		log.Info("Insights enabled", zap.String("model", narrator.Model()))
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(deps), collector, log)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("port", cfg.Port),
		zap.Int("max_graph_nodes", cfg.MaxGraphNodes),
		zap.Int("walk_workers", cfg.WalkWorkers),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func connectNeo4j(cfg *config.Config) (*graph.Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, apperrors.NewSourceConnectionFailed(cfg.Neo4jURI, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(context.Background())
		return nil, apperrors.NewSourceConnectionFailed(cfg.Neo4jURI, err)
	}

	return graph.NewNeo4jStore(driver), nil
}
