package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	apperrors "fraudgraph/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j graph source, optional
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Narrative insights over an OpenAI-compatible endpoint, optional
	LLMURL    string
	LLMAPIKey string
	ModelID   string

	// Analysis
	AnalysisProfile string // Path to a YAML analysis profile
	MaxGraphNodes   int    // Upper bound on nodes per request; link ranking is O(N^2)
	MaxWalkLength   int    // Upper bound on walk_length per request
	MaxWalksPerNode int    // Upper bound on walks_per_node per request
	MaxEmbeddingDim int    // Upper bound on embedding_dim per request
	MaxIterations   int    // Upper bound on max_iterations per request
	WalkWorkers     int    // Goroutines used for walk sampling
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		Neo4jURI:        getEnv("NEO4J_URI", ""),
		Neo4jUser:       getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:   getEnv("NEO4J_PASSWORD", ""),
		LLMURL:          getEnv("LLM_URL", ""),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		ModelID:         getEnv("MODEL_ID", "gpt-4o-mini"),
		AnalysisProfile: getEnv("ANALYSIS_PROFILE", ""),
		MaxGraphNodes:   getEnvInt("MAX_GRAPH_NODES", 500),
		MaxWalkLength:   getEnvInt("MAX_WALK_LENGTH", 200),
		MaxWalksPerNode: getEnvInt("MAX_WALKS_PER_NODE", 50),
		MaxEmbeddingDim: getEnvInt("MAX_EMBEDDING_DIM", 512),
		MaxIterations:   getEnvInt("MAX_ITERATIONS", 100),
		WalkWorkers:     getEnvInt("WALK_WORKERS", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return apperrors.NewConfigValidationFailed("PORT", "must not be empty")
	}
	if c.MaxGraphNodes < 1 {
		return apperrors.NewConfigValidationFailed("MAX_GRAPH_NODES", "must be at least 1")
	}
	limits := []struct {
		name  string
		value int
	}{
		{"MAX_WALK_LENGTH", c.MaxWalkLength},
		{"MAX_WALKS_PER_NODE", c.MaxWalksPerNode},
		{"MAX_EMBEDDING_DIM", c.MaxEmbeddingDim},
		{"MAX_ITERATIONS", c.MaxIterations},
	}
	for _, l := range limits {
		if l.value < 1 {
			return apperrors.NewConfigValidationFailed(l.name, "must be at least 1")
		}
	}
	if c.WalkWorkers < 1 {
		return apperrors.NewConfigValidationFailed("WALK_WORKERS", "must be at least 1")
	}
	if c.Neo4jURI != "" && c.Neo4jUser == "" {
		return apperrors.NewConfigValidationFailed("NEO4J_USER", "required when NEO4J_URI is set")
	}
	if c.LLMURL != "" && c.ModelID == "" {
		return apperrors.NewConfigValidationFailed("MODEL_ID", "required when LLM_URL is set")
	}
	return nil
}

// Neo4jEnabled reports whether a Neo4j graph source is configured
func (c *Config) Neo4jEnabled() bool {
	return c.Neo4jURI != ""
}

// InsightsEnabled reports whether narrative insights are configured
func (c *Config) InsightsEnabled() bool {
	return c.LLMURL != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
