package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fraudgraph/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "NEO4J_URI", "LLM_URL", "MAX_GRAPH_NODES", "WALK_WORKERS",
		"MAX_WALK_LENGTH", "MAX_WALKS_PER_NODE", "MAX_EMBEDDING_DIM", "MAX_ITERATIONS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.Neo4jEnabled())
	assert.False(t, cfg.InsightsEnabled())
	assert.Equal(t, 500, cfg.MaxGraphNodes)
	assert.Equal(t, 200, cfg.MaxWalkLength)
	assert.Equal(t, 50, cfg.MaxWalksPerNode)
	assert.Equal(t, 512, cfg.MaxEmbeddingDim)
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.Equal(t, 1, cfg.WalkWorkers)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("NEO4J_URI", "bolt://db:7687")
	t.Setenv("LLM_URL", "http://llm:4000")
	t.Setenv("MAX_GRAPH_NODES", "200")
	t.Setenv("WALK_WORKERS", "4")
	t.Setenv("MAX_WALK_LENGTH", "80")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Neo4jEnabled())
	assert.True(t, cfg.InsightsEnabled())
	assert.Equal(t, 200, cfg.MaxGraphNodes)
	assert.Equal(t, 4, cfg.WalkWorkers)
	assert.Equal(t, 80, cfg.MaxWalkLength)
}

func TestLoad_InvalidInteger(t *testing.T) {
	t.Setenv("MAX_GRAPH_NODES", "lots")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxGraphNodes)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port: "8080", MaxGraphNodes: 10, WalkWorkers: 1, ModelID: "m",
		MaxWalkLength: 40, MaxWalksPerNode: 5, MaxEmbeddingDim: 32, MaxIterations: 10,
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"zero max nodes", func(c *Config) { c.MaxGraphNodes = 0 }, "MAX_GRAPH_NODES"},
		{"zero workers", func(c *Config) { c.WalkWorkers = 0 }, "WALK_WORKERS"},
		{"zero walk length limit", func(c *Config) { c.MaxWalkLength = 0 }, "MAX_WALK_LENGTH"},
		{"zero walks limit", func(c *Config) { c.MaxWalksPerNode = 0 }, "MAX_WALKS_PER_NODE"},
		{"zero dimension limit", func(c *Config) { c.MaxEmbeddingDim = 0 }, "MAX_EMBEDDING_DIM"},
		{"zero iterations limit", func(c *Config) { c.MaxIterations = 0 }, "MAX_ITERATIONS"},
		{"neo4j without user", func(c *Config) { c.Neo4jURI = "bolt://x" }, "NEO4J_USER"},
		{"llm without model", func(c *Config) { c.LLMURL = "http://x"; c.ModelID = "" }, "MODEL_ID"},
	}

	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
			var cfgErr *apperrors.ErrConfigValidationFailed
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestDecodeProfile(t *testing.T) {
	p, err := DecodeProfile(strings.NewReader(`
fraud:
  embedding_dim: 16
  p: 0.5
  seed: 7
social:
  top_k: 30
`))
	require.NoError(t, err)

	require.NotNil(t, p.Fraud.EmbeddingDim)
	assert.Equal(t, 16, *p.Fraud.EmbeddingDim)
	assert.Equal(t, 0.5, *p.Fraud.P)
	assert.Equal(t, int64(7), *p.Fraud.Seed)
	assert.Nil(t, p.Fraud.TopK)
	assert.Equal(t, 30, *p.Section("social").TopK)
	assert.Nil(t, p.Section("anything").TopK)
}

func TestDecodeProfile_Errors(t *testing.T) {
	_, err := DecodeProfile(strings.NewReader("fraud:\n  walk_lenght: 10\n"))
	assert.Error(t, err)

	p, err := DecodeProfile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, &Profile{}, p)
}

func TestLoadProfile(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, &Profile{}, p)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generic:\n  workers: 3\n"), 0o644))
	p, err = LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, *p.Generic.Workers)
}

func TestProfileSection_NilProfile(t *testing.T) {
	var p *Profile
	assert.Equal(t, EngineSettings{}, p.Section("fraud"))
}
