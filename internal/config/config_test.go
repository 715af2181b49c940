package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BUGVIPER_NEO4J_PASSWORD", "secret")
	t.Setenv("BUGVIPER_GITHUB_TOKEN", "ghp_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.Username)
	assert.Equal(t, "neo4j", cfg.Neo4j.Database)
	assert.Equal(t, 10, cfg.GitHub.RateLimit)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, ":8081", cfg.Worker.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Tasks.DispatchDeadline)
	assert.Equal(t, 5*time.Minute, cfg.Ingestion.CloneTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Ingestion.FetchTimeout)
	assert.Equal(t, time.Minute, cfg.Ingestion.ResetTimeout)
	assert.Contains(t, cfg.Ingestion.IgnoreDirs, "node_modules")
}

func TestLoadRequiresNeo4jPassword(t *testing.T) {
	t.Setenv("BUGVIPER_NEO4J_PASSWORD", "")
	t.Setenv("BUGVIPER_GITHUB_TOKEN", "ghp_test")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresGitHubAuth(t *testing.T) {
	t.Setenv("BUGVIPER_NEO4J_PASSWORD", "secret")
	t.Setenv("BUGVIPER_GITHUB_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateAppAuthNeedsKey(t *testing.T) {
	cfg := &Config{
		Neo4j:  Neo4jConfig{URI: "bolt://x", Password: "p"},
		GitHub: GitHubConfig{AppID: 42},
	}
	assert.Error(t, cfg.Validate())

	cfg.GitHub.PrivateKeyPath = "/etc/key.pem"
	assert.NoError(t, cfg.Validate())
}

func TestEffectiveParseWorkers(t *testing.T) {
	cfg := &Config{}
	workers := cfg.EffectiveParseWorkers()
	assert.GreaterOrEqual(t, workers, 1)
	assert.LessOrEqual(t, workers, 8)

	cfg.Ingestion.ParseWorkers = 3
	assert.Equal(t, 3, cfg.EffectiveParseWorkers())
}
