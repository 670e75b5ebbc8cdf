package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Research.DefaultMaxIterations)
	assert.Equal(t, 3, cfg.Research.MaxSubQuestions)
	assert.Equal(t, "stub", cfg.Retriever.Mode)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 60*time.Second, cfg.Oracle.Timeout)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
service:
  http_port: 9090
research:
  default_max_iterations: 5
  phase_timeout: 30s
oracle:
  base_url: http://llm:8000
  model: test-model
store:
  backend: redis
  redis:
    addr: redis:6379
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Service.HTTPPort)
	assert.Equal(t, 5, cfg.Research.DefaultMaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Research.PhaseTimeout)
	assert.Equal(t, "http://llm:8000", cfg.Oracle.BaseURL)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, "oracle:\n  model: from-file\n")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DEEPRESEARCH_ORACLE_MODEL", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Oracle.Model)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "research", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=research sslmode=disable", p.DSN())
}
