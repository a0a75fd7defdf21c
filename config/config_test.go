package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.Host)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout())
}

func TestLoad_FileOverridesMergedWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
top_k: 8
embedding:
  model: nomic-embed-text
cache:
  path: /var/lib/semsearch
  store_capacity: 50000
fetch:
  timeout_secs: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, "/var/lib/semsearch", cfg.Cache.Path)
	assert.Equal(t, 50000, cfg.Cache.StoreCapacity)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout())

	// Unset fields still get defaults.
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.Host)
	assert.Equal(t, 4096, cfg.Cache.Capacity)
	assert.Equal(t, 2, cfg.Fetch.MaxAttempts)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_k: [not an int"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
