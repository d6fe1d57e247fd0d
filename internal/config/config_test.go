package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_OverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
queue:
  max_memory_size: 500
  overflow_strategy: drop
orchestrator:
  num_workers: 8
storage:
  backend: s3
  s3_bucket: events
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 500, cfg.Queue.MaxMemorySize)
	require.Equal(t, "drop", cfg.Queue.OverflowStrategy)
	require.Equal(t, 8, cfg.Orchestrator.NumWorkers)
	require.Equal(t, "s3", cfg.Storage.Backend)
	require.Equal(t, "events", cfg.Storage.S3Bucket)

	// Fields not present in the YAML keep their defaults.
	require.Equal(t, 5, cfg.Orchestrator.BatchTimeoutSeconds)
	require.Equal(t, 7, cfg.Storage.HotRetentionDays)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
