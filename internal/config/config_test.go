package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := []byte(`
database:
  dsn: "postgres://localhost/spiderd"
worker:
  maxWorkers: 5
`)
	require.NoError(t, os.WriteFile(path, yamlContent, 0o644))

	cfg := Load(path)

	assert.Equal(t, "postgres://localhost/spiderd", cfg.Database.DSN)
	assert.Equal(t, 5, cfg.Worker.MaxWorkers)
	// Untouched defaults survive the overlay.
	assert.Equal(t, 876, cfg.Worker.MaxQueueSize)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestValidate_RejectsMissingDSN(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_PassesWithDSNAndPositiveWorkerConfig(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = "postgres://localhost/spiderd"
	assert.NoError(t, cfg.Validate())
}
