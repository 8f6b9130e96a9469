package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, "daily", cfg.Sync.Frequency)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Search.DefaultLimit, cfg.Search.DefaultLimit)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.Frequency = "weekly"
	path := filepath.Join(t.TempDir(), "skillsmith.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "weekly", loaded.Sync.Frequency)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_DIR", "/tmp/custom-catalog")
	t.Setenv("SYNC_FREQUENCY", "weekly")
	t.Setenv("STRICT_VALIDATION", "on")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/custom-catalog", cfg.CatalogDir)
	assert.Equal(t, "weekly", cfg.Sync.Frequency)
	assert.True(t, cfg.Validation.Strict)
}

func TestValidateRejectsBadLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.DefaultLimit = 0
	assert.Error(t, cfg.Validate())
}

func TestPersistedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatalogDir = "/base"
	assert.Equal(t, filepath.Join("/base", "audit", "chain.log"), cfg.AuditPath())
	assert.Equal(t, filepath.Join("/base", "catalog", "v1.db"), cfg.CatalogPath("v1"))
	assert.Equal(t, filepath.Join("/base", "quarantine", "state.db"), cfg.QuarantinePath())
	assert.Equal(t, filepath.Join("/base", "sync", "state.json"), cfg.SyncStatePath())
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
