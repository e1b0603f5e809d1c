package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "assets", cfg.Storage.Bucket)
	assert.False(t, cfg.Database.Enabled)
	assert.True(t, cfg.Cache.Async)
	assert.Equal(t, "256MiB", cfg.Cache.Budget)
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.GenUpdateInterval)
	assert.Equal(t, 2, cfg.Cache.CollectFromGeneration)
	assert.Zero(t, cfg.Cache.MaxOpsPerSecond)
	assert.Equal(t, "bucket", cfg.Assets.Source)
	assert.True(t, cfg.Assets.PostSync)
	assert.Equal(t, 30*time.Second, cfg.Assets.ReadTimeout)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("CACHE_BUDGET", "64MiB")
	t.Setenv("CACHE_ASYNC", "false")
	t.Setenv("CACHE_COLLECT_INTERVAL", "5s")
	t.Setenv("CACHE_MAX_OPS_PER_SECOND", "2.5")
	t.Setenv("ASSETS_SOURCE", "dir")
	t.Setenv("SERVER_API_KEY", "secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "64MiB", cfg.Cache.Budget)
	assert.False(t, cfg.Cache.Async)
	assert.Equal(t, 5*time.Second, cfg.Cache.CollectInterval)
	assert.Equal(t, 2.5, cfg.Cache.MaxOpsPerSecond)
	assert.Equal(t, "dir", cfg.Assets.Source)
	assert.Equal(t, "secret", cfg.Server.ApiKey)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ASSETS_DIR=/srv/assets\nLOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("ASSETS_DIR")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/assets", cfg.Assets.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
}
