package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 15*time.Minute, cfg.Assets.CacheTTL.Std())
	assert.True(t, cfg.Sync.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Admin.TokenTTL.Std())
	assert.Equal(t, 3, cfg.Transform.WatermarkCount)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9090"
  debug: true
assets:
  path: /srv/xslt-assets
  cache_ttl: 5m
sync:
  enabled: false
admin:
  username: operator
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "/srv/xslt-assets", cfg.Assets.Path)
	assert.Equal(t, 5*time.Minute, cfg.Assets.CacheTTL.Std())
	assert.False(t, cfg.Sync.Enabled)
	assert.Equal(t, "operator", cfg.Admin.Username)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Untouched sections keep their defaults.
	assert.Equal(t, "changeme", cfg.Admin.Password)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout.Std())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("XSLT_ASSETS_PATH", "/data/assets")
	t.Setenv("XSLT_ADMIN_PASSWORD", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/assets", cfg.Assets.Path)
	assert.Equal(t, "from-env", cfg.Admin.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
