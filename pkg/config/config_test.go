package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.BaseDomain)
	assert.Equal(t, ":8080", cfg.IngressAddr)
	assert.Equal(t, ":8081", cfg.AdminAddr)
	assert.Equal(t, Duration(30*time.Second), cfg.CacheTTL)
	assert.Equal(t, Duration(3*time.Second), cfg.CaptureWriteTimeout)
	assert.Equal(t, 1024, cfg.CaptureRetryQueueSize)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_domain: mockbird.dev
ingress_addr: ":9000"
cache_ttl: 5s
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mockbird.dev", cfg.BaseDomain)
	assert.Equal(t, ":9000", cfg.IngressAddr)
	assert.Equal(t, Duration(5*time.Second), cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// Unset fields keep their defaults.
	assert.Equal(t, ":8081", cfg.AdminAddr)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_domain: from-file.dev\n"), 0o600))

	t.Setenv("MOCKBIRD_BASE_DOMAIN", "from-env.dev")
	t.Setenv("MOCKBIRD_CACHE_TTL", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.dev", cfg.BaseDomain)
	assert.Equal(t, Duration(time.Minute), cfg.CacheTTL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MOCKBIRD_CACHE_TTL", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
