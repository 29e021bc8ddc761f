package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "hvplane.db", cfg.Store.DSN)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "local-lvm", cfg.Provisioning.Storage)
	assert.Equal(t, "vmbr0", cfg.Provisioning.Bridge)
	assert.Equal(t, 1024, cfg.Locator.CacheSize)
	assert.Zero(t, cfg.Locator.CacheTTL)
}

func TestParse_FullFile(t *testing.T) {
	t.Parallel()

	data := []byte(`
environment: development
store:
  driver: postgres
  dsn: host=db user=hv dbname=hv sslmode=disable
logging:
  development: true
  level: debug
locator:
  sequential: true
  cacheTTL: 30s
provisioning:
  storage: ceph
  bridge: vmbr1
  tags: [managed]
metrics:
  textfile: /var/lib/node_exporter/hvplane.prom
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.True(t, cfg.Locator.Sequential)
	assert.Equal(t, 30*time.Second, cfg.Locator.CacheTTL)
	assert.Equal(t, "ceph", cfg.Provisioning.Storage)
	assert.Equal(t, []string{"managed"}, cfg.Provisioning.Tags)
	assert.Equal(t, "/var/lib/node_exporter/hvplane.prom", cfg.Metrics.Textfile)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown env", "environment: staging", "environment"},
		{"unknown driver", "store: {driver: mysql, dsn: x}", "store.driver"},
		{"postgres without dsn", "store: {driver: postgres}", "store.dsn"},
		{"bad level", "logging: {level: trace}", "logging.level"},
		{"negative ttl", "locator: {cacheTTL: -1s}", "cacheTTL"},
		{"bad storage", "provisioning: {storage: 'a b'}", "provisioning.storage"},
		{"unknown field", "hypervisors: []", "unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "hvplane.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: development\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTimeouts_Defaults(t *testing.T) {
	clearTimeoutEnvVars(t)

	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Second, timeouts.Read)
	assert.Equal(t, 30*time.Second, timeouts.Mutate)
	assert.Equal(t, 20*time.Second, timeouts.Connect)
	assert.Equal(t, 3, timeouts.StoreRetryMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, timeouts.StoreRetryInitialDelay)
}

func TestLoadTimeouts_EnvVars(t *testing.T) {
	clearTimeoutEnvVars(t)
	t.Setenv("HVPLANE_TIMEOUT_READ", "5s")
	t.Setenv("HVPLANE_TIMEOUT_MUTATE", "15s")
	t.Setenv("HVPLANE_TIMEOUT_CONNECT", "25s")
	t.Setenv("HVPLANE_STORE_RETRY_MAX_ATTEMPTS", "7")

	timeouts := LoadTimeouts()

	assert.Equal(t, 5*time.Second, timeouts.Read)
	assert.Equal(t, 15*time.Second, timeouts.Mutate)
	assert.Equal(t, 25*time.Second, timeouts.Connect)
	assert.Equal(t, 7, timeouts.StoreRetryMaxAttempts)
}

func TestLoadTimeouts_InvalidValuesFallBack(t *testing.T) {
	clearTimeoutEnvVars(t)
	t.Setenv("HVPLANE_TIMEOUT_READ", "soon")
	t.Setenv("HVPLANE_TIMEOUT_MUTATE", "-3s")
	t.Setenv("HVPLANE_STORE_RETRY_MAX_ATTEMPTS", "many")

	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Second, timeouts.Read)
	assert.Equal(t, 30*time.Second, timeouts.Mutate)
	assert.Equal(t, 3, timeouts.StoreRetryMaxAttempts)
}

func clearTimeoutEnvVars(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"HVPLANE_TIMEOUT_READ",
		"HVPLANE_TIMEOUT_MUTATE",
		"HVPLANE_TIMEOUT_CONNECT",
		"HVPLANE_STORE_RETRY_MAX_ATTEMPTS",
		"HVPLANE_STORE_RETRY_INITIAL_DELAY",
	} {
		t.Setenv(v, "")
	}
}
