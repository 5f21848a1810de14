package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  host: "127.0.0.1"
  port: 8081
  mode: debug
database:
  host: "db.internal"
  user: "dealscope"
  password: "secret"
  db_name: "dealscope"
redis:
  enabled: true
  addr: "cache:6379"
kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
log:
  level: debug
  format: console
valuation:
  rfs_spread:
    low: 0.75
    high: 1.25
  result_cache_ttl: 5m
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8081", cfg.Server.Addr())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, DefaultDBPort, cfg.Database.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.75, cfg.Valuation.RFSSpread.Low)
	assert.Equal(t, 5*time.Minute, cfg.Valuation.ResultCacheTTL)
	assert.Equal(t, DefaultCompsCacheTTL, cfg.Valuation.CompsCacheTTL)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: ["))
	assert.ErrorIs(t, err, ErrConfigParseError)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 70000\n"))
	assert.ErrorIs(t, err, ErrConfigValidation)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DEALSCOPE_SERVER_PORT", "9999")
	t.Setenv("DEALSCOPE_DATABASE_HOST", "db-host")

	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "db-host", cfg.Database.Host)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DEALSCOPE_DATABASE_PASSWORD", "pw")
	t.Setenv("DEALSCOPE_LOG_LEVEL", "warn")
	t.Setenv("DEALSCOPE_VALUATION_BERKUS_CEILING", "250000")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "pw", cfg.Database.Password)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 250_000.0, cfg.Valuation.BerkusCeiling)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestLoad_EmptyPathUsesEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
}

func TestMustLoad(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	assert.NotPanics(t, func() { MustLoad(path) })
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}

func TestWatch_ReportsChanges(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	changed := make(chan *Config, 1)

	require.NoError(t, Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil))

	updated := validConfigYAML + "metrics:\n  namespace: reloaded\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, "reloaded", c.Metrics.Namespace)
	case <-time.After(5 * time.Second):
		t.Skip("filesystem notifications unavailable")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}
