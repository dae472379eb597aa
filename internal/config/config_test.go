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
	t.Chdir(t.TempDir())
	t.Setenv(configPathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.False(t, cfg.Dev.ExposeVerificationCode)
	assert.Equal(t, 15*time.Minute, cfg.MockServer.AccessTokenTTL)
	assert.Contains(t, cfg.CORS.AllowedHeaders, "X-Request-ID")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(configPathEnv, "")
	t.Setenv("MAJORREC_API_BASE_URL", "http://api.example.test/api/")
	t.Setenv("MAJORREC_STORAGE_DRIVER", "sqlite")
	t.Setenv("MAJORREC_DEV_EXPOSE_VERIFICATION_CODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://api.example.test/api", cfg.API.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.True(t, cfg.Dev.ExposeVerificationCode)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	body := "storage:\n  driver: memory\n  namespace: alice\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv(configPathEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "alice", cfg.Storage.Namespace)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/n?sslmode=disable", c.DSN())
}
