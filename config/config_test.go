package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Server.Env)
	assert.Equal(t, 1600, cfg.Upload.MaxWidth)
	assert.Equal(t, 70, cfg.Upload.JPEGQuality)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL())
	assert.Equal(t, 10, cfg.Auth.PinMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Auth.Window())
	assert.Equal(t, 50_000_000, cfg.Upload.MaxPixels)
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: "9000"
mongo:
  uri: mongodb://file:27017
  dbName: fromfile
jwt:
  secret: file-secret
  expiration: 2h
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("MONGO_DBNAME", "fromenv")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "mongodb://file:27017", cfg.Mongo.URI)
	assert.Equal(t, "fromenv", cfg.Mongo.DBName)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadConfigRejectsBadExpiration(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "tomorrow")
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestShippedConfigLeavesSecretToEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg, err := LoadConfig(".")
	require.NoError(t, err)
	assert.Empty(t, cfg.JWT.Secret)

	t.Setenv("JWT_SECRET", "from-env")
	cfg, err = LoadConfig(".")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}
