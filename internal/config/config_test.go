package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  request_timeout: 5s
  cors_origins: ["https://market.example"]
repository:
  type: postgres
database:
  url: postgres://u:p@localhost:5432/market
  max_connections: 20
auth:
  secret: file-secret
notify:
  nats_url: nats://localhost:4222
  workers: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.GetServerAddr())
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"https://market.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, RepositoryPostgres, cfg.Repository.Type)
	assert.Equal(t, 20, cfg.Database.MaxConnections)
	assert.Equal(t, 2, cfg.Database.MinConnections)
	assert.Equal(t, "nats://localhost:4222", cfg.Notify.NATSURL)
	assert.Equal(t, 8, cfg.Notify.Workers)
	assert.Equal(t, 256, cfg.Notify.QueueSize)
	assert.Equal(t, 3*time.Second, cfg.Retry.MaxElapsed)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  secret: file-secret
`)
	t.Setenv("MARKETPLACE_AUTH_SECRET", "env-secret")
	t.Setenv("MARKETPLACE_SERVER_PORT", "7000")
	t.Setenv("MARKETPLACE_LOGGING_DEVELOPMENT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.Secret)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, RepositoryInMemory, cfg.Repository.Type)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Repository: RepositoryConfig{Type: RepositoryInMemory},
			Auth:       AuthConfig{Secret: "s"},
			Server:     ServerConfig{RateLimitRPM: 10},
		}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid inmemory", modify: func(c *Config) {}},
		{name: "valid postgres", modify: func(c *Config) {
			c.Repository.Type = RepositoryPostgres
			c.Database.URL = "postgres://localhost/db"
		}},
		{name: "unknown repository", modify: func(c *Config) { c.Repository.Type = "redis" }, wantErr: true},
		{name: "postgres without url", modify: func(c *Config) { c.Repository.Type = RepositoryPostgres }, wantErr: true},
		{name: "empty secret", modify: func(c *Config) { c.Auth.Secret = "" }, wantErr: true},
		{name: "zero rate limit", modify: func(c *Config) { c.Server.RateLimitRPM = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
