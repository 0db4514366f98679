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
	cfg, err := Parse([]byte(`
postgres:
  dsn: postgres://x
auth:
  secret: s
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":9090", cfg.GRPC.Addr)
	assert.Equal(t, "HS256", cfg.Auth.Alg)
	assert.Equal(t, 10*time.Second, cfg.Realtime.AuthTimeout)
	assert.Equal(t, 2*time.Second, cfg.Realtime.RoomLookupTimeout)
	assert.Equal(t, 4000, cfg.Realtime.MaxContentLength)
	assert.Equal(t, 1, cfg.Persistence.MaxAttempts)
	assert.Equal(t, 1, cfg.Persistence.Workers)
	assert.Equal(t, "chat-service", cfg.Logging.Service)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing dsn", yaml: "auth:\n  secret: s\n"},
		{name: "missing secret", yaml: "postgres:\n  dsn: x\n"},
		{name: "rs256 without key", yaml: "postgres:\n  dsn: x\nauth:\n  alg: rs256\n"},
		{name: "unknown alg", yaml: "postgres:\n  dsn: x\nauth:\n  alg: none\n"},
		{name: "skew too large", yaml: "postgres:\n  dsn: x\nauth:\n  secret: s\n  clockSkew: 2m\n"},
		{name: "attempts too large", yaml: "postgres:\n  dsn: x\nauth:\n  secret: s\npersistence:\n  maxAttempts: 11\n"},
		{name: "bad yaml", yaml: "postgres: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_FromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":1234"
postgres:
  dsn: postgres://x
auth:
  secret: s
realtime:
  authTimeout: 3s
`), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":1234", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.Realtime.AuthTimeout)
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := LoadFile("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Persistence.Workers)
	assert.True(t, cfg.Postgres.Migrate)
}
