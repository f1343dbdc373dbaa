package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
app:
  env: test
  port: 9090
  jwt_secret: s3cret
mongo:
  uri: mongodb://localhost:27017
  database: chat_test
ws:
  ping_interval_seconds: 5
  write_deadline_seconds: 2
`)

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal("test", cfg.App.Env)
	req.Equal(9090, cfg.App.Port)
	req.Equal("s3cret", cfg.App.JWTSecret)
	req.Equal("chat_test", cfg.Mongo.Database)
	req.Equal(5*time.Second, cfg.PingInterval)
	req.Equal(2*time.Second, cfg.WriteDeadline)
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
mongo:
  uri: mongodb://localhost:27017
`)

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal(8080, cfg.App.Port)
	req.Equal("chat", cfg.Mongo.Database)
	req.Equal(25*time.Second, cfg.PingInterval)
	req.Equal(10*time.Second, cfg.WriteDeadline)
	req.Equal(int64(65536), cfg.WS.MaxMessageSizeBytes)
	req.Equal(256, cfg.WS.SendBufferSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
