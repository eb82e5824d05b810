package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
client:
  base_url: http://feed.test:9000
  notification_delay: 250ms
server:
  latency: 1s
  sessions: redis
`))
	require.NoError(t, err)

	assert.Equal(t, "http://feed.test:9000", cfg.Client.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.NotificationDelay)
	assert.Equal(t, 5*time.Second, cfg.Client.RequestTimeout, "default kept")
	assert.Equal(t, time.Second, cfg.Server.Latency)
	assert.Equal(t, SessionsRedis, cfg.Server.Sessions)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("client:\n  base_ur1: http://x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_ur1")
}

func TestParse_CollectsErrors(t *testing.T) {
	_, err := Parse([]byte(`
log_level: loud
client:
  base_url: "not a url"
  max_steps: 0
server:
  sessions: memcached
`))
	require.Error(t, err)
	for _, want := range []string{"log_level", "client.base_url", "client.max_steps", "server.sessions"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: 0.0.0.0:9999\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
