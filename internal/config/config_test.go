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
	cfg := NewFromViper(NewEmptyViper())

	server := cfg.GetServer()
	assert.Equal(t, "http", server.Frontend)
	assert.Equal(t, "0.0.0.0:8088", server.ListenAddress)
	assert.Equal(t, 10485760, server.MaxBodyBytes)

	assert.Equal(t, "backend", cfg.GetSource().Type)
	assert.Equal(t, "./emails", cfg.GetFile().Dir)

	backend, err := cfg.GetBackend()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8001", backend.BaseURL)
	assert.Equal(t, 15*time.Second, backend.Timeout)
	assert.Equal(t, "all", backend.DefaultFolder)
	assert.False(t, backend.MarkReadOnView)

	render, err := cfg.GetRender()
	require.NoError(t, err)
	assert.Equal(t, "isolated", render.Strategy)
	assert.Equal(t, "en", render.Locale)
	assert.Equal(t, 100, render.MinHeight)
	assert.Equal(t, 300, render.FallbackHeight)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 500 * time.Millisecond}, render.SettleDelays)
	assert.Equal(t, 640, render.ViewportWidth)
	assert.Equal(t, 2097152, render.MaxContentBytes)
	assert.False(t, render.BlockRemoteImages)
	assert.Empty(t, render.TrustedSenderDomains)

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.True(t, cache.Enabled)
	assert.Equal(t, 10*time.Minute, cache.TTL)
	assert.Equal(t, time.Minute, cache.CleanupFrequency)
	assert.Equal(t, 1000, cache.MaxEntries)

	assert.Equal(t, "info", cfg.GetString("logging.level"))
	assert.Equal(t, "json", cfg.GetString("logging.format"))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MAILVIEW_RENDER_LOCALE", "tr")
	t.Setenv("MAILVIEW_RENDER_MIN_HEIGHT", "150")
	t.Setenv("MAILVIEW_CACHE_TTL", "30s")
	t.Setenv("MAILVIEW_RENDER_TRUSTED_SENDER_DOMAINS", "example.com example.org")

	cfg := NewFromViper(newViper())

	render, err := cfg.GetRender()
	require.NoError(t, err)
	assert.Equal(t, "tr", render.Locale)
	assert.Equal(t, 150, render.MinHeight)
	assert.Equal(t, []string{"example.com", "example.org"}, render.TrustedSenderDomains)

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cache.TTL)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  type: file
file:
  dir: /var/mail/export
render:
  strategy: inline
  settle_delays: ["50ms", "1s"]
  block_remote_images: true
`), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.GetSource().Type)
	assert.Equal(t, "/var/mail/export", cfg.GetFile().Dir)

	render, err := cfg.GetRender()
	require.NoError(t, err)
	assert.Equal(t, "inline", render.Strategy)
	assert.True(t, render.BlockRemoteImages)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, time.Second}, render.SettleDelays)
	// Unset keys keep their defaults.
	assert.Equal(t, 640, render.ViewportWidth)

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInvalidValues(t *testing.T) {
	v := NewEmptyViper()
	v.Set("cache.ttl", "forever")
	v.Set("render.settle_delays", []string{"100ms", "soon"})
	v.Set("backend.timeout", "x")
	cfg := NewFromViper(v)

	_, err := cfg.GetCache()
	assert.Error(t, err)
	_, err = cfg.GetRender()
	assert.Error(t, err)
	_, err = cfg.GetBackend()
	assert.Error(t, err)

	cfg.Set("render.settle_delays", []string{})
	cfg.Set("render.min_height", -1)
	_, err = cfg.GetRender()
	assert.Error(t, err)
}
