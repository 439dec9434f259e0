package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-curling/httpclient"
)

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	assert.Empty(t, cfg.Client.UserAgent)
	assert.True(t, cfg.Client.FollowRedirects)
	assert.False(t, cfg.Client.LogPayloads)
	assert.Equal(t, 1024, cfg.Client.MaxPayloadLog)

	assert.Equal(t, 0, cfg.Client.Retry.Count)
	assert.Equal(t, "exponential", cfg.Client.Retry.Strategy)
	assert.Equal(t, time.Second, cfg.Client.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Client.Retry.MaxDelay)
	assert.Equal(t, []int{502, 503, 504}, cfg.Client.Retry.RetryableStatuses)

	assert.False(t, cfg.Client.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoadFromBytesOverrides(t *testing.T) {
	yamlDoc := []byte(`
client:
  timeout: 5s
  useragent: search-indexer/2.1
  followredirects: false
  retry:
    count: 3
    strategy: linear
    basedelay: 250ms
    maxdelay: 2s
    retryablestatuses: [429, 503]
  ratelimit:
    enabled: true
    rps: 20
    burst: 5
log:
  level: debug
  pretty: true
`)

	cfg, err := LoadFromBytes(yamlDoc)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "search-indexer/2.1", cfg.Client.UserAgent)
	assert.False(t, cfg.Client.FollowRedirects)
	assert.Equal(t, 3, cfg.Client.Retry.Count)
	assert.Equal(t, "linear", cfg.Client.Retry.Strategy)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.Retry.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Client.Retry.MaxDelay)
	assert.Equal(t, []int{429, 503}, cfg.Client.Retry.RetryableStatuses)
	assert.True(t, cfg.Client.RateLimit.Enabled)
	assert.Equal(t, 20.0, cfg.Client.RateLimit.RPS)
	assert.Equal(t, 5, cfg.Client.RateLimit.Burst)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)

	// keys the document does not mention keep their defaults
	assert.Equal(t, 1024, cfg.Client.MaxPayloadLog)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CURLING_CLIENT_TIMEOUT", "2s")
	t.Setenv("CURLING_CLIENT_RETRY_COUNT", "4")
	t.Setenv("CURLING_CLIENT_RETRY_RETRYABLESTATUSES", "500,502")
	t.Setenv("CURLING_LOG_LEVEL", "warn")

	cfg, err := LoadFromBytes([]byte("client:\n  timeout: 10s\n"))
	require.NoError(t, err)

	// environment beats both the document and the defaults
	assert.Equal(t, 2*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 4, cfg.Client.Retry.Count)
	assert.Equal(t, []int{500, 502}, cfg.Client.Retry.RetryableStatuses)
	assert.Equal(t, "warn", cfg.Log.Level)

	assert.True(t, cfg.Client.FollowRedirects)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  useragent: from-file/1\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file/1", cfg.Client.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadFromFile(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("client: [unclosed"), 0o600))
		_, err := LoadFromFile(bad)
		require.Error(t, err)
	})
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"negative retry count", "client:\n  retry:\n    count: -1\n", "Count"},
		{"unknown strategy", "client:\n  retry:\n    strategy: fibonacci\n", "one of"},
		{"status below range", "client:\n  retry:\n    retryablestatuses: [42]\n", "at least"},
		{"unknown log level", "log:\n  level: loud\n", "one of"},
		{"maxdelay below basedelay", "client:\n  retry:\n    basedelay: 5s\n    maxdelay: 1s\n", "basedelay"},
		{"rate limit enabled without rps", "client:\n  ratelimit:\n    enabled: true\n    rps: 0\n", "rps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToClientConfig(t *testing.T) {
	section := Client{
		Timeout:         4 * time.Second,
		UserAgent:       "bridge/1.0",
		FollowRedirects: true,
		LogPayloads:     true,
		MaxPayloadLog:   64,
		Retry: Retry{
			Count:             2,
			Strategy:          "linear",
			BaseDelay:         100 * time.Millisecond,
			MaxDelay:          time.Second,
			RetryableStatuses: []int{503},
		},
		RateLimit: RateLimit{Enabled: true, RPS: 10, Burst: 3},
	}

	cfg := section.ToClientConfig()
	assert.Equal(t, 4*time.Second, cfg.Timeout)
	assert.Equal(t, "bridge/1.0", cfg.UserAgent)
	assert.True(t, cfg.FollowRedirects)
	assert.True(t, cfg.LogPayloads)
	assert.Equal(t, 64, cfg.MaxPayloadLogBytes)
	assert.Equal(t, 2, cfg.Retry.Count)
	assert.Equal(t, httpclient.BackoffLinear, cfg.Retry.Strategy)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, []int{503}, cfg.Retry.RetryableStatuses)
	assert.Equal(t, 10.0, cfg.RateLimitRPS)
	assert.Equal(t, 3, cfg.RateLimitBurst)

	t.Run("disabled rate limit stays off", func(t *testing.T) {
		off := section
		off.RateLimit.Enabled = false
		cfg := off.ToClientConfig()
		assert.Zero(t, cfg.RateLimitRPS)
		assert.Zero(t, cfg.RateLimitBurst)
	})
}

func TestToClient(t *testing.T) {
	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)

	log := cfg.Log.NewLogger()
	require.NotNil(t, log)

	c := cfg.ToClient(log)
	require.NotNil(t, c)
	c.Close()
}
