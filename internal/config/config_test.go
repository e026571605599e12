package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "books")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_NAME", "books")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, 60, cfg.AccessTTLMin)
	assert.Equal(t, time.Hour, cfg.AccessTTL())
	assert.Equal(t, "books.events", cfg.EventsQueue)
	assert.True(t, cfg.EventsOn)
}

func TestLoad_ReportsAllMissing(t *testing.T) {
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "books")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.NotContains(t, err.Error(), "DB_NAME")
}

func TestLoad_InvalidTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_TTL_MIN", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_TTL_MIN")
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadRateLimitConfig()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 60, cfg.MaxAttempts)
		assert.Equal(t, time.Minute, cfg.Window)
		assert.Equal(t, "ip", cfg.KeyStrategy)
	})

	t.Run("overrides and clamps", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_MAX_ATTEMPTS", "-3")
		t.Setenv("RATE_LIMIT_WINDOW", "30s")
		t.Setenv("RATE_LIMIT_ENABLED", "off")

		cfg := LoadRateLimitConfig()
		assert.False(t, cfg.Enabled)
		assert.Equal(t, 1, cfg.MaxAttempts)
		assert.Equal(t, 30*time.Second, cfg.Window)
	})
}

func TestLoadCacheConfig_Methods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")

	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 30*time.Second, cfg.TTL)
}

func TestLoadRedisConfig_HostPortWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "ignored:1")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg := LoadRedisConfig()
	assert.Equal(t, "cache:6380", cfg.Addr)
}

func TestLoad_TrustedProxies(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, 198.51.100.7 ,")
	t.Setenv("APP_URL", "https://books.example.org/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://books.example.org", cfg.AppURL)

	nets, err := cfg.TrustedProxyNets()
	require.NoError(t, err)
	require.Len(t, nets, 2)
	assert.Equal(t, "10.0.0.0/8", nets[0].String())
	assert.Equal(t, "198.51.100.7/32", nets[1].String())
}

func TestLoad_RejectsBadProxyAndURL(t *testing.T) {
	t.Run("proxy", func(t *testing.T) {
		setRequired(t)
		t.Setenv("TRUSTED_PROXIES", "not-a-network")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
	})
	t.Run("app url", func(t *testing.T) {
		setRequired(t)
		t.Setenv("APP_URL", "books.example.org")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APP_URL")
	})
}
