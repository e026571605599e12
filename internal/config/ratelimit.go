package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig throttles /v1/register and /v1/login.  MaxAttempts
// requests are allowed per Window for every client key.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	KeyStrategy string // ip | ip_route
	Prefix      string
	Backend     string // redis | memory; redis degrades to memory when unreachable
	Debug       bool   // expose the computed key in X-RateLimit-Key
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables.  Non-positive
// values are clamped so the limiter is always well defined.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		MaxAttempts: envInt("RATE_LIMIT_MAX_ATTEMPTS", 60),
		Window:      envDur("RATE_LIMIT_WINDOW", time.Minute),
		KeyStrategy: getenv("RATE_LIMIT_KEY_STRATEGY", "ip"),
		Prefix:      getenv("RATE_LIMIT_PREFIX", "rl"),
		Backend:     strings.ToLower(getenv("RATE_LIMIT_BACKEND", "redis")),
		Debug:       envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return cfg
}

// envBool accepts strconv.ParseBool values plus yes/no and on/off.
func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
