package config

import (
	"os"
	"strings"
	"time"
)

// CacheConfig controls the Redis response cache in front of GET /v1/books
// and GET /v1/books/:id.  Writes to books or ratings purge every key under
// Prefix.  Responses larger than MaxBodyBytes are served but not stored.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool // upper-cased
	TTL          time.Duration
	KeyStrategy  string // path | path_query | method_path_query
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads the CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methodSet(getenv("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  getenv("CACHE_KEY_STRATEGY", "path_query"),
		Prefix:       getenv("CACHE_PREFIX", "cache:books"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return cfg
}

func methodSet(csv string) map[string]bool {
	set := make(map[string]bool)
	for _, m := range strings.Split(csv, ",") {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			set[m] = true
		}
	}
	return set
}

// getenv is shared by every loader in this package.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
