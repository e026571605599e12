package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowScript increments the counter for KEYS[1], starts the window on the
// first hit and returns {count, remaining window in ms}.
var windowScript = redis.NewScript(`
    local current = redis.call('INCR', KEYS[1])
    if current == 1 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
    end
    local ttl = redis.call('PTTL', KEYS[1])
    if ttl < 0 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
        ttl = tonumber(ARGV[1])
    end
    return { current, ttl }
`)

// RedisWindow is a fixed-window counter stored in Redis.
type RedisWindow struct {
	rdb    redis.Scripter
	max    int
	window time.Duration
}

// NewRedisWindow allows max attempts per window for each key.
func NewRedisWindow(rdb redis.Scripter, max int, window time.Duration) *RedisWindow {
	return &RedisWindow{rdb: rdb, max: max, window: window}
}

func (l *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	vals, err := windowScript.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(vals) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script result %v", vals)
	}
	count, ttl := int(vals[0]), time.Duration(vals[1])*time.Millisecond

	d := Decision{Limit: l.max, Remaining: l.max - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if count <= l.max {
		d.Allowed = true
		return d, nil
	}
	d.RetryAfter = ttl
	return d, nil
}
