package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/book-ratings-api/internal/config"
)

// cachedResponse is what a cache entry holds in Redis.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// bodyRecorder forwards to the client and keeps a copy of up to limit bytes.
// overflow is set once the response grows past limit.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.body.Len()+len(b) > r.limit {
			r.overflow = true
			r.body.Reset()
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// cacheKey namespaces a digest of the request origin and concrete URL under
// cfg.Prefix.  Scheme and host are part of the key because listings embed
// absolute page links, and /v1/books/1 and /v1/books/2 never share an entry.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	origin := c.Scheme() + "://" + r.Host
	var src string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "path":
		src = origin + r.URL.Path
	case "method_path_query":
		src = r.Method + " " + origin + r.URL.Path + "?" + r.URL.RawQuery
	default: // path_query
		src = origin + r.URL.Path + "?" + r.URL.RawQuery
	}
	sum := sha1.Sum([]byte(src))
	return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

// perRequestHeaders are never stored or replayed.
var perRequestHeaders = map[string]bool{
	echo.HeaderContentLength: true,
	echo.HeaderXRequestID:    true,
	"X-Cache":                true,
}

func storableHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if !perRequestHeaders[http.CanonicalHeaderKey(k)] {
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}

// NewRedisCache serves repeated reads from Redis.  Only 200 responses are
// stored; a hit replays status, headers and body exactly and is marked
// X-Cache: HIT.  It is a pass-through when the cache is disabled or rdb is
// nil.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !cfg.Methods[strings.ToUpper(req.Method)] {
				return next(c)
			}
			key := cacheKey(cfg, c)
			res := c.Response()

			if raw, err := rdb.Get(req.Context(), key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil && hit.Status > 0 {
					for k, v := range hit.Header {
						res.Header()[k] = v
					}
					res.Header().Set("X-Cache", "HIT")
					res.WriteHeader(hit.Status)
					_, err := res.Write(hit.Body)
					return err
				}
			}

			rec := &bodyRecorder{ResponseWriter: res.Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			res.Writer = rec
			res.Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}
			entry, err := json.Marshal(cachedResponse{
				Status: rec.status,
				Header: storableHeader(res.Header()),
				Body:   rec.body.Bytes(),
			})
			if err == nil {
				_ = rdb.Set(context.WithoutCancel(req.Context()), key, entry, cfg.TTL).Err()
			}
			return nil
		}
	}
}

// PurgeCache deletes every cached response under prefix.
func PurgeCache(ctx context.Context, rdb *redis.Client, prefix string) error {
	const batch = 200
	iter := rdb.Scan(ctx, 0, prefix+":*", batch).Iterator()
	keys := make([]string, 0, batch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == batch {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

// InvalidateCache purges the response cache after a successful write so the
// next read sees the change.
func InvalidateCache(cfg config.CacheConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if status := c.Response().Status; err == nil && status >= 200 && status < 300 {
				if perr := PurgeCache(context.WithoutCancel(c.Request().Context()), rdb, cfg.Prefix); perr != nil {
					log.Warn("cache purge failed", "prefix", cfg.Prefix, "err", perr)
				}
			}
			return err
		}
	}
}
