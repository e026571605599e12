package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-ratings-api/internal/config"
	"github.com/iliyamo/book-ratings-api/internal/ratelimit"
)

// RateLimit throttles requests per client key using l.  Denied requests get
// 429 with Retry-After; backend errors let the request through.
func RateLimit(cfg config.RateLimitConfig, l ratelimit.Limiter, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || l == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)

			d, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable; allowing request", "key", key, "err", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				log.Info("rate limited", "key", key, "retry_after", time.Duration(secs)*time.Second)
				return c.JSON(http.StatusTooManyRequests, echo.Map{"message": "Too Many Attempts."})
			}
			return next(c)
		}
	}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip_route":
		parts = append(parts, "ip", ip, "route", c.Request().Method+" "+c.Path())
	default: // "ip"
		parts = append(parts, "ip", ip)
	}
	return strings.Join(parts, ":")
}
