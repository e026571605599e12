package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger writes one structured line per request.  5xx responses log
// at error level, 4xx at warn, everything else at info.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err) // commit the response so the status is final
			}

			req, res := c.Request(), c.Response()
			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency", time.Since(start),
				"ip", c.RealIP(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
			}
			if id, ok := UserID(c); ok {
				attrs = append(attrs, "user_id", id)
			}
			if reason, ok := c.Get(ctxAuthError).(string); ok {
				attrs = append(attrs, "auth_error", reason)
			}
			if err != nil {
				attrs = append(attrs, "err", err)
			}

			switch {
			case res.Status >= 500:
				log.Error("request", attrs...)
			case res.Status >= 400:
				log.Warn("request", attrs...)
			default:
				log.Info("request", attrs...)
			}
			return nil
		}
	}
}
