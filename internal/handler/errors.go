package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-ratings-api/internal/service"
)

var (
	msgInvalidBody     = echo.Map{"message": "invalid request body"}
	msgNotFound        = echo.Map{"message": "Not found."}
	msgUnauthenticated = echo.Map{"message": "Unauthenticated."}
	msgServerError     = echo.Map{"message": "Server Error"}
)

// respondError maps a service error to its HTTP response.  Unknown errors are
// logged with the request id and answered with a generic 500.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	var (
		ve *service.ValidationError
		fe *service.ForbiddenError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"message": "validation error",
			"errors":  ve.Fields,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid email or password"})
	case errors.As(err, &fe):
		return c.JSON(http.StatusForbidden, echo.Map{"error": fe.Message})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, msgNotFound)
	default:
		log.Error("request failed",
			"err", err,
			"req_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"path", c.Path(),
			"method", c.Request().Method,
		)
		return c.JSON(http.StatusInternalServerError, msgServerError)
	}
}

// ErrorHandler renders errors that escape handlers, such as unknown routes,
// in the same JSON shape as handler responses.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			body := echo.Map{"message": http.StatusText(he.Code)}
			if he.Code == http.StatusNotFound {
				body = msgNotFound
			} else if m, ok := he.Message.(string); ok && m != "" {
				body = echo.Map{"message": m}
			}
			if c.Request().Method == http.MethodHead {
				_ = c.NoContent(he.Code)
				return
			}
			_ = c.JSON(he.Code, body)
			return
		}
		_ = respondError(c, log, err)
	}
}
