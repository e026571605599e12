package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers
)

// TokenVerifier resolves a raw bearer token to a user id.
// *utils.TokenIssuer implements it.
type TokenVerifier interface {
	Verify(raw string) (uint64, error)
}

// unauthenticated is the body of every 401 produced here.
var unauthenticated = echo.Map{"message": "Unauthenticated."}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject into the request context.  Handlers read it
// with UserID.  Missing, malformed, tampered and expired tokens all get the
// same 401 response.
func JWTAuth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header is "Bearer <jwt>"; the scheme is case-insensitive.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(auth, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, unauthenticated)
			}

			id, err := v.Verify(strings.TrimSpace(raw))
			if err != nil {
				c.Set(ctxAuthError, err.Error())
				return c.JSON(http.StatusUnauthorized, unauthenticated)
			}

			c.Set(ctxUserID, id)
			return next(c)
		}
	}
}
