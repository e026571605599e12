package middleware

// identity.go holds the context keys shared across middleware files and the
// accessor handlers use to read the authenticated user.

import "github.com/labstack/echo/v4"

const (
	ctxUserID    = "user_id"
	ctxAuthError = "auth_error"
)

// UserID returns the id stored by JWTAuth.  ok is false on routes that do
// not run JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// SetUserID stores id the way JWTAuth does.
func SetUserID(c echo.Context, id uint64) {
	c.Set(ctxUserID, id)
}
