package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-ratings-api/internal/middleware" // JWT, cache and invalidation middlewares
)

// RegisterBooks registers the book and rating endpoints under /v1.  Reads are
// public and cached; writes require a valid JWT and purge the cache.
func RegisterBooks(e *echo.Echo, d Deps) {
	g := e.Group("/v1")

	// ---- Public reads ----
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	g.GET("/books", d.Books.Index, cache)
	g.GET("/books/:id", d.Books.Show, cache)

	// ---- Authenticated writes ----
	// Attached per route: group middleware would also answer unknown /v1
	// paths with 401 instead of 404.
	auth := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.Tokens),
		middleware.InvalidateCache(d.Cache, d.Redis, d.Log),
	}
	g.POST("/books", d.Books.Store, auth...)
	g.PUT("/books/:id", d.Books.Update, auth...)
	g.PATCH("/books/:id", d.Books.Update, auth...) // same semantics as PUT
	g.DELETE("/books/:id", d.Books.Destroy, auth...)
	g.POST("/books/:id/ratings", d.Ratings.Store, auth...)
}
