package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog" // request logging and error reporting
	"net"      // trusted proxy ranges

	"github.com/google/uuid"                        // request ids
	"github.com/labstack/echo/v4"                   // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware" // recover and request id middleware
	"github.com/redis/go-redis/v9"                  // response cache store

	"github.com/iliyamo/book-ratings-api/internal/config"     // rate limit and cache settings
	"github.com/iliyamo/book-ratings-api/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/book-ratings-api/internal/middleware" // JWT authentication, rate limiting, cache
	"github.com/iliyamo/book-ratings-api/internal/ratelimit"  // limiter backend for auth routes
)

// Deps is everything the routes need.  Redis may be nil, which disables the
// response cache; Limiter may be nil, which disables rate limiting.
type Deps struct {
	Auth    *handler.AuthHandler
	Books   *handler.BookHandler
	Ratings *handler.RatingHandler

	Tokens    middleware.TokenVerifier
	Limiter   ratelimit.Limiter
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	DB        handler.Pinger
	Log       *slog.Logger

	// TrustedProxies lists the peers whose X-Forwarded-For is believed.
	// Empty means the client address is the TCP peer.
	TrustedProxies []*net.IPNet
}

// New builds the Echo instance with the global middleware stack and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)
	e.IPExtractor = ipExtractor(d.TrustedProxies)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d)
	RegisterBooks(e, d)
	return e
}

// ipExtractor decides what c.RealIP returns, and so which rate limit bucket
// a request lands in.  Forwarding headers are only honoured when they come
// from a configured proxy.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// RegisterRoutes registers routes that do not require authentication and are
// outside the versioned API.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers account routes.  Register and login are rate
// limited per client; /v1/me requires a bearer token.
func RegisterAuth(e *echo.Echo, d Deps) {
	limit := middleware.RateLimit(d.RateLimit, d.Limiter, d.Log)

	g := e.Group("/v1")
	g.POST("/register", d.Auth.Register, limit)
	g.POST("/login", d.Auth.Login, limit)
	g.GET("/me", d.Auth.Me, middleware.JWTAuth(d.Tokens))
}
