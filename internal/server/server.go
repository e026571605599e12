// Package server assembles the HTTP service from configuration: database,
// Redis, the rate limiter, the event broker and the Echo router.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/book-ratings-api/internal/config"
	"github.com/iliyamo/book-ratings-api/internal/database"
	"github.com/iliyamo/book-ratings-api/internal/handler"
	"github.com/iliyamo/book-ratings-api/internal/queue"
	"github.com/iliyamo/book-ratings-api/internal/ratelimit"
	"github.com/iliyamo/book-ratings-api/internal/repository"
	"github.com/iliyamo/book-ratings-api/internal/router"
	"github.com/iliyamo/book-ratings-api/internal/service"
	"github.com/iliyamo/book-ratings-api/internal/utils"
)

// Server owns every long-lived resource of the process.
type Server struct {
	echo *echo.Echo
	addr string
	log  *slog.Logger

	db  *sql.DB
	rdb *redis.Client
	mq  *queue.Publisher
	mem *ratelimit.Memory
}

// New connects to MySQL and wires the application.  Redis is optional: when
// it is unreachable the server logs a warning and runs without it.  RabbitMQ
// may be down at startup; the publisher reconnects once it comes back.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{addr: ":" + cfg.Port, log: log, db: db}

	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable, using in-memory rate limiter and no response cache", "err", err)
	}
	s.rdb = rdb

	var limiter ratelimit.Limiter
	if rdb != nil && rlCfg.Backend == "redis" {
		limiter = ratelimit.NewRedisWindow(rdb, rlCfg.MaxAttempts, rlCfg.Window)
	} else {
		s.mem = ratelimit.NewMemory(rlCfg.MaxAttempts, rlCfg.Window)
		limiter = s.mem
	}

	events := s.publisher(cfg)

	users := repository.NewUserRepo(db)
	books := repository.NewBookRepo(db)
	ratings := repository.NewRatingRepo(db)

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL())
	hasher := utils.NewBcryptHasher(cfg.BcryptCost)

	authSvc := service.NewAuthService(users, hasher, tokens, events, log)
	bookSvc := service.NewBookService(books, events, log)
	ratingSvc := service.NewRatingService(ratings, books, users, events, log)

	bookHandler := handler.NewBookHandler(bookSvc, log)
	bookHandler.BaseURL = cfg.AppURL

	s.echo = router.New(router.Deps{
		Auth:      handler.NewAuthHandler(authSvc, log),
		Books:     bookHandler,
		Ratings:   handler.NewRatingHandler(ratingSvc, log),
		Tokens:    tokens,
		Limiter:   limiter,
		RateLimit: rlCfg,
		Cache:     cacheCfg,
		Redis:     rdb,
		DB:        db,
		Log:       log,

		TrustedProxies: proxies,
	})
	return s, nil
}

func (s *Server) publisher(cfg config.Config) service.EventPublisher {
	if !cfg.EventsOn || cfg.AMQPURL == "" {
		return service.NopPublisher{}
	}
	mq := queue.NewPublisher(cfg.AMQPURL)
	if err := mq.Connect(); err != nil {
		s.log.Warn("rabbitmq unavailable, events are dropped until it is reachable", "err", err)
	}
	s.mq = mq
	return service.NewBrokerPublisher(mq, cfg.EventsQueue, s.log)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests then releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	if s.mem != nil {
		s.mem.Stop()
	}
	if s.mq != nil {
		err = errors.Join(err, s.mq.Close())
	}
	if s.rdb != nil {
		err = errors.Join(err, s.rdb.Close())
	}
	return errors.Join(err, s.db.Close())
}
