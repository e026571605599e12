package handler

import (
	"context"  // provides context with cancellation for service calls
	"errors"   // errors.Is for service sentinels
	"log/slog" // structured logging of unexpected failures
	"net/http" // HTTP status codes and primitives
	"time"     // timeouts for service calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/book-ratings-api/internal/middleware" // authenticated user id
	"github.com/iliyamo/book-ratings-api/internal/model"      // domain types
	"github.com/iliyamo/book-ratings-api/internal/service"    // auth service inputs and errors
	"github.com/iliyamo/book-ratings-api/internal/utils"      // access token type
)

// requestTimeout bounds the service work done for one request.
const requestTimeout = 5 * time.Second

// AuthService is what the auth endpoints need from the service layer.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (model.User, utils.AccessToken, error)
	Login(ctx context.Context, in service.LoginInput) (model.User, utils.AccessToken, error)
	CurrentUser(ctx context.Context, id uint64) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Svc AuthService
	Log *slog.Logger
}

func NewAuthHandler(svc AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Log: log}
}

// Register: create user and return a token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, msgInvalidBody)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, tok, err := h.Svc.Register(ctx, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, newTokenResponse(u, tok))
}

// Login: verify credentials and return a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, msgInvalidBody)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, tok, err := h.Svc.Login(ctx, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newTokenResponse(u, tok))
}

// Me returns the account the bearer token belongs to.  A token whose user no
// longer exists is treated as unauthenticated.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, msgUnauthenticated)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Svc.CurrentUser(ctx, id)
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, msgUnauthenticated)
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, dataEnvelope{Data: newUserResource(u)})
}
