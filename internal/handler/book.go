package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-ratings-api/internal/middleware"
	"github.com/iliyamo/book-ratings-api/internal/model"
	"github.com/iliyamo/book-ratings-api/internal/service"
)

// BookService is what the book endpoints need from the service layer.
type BookService interface {
	List(ctx context.Context, p service.Page) (service.BookPage, error)
	Get(ctx context.Context, id uint64) (model.Book, error)
	Create(ctx context.Context, callerID uint64, in service.BookInput) (model.Book, error)
	Update(ctx context.Context, callerID, id uint64, in service.BookInput) (model.Book, error)
	Delete(ctx context.Context, callerID, id uint64) error
}

// BookHandler serves the book catalogue.  BaseURL, when set, is the public
// origin used in pagination links instead of the request's Host.
type BookHandler struct {
	Svc     BookService
	Log     *slog.Logger
	BaseURL string
}

func NewBookHandler(svc BookService, log *slog.Logger) *BookHandler {
	return &BookHandler{Svc: svc, Log: log}
}

// Index lists books page by page.  Invalid page parameters fall back to the
// defaults.
func (h *BookHandler) Index(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Svc.List(ctx, service.Page{Number: page, PerPage: perPage})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newBookCollection(c, h.BaseURL, p))
}

// Show returns one book with its ratings.
func (h *BookHandler) Show(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusNotFound, msgNotFound)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	b, err := h.Svc.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, dataEnvelope{Data: newBookResource(b)})
}

// Store creates a book owned by the caller.
func (h *BookHandler) Store(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, msgUnauthenticated)
	}
	var req service.BookInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, msgInvalidBody)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	b, err := h.Svc.Create(ctx, uid, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, dataEnvelope{Data: newBookResource(b)})
}

// Update replaces title and description of a book the caller owns.
func (h *BookHandler) Update(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, msgUnauthenticated)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusNotFound, msgNotFound)
	}
	var req service.BookInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, msgInvalidBody)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	b, err := h.Svc.Update(ctx, uid, id, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, dataEnvelope{Data: newBookResource(b)})
}

// Destroy deletes a book the caller owns.
func (h *BookHandler) Destroy(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, msgUnauthenticated)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusNotFound, msgNotFound)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Svc.Delete(ctx, uid, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
