package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-ratings-api/internal/middleware"
	"github.com/iliyamo/book-ratings-api/internal/model"
	"github.com/iliyamo/book-ratings-api/internal/service"
)

// RatingService is what the rating endpoint needs from the service layer.
type RatingService interface {
	Create(ctx context.Context, callerID, bookID uint64, in service.RatingInput) (model.Rating, error)
}

type RatingHandler struct {
	Svc RatingService
	Log *slog.Logger
}

func NewRatingHandler(svc RatingService, log *slog.Logger) *RatingHandler {
	return &RatingHandler{Svc: svc, Log: log}
}

// Store rates the book in the path.
func (h *RatingHandler) Store(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, msgUnauthenticated)
	}
	bookID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusNotFound, msgNotFound)
	}
	var req service.RatingInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, msgInvalidBody)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rt, err := h.Svc.Create(ctx, uid, bookID, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, dataEnvelope{Data: newRatingResource(rt)})
}
