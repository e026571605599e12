package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/book-ratings-api/internal/model"
	"github.com/iliyamo/book-ratings-api/internal/queue"
	"github.com/iliyamo/book-ratings-api/internal/repository"
)

// RatingStore persists ratings.  *repository.RatingRepo implements it.
type RatingStore interface {
	Create(ctx context.Context, userID, bookID uint64, value int) (model.Rating, error)
}

// RatingInput is the rating request body.  BookID is accepted for
// compatibility; the book in the URL always wins.
type RatingInput struct {
	UserID *uint64 `json:"user_id"`
	BookID *uint64 `json:"book_id"`
	Rating *int    `json:"rating"`
}

type ratingRules struct {
	UserID *uint64 `json:"user_id" validate:"required"`
	Rating *int    `json:"rating" validate:"required,min=-2147483648,max=2147483647"` // INT column
}

// RatingService records ratings.  Any authenticated user may rate any book
// any number of times.
type RatingService struct {
	ratings RatingStore
	books   BookStore
	users   UserStore
	events  EventPublisher
	log     *slog.Logger
}

func NewRatingService(ratings RatingStore, books BookStore, users UserStore, events EventPublisher, log *slog.Logger) *RatingService {
	if events == nil {
		events = NopPublisher{}
	}
	return &RatingService{ratings: ratings, books: books, users: users, events: events, log: log}
}

// Create stores a rating for bookID.  The user_id from the body is stored as
// given; when it differs from the caller the mismatch is logged.
func (s *RatingService) Create(ctx context.Context, callerID, bookID uint64, in RatingInput) (model.Rating, error) {
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Rating{}, ErrNotFound
		}
		return model.Rating{}, fmt.Errorf("load book %d: %w", bookID, err)
	}

	ve := check(ratingRules{UserID: in.UserID, Rating: in.Rating})
	if !ve.Has("user_id") {
		if _, err := s.users.GetByID(ctx, *in.UserID); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return model.Rating{}, fmt.Errorf("load user %d: %w", *in.UserID, err)
			}
			ve.Add("user_id", "The selected user id is invalid.")
		}
	}
	if err := ve.orNil(); err != nil {
		return model.Rating{}, err
	}

	userID := *in.UserID
	if userID != callerID {
		s.log.Warn("rating user differs from caller", "book_id", bookID, "user_id", userID, "caller_id", callerID)
	}
	if in.BookID != nil && *in.BookID != bookID {
		s.log.Debug("rating body book_id ignored", "path_book_id", bookID, "body_book_id", *in.BookID)
	}

	rt, err := s.ratings.Create(ctx, userID, bookID, *in.Rating)
	if err != nil {
		return model.Rating{}, fmt.Errorf("create rating: %w", err)
	}
	s.events.Publish(ctx, queue.Event{
		Type:     queue.RatingCreated,
		ActorID:  callerID,
		BookID:   bookID,
		RatingID: rt.ID,
		Rating:   rt.Value,
	})
	return rt, nil
}
