package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/book-ratings-api/internal/model"
)

// RatingRepo persists ratings.  No uniqueness is enforced per user and book.
type RatingRepo struct{ db *sql.DB }

func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

const ratingColumns = "id, user_id, book_id, rating, created_at, updated_at"

// Create inserts a rating and returns the stored row.
func (r *RatingRepo) Create(ctx context.Context, userID, bookID uint64, value int) (model.Rating, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO ratings (user_id, book_id, rating) VALUES (?, ?, ?)",
		userID, bookID, value)
	if err != nil {
		return model.Rating{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Rating{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches one rating.
func (r *RatingRepo) GetByID(ctx context.Context, id uint64) (model.Rating, error) {
	rt, err := scanRating(r.db.QueryRowContext(ctx,
		"SELECT "+ratingColumns+" FROM ratings WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rating{}, ErrNotFound
	}
	return rt, err
}

func scanRating(s rowScanner) (model.Rating, error) {
	var rt model.Rating
	err := s.Scan(&rt.ID, &rt.UserID, &rt.BookID, &rt.Value, &rt.CreatedAt, &rt.UpdatedAt)
	return rt, err
}
