package model

import "time"

// Rating is a score a user gave a book.  A user may rate the same book
// any number of times and the value is not range-checked.
type Rating struct {
	ID        uint64    // ratings.id
	UserID    uint64    // ratings.user_id
	BookID    uint64    // ratings.book_id
	Value     int       // ratings.rating
	CreatedAt time.Time // ratings.created_at
	UpdatedAt time.Time // ratings.updated_at
}
