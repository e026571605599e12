package model

import "time"

// Book is a catalogue entry owned by the user who created it.  OwnerID is
// written once on insert and never updated.  Ratings is filled by the
// repository when the book is loaded for display.
type Book struct {
	ID          uint64    // books.id
	OwnerID     uint64    // books.user_id
	Title       string    // books.title, at most 255 characters
	Description *string   // books.description, nullable
	CreatedAt   time.Time // books.created_at
	UpdatedAt   time.Time // books.updated_at
	Ratings     []Rating  // ratings.book_id = books.id, oldest first
}

// AverageRating returns the mean rating value, or 0 when unrated.
func (b Book) AverageRating() float64 {
	if len(b.Ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range b.Ratings {
		sum += r.Value
	}
	return float64(sum) / float64(len(b.Ratings))
}
