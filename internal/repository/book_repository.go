// This file defines repository methods for books.  A Book belongs to the
// user who created it and carries the ratings given to it; ratings are
// loaded with a second query so list pages cost two round trips regardless
// of page size.

package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors is used to compare sentinel values
	"strings"      // strings builds the IN (...) placeholder list

	"github.com/iliyamo/book-ratings-api/internal/model"
)

// BookRepo encapsulates all database queries related to books and the
// ratings attached to them.
type BookRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewBookRepo constructs a BookRepo with the provided DB handle.
func NewBookRepo(db *sql.DB) *BookRepo {
	return &BookRepo{db: db}
}

const bookColumns = "id, user_id, title, description, created_at, updated_at"

// Create inserts a new book owned by ownerID and returns the new id.
func (r *BookRepo) Create(ctx context.Context, ownerID uint64, title string, description *string) (uint64, error) {
	const q = "INSERT INTO books (user_id, title, description) VALUES (?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, ownerID, title, nullString(description))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a book and its ratings.  It returns ErrNotFound if no
// row exists.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	q := "SELECT " + bookColumns + " FROM books WHERE id = ?"
	b, err := scanBook(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, ErrNotFound
		}
		return model.Book{}, err
	}
	books := []model.Book{b}
	if err := r.attachRatings(ctx, books); err != nil {
		return model.Book{}, err
	}
	return books[0], nil
}

// List returns one page of books ordered by id with ratings attached.
func (r *BookRepo) List(ctx context.Context, limit, offset int) ([]model.Book, error) {
	q := "SELECT " + bookColumns + " FROM books ORDER BY id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachRatings(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the total number of books.
func (r *BookRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books").Scan(&n)
	return n, err
}

// UpdateByIDAndOwner replaces title and description if the book belongs
// to ownerID.  user_id is never part of the SET clause.  It returns
// ErrNotFound when no row matched.
func (r *BookRepo) UpdateByIDAndOwner(ctx context.Context, id, ownerID uint64, title string, description *string) error {
	const q = `UPDATE books
	           SET title = ?, description = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, q, title, nullString(description), id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByIDAndOwner removes a book and its ratings provided it belongs to
// ownerID.  If the book does not exist ErrNotFound is returned; if it is
// owned by a different user ErrForbidden is returned.  The ownership check
// and the deletes run in one transaction with the book row locked.
func (r *BookRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var dbOwnerID uint64
	if err = tx.QueryRowContext(ctx, `SELECT user_id FROM books WHERE id = ? FOR UPDATE`, id).Scan(&dbOwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if dbOwnerID != ownerID {
		return ErrForbidden
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM ratings WHERE book_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return err
	}
	return nil
}

// attachRatings loads ratings for all books in one query and assigns them
// in place.  Books without ratings get an empty, non-nil slice.
func (r *BookRepo) attachRatings(ctx context.Context, books []model.Book) error {
	if len(books) == 0 {
		return nil
	}
	idx := make(map[uint64]int, len(books))
	args := make([]any, 0, len(books))
	for i := range books {
		books[i].Ratings = []model.Rating{}
		idx[books[i].ID] = i
		args = append(args, books[i].ID)
	}
	q := "SELECT " + ratingColumns + " FROM ratings WHERE book_id IN (" +
		strings.TrimSuffix(strings.Repeat("?,", len(args)), ",") + ") ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		rt, err := scanRating(rows)
		if err != nil {
			return err
		}
		if i, ok := idx[rt.BookID]; ok {
			books[i].Ratings = append(books[i].Ratings, rt)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(s rowScanner) (model.Book, error) {
	var (
		b    model.Book
		desc sql.NullString
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Title, &desc, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Book{}, err
	}
	if desc.Valid {
		b.Description = &desc.String
	}
	return b, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
