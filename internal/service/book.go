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

// Pagination defaults for book listings.
const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// BookStore persists books.  *repository.BookRepo implements it.
type BookStore interface {
	Create(ctx context.Context, ownerID uint64, title string, description *string) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Book, error)
	List(ctx context.Context, limit, offset int) ([]model.Book, error)
	Count(ctx context.Context) (int, error)
	UpdateByIDAndOwner(ctx context.Context, id, ownerID uint64, title string, description *string) error
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error
}

// BookInput is the create/update request body.  Absent fields stay nil.
type BookInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type createBookRules struct {
	Title string `json:"title" validate:"required,max=255"`
}

type updateBookRules struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
}

// Page selects one page of a listing.  Zero values pick the defaults.
type Page struct {
	Number  int
	PerPage int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// BookPage is one page of books plus the numbers needed for page links.
type BookPage struct {
	Books   []model.Book
	Page    int
	PerPage int
	Total   int
}

// LastPage is the number of the last page, at least 1.
func (p BookPage) LastPage() int {
	if p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// From and To are the 1-based positions of the first and last book on the
// page, both 0 for an empty page.
func (p BookPage) From() int {
	if len(p.Books) == 0 {
		return 0
	}
	return (p.Page-1)*p.PerPage + 1
}

func (p BookPage) To() int {
	if len(p.Books) == 0 {
		return 0
	}
	return p.From() + len(p.Books) - 1
}

// BookService implements the book catalogue.  Reads are public; writes take
// the authenticated caller id and only the owner may change a book.
type BookService struct {
	books  BookStore
	events EventPublisher
	log    *slog.Logger
}

func NewBookService(books BookStore, events EventPublisher, log *slog.Logger) *BookService {
	if events == nil {
		events = NopPublisher{}
	}
	return &BookService{books: books, events: events, log: log}
}

// List returns one page of books with their ratings.
func (s *BookService) List(ctx context.Context, p Page) (BookPage, error) {
	p = p.normalize()
	total, err := s.books.Count(ctx)
	if err != nil {
		return BookPage{}, fmt.Errorf("count books: %w", err)
	}
	books := []model.Book{}
	if (p.Number-1)*p.PerPage < total {
		books, err = s.books.List(ctx, p.PerPage, (p.Number-1)*p.PerPage)
		if err != nil {
			return BookPage{}, fmt.Errorf("list books: %w", err)
		}
	}
	return BookPage{Books: books, Page: p.Number, PerPage: p.PerPage, Total: total}, nil
}

// Get returns a single book with its ratings.
func (s *BookService) Get(ctx context.Context, id uint64) (model.Book, error) {
	b, err := s.books.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Book{}, ErrNotFound
	}
	return b, err
}

// Create stores a book owned by callerID.  Only the title is validated; an
// empty description is stored as null.
func (s *BookService) Create(ctx context.Context, callerID uint64, in BookInput) (model.Book, error) {
	rules := createBookRules{Title: trimmed(in.Title)}
	if err := check(rules).orNil(); err != nil {
		return model.Book{}, err
	}
	id, err := s.books.Create(ctx, callerID, rules.Title, nullable(in.Description))
	if err != nil {
		return model.Book{}, fmt.Errorf("create book: %w", err)
	}
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return model.Book{}, fmt.Errorf("reload book %d: %w", id, err)
	}
	s.events.Publish(ctx, queue.Event{Type: queue.BookCreated, ActorID: callerID, BookID: b.ID, Title: b.Title})
	return b, nil
}

// Update replaces title and description.  A missing book is reported before
// ownership, and ownership before validation.
func (s *BookService) Update(ctx context.Context, callerID, id uint64, in BookInput) (model.Book, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return model.Book{}, err
	}
	if cur.OwnerID != callerID {
		s.log.Info("book edit refused", "book_id", id, "owner_id", cur.OwnerID, "caller_id", callerID)
		return model.Book{}, errEditForbidden
	}

	rules := updateBookRules{Title: trimmed(in.Title), Description: trimmed(in.Description)}
	if err := check(rules).orNil(); err != nil {
		return model.Book{}, err
	}
	if err := s.books.UpdateByIDAndOwner(ctx, id, callerID, rules.Title, &rules.Description); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Book{}, ErrNotFound
		}
		return model.Book{}, fmt.Errorf("update book %d: %w", id, err)
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return model.Book{}, err
	}
	s.events.Publish(ctx, queue.Event{Type: queue.BookUpdated, ActorID: callerID, BookID: b.ID, Title: b.Title})
	return b, nil
}

// Delete removes a book and its ratings.  Only the owner may delete.
func (s *BookService) Delete(ctx context.Context, callerID, id uint64) error {
	err := s.books.DeleteByIDAndOwner(ctx, id, callerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrForbidden):
		s.log.Info("book delete refused", "book_id", id, "caller_id", callerID)
		return errDeleteForbidden
	case err != nil:
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	s.events.Publish(ctx, queue.Event{Type: queue.BookDeleted, ActorID: callerID, BookID: id})
	return nil
}
