// Package memrepo is an in-memory implementation of the user, book and
// rating repositories with the same error semantics as the MySQL ones.
// Tests use it to run services and routes without a database.
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/book-ratings-api/internal/model"
	"github.com/iliyamo/book-ratings-api/internal/repository"
)

// Store holds all tables behind one lock.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	users   map[uint64]model.User
	books   map[uint64]model.Book
	ratings map[uint64]model.Rating
	seq     struct{ user, book, rating uint64 }
}

func New() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Second) },
		users:   map[uint64]model.User{},
		books:   map[uint64]model.Book{},
		ratings: map[uint64]model.Rating{},
	}
}

func (s *Store) Users() *Users     { return &Users{s} }
func (s *Store) Books() *Books     { return &Books{s} }
func (s *Store) Ratings() *Ratings { return &Ratings{s} }

// Users mirrors repository.UserRepo.
type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, name, email, passwordHash string) (model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, x := range u.s.users {
		if x.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	u.s.seq.user++
	now := u.s.now()
	usr := model.User{ID: u.s.seq.user, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	u.s.users[usr.ID] = usr
	return usr, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, x := range u.s.users {
		if x.Email == email {
			return x, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (u *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	x, ok := u.s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return x, nil
}

func (u *Users) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := u.GetByEmail(ctx, email)
	return err == nil, nil
}

// Books mirrors repository.BookRepo.
type Books struct{ s *Store }

func (b *Books) Create(_ context.Context, ownerID uint64, title string, description *string) (uint64, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.s.seq.book++
	now := b.s.now()
	b.s.books[b.s.seq.book] = model.Book{
		ID: b.s.seq.book, OwnerID: ownerID, Title: title, Description: copyStr(description),
		CreatedAt: now, UpdatedAt: now,
	}
	return b.s.seq.book, nil
}

func (b *Books) GetByID(_ context.Context, id uint64) (model.Book, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	bk, ok := b.s.books[id]
	if !ok {
		return model.Book{}, repository.ErrNotFound
	}
	return b.s.withRatings(bk), nil
}

func (b *Books) List(_ context.Context, limit, offset int) ([]model.Book, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	ids := make([]uint64, 0, len(b.s.books))
	for id := range b.s.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []model.Book{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, b.s.withRatings(b.s.books[ids[i]]))
	}
	return out, nil
}

func (b *Books) Count(context.Context) (int, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return len(b.s.books), nil
}

func (b *Books) UpdateByIDAndOwner(_ context.Context, id, ownerID uint64, title string, description *string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	bk, ok := b.s.books[id]
	if !ok || bk.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	bk.Title = title
	bk.Description = copyStr(description)
	bk.UpdatedAt = b.s.now()
	b.s.books[id] = bk
	return nil
}

func (b *Books) DeleteByIDAndOwner(_ context.Context, id, ownerID uint64) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	bk, ok := b.s.books[id]
	if !ok {
		return repository.ErrNotFound
	}
	if bk.OwnerID != ownerID {
		return repository.ErrForbidden
	}
	for rid, r := range b.s.ratings {
		if r.BookID == id {
			delete(b.s.ratings, rid)
		}
	}
	delete(b.s.books, id)
	return nil
}

// Ratings mirrors repository.RatingRepo.
type Ratings struct{ s *Store }

func (r *Ratings) Create(_ context.Context, userID, bookID uint64, value int) (model.Rating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq.rating++
	now := r.s.now()
	rt := model.Rating{ID: r.s.seq.rating, UserID: userID, BookID: bookID, Value: value, CreatedAt: now, UpdatedAt: now}
	r.s.ratings[rt.ID] = rt
	return rt, nil
}

// withRatings must be called with mu held.
func (s *Store) withRatings(b model.Book) model.Book {
	b.Ratings = []model.Rating{}
	for _, r := range s.ratings {
		if r.BookID == b.ID {
			b.Ratings = append(b.Ratings, r)
		}
	}
	sort.Slice(b.Ratings, func(i, j int) bool { return b.Ratings[i].ID < b.Ratings[j].ID })
	b.Description = copyStr(b.Description)
	return b
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
